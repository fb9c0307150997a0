// Package qdrant persists the vector index in a Qdrant collection published
// through a collection alias.
package qdrant

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

// Ensure IndexStore implements the interface.
var _ driven.IndexStore = (*IndexStore)(nil)

const (
	// DefaultAlias is the alias readers resolve to the published collection.
	DefaultAlias = "diagnobot"

	upsertBatchSize = 100
	scrollPageSize  = 256
)

// pointNamespace derives stable point IDs from chunk IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("diagnobot/chunk"))

// Payload and collection metadata keys.
const (
	keyPosition     = "position"
	keyChunkID      = "chunk_id"
	keyDocumentID   = "document_id"
	keyPage         = "page"
	keyStartOffset  = "start_offset"
	keyText         = "text"
	keyModel        = "model"
	keyDimensions   = "dimensions"
	keyMetric       = "metric"
	keyChunkCount   = "chunk_count"
	keyChunkSize    = "chunk_size"
	keyChunkOverlap = "chunk_overlap"
	keyBuiltAt      = "built_at"
)

// Config holds Qdrant connection settings.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool

	// Alias names the published index. Defaults to DefaultAlias.
	Alias string

	// ConnectTimeout bounds the startup health check. Defaults to 30s.
	ConnectTimeout time.Duration
}

// IndexStore persists snapshots into per-build collections and swaps the
// alias once a collection is complete, so readers never see a partial index.
type IndexStore struct {
	client *qdrant.Client
	alias  string
	now    func() time.Time
}

// NewIndexStore connects to Qdrant and validates the server is reachable,
// retrying with exponential backoff.
func NewIndexStore(ctx context.Context, cfg Config) (*IndexStore, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("creating qdrant client: %w", err)
	}

	alias := cfg.Alias
	if alias == "" {
		alias = DefaultAlias
	}
	s := &IndexStore{client: client, alias: alias, now: time.Now}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if err := s.healthCheckWithRetry(ctx, timeout); err != nil {
		client.Close()
		return nil, fmt.Errorf("qdrant unreachable at %s:%d: %w", cfg.Host, cfg.Port, err)
	}
	return s, nil
}

// healthCheckWithRetry polls the server with exponential backoff until it
// answers or maxElapsed passes.
func (s *IndexStore) healthCheckWithRetry(ctx context.Context, maxElapsed time.Duration) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = maxElapsed

	operation := func() error {
		reply, err := s.client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if reply == nil || reply.GetTitle() == "" {
			return errors.New("health check returned invalid response")
		}
		return nil
	}
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// Location returns the alias URI.
func (s *IndexStore) Location() string {
	return "qdrant://" + s.alias
}

// Close closes the client connection.
func (s *IndexStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Exists reports whether the alias points at a collection.
func (s *IndexStore) Exists(ctx context.Context) (bool, error) {
	name, err := s.currentCollection(ctx)
	if err != nil {
		return false, err
	}
	return name != "", nil
}

// Save writes snapshot into a new collection then points the alias at it.
// The previous collection is dropped after the swap.
func (s *IndexStore) Save(ctx context.Context, snapshot *domain.IndexSnapshot) (err error) {
	if err := snapshot.Validate(); err != nil {
		return err
	}

	previous, err := s.currentCollection(ctx)
	if err != nil {
		return err
	}

	name := fmt.Sprintf("%s_%d", s.alias, s.now().UnixNano())
	// Dot product keeps stored vectors unnormalised; queries run in memory
	// under the metric recorded in metadata.
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(snapshot.Metadata.Dimensions),
			Distance: qdrant.Distance_Dot,
		}),
		Metadata: qdrant.NewValueMap(metadataPayload(snapshot.Metadata)),
	})
	if err != nil {
		return fmt.Errorf("creating collection %s: %w", name, err)
	}
	defer func() {
		if err != nil {
			if delErr := s.client.DeleteCollection(context.WithoutCancel(ctx), name); delErr != nil {
				logger.Warn("dropping incomplete collection %s: %v", name, delErr)
			}
		}
	}()

	points := toPoints(snapshot)
	wait := true
	for i := 0; i < len(points); i += upsertBatchSize {
		end := min(i+upsertBatchSize, len(points))
		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: name,
			Wait:           &wait,
			Points:         points[i:end],
		}); err != nil {
			return fmt.Errorf("upserting points %d-%d: %w", i, end, err)
		}
	}

	actions := make([]*qdrant.AliasOperations, 0, 2)
	if previous != "" {
		actions = append(actions, qdrant.NewAliasDelete(s.alias))
	}
	actions = append(actions, qdrant.NewAliasCreate(s.alias, name))
	if err := s.client.UpdateAliases(ctx, actions); err != nil {
		return fmt.Errorf("publishing alias %s: %w", s.alias, err)
	}

	if previous != "" {
		if err := s.client.DeleteCollection(ctx, previous); err != nil {
			logger.Warn("dropping previous collection %s: %v", previous, err)
		}
	}
	logger.Debug("Published %d chunks to %s as %s", len(points), name, s.alias)
	return nil
}

// Load reads every point of the published collection.
func (s *IndexStore) Load(ctx context.Context) (*domain.IndexSnapshot, error) {
	name, err := s.currentCollection(ctx)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, domain.ErrNotFound
	}

	info, err := s.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("reading collection %s: %w", name, err)
	}
	meta, err := parseMetadata(info.GetConfig().GetMetadata())
	if err != nil {
		return nil, err
	}

	var (
		retrieved []*qdrant.RetrievedPoint
		offset    *qdrant.PointId
	)
	for {
		page, next, err := s.client.ScrollAndOffset(ctx, &qdrant.ScrollPoints{
			CollectionName: name,
			Offset:         offset,
			Limit:          qdrant.PtrOf(uint32(scrollPageSize)),
			WithPayload:    qdrant.NewWithPayload(true),
			WithVectors:    qdrant.NewWithVectors(true),
		})
		if err != nil {
			return nil, fmt.Errorf("scrolling collection %s: %w", name, err)
		}
		retrieved = append(retrieved, page...)
		if next == nil || len(page) == 0 {
			break
		}
		offset = next
	}

	entries, err := fromPoints(retrieved)
	if err != nil {
		return nil, err
	}
	snapshot := &domain.IndexSnapshot{Metadata: meta, Entries: entries}
	if err := snapshot.Validate(); err != nil {
		return nil, err
	}
	return snapshot, nil
}

// currentCollection returns the collection the alias points at, or "".
func (s *IndexStore) currentCollection(ctx context.Context) (string, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", fmt.Errorf("listing aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == s.alias {
			return a.GetCollectionName(), nil
		}
	}
	return "", nil
}

// PointID returns the Qdrant point UUID for a chunk ID.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func metadataPayload(meta domain.IndexMetadata) map[string]any {
	return map[string]any{
		keyDocumentID:   meta.DocumentID,
		keyModel:        string(meta.Model),
		keyDimensions:   meta.Dimensions,
		keyMetric:       string(meta.Metric),
		keyChunkCount:   meta.ChunkCount,
		keyChunkSize:    meta.ChunkSize,
		keyChunkOverlap: meta.ChunkOverlap,
		keyBuiltAt:      meta.BuiltAt.UTC().Format(time.RFC3339Nano),
	}
}

func parseMetadata(values map[string]*qdrant.Value) (domain.IndexMetadata, error) {
	var meta domain.IndexMetadata
	for _, key := range []string{keyModel, keyDimensions, keyMetric, keyChunkCount, keyBuiltAt} {
		if _, ok := values[key]; !ok {
			return meta, fmt.Errorf("%w: collection metadata missing %s", domain.ErrIndexCorrupt, key)
		}
	}

	builtAt, err := time.Parse(time.RFC3339Nano, values[keyBuiltAt].GetStringValue())
	if err != nil {
		return meta, fmt.Errorf("%w: built_at: %w", domain.ErrIndexCorrupt, err)
	}
	meta = domain.IndexMetadata{
		DocumentID:   values[keyDocumentID].GetStringValue(),
		Model:        domain.ModelIdentity(values[keyModel].GetStringValue()),
		Dimensions:   int(values[keyDimensions].GetIntegerValue()),
		Metric:       domain.DistanceMetric(values[keyMetric].GetStringValue()),
		ChunkCount:   int(values[keyChunkCount].GetIntegerValue()),
		ChunkSize:    int(values[keyChunkSize].GetIntegerValue()),
		ChunkOverlap: int(values[keyChunkOverlap].GetIntegerValue()),
		BuiltAt:      builtAt.UTC(),
	}
	return meta, nil
}

func toPoints(snapshot *domain.IndexSnapshot) []*qdrant.PointStruct {
	points := make([]*qdrant.PointStruct, len(snapshot.Entries))
	for i, e := range snapshot.Entries {
		c := e.Chunk
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(c.ID)),
			Vectors: qdrant.NewVectorsDense(e.Vector),
			Payload: qdrant.NewValueMap(map[string]any{
				keyPosition:    i,
				keyChunkID:     c.ID,
				keyDocumentID:  c.DocumentID,
				keyPage:        c.SourcePage,
				keyStartOffset: c.StartOffset,
				keyText:        c.Text,
			}),
		}
	}
	return points
}

func fromPoints(points []*qdrant.RetrievedPoint) ([]domain.IndexEntry, error) {
	type positioned struct {
		position int64
		entry    domain.IndexEntry
	}

	items := make([]positioned, 0, len(points))
	for _, p := range points {
		payload := p.GetPayload()
		id := payload[keyChunkID].GetStringValue()
		if id == "" || !strings.EqualFold(p.GetId().GetUuid(), PointID(id)) {
			return nil, fmt.Errorf("%w: point %s has inconsistent chunk id", domain.ErrIndexCorrupt, p.GetId().GetUuid())
		}
		vector := pointVector(p)
		if vector == nil {
			return nil, fmt.Errorf("%w: point %s has no vector", domain.ErrIndexCorrupt, id)
		}
		items = append(items, positioned{
			position: payload[keyPosition].GetIntegerValue(),
			entry: domain.IndexEntry{
				Chunk: domain.Chunk{
					ID:          id,
					DocumentID:  payload[keyDocumentID].GetStringValue(),
					Text:        payload[keyText].GetStringValue(),
					SourcePage:  int(payload[keyPage].GetIntegerValue()),
					StartOffset: int(payload[keyStartOffset].GetIntegerValue()),
				},
				Vector: vector,
			},
		})
	}

	sort.Slice(items, func(i, j int) bool { return items[i].position < items[j].position })
	entries := make([]domain.IndexEntry, len(items))
	for i := range items {
		if items[i].position != int64(i) {
			return nil, fmt.Errorf("%w: missing point at position %d", domain.ErrIndexCorrupt, i)
		}
		entries[i] = items[i].entry
	}
	return entries, nil
}

func pointVector(p *qdrant.RetrievedPoint) []float32 {
	out := p.GetVectors().GetVector()
	if out == nil {
		return nil
	}
	if dense := out.GetDense(); dense != nil {
		return dense.GetData()
	}
	return out.GetData() //nolint:staticcheck // older servers fill the flat field
}
