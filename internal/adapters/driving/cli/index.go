package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/diagnobot/internal/core/domain"
	"github.com/custodia-labs/diagnobot/internal/core/ports/driven"
	"github.com/custodia-labs/diagnobot/internal/logger"
)

var (
	indexStatusJSON bool
	indexForce      bool
)

// watchInterval is how often "index watch" coalesces pending changes.
var watchInterval = 500 * time.Millisecond

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the vector index",
	Long: `Commands for building and inspecting the vector index of the reference document.

The index is built on first use and persisted, so later runs load it instead
of re-embedding the document.`,
}

var indexBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Build the vector index",
	Long: `Loads the persisted index, or builds it from the reference document when none exists.
Use --force to discard the persisted index and rebuild it.`,
	RunE: runIndexBuild,
}

var indexStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the state of the vector index",
	RunE:  runIndexStatus,
}

var indexWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Rebuild the index when the reference document changes",
	Long: `Watches the reference document and rebuilds the vector index each time it is
written or replaced. Runs until interrupted.`,
	RunE: runIndexWatch,
}

func init() {
	indexBuildCmd.Flags().BoolVarP(&indexForce, "force", "f", false, "discard the persisted index and rebuild")
	indexStatusCmd.Flags().BoolVar(&indexStatusJSON, "json", false, "output status as JSON")
	indexCmd.AddCommand(indexBuildCmd)
	indexCmd.AddCommand(indexStatusCmd)
	indexCmd.AddCommand(indexWatchCmd)
	rootCmd.AddCommand(indexCmd)
}

func runIndexBuild(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	ctx := commandContext(cmd)
	build := indexService.EnsureIndex
	if indexForce {
		cmd.Println("Rebuilding index...")
		build = indexService.Rebuild
	} else {
		cmd.Println("Preparing index...")
	}

	var idx driven.VectorIndex
	err := retryTransient(ctx, "index build", func() error {
		var err error
		idx, err = build(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("index build failed: %w", err)
	}

	meta := idx.Metadata()
	cmd.Printf("Index ready: %d chunks from %s (%s, %d dimensions)\n",
		idx.Len(), meta.DocumentID, meta.Model, meta.Dimensions)
	return nil
}

func runIndexStatus(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}

	status, err := indexService.Status(commandContext(cmd))
	if err != nil {
		return fmt.Errorf("failed to get index status: %w", err)
	}

	if indexStatusJSON {
		data, err := json.MarshalIndent(status, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	printIndexStatus(cmd, status)
	return nil
}

func printIndexStatus(cmd *cobra.Command, status *domain.IndexStatus) {
	cmd.Println("[Vector Index]")
	cmd.Printf("  Location: %s\n", status.Location)
	if !status.Exists {
		cmd.Println("  Status: not built")
		cmd.Println()
		cmd.Println("Run 'diagnobot index build' to build it.")
		return
	}

	state := "persisted"
	if status.Loaded {
		state = "persisted, loaded"
	}
	cmd.Printf("  Status: %s\n", state)

	if meta := status.Metadata; meta != nil {
		cmd.Printf("  Document: %s\n", meta.DocumentID)
		cmd.Printf("  Model: %s\n", meta.Model)
		cmd.Printf("  Dimensions: %d\n", meta.Dimensions)
		cmd.Printf("  Metric: %s\n", meta.Metric)
		cmd.Printf("  Chunks: %d (size %d, overlap %d)\n", meta.ChunkCount, meta.ChunkSize, meta.ChunkOverlap)
		cmd.Printf("  Built: %s\n", meta.BuiltAt.Local().Format(time.RFC1123))
	}
}

func runIndexWatch(cmd *cobra.Command, _ []string) error {
	if indexService == nil {
		return errors.New("index service not configured")
	}
	if sourceWatcher == nil {
		return errors.New("source watcher not configured")
	}

	ctx := commandContext(cmd)
	changes, err := sourceWatcher.Watch(ctx, sourcePath)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", sourcePath, err)
	}

	cmd.Printf("Watching %s for changes (Ctrl+C to stop)...\n", sourcePath)
	return watchAndRebuild(ctx, cmd, changes)
}

// watchAndRebuild rebuilds the index after each burst of changes.
// Editors often emit several events per save, so changes are coalesced
// and handled once per tick.
func watchAndRebuild(ctx context.Context, cmd *cobra.Command, changes <-chan driven.SourceChange) error {
	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return nil
		case change, ok := <-changes:
			if !ok {
				return nil
			}
			if change.Removed {
				logger.Warn("reference document %s was removed, keeping the current index", change.Location)
				continue
			}
			logger.Debug("change detected at %s", change.Location)
			pending = true
		case <-ticker.C:
			if !pending {
				continue
			}
			pending = false
			rebuildOnChange(ctx, cmd)
		}
	}
}

func rebuildOnChange(ctx context.Context, cmd *cobra.Command) {
	cmd.Println("Reference document changed, rebuilding index...")
	var idx driven.VectorIndex
	err := retryTransient(ctx, "index rebuild", func() error {
		var err error
		idx, err = indexService.Rebuild(ctx)
		return err
	})
	if err != nil {
		// The previous index stays in place; keep watching.
		logger.Error("index rebuild failed: %v", err)
		cmd.Printf("Rebuild failed: %v\n", err)
		return
	}
	cmd.Printf("Index rebuilt: %d chunks\n", idx.Len())
}
