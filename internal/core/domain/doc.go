// Package domain defines the core entities of the DiagnoBot pipeline.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - RawDocument: Opaque bytes read from a reference source
//   - Document and Page: A parsed reference text in load order
//   - Chunk: A bounded passage, the unit of embedding and retrieval
//   - EmbeddingVector: A model-tagged vector for a chunk or query
//   - IndexSnapshot: The persisted form of a vector index
//   - ConversationSession: The append-only record of one user's turns
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
