// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Build Phase
//
//   - DocumentSource: Reads the reference document
//   - Normaliser / NormaliserRegistry: Turns raw bytes into ordered pages
//   - Chunker: Splits pages into overlapping passages
//   - EmbeddingService: Maps passages to vectors
//   - IndexStore: Persists and loads the vector index atomically
//   - BuildLock: Prevents two builds of the same index
//
// # Read Phase
//
//   - VectorIndex: Nearest-neighbour queries over the built index
//   - EmbeddingService: Embeds the query text
//   - GenerationService: Language-model completion
//   - PromptStore: Customisable prompt templates
//
// # Supporting
//
//   - ConfigStore: Application configuration
//   - SourceWatcher: Change notifications for the reference document
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
