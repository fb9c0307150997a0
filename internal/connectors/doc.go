// Package connectors provides the sources DiagnoBot reads reference
// documents from. Each connector implements driven.DocumentSource and,
// where the source supports it, driven.SourceWatcher.
package connectors
