// Package normalisers provides implementations of the Normaliser interface
// for the reference document formats DiagnoBot can ingest. Each normaliser
// turns the bytes of one MIME type into an ordered sequence of pages.
//
// Normalisers are registered with the Registry at startup.
package normalisers
