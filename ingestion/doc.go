// Package ingestion indexes uploaded documents for retrieval.
//
// A Pipeline run takes one document from created (or failed, for an explicit
// re-run) through processing and processed to completed:
//   - The text is split into overlapping chunks
//   - Chunks are embedded in concurrent batches with retry and backoff
//   - Vectors are written to the document's namespace in the vector index
//   - A best effort summary is generated and stored on the document
//
// Every failure after the document is claimed moves it to failed with the
// cause recorded and its partial chunks removed. The Queue runs pipelines in
// the background on a bounded worker pool, and Recover resolves documents a
// crashed process left in a transient status. Reembed swaps the vectors of a
// completed document for ones from a new embedding model.
package ingestion
