// Package reembed rebuilds the chunk vectors of completed documents with a
// new or updated embedding model.
//
// Documents are re-chunked from their stored content and re-embedded one at
// a time. Document records are not modified, so documents stay queryable
// throughout. Progress is reported to an io.Writer.
package reembed
