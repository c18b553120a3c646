// Package store owns zeno's on-disk state: the bleve full-text index with
// its fixed document schema, and the SQLite registry of ingested documents.
package store
