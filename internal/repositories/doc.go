// Package repositories provides the storage layer for the Calliope service.
//
// Catalog and account entities live in SQLite; every repository validates
// referenced ids before writing and raises the matching shared.Err*NotFound
// sentinel for dangling references. Name searches use the similarity() SQL
// function registered by shared.NewDatabase and order results by descending
// trigram score.
//
// The per-user playback queue lives in Redis ([QueueRepository]) and audio
// and cover objects live in a MinIO-compatible object store
// ([BlobRepository]).
package repositories
