// Package models defines domain entities and data-transfer types for the Calliope streaming service.
//
// The package contains three categories of types:
//
// 1. Persistent entities backed by the relational store:
//   - [User] : accounts; a user doubles as the artist for the albums and tracks it owns
//   - [Genre], [Album], [Track] : catalog metadata
//   - [Playlist], [PlaylistTrack] : user playlists and their membership rows
//   - [Subscription] : subscriber → artist edges
//   - [Activity] : append-only play/skip/add_to_playlist events
//
// 2. Write DTOs: NewX structs for creation and UpdateX structs whose pointer
// fields express field-level merges (nil means "leave unchanged").
//
// 3. Query types: per-entity search parameters with trigram-similarity name
// filters, plus the streaming and queue value types returned by services.
package models
