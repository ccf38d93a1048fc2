package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

// PlaylistRepository persists playlists and their membership rows.
type PlaylistRepository struct {
	db *sql.DB
}

// NewPlaylistRepository creates a new [PlaylistRepository] with the given database connection.
func NewPlaylistRepository(db *sql.DB) *PlaylistRepository {
	return &PlaylistRepository{db: db}
}

const playlistColumns = "id, author_id, name, created_at, updated_at"

func scanPlaylist(row interface{ Scan(...any) error }) (models.Playlist, error) {
	var p models.Playlist
	err := row.Scan(&p.ID, &p.AuthorID, &p.Name, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

// Create inserts a playlist after verifying the author exists.
func (r *PlaylistRepository) Create(ctx context.Context, newPlaylist models.NewPlaylist) (models.Playlist, error) {
	ok, err := exists(ctx, r.db, "users", newPlaylist.AuthorID)
	if err != nil {
		return models.Playlist{}, err
	}
	if !ok {
		return models.Playlist{}, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, newPlaylist.AuthorID)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO playlists (author_id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		newPlaylist.AuthorID, newPlaylist.Name, now, now)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("failed to insert playlist: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Playlist{}, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return models.Playlist{
		ID:        id,
		AuthorID:  newPlaylist.AuthorID,
		Name:      newPlaylist.Name,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// GetByID retrieves a playlist by id.
func (r *PlaylistRepository) GetByID(ctx context.Context, id int64) (models.Playlist, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+playlistColumns+" FROM playlists WHERE id = ?", id)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Playlist{}, fmt.Errorf("%w: playlist '%d'", shared.ErrPlaylistNotFound, id)
	}
	if err != nil {
		return models.Playlist{}, fmt.Errorf("failed to query playlist: %w", err)
	}
	return p, nil
}

// Search lists playlists matching the conjunction of the given filters. An
// author_id filter referencing a missing user fails with ErrUserNotFound.
func (r *PlaylistRepository) Search(ctx context.Context, params models.PlaylistSearchParams) ([]models.Playlist, error) {
	if params.AuthorID != nil {
		ok, err := exists(ctx, r.db, "users", *params.AuthorID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, *params.AuthorID)
		}
	}

	query := "SELECT " + playlistColumns + " FROM playlists WHERE 1=1"
	var args []any

	if params.Name != "" {
		query += " AND similarity(name, ?) >= ?"
		args = append(args, params.Name, params.Threshold)
	}
	if params.AuthorID != nil {
		query += " AND author_id = ?"
		args = append(args, *params.AuthorID)
	}
	if params.Name != "" {
		query += " ORDER BY similarity(name, ?) DESC"
		args = append(args, params.Name)
	} else {
		query += " ORDER BY id"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, params.Limit, params.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search playlists: %w", err)
	}
	defer rows.Close()

	playlists := []models.Playlist{}
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan playlist: %w", err)
		}
		playlists = append(playlists, p)
	}
	return playlists, rows.Err()
}

// Update applies a field-level merge over a playlist row.
func (r *PlaylistRepository) Update(ctx context.Context, upd models.UpdatePlaylist) (models.Playlist, error) {
	cur, err := r.GetByID(ctx, upd.ID)
	if err != nil {
		return models.Playlist{}, err
	}

	if upd.Name != nil {
		cur.Name = *upd.Name
	}
	cur.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		"UPDATE playlists SET name = ?, updated_at = ? WHERE id = ?",
		cur.Name, cur.UpdatedAt, cur.ID)
	if err != nil {
		return models.Playlist{}, fmt.Errorf("failed to update playlist: %w", err)
	}
	return cur, nil
}

// Delete removes the playlist; membership rows go with it through the cascade.
func (r *PlaylistRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM playlists WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete playlist: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: playlist '%d'", shared.ErrPlaylistNotFound, id)
	}
	return nil
}

// AddTrack records playlist membership. Both sides must exist and the pair
// must be new.
func (r *PlaylistRepository) AddTrack(ctx context.Context, pt models.PlaylistTrack) (models.PlaylistTrack, error) {
	ok, err := exists(ctx, r.db, "playlists", pt.PlaylistID)
	if err != nil {
		return models.PlaylistTrack{}, err
	}
	if !ok {
		return models.PlaylistTrack{}, fmt.Errorf("%w: playlist '%d'", shared.ErrPlaylistNotFound, pt.PlaylistID)
	}
	ok, err = exists(ctx, r.db, "tracks", pt.TrackID)
	if err != nil {
		return models.PlaylistTrack{}, err
	}
	if !ok {
		return models.PlaylistTrack{}, fmt.Errorf("%w: track '%d'", shared.ErrTrackNotFound, pt.TrackID)
	}

	var dup bool
	err = r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?)",
		pt.PlaylistID, pt.TrackID).Scan(&dup)
	if err != nil {
		return models.PlaylistTrack{}, fmt.Errorf("failed to check playlist track: %w", err)
	}
	if dup {
		return models.PlaylistTrack{}, fmt.Errorf("%w: track '%d' in playlist '%d'",
			shared.ErrPlaylistTrackAlreadyExists, pt.TrackID, pt.PlaylistID)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO playlist_tracks (playlist_id, track_id) VALUES (?, ?)",
		pt.PlaylistID, pt.TrackID)
	if err != nil {
		return models.PlaylistTrack{}, fmt.Errorf("failed to insert playlist track: %w", err)
	}
	return pt, nil
}

// RemoveTrack removes a membership row.
func (r *PlaylistRepository) RemoveTrack(ctx context.Context, pt models.PlaylistTrack) error {
	res, err := r.db.ExecContext(ctx,
		"DELETE FROM playlist_tracks WHERE playlist_id = ? AND track_id = ?",
		pt.PlaylistID, pt.TrackID)
	if err != nil {
		return fmt.Errorf("failed to delete playlist track: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: track '%d' in playlist '%d'",
			shared.ErrPlaylistTrackNotFound, pt.TrackID, pt.PlaylistID)
	}
	return nil
}

// Tracks lists the membership rows of a playlist.
func (r *PlaylistRepository) Tracks(ctx context.Context, playlistID int64) ([]models.PlaylistTrack, error) {
	ok, err := exists(ctx, r.db, "playlists", playlistID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: playlist '%d'", shared.ErrPlaylistNotFound, playlistID)
	}

	rows, err := r.db.QueryContext(ctx,
		"SELECT playlist_id, track_id FROM playlist_tracks WHERE playlist_id = ? ORDER BY track_id",
		playlistID)
	if err != nil {
		return nil, fmt.Errorf("failed to query playlist tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.PlaylistTrack{}
	for rows.Next() {
		var pt models.PlaylistTrack
		if err := rows.Scan(&pt.PlaylistID, &pt.TrackID); err != nil {
			return nil, fmt.Errorf("failed to scan playlist track: %w", err)
		}
		tracks = append(tracks, pt)
	}
	return tracks, rows.Err()
}
