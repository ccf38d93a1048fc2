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

// TrackRepository persists tracks.
type TrackRepository struct {
	db *sql.DB
}

// NewTrackRepository creates a new [TrackRepository] with the given database connection.
func NewTrackRepository(db *sql.DB) *TrackRepository {
	return &TrackRepository{db: db}
}

const trackColumns = "id, name, album_id, artist_id, genre_id, release_date, created_at, updated_at"

func scanTrack(row interface{ Scan(...any) error }) (models.Track, error) {
	var t models.Track
	var genreID sql.NullInt64
	err := row.Scan(&t.ID, &t.Name, &t.AlbumID, &t.ArtistID, &genreID, &t.ReleaseDate, &t.CreatedAt, &t.UpdatedAt)
	if genreID.Valid {
		t.GenreID = &genreID.Int64
	}
	return t, err
}

// checkTrackRefs verifies album, artist and optional genre references.
func (r *TrackRepository) checkTrackRefs(ctx context.Context, albumID, artistID int64, genreID *int64) error {
	ok, err := exists(ctx, r.db, "albums", albumID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: album '%d'", shared.ErrAlbumNotFound, albumID)
	}
	ok, err = exists(ctx, r.db, "users", artistID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, artistID)
	}
	if genreID != nil {
		ok, err = exists(ctx, r.db, "genres", *genreID)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: genre '%d'", shared.ErrGenreNotFound, *genreID)
		}
	}
	return nil
}

// Create inserts a track after verifying its album, artist and genre exist.
func (r *TrackRepository) Create(ctx context.Context, newTrack models.NewTrack) (models.Track, error) {
	if err := r.checkTrackRefs(ctx, newTrack.AlbumID, newTrack.ArtistID, newTrack.GenreID); err != nil {
		return models.Track{}, err
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO tracks (name, album_id, artist_id, genre_id, release_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, newTrack.Name, newTrack.AlbumID, newTrack.ArtistID, nullableID(newTrack.GenreID), newTrack.ReleaseDate, now, now)
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to insert track: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return models.Track{
		ID:          id,
		Name:        newTrack.Name,
		AlbumID:     newTrack.AlbumID,
		ArtistID:    newTrack.ArtistID,
		GenreID:     newTrack.GenreID,
		ReleaseDate: newTrack.ReleaseDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func nullableID(id *int64) any {
	if id == nil {
		return nil
	}
	return *id
}

// GetByID retrieves a track by id.
func (r *TrackRepository) GetByID(ctx context.Context, id int64) (models.Track, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+trackColumns+" FROM tracks WHERE id = ?", id)
	t, err := scanTrack(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Track{}, fmt.Errorf("%w: track '%d'", shared.ErrTrackNotFound, id)
	}
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to query track: %w", err)
	}
	return t, nil
}

// Search lists tracks matching the conjunction of the given filters. Each
// equality filter first verifies the referenced row exists.
func (r *TrackRepository) Search(ctx context.Context, params models.TrackSearchParams) ([]models.Track, error) {
	if params.AlbumID != nil {
		ok, err := exists(ctx, r.db, "albums", *params.AlbumID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: album '%d'", shared.ErrAlbumNotFound, *params.AlbumID)
		}
	}
	if params.ArtistID != nil {
		ok, err := exists(ctx, r.db, "users", *params.ArtistID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, *params.ArtistID)
		}
	}
	if params.GenreID != nil {
		ok, err := exists(ctx, r.db, "genres", *params.GenreID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: genre '%d'", shared.ErrGenreNotFound, *params.GenreID)
		}
	}

	query := "SELECT " + trackColumns + " FROM tracks WHERE 1=1"
	var args []any

	if params.Name != "" {
		query += " AND similarity(name, ?) >= ?"
		args = append(args, params.Name, params.Threshold)
	}
	if params.AlbumID != nil {
		query += " AND album_id = ?"
		args = append(args, *params.AlbumID)
	}
	if params.ArtistID != nil {
		query += " AND artist_id = ?"
		args = append(args, *params.ArtistID)
	}
	if params.GenreID != nil {
		query += " AND genre_id = ?"
		args = append(args, *params.GenreID)
	}
	if params.ReleaseSearchStart != nil {
		query += " AND release_date >= ?"
		args = append(args, *params.ReleaseSearchStart)
	}
	if params.ReleaseSearchEnd != nil {
		query += " AND release_date <= ?"
		args = append(args, *params.ReleaseSearchEnd)
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
		return nil, fmt.Errorf("failed to search tracks: %w", err)
	}
	defer rows.Close()

	tracks := []models.Track{}
	for rows.Next() {
		t, err := scanTrack(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		tracks = append(tracks, t)
	}
	return tracks, rows.Err()
}

// Update applies a field-level merge; every changed reference is re-verified.
func (r *TrackRepository) Update(ctx context.Context, upd models.UpdateTrack) (models.Track, error) {
	cur, err := r.GetByID(ctx, upd.ID)
	if err != nil {
		return models.Track{}, err
	}

	if upd.AlbumID != nil {
		cur.AlbumID = *upd.AlbumID
	}
	if upd.ArtistID != nil {
		cur.ArtistID = *upd.ArtistID
	}
	if upd.GenreID != nil {
		cur.GenreID = upd.GenreID
	}
	if err := r.checkTrackRefs(ctx, cur.AlbumID, cur.ArtistID, cur.GenreID); err != nil {
		return models.Track{}, err
	}
	if upd.Name != nil {
		cur.Name = *upd.Name
	}
	if upd.ReleaseDate != nil {
		cur.ReleaseDate = *upd.ReleaseDate
	}
	cur.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		UPDATE tracks SET name = ?, album_id = ?, artist_id = ?, genre_id = ?, release_date = ?, updated_at = ?
		WHERE id = ?
	`, cur.Name, cur.AlbumID, cur.ArtistID, nullableID(cur.GenreID), cur.ReleaseDate, cur.UpdatedAt, cur.ID)
	if err != nil {
		return models.Track{}, fmt.Errorf("failed to update track: %w", err)
	}
	return cur, nil
}

// Delete removes the track row; playlist membership rows go with it.
func (r *TrackRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM tracks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete track: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: track '%d'", shared.ErrTrackNotFound, id)
	}
	return nil
}
