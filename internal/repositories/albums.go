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

// AlbumRepository persists albums.
type AlbumRepository struct {
	db *sql.DB
}

// NewAlbumRepository creates a new [AlbumRepository] with the given database connection.
func NewAlbumRepository(db *sql.DB) *AlbumRepository {
	return &AlbumRepository{db: db}
}

const albumColumns = "id, name, artist_id, release_date, created_at, updated_at"

func scanAlbum(row interface{ Scan(...any) error }) (models.Album, error) {
	var a models.Album
	err := row.Scan(&a.ID, &a.Name, &a.ArtistID, &a.ReleaseDate, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

func exists(ctx context.Context, db *sql.DB, table string, id int64) (bool, error) {
	var ok bool
	err := db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM "+table+" WHERE id = ?)", id).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check %s: %w", table, err)
	}
	return ok, nil
}

// Create inserts an album after verifying the artist exists.
func (r *AlbumRepository) Create(ctx context.Context, newAlbum models.NewAlbum) (models.Album, error) {
	ok, err := exists(ctx, r.db, "users", newAlbum.ArtistID)
	if err != nil {
		return models.Album{}, err
	}
	if !ok {
		return models.Album{}, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, newAlbum.ArtistID)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO albums (name, artist_id, release_date, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
	`, newAlbum.Name, newAlbum.ArtistID, newAlbum.ReleaseDate, now, now)
	if err != nil {
		return models.Album{}, fmt.Errorf("failed to insert album: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Album{}, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return models.Album{
		ID:          id,
		Name:        newAlbum.Name,
		ArtistID:    newAlbum.ArtistID,
		ReleaseDate: newAlbum.ReleaseDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetByID retrieves an album by id.
func (r *AlbumRepository) GetByID(ctx context.Context, id int64) (models.Album, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+albumColumns+" FROM albums WHERE id = ?", id)
	a, err := scanAlbum(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Album{}, fmt.Errorf("%w: album '%d'", shared.ErrAlbumNotFound, id)
	}
	if err != nil {
		return models.Album{}, fmt.Errorf("failed to query album: %w", err)
	}
	return a, nil
}

// Search lists albums matching the conjunction of the given filters. An
// artist_id filter referencing a missing user fails with ErrUserNotFound.
func (r *AlbumRepository) Search(ctx context.Context, params models.AlbumSearchParams) ([]models.Album, error) {
	if params.ArtistID != nil {
		ok, err := exists(ctx, r.db, "users", *params.ArtistID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, *params.ArtistID)
		}
	}

	query := "SELECT " + albumColumns + " FROM albums WHERE 1=1"
	var args []any

	if params.Name != "" {
		query += " AND similarity(name, ?) >= ?"
		args = append(args, params.Name, params.Threshold)
	}
	if params.ArtistID != nil {
		query += " AND artist_id = ?"
		args = append(args, *params.ArtistID)
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
		return nil, fmt.Errorf("failed to search albums: %w", err)
	}
	defer rows.Close()

	albums := []models.Album{}
	for rows.Next() {
		a, err := scanAlbum(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan album: %w", err)
		}
		albums = append(albums, a)
	}
	return albums, rows.Err()
}

// Update applies a field-level merge. A changed artist_id must reference an
// existing user.
func (r *AlbumRepository) Update(ctx context.Context, upd models.UpdateAlbum) (models.Album, error) {
	cur, err := r.GetByID(ctx, upd.ID)
	if err != nil {
		return models.Album{}, err
	}

	if upd.ArtistID != nil {
		ok, err := exists(ctx, r.db, "users", *upd.ArtistID)
		if err != nil {
			return models.Album{}, err
		}
		if !ok {
			return models.Album{}, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, *upd.ArtistID)
		}
		cur.ArtistID = *upd.ArtistID
	}
	if upd.Name != nil {
		cur.Name = *upd.Name
	}
	if upd.ReleaseDate != nil {
		cur.ReleaseDate = *upd.ReleaseDate
	}
	cur.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		UPDATE albums SET name = ?, artist_id = ?, release_date = ?, updated_at = ? WHERE id = ?
	`, cur.Name, cur.ArtistID, cur.ReleaseDate, cur.UpdatedAt, cur.ID)
	if err != nil {
		return models.Album{}, fmt.Errorf("failed to update album: %w", err)
	}
	return cur, nil
}

// Delete removes the album row; its tracks go with it through the cascade.
func (r *AlbumRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM albums WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete album: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: album '%d'", shared.ErrAlbumNotFound, id)
	}
	return nil
}
