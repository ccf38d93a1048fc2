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

// GenreRepository persists catalog genres.
type GenreRepository struct {
	db *sql.DB
}

// NewGenreRepository creates a new [GenreRepository] with the given database connection.
func NewGenreRepository(db *sql.DB) *GenreRepository {
	return &GenreRepository{db: db}
}

// Create inserts a genre. Names are unique and case-sensitive; a taken name
// fails with [shared.ErrGenreNameAlreadyExists].
func (r *GenreRepository) Create(ctx context.Context, newGenre models.NewGenre) (models.Genre, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM genres WHERE name = ?)", newGenre.Name).Scan(&exists)
	if err != nil {
		return models.Genre{}, fmt.Errorf("failed to check genre name: %w", err)
	}
	if exists {
		return models.Genre{}, fmt.Errorf("%w: %q", shared.ErrGenreNameAlreadyExists, newGenre.Name)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO genres (name, created_at, updated_at) VALUES (?, ?, ?)",
		newGenre.Name, now, now)
	if err != nil {
		return models.Genre{}, fmt.Errorf("failed to insert genre: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Genre{}, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return models.Genre{ID: id, Name: newGenre.Name, CreatedAt: now, UpdatedAt: now}, nil
}

// GetByID retrieves a genre by id.
func (r *GenreRepository) GetByID(ctx context.Context, id int64) (models.Genre, error) {
	var g models.Genre
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, created_at, updated_at FROM genres WHERE id = ?", id,
	).Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Genre{}, fmt.Errorf("%w: genre '%d'", shared.ErrGenreNotFound, id)
	}
	if err != nil {
		return models.Genre{}, fmt.Errorf("failed to query genre: %w", err)
	}
	return g, nil
}

// Search lists genres, fuzzy-matched by name when a name filter is present.
func (r *GenreRepository) Search(ctx context.Context, params models.GenreSearchParams) ([]models.Genre, error) {
	query := "SELECT id, name, created_at, updated_at FROM genres WHERE 1=1"
	var args []any

	if params.Name != "" {
		query += " AND similarity(name, ?) >= ? ORDER BY similarity(name, ?) DESC"
		args = append(args, params.Name, params.Threshold, params.Name)
	} else {
		query += " ORDER BY id"
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, params.Limit, params.Skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search genres: %w", err)
	}
	defer rows.Close()

	genres := []models.Genre{}
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan genre: %w", err)
		}
		genres = append(genres, g)
	}
	return genres, rows.Err()
}

// Update applies a field-level merge, rechecking name uniqueness only when
// the name is changing.
func (r *GenreRepository) Update(ctx context.Context, upd models.UpdateGenre) (models.Genre, error) {
	cur, err := r.GetByID(ctx, upd.ID)
	if err != nil {
		return models.Genre{}, err
	}

	if upd.Name != nil && *upd.Name != cur.Name {
		var exists bool
		err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM genres WHERE name = ?)", *upd.Name).Scan(&exists)
		if err != nil {
			return models.Genre{}, fmt.Errorf("failed to check genre name: %w", err)
		}
		if exists {
			return models.Genre{}, fmt.Errorf("%w: %q", shared.ErrGenreNameAlreadyExists, *upd.Name)
		}
		cur.Name = *upd.Name
	}
	cur.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx,
		"UPDATE genres SET name = ?, updated_at = ? WHERE id = ?",
		cur.Name, cur.UpdatedAt, cur.ID)
	if err != nil {
		return models.Genre{}, fmt.Errorf("failed to update genre: %w", err)
	}
	return cur, nil
}

// Delete removes the genre; tracks referencing it get a null genre_id
// through the foreign-key SET NULL rule.
func (r *GenreRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM genres WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete genre: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: genre '%d'", shared.ErrGenreNotFound, id)
	}
	return nil
}
