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

// UserRepository persists accounts and subscription edges.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new [UserRepository] with the given database connection.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = "id, name, description, username, role, created_at, updated_at"

func scanUser(row interface{ Scan(...any) error }) (models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Description, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// Create inserts a new user. The password must already be hashed. A taken
// username fails with [shared.ErrUserAlreadyExists].
func (r *UserRepository) Create(ctx context.Context, newUser models.NewUser) (models.User, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", newUser.Username).Scan(&exists)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return models.User{}, fmt.Errorf("%w: username %q", shared.ErrUserAlreadyExists, newUser.Username)
	}

	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO users (name, description, username, password, role, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, newUser.Name, newUser.Description, newUser.Username, newUser.Password, newUser.Role, now, now)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.User{}, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return models.User{
		ID:          id,
		Name:        newUser.Name,
		Description: newUser.Description,
		Username:    newUser.Username,
		Role:        newUser.Role,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// GetByID retrieves a user by id.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (models.User, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.User{}, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user with its password hash for credential checks.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (models.FullUser, error) {
	var u models.FullUser
	err := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+", password FROM users WHERE username = ?", username,
	).Scan(&u.ID, &u.Name, &u.Description, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FullUser{}, fmt.Errorf("%w: user %q", shared.ErrUserNotFound, username)
	}
	if err != nil {
		return models.FullUser{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// Search lists users matching the conjunction of the given filters, ordered
// by descending name similarity when a name filter is present.
func (r *UserRepository) Search(ctx context.Context, params models.UserSearchParams) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE 1=1"
	var args []any

	if params.Name != "" {
		query += " AND similarity(name, ?) >= ?"
		args = append(args, params.Name, params.Threshold)
	}
	if params.Username != "" {
		query += " AND username = ?"
		args = append(args, params.Username)
	}
	if params.CreatedSearchStart != nil {
		query += " AND created_at >= ?"
		args = append(args, *params.CreatedSearchStart)
	}
	if params.CreatedSearchEnd != nil {
		query += " AND created_at <= ?"
		args = append(args, *params.CreatedSearchEnd)
	}
	if params.UpdatedSearchStart != nil {
		query += " AND updated_at >= ?"
		args = append(args, *params.UpdatedSearchStart)
	}
	if params.UpdatedSearchEnd != nil {
		query += " AND updated_at <= ?"
		args = append(args, *params.UpdatedSearchEnd)
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
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SearchArtists lists the artist projection of users.
func (r *UserRepository) SearchArtists(ctx context.Context, params models.ArtistSearchParams) ([]models.Artist, error) {
	query := "SELECT id, name, description FROM users WHERE 1=1"
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
		return nil, fmt.Errorf("failed to search artists: %w", err)
	}
	defer rows.Close()

	artists := []models.Artist{}
	for rows.Next() {
		var a models.Artist
		if err := rows.Scan(&a.ID, &a.Name, &a.Description); err != nil {
			return nil, fmt.Errorf("failed to scan artist: %w", err)
		}
		artists = append(artists, a)
	}
	return artists, rows.Err()
}

// Update applies a field-level merge: only non-nil fields of upd are written
// and updated_at is refreshed. Username uniqueness is rechecked only when
// the username is actually changing.
func (r *UserRepository) Update(ctx context.Context, upd models.UpdateUser) (models.User, error) {
	cur, err := r.getFull(ctx, upd.ID)
	if err != nil {
		return models.User{}, err
	}

	if upd.Username != nil && *upd.Username != cur.Username {
		var exists bool
		err := r.db.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM users WHERE username = ?)", *upd.Username).Scan(&exists)
		if err != nil {
			return models.User{}, fmt.Errorf("failed to check username: %w", err)
		}
		if exists {
			return models.User{}, fmt.Errorf("%w: username %q", shared.ErrUserAlreadyExists, *upd.Username)
		}
		cur.Username = *upd.Username
	}
	if upd.Name != nil {
		cur.Name = *upd.Name
	}
	if upd.Description != nil {
		cur.Description = *upd.Description
	}
	if upd.Password != nil {
		cur.Password = *upd.Password
	}
	if upd.Role != nil {
		cur.Role = *upd.Role
	}
	cur.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		UPDATE users SET name = ?, description = ?, username = ?, password = ?, role = ?, updated_at = ?
		WHERE id = ?
	`, cur.Name, cur.Description, cur.Username, cur.Password, cur.Role, cur.UpdatedAt, cur.ID)
	if err != nil {
		return models.User{}, fmt.Errorf("failed to update user: %w", err)
	}
	return cur.User, nil
}

// getFull fetches the full row by id, password hash included.
func (r *UserRepository) getFull(ctx context.Context, id int64) (models.FullUser, error) {
	var u models.FullUser
	err := r.db.QueryRowContext(ctx,
		"SELECT "+userColumns+", password FROM users WHERE id = ?", id,
	).Scan(&u.ID, &u.Name, &u.Description, &u.Username, &u.Role, &u.CreatedAt, &u.UpdatedAt, &u.Password)
	if errors.Is(err, sql.ErrNoRows) {
		return models.FullUser{}, fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, id)
	}
	if err != nil {
		return models.FullUser{}, fmt.Errorf("failed to query user: %w", err)
	}
	return u, nil
}

// Delete removes the user row; dependent albums, tracks, playlists and
// subscriptions go with it through the foreign-key cascade.
func (r *UserRepository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, id)
	}
	return nil
}

func (r *UserRepository) userExists(ctx context.Context, id int64) error {
	var exists bool
	if err := r.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM users WHERE id = ?)", id).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check user: %w", err)
	}
	if !exists {
		return fmt.Errorf("%w: user '%d'", shared.ErrUserNotFound, id)
	}
	return nil
}

// Subscribe records a subscriber → artist edge. Both users must exist, the
// edge must be new, and self-subscription is rejected.
func (r *UserRepository) Subscribe(ctx context.Context, sub models.Subscription) error {
	if sub.SubscriberID == sub.ArtistID {
		return fmt.Errorf("%w: cannot subscribe to self", shared.ErrInvalidInput)
	}
	if err := r.userExists(ctx, sub.SubscriberID); err != nil {
		return err
	}
	if err := r.userExists(ctx, sub.ArtistID); err != nil {
		return err
	}

	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM subscriptions WHERE subscriber_id = ? AND artist_id = ?)",
		sub.SubscriberID, sub.ArtistID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check subscription: %w", err)
	}
	if exists {
		return fmt.Errorf("%w: '%d' -> '%d'", shared.ErrSubscriptionAlreadyExists, sub.SubscriberID, sub.ArtistID)
	}

	_, err = r.db.ExecContext(ctx,
		"INSERT INTO subscriptions (subscriber_id, artist_id) VALUES (?, ?)",
		sub.SubscriberID, sub.ArtistID)
	if err != nil {
		return fmt.Errorf("failed to insert subscription: %w", err)
	}
	return nil
}

// Unsubscribe removes a subscriber → artist edge.
func (r *UserRepository) Unsubscribe(ctx context.Context, sub models.Subscription) error {
	if err := r.userExists(ctx, sub.SubscriberID); err != nil {
		return err
	}
	if err := r.userExists(ctx, sub.ArtistID); err != nil {
		return err
	}

	res, err := r.db.ExecContext(ctx,
		"DELETE FROM subscriptions WHERE subscriber_id = ? AND artist_id = ?",
		sub.SubscriberID, sub.ArtistID)
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: '%d' -> '%d'", shared.ErrSubscriptionNotFound, sub.SubscriberID, sub.ArtistID)
	}
	return nil
}

// Subscriptions lists the artists the user subscribes to.
func (r *UserRepository) Subscriptions(ctx context.Context, userID int64, skip, limit int) ([]models.User, error) {
	if err := r.userExists(ctx, userID); err != nil {
		return nil, err
	}
	return r.querySubscriptionEdge(ctx, `
		SELECT `+userColumns+` FROM users
		JOIN subscriptions ON subscriptions.artist_id = users.id
		WHERE subscriptions.subscriber_id = ?
		ORDER BY users.id LIMIT ? OFFSET ?
	`, userID, limit, skip)
}

// Subscribers lists the users subscribed to the artist.
func (r *UserRepository) Subscribers(ctx context.Context, artistID int64, skip, limit int) ([]models.User, error) {
	if err := r.userExists(ctx, artistID); err != nil {
		return nil, err
	}
	return r.querySubscriptionEdge(ctx, `
		SELECT `+userColumns+` FROM users
		JOIN subscriptions ON subscriptions.subscriber_id = users.id
		WHERE subscriptions.artist_id = ?
		ORDER BY users.id LIMIT ? OFFSET ?
	`, artistID, limit, skip)
}

func (r *UserRepository) querySubscriptionEdge(ctx context.Context, query string, args ...any) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// SubscriberCount counts the artist's subscribers.
func (r *UserRepository) SubscriberCount(ctx context.Context, artistID int64) (models.SubscriberCount, error) {
	if err := r.userExists(ctx, artistID); err != nil {
		return models.SubscriberCount{}, err
	}
	var count int64
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM subscriptions WHERE artist_id = ?", artistID).Scan(&count)
	if err != nil {
		return models.SubscriberCount{}, fmt.Errorf("failed to count subscribers: %w", err)
	}
	return models.SubscriberCount{Count: count}, nil
}
