package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

// ActivityRepository persists the append-only listener event log and runs
// the reporting aggregations over it.
type ActivityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new [ActivityRepository] with the given database connection.
func NewActivityRepository(db *sql.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// Add appends an event to the log.
func (r *ActivityRepository) Add(ctx context.Context, newActivity models.NewActivity) (models.Activity, error) {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		"INSERT INTO activity_events (user_id, track_id, event, time) VALUES (?, ?, ?, ?)",
		newActivity.UserID, newActivity.TrackID, string(newActivity.Event), now)
	if err != nil {
		return models.Activity{}, fmt.Errorf("failed to insert activity: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return models.Activity{}, fmt.Errorf("failed to get inserted id: %w", err)
	}

	return models.Activity{
		ID:      id,
		UserID:  newActivity.UserID,
		TrackID: newActivity.TrackID,
		Event:   newActivity.Event,
		Time:    now,
	}, nil
}

// Get retrieves a single event by id.
func (r *ActivityRepository) Get(ctx context.Context, id int64) (models.Activity, error) {
	var a models.Activity
	var event string
	err := r.db.QueryRowContext(ctx,
		"SELECT id, user_id, track_id, event, time FROM activity_events WHERE id = ?", id,
	).Scan(&a.ID, &a.UserID, &a.TrackID, &event, &a.Time)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Activity{}, fmt.Errorf("%w: activity '%d'", shared.ErrActivityNotFound, id)
	}
	if err != nil {
		return models.Activity{}, fmt.Errorf("failed to query activity: %w", err)
	}
	a.Event = models.Event(event)
	return a, nil
}

// filterClause renders the filter as a WHERE tail. Empty slices and nil
// times contribute nothing.
func filterClause(filter models.ActivityFilter) (string, []any) {
	var clauses []string
	var args []any

	appendIn := func(column string, ids []int64) {
		if len(ids) == 0 {
			return
		}
		marks := make([]string, len(ids))
		for i, id := range ids {
			marks[i] = "?"
			args = append(args, id)
		}
		clauses = append(clauses, column+" IN ("+strings.Join(marks, ", ")+")")
	}

	appendIn("id", filter.IDs)
	appendIn("user_id", filter.UserIDs)
	appendIn("track_id", filter.TrackIDs)

	if len(filter.Events) > 0 {
		marks := make([]string, len(filter.Events))
		for i, e := range filter.Events {
			marks[i] = "?"
			args = append(args, string(e))
		}
		clauses = append(clauses, "event IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.StartTime != nil {
		clauses = append(clauses, "time >= ?")
		args = append(args, *filter.StartTime)
	}
	if filter.EndTime != nil {
		clauses = append(clauses, "time <= ?")
		args = append(args, *filter.EndTime)
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// List returns events matching the filter ordered by time descending.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter, skip, limit int64) ([]models.Activity, error) {
	where, args := filterClause(filter)
	query := "SELECT id, user_id, track_id, event, time FROM activity_events" + where +
		" ORDER BY time DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, limit, skip)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}
	defer rows.Close()

	events := []models.Activity{}
	for rows.Next() {
		var a models.Activity
		var event string
		if err := rows.Scan(&a.ID, &a.UserID, &a.TrackID, &event, &a.Time); err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}
		a.Event = models.Event(event)
		events = append(events, a)
	}
	return events, rows.Err()
}

// Delete removes every event matching the filter. A filter matching no rows
// fails with [shared.ErrActivityNotFound].
func (r *ActivityRepository) Delete(ctx context.Context, filter models.ActivityFilter) (int64, error) {
	where, args := filterClause(filter)
	res, err := r.db.ExecContext(ctx, "DELETE FROM activity_events"+where, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete activity: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: no events matched", shared.ErrActivityNotFound)
	}
	return rows, nil
}

// MostPlayedTracks counts play events per track over the window, most
// played first.
func (r *ActivityRepository) MostPlayedTracks(ctx context.Context, start, end time.Time, limit int64) ([]models.TrackPlays, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT track_id, COUNT(*) AS plays
		FROM activity_events
		WHERE event = ? AND time >= ? AND time <= ?
		GROUP BY track_id
		ORDER BY plays DESC, track_id
		LIMIT ?
	`, string(models.EventPlay), start, end, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate plays: %w", err)
	}
	defer rows.Close()

	plays := []models.TrackPlays{}
	for rows.Next() {
		var p models.TrackPlays
		if err := rows.Scan(&p.TrackID, &p.Plays); err != nil {
			return nil, fmt.Errorf("failed to scan plays: %w", err)
		}
		plays = append(plays, p)
	}
	return plays, rows.Err()
}

// DailyActiveUsers counts distinct users with any event per UTC calendar day.
func (r *ActivityRepository) DailyActiveUsers(ctx context.Context, start, end time.Time) ([]models.DailyActive, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT date(time) AS day, COUNT(DISTINCT user_id) AS users
		FROM activity_events
		WHERE time >= ? AND time <= ?
		GROUP BY day
		ORDER BY day
	`, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily active: %w", err)
	}
	defer rows.Close()

	daily := []models.DailyActive{}
	for rows.Next() {
		var d models.DailyActive
		if err := rows.Scan(&d.Date, &d.Users); err != nil {
			return nil, fmt.Errorf("failed to scan daily active: %w", err)
		}
		daily = append(daily, d)
	}
	return daily, rows.Err()
}

// TrackCompletionRates reports skips over plays per track within the window.
// Tracks with zero plays report a zero rate.
func (r *ActivityRepository) TrackCompletionRates(ctx context.Context, start, end time.Time, limit int64) ([]models.TrackCompletion, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT track_id,
			SUM(CASE WHEN event = ? THEN 1 ELSE 0 END) AS plays,
			SUM(CASE WHEN event = ? THEN 1 ELSE 0 END) AS skips
		FROM activity_events
		WHERE time >= ? AND time <= ? AND event IN (?, ?)
		GROUP BY track_id
		ORDER BY plays DESC, track_id
		LIMIT ?
	`, string(models.EventPlay), string(models.EventSkip),
		start, end, string(models.EventPlay), string(models.EventSkip), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate completion: %w", err)
	}
	defer rows.Close()

	completions := []models.TrackCompletion{}
	for rows.Next() {
		var c models.TrackCompletion
		if err := rows.Scan(&c.TrackID, &c.Plays, &c.Skips); err != nil {
			return nil, fmt.Errorf("failed to scan completion: %w", err)
		}
		if c.Plays > 0 {
			c.SkipRate = float64(c.Skips) / float64(c.Plays)
		}
		completions = append(completions, c)
	}
	return completions, rows.Err()
}
