package services

import (
	"context"
	"fmt"
	"time"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/repositories"
	"github.com/calliope-fm/calliope/internal/shared"
)

// ActivityService fronts the listener event log. Event names are validated
// on the way in; unknown names fail with [shared.ErrEventNotFound].
type ActivityService struct {
	activity *repositories.ActivityRepository
	tracks   *repositories.TrackRepository
}

// NewActivityService creates a new [ActivityService].
func NewActivityService(activity *repositories.ActivityRepository, tracks *repositories.TrackRepository) *ActivityService {
	return &ActivityService{activity: activity, tracks: tracks}
}

// Record appends an event after validating the event name and the track.
func (s *ActivityService) Record(ctx context.Context, newActivity models.NewActivity) (models.Activity, error) {
	if !newActivity.Event.Valid() {
		return models.Activity{}, fmt.Errorf("%w: %q", shared.ErrEventNotFound, newActivity.Event)
	}
	if _, err := s.tracks.GetByID(ctx, newActivity.TrackID); err != nil {
		return models.Activity{}, err
	}
	return s.activity.Add(ctx, newActivity)
}

// Get retrieves a single event.
func (s *ActivityService) Get(ctx context.Context, id int64) (models.Activity, error) {
	return s.activity.Get(ctx, id)
}

// List returns events matching the filter, newest first.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter, skip, limit int64) ([]models.Activity, error) {
	if err := validateFilter(filter); err != nil {
		return nil, err
	}
	if limit < 1 || limit > models.DefaultLimit {
		limit = models.DefaultLimit
	}
	return s.activity.List(ctx, filter, skip, limit)
}

// Delete removes every event matching the filter and reports the count.
func (s *ActivityService) Delete(ctx context.Context, filter models.ActivityFilter) (int64, error) {
	if err := validateFilter(filter); err != nil {
		return 0, err
	}
	return s.activity.Delete(ctx, filter)
}

func validateFilter(filter models.ActivityFilter) error {
	for _, e := range filter.Events {
		if !e.Valid() {
			return fmt.Errorf("%w: %q", shared.ErrEventNotFound, e)
		}
	}
	return nil
}

// MostPlayedTracks reports play counts per track over the window.
func (s *ActivityService) MostPlayedTracks(ctx context.Context, start, end time.Time, limit int64) ([]models.TrackPlays, error) {
	if limit < 1 || limit > models.DefaultLimit {
		limit = models.DefaultLimit
	}
	return s.activity.MostPlayedTracks(ctx, start, end, limit)
}

// DailyActiveUsers reports distinct active users per UTC day.
func (s *ActivityService) DailyActiveUsers(ctx context.Context, start, end time.Time) ([]models.DailyActive, error) {
	return s.activity.DailyActiveUsers(ctx, start, end)
}

// TrackCompletionRates reports skip rates per track over the window.
func (s *ActivityService) TrackCompletionRates(ctx context.Context, start, end time.Time, limit int64) ([]models.TrackCompletion, error) {
	if limit < 1 || limit > models.DefaultLimit {
		limit = models.DefaultLimit
	}
	return s.activity.TrackCompletionRates(ctx, start, end, limit)
}
