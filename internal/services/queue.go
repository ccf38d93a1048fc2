package services

import (
	"context"
	"fmt"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/repositories"
	"github.com/calliope-fm/calliope/internal/shared"
)

// QueueService fronts the per-user playback queue. Track ids entering the
// queue are verified against the catalog; positional edits operate on ids
// already admitted.
type QueueService struct {
	queues *repositories.QueueRepository
	tracks *repositories.TrackRepository
}

// NewQueueService creates a new [QueueService].
func NewQueueService(queues *repositories.QueueRepository, tracks *repositories.TrackRepository) *QueueService {
	return &QueueService{queues: queues, tracks: tracks}
}

func (s *QueueService) verifyTrack(ctx context.Context, trackID int64) error {
	_, err := s.tracks.GetByID(ctx, trackID)
	return err
}

// nonNegative rejects negative offsets and positions before they reach
// redis, where they would be read as from-end indexes.
func nonNegative(name string, v int64) error {
	if v < 0 {
		return fmt.Errorf("%w: negative %s %d", shared.ErrInvalidInput, name, v)
	}
	return nil
}

// PushLeft prepends a track to the user's queue.
func (s *QueueService) PushLeft(ctx context.Context, userID, trackID int64) error {
	if err := s.verifyTrack(ctx, trackID); err != nil {
		return err
	}
	return s.queues.PushLeft(ctx, userID, trackID)
}

// PushRight appends a track to the user's queue.
func (s *QueueService) PushRight(ctx context.Context, userID, trackID int64) error {
	if err := s.verifyTrack(ctx, trackID); err != nil {
		return err
	}
	return s.queues.PushRight(ctx, userID, trackID)
}

// List returns a window of the user's queue.
func (s *QueueService) List(ctx context.Context, userID int64, window models.QueueWindow) (models.Queue, error) {
	if err := nonNegative("offset", window.Offset); err != nil {
		return models.Queue{}, err
	}
	if err := nonNegative("limit", window.Limit); err != nil {
		return models.Queue{}, err
	}
	return s.queues.List(ctx, userID, window)
}

// Insert places a track at a position in the user's existing queue.
func (s *QueueService) Insert(ctx context.Context, userID, trackID, position int64) error {
	if err := nonNegative("position", position); err != nil {
		return err
	}
	if err := s.verifyTrack(ctx, trackID); err != nil {
		return err
	}
	return s.queues.Insert(ctx, userID, trackID, position)
}

// Move relocates a queue entry between positions.
func (s *QueueService) Move(ctx context.Context, userID, src, dest int64) error {
	if err := nonNegative("src", src); err != nil {
		return err
	}
	if err := nonNegative("dest", dest); err != nil {
		return err
	}
	return s.queues.Move(ctx, userID, src, dest)
}

// Remove drops the entry at a position.
func (s *QueueService) Remove(ctx context.Context, userID, position int64) error {
	if err := nonNegative("position", position); err != nil {
		return err
	}
	return s.queues.Remove(ctx, userID, position)
}

// Delete drops the user's whole queue.
func (s *QueueService) Delete(ctx context.Context, userID int64) error {
	return s.queues.Delete(ctx, userID)
}
