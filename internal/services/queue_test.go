package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/repositories"
	"github.com/calliope-fm/calliope/internal/shared"
)

func setupQueueService(t *testing.T, env *testEnv) *QueueService {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	queues := repositories.NewQueueRepository(client, time.Hour)
	return NewQueueService(queues, repositories.NewTrackRepository(env.db))
}

func TestQueueService(t *testing.T) {
	ctx := context.Background()

	t.Run("PushVerifiesTrack", func(t *testing.T) {
		env := setupTestEnv(t)
		queue := setupQueueService(t, env)
		user := registerTestUser(t, env, "listener")

		err := queue.PushRight(ctx, user.ID, 9999)
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("PushAndList", func(t *testing.T) {
		env := setupTestEnv(t)
		queue := setupQueueService(t, env)
		user := registerTestUser(t, env, "listener")
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		if err := queue.PushRight(ctx, user.ID, track.ID); err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		q, err := queue.List(ctx, user.ID, models.QueueWindow{})
		if err != nil {
			t.Fatalf("failed to list queue: %v", err)
		}
		if len(q.TrackIDs) != 1 || q.TrackIDs[0] != track.ID {
			t.Errorf("unexpected queue %v", q.TrackIDs)
		}
	})

	t.Run("NegativeWindowRejected", func(t *testing.T) {
		env := setupTestEnv(t)
		queue := setupQueueService(t, env)
		user := registerTestUser(t, env, "listener")
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		if err := queue.PushRight(ctx, user.ID, track.ID); err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		if _, err := queue.List(ctx, user.ID, models.QueueWindow{Offset: -1}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("negative offset: expected ErrInvalidInput, got %v", err)
		}
		if _, err := queue.List(ctx, user.ID, models.QueueWindow{Limit: -1}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("negative limit: expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("NegativePositionsRejected", func(t *testing.T) {
		env := setupTestEnv(t)
		queue := setupQueueService(t, env)
		user := registerTestUser(t, env, "listener")
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		if err := queue.PushRight(ctx, user.ID, track.ID); err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		if err := queue.Insert(ctx, user.ID, track.ID, -5); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("insert: expected ErrInvalidInput, got %v", err)
		}
		if err := queue.Move(ctx, user.ID, -1, 0); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("move src: expected ErrInvalidInput, got %v", err)
		}
		if err := queue.Move(ctx, user.ID, 0, -1); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("move dest: expected ErrInvalidInput, got %v", err)
		}
		if err := queue.Remove(ctx, user.ID, -1); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("remove: expected ErrInvalidInput, got %v", err)
		}

		// The queue is untouched by any of the rejected calls.
		q, err := queue.List(ctx, user.ID, models.QueueWindow{})
		if err != nil {
			t.Fatalf("failed to list queue: %v", err)
		}
		if len(q.TrackIDs) != 1 || q.TrackIDs[0] != track.ID {
			t.Errorf("unexpected queue %v", q.TrackIDs)
		}
	})

	t.Run("InsertVerifiesTrack", func(t *testing.T) {
		env := setupTestEnv(t)
		queue := setupQueueService(t, env)
		user := registerTestUser(t, env, "listener")
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		if err := queue.PushRight(ctx, user.ID, track.ID); err != nil {
			t.Fatalf("failed to push: %v", err)
		}
		if err := queue.Insert(ctx, user.ID, 9999, 0); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})
}
