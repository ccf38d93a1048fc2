package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

func setupTestQueue(t *testing.T) (*QueueRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewQueueRepository(client, time.Hour), mr
}

func queueIDs(t *testing.T, repo *QueueRepository, userID int64) []int64 {
	t.Helper()
	q, err := repo.List(context.Background(), userID, models.QueueWindow{})
	if err != nil {
		t.Fatalf("failed to list queue: %v", err)
	}
	return q.TrackIDs
}

func assertQueue(t *testing.T, got, want []int64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected queue %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected queue %v, got %v", want, got)
		}
	}
}

func TestQueueRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("PushOrder", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		for _, id := range []int64{1, 2, 3} {
			if err := repo.PushRight(ctx, 7, id); err != nil {
				t.Fatalf("failed to push: %v", err)
			}
		}
		if err := repo.PushLeft(ctx, 7, 99); err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		assertQueue(t, queueIDs(t, repo, 7), []int64{99, 1, 2, 3})
	})

	t.Run("ListWindow", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		for _, id := range []int64{1, 2, 3, 4, 5} {
			if err := repo.PushRight(ctx, 7, id); err != nil {
				t.Fatalf("failed to push: %v", err)
			}
		}

		q, err := repo.List(ctx, 7, models.QueueWindow{Offset: 1, Limit: 2})
		if err != nil {
			t.Fatalf("failed to list queue: %v", err)
		}
		assertQueue(t, q.TrackIDs, []int64{2, 3})

		// Limit zero reads through the end.
		q, err = repo.List(ctx, 7, models.QueueWindow{Offset: 3})
		if err != nil {
			t.Fatalf("failed to list queue: %v", err)
		}
		assertQueue(t, q.TrackIDs, []int64{4, 5})
	})

	t.Run("ListMissingQueue", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		_, err := repo.List(ctx, 7, models.QueueWindow{})
		if !errors.Is(err, shared.ErrQueueNotFound) {
			t.Errorf("expected ErrQueueNotFound, got %v", err)
		}
	})

	t.Run("Insert", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		for _, id := range []int64{1, 2, 3} {
			if err := repo.PushRight(ctx, 7, id); err != nil {
				t.Fatalf("failed to push: %v", err)
			}
		}

		if err := repo.Insert(ctx, 7, 42, 1); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		assertQueue(t, queueIDs(t, repo, 7), []int64{1, 42, 2, 3})

		// Positions past the end append.
		if err := repo.Insert(ctx, 7, 43, 100); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
		assertQueue(t, queueIDs(t, repo, 7), []int64{1, 42, 2, 3, 43})
	})

	t.Run("InsertMissingQueue", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		if err := repo.Insert(ctx, 7, 42, 0); !errors.Is(err, shared.ErrQueueNotFound) {
			t.Errorf("expected ErrQueueNotFound, got %v", err)
		}
	})

	t.Run("Move", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		for _, id := range []int64{1, 2, 3, 4} {
			if err := repo.PushRight(ctx, 7, id); err != nil {
				t.Fatalf("failed to push: %v", err)
			}
		}

		if err := repo.Move(ctx, 7, 0, 2); err != nil {
			t.Fatalf("failed to move: %v", err)
		}
		assertQueue(t, queueIDs(t, repo, 7), []int64{2, 3, 1, 4})

		if err := repo.Move(ctx, 7, 3, 0); err != nil {
			t.Fatalf("failed to move: %v", err)
		}
		assertQueue(t, queueIDs(t, repo, 7), []int64{4, 2, 3, 1})
	})

	t.Run("MoveMissingQueue", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		if err := repo.Move(ctx, 7, 0, 1); !errors.Is(err, shared.ErrQueueNotFound) {
			t.Errorf("expected ErrQueueNotFound, got %v", err)
		}
	})

	t.Run("Remove", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		for _, id := range []int64{1, 2, 3} {
			if err := repo.PushRight(ctx, 7, id); err != nil {
				t.Fatalf("failed to push: %v", err)
			}
		}

		if err := repo.Remove(ctx, 7, 1); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}
		assertQueue(t, queueIDs(t, repo, 7), []int64{1, 3})

		// Positions past the end remove the last entry.
		if err := repo.Remove(ctx, 7, 100); err != nil {
			t.Fatalf("failed to remove: %v", err)
		}
		assertQueue(t, queueIDs(t, repo, 7), []int64{1})
	})

	t.Run("Delete", func(t *testing.T) {
		repo, _ := setupTestQueue(t)

		if err := repo.PushRight(ctx, 7, 1); err != nil {
			t.Fatalf("failed to push: %v", err)
		}
		if err := repo.Delete(ctx, 7); err != nil {
			t.Fatalf("failed to delete queue: %v", err)
		}
		if err := repo.Delete(ctx, 7); !errors.Is(err, shared.ErrQueueNotFound) {
			t.Errorf("expected ErrQueueNotFound, got %v", err)
		}
	})

	t.Run("TTLRefreshedOnAccess", func(t *testing.T) {
		repo, mr := setupTestQueue(t)

		if err := repo.PushRight(ctx, 7, 1); err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		// Read just before expiry; the refresh should keep the key alive
		// through another full TTL.
		mr.FastForward(59 * time.Minute)
		if _, err := repo.List(ctx, 7, models.QueueWindow{}); err != nil {
			t.Fatalf("failed to list queue: %v", err)
		}

		mr.FastForward(59 * time.Minute)
		if _, err := repo.List(ctx, 7, models.QueueWindow{}); err != nil {
			t.Errorf("queue expired despite refresh: %v", err)
		}
	})

	t.Run("ExpiresWhenIdle", func(t *testing.T) {
		repo, mr := setupTestQueue(t)

		if err := repo.PushRight(ctx, 7, 1); err != nil {
			t.Fatalf("failed to push: %v", err)
		}

		mr.FastForward(2 * time.Hour)
		if _, err := repo.List(ctx, 7, models.QueueWindow{}); !errors.Is(err, shared.ErrQueueNotFound) {
			t.Errorf("expected ErrQueueNotFound after expiry, got %v", err)
		}
	})
}
