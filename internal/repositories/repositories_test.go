package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	return db
}

func createTestUser(t *testing.T, db *sql.DB, username string) models.User {
	t.Helper()
	user, err := NewUserRepository(db).Create(context.Background(), models.NewUser{
		Name:     "Test " + username,
		Username: username,
		Password: "hashed-password",
		Role:     models.RoleUser,
	})
	if err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return user
}

func createTestAlbum(t *testing.T, db *sql.DB, artistID int64, name string) models.Album {
	t.Helper()
	album, err := NewAlbumRepository(db).Create(context.Background(), models.NewAlbum{
		Name:        name,
		ArtistID:    artistID,
		ReleaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("failed to create album: %v", err)
	}
	return album
}

func createTestTrack(t *testing.T, db *sql.DB, albumID, artistID int64, name string) models.Track {
	t.Helper()
	track, err := NewTrackRepository(db).Create(context.Background(), models.NewTrack{
		Name:        name,
		AlbumID:     albumID,
		ArtistID:    artistID,
		ReleaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("failed to create track: %v", err)
	}
	return track
}

func searchParams(name string) models.SearchParams {
	return models.SearchParams{Name: name, Limit: 100, Threshold: models.DefaultThreshold}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("Create", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		user := createTestUser(t, db, "alice")
		if user.ID == 0 {
			t.Error("user ID should be set after creation")
		}
		if user.Role != models.RoleUser {
			t.Errorf("expected role %q, got %q", models.RoleUser, user.Role)
		}
	})

	t.Run("CreateDuplicateUsername", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		createTestUser(t, db, "alice")
		_, err := NewUserRepository(db).Create(ctx, models.NewUser{
			Name: "Other", Username: "alice", Password: "x", Role: models.RoleUser,
		})
		if !errors.Is(err, shared.ErrUserAlreadyExists) {
			t.Errorf("expected ErrUserAlreadyExists, got %v", err)
		}
	})

	t.Run("GetByID", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		user := createTestUser(t, db, "alice")
		got, err := NewUserRepository(db).GetByID(ctx, user.ID)
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if got.Username != "alice" {
			t.Errorf("expected username alice, got %s", got.Username)
		}

		_, err = NewUserRepository(db).GetByID(ctx, 9999)
		if !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})

	t.Run("GetByUsername", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		user := createTestUser(t, db, "alice")
		full, err := NewUserRepository(db).GetByUsername(ctx, "alice")
		if err != nil {
			t.Fatalf("failed to get user: %v", err)
		}
		if full.ID != user.ID {
			t.Errorf("expected id %d, got %d", user.ID, full.ID)
		}
		if full.Password != "hashed-password" {
			t.Error("expected password hash on full user")
		}
	})

	t.Run("SearchBySimilarity", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		for _, u := range []models.NewUser{
			{Name: "Radiohead", Username: "radiohead", Password: "x", Role: models.RoleUser},
			{Name: "Radio Slave", Username: "radioslave", Password: "x", Role: models.RoleUser},
			{Name: "Completely Different", Username: "other", Password: "x", Role: models.RoleUser},
		} {
			if _, err := repo.Create(ctx, u); err != nil {
				t.Fatalf("failed to create user: %v", err)
			}
		}

		got, err := repo.Search(ctx, models.UserSearchParams{SearchParams: searchParams("Radiohead")})
		if err != nil {
			t.Fatalf("failed to search users: %v", err)
		}
		if len(got) == 0 {
			t.Fatal("expected at least one match")
		}
		if got[0].Name != "Radiohead" {
			t.Errorf("expected exact match first, got %s", got[0].Name)
		}
		for _, u := range got {
			if u.Name == "Completely Different" {
				t.Error("dissimilar name should not match")
			}
		}
	})

	t.Run("UpdatePreservesUnsetFields", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createTestUser(t, db, "alice")

		name := "Renamed"
		got, err := repo.Update(ctx, models.UpdateUser{ID: user.ID, Name: &name})
		if err != nil {
			t.Fatalf("failed to update user: %v", err)
		}
		if got.Name != "Renamed" {
			t.Errorf("expected updated name, got %s", got.Name)
		}
		if got.Username != "alice" {
			t.Errorf("username should be preserved, got %s", got.Username)
		}
		if got.Role != models.RoleUser {
			t.Errorf("role should be preserved, got %s", got.Role)
		}
	})

	t.Run("UpdateSameUsernameIsNoop", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		user := createTestUser(t, db, "alice")
		username := "alice"
		if _, err := NewUserRepository(db).Update(ctx, models.UpdateUser{ID: user.ID, Username: &username}); err != nil {
			t.Fatalf("re-submitting own username should not conflict: %v", err)
		}
	})

	t.Run("Delete", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		user := createTestUser(t, db, "alice")

		if err := repo.Delete(ctx, user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}
		if err := repo.Delete(ctx, user.ID); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
	})
}

func TestSubscriptions(t *testing.T) {
	ctx := context.Background()

	t.Run("SubscribeAndCount", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		fan := createTestUser(t, db, "fan")
		artist := createTestUser(t, db, "artist")

		sub := models.Subscription{SubscriberID: fan.ID, ArtistID: artist.ID}
		if err := repo.Subscribe(ctx, sub); err != nil {
			t.Fatalf("failed to subscribe: %v", err)
		}

		count, err := repo.SubscriberCount(ctx, artist.ID)
		if err != nil {
			t.Fatalf("failed to count subscribers: %v", err)
		}
		if count.Count != 1 {
			t.Errorf("expected 1 subscriber, got %d", count.Count)
		}

		subs, err := repo.Subscriptions(ctx, fan.ID, 0, 10)
		if err != nil {
			t.Fatalf("failed to list subscriptions: %v", err)
		}
		if len(subs) != 1 || subs[0].ID != artist.ID {
			t.Errorf("expected subscription to artist %d, got %v", artist.ID, subs)
		}
	})

	t.Run("SelfSubscribeRejected", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		fan := createTestUser(t, db, "fan")
		err := NewUserRepository(db).Subscribe(ctx, models.Subscription{SubscriberID: fan.ID, ArtistID: fan.ID})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("DuplicateSubscribeRejected", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		fan := createTestUser(t, db, "fan")
		artist := createTestUser(t, db, "artist")
		sub := models.Subscription{SubscriberID: fan.ID, ArtistID: artist.ID}

		if err := repo.Subscribe(ctx, sub); err != nil {
			t.Fatalf("failed to subscribe: %v", err)
		}
		if err := repo.Subscribe(ctx, sub); !errors.Is(err, shared.ErrSubscriptionAlreadyExists) {
			t.Errorf("expected ErrSubscriptionAlreadyExists, got %v", err)
		}
	})

	t.Run("UnsubscribeMissingEdge", func(t *testing.T) {
		db := setupTestDB(t)
		defer db.Close()

		repo := NewUserRepository(db)
		fan := createTestUser(t, db, "fan")
		artist := createTestUser(t, db, "artist")

		err := repo.Unsubscribe(ctx, models.Subscription{SubscriberID: fan.ID, ArtistID: artist.ID})
		if !errors.Is(err, shared.ErrSubscriptionNotFound) {
			t.Errorf("expected ErrSubscriptionNotFound, got %v", err)
		}
	})
}
