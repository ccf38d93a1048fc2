package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/repositories"
	"github.com/calliope-fm/calliope/internal/shared"
	itesting "github.com/calliope-fm/calliope/internal/testing"
)

type testEnv struct {
	db       *sql.DB
	blobs    *itesting.FakeBlobStore
	auth     *AuthService
	music    *MusicService
	accounts *AccountService
	activity *ActivityService
}

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	blobs := itesting.NewFakeBlobStore()
	logger := shared.NewLogger(io.Discard)

	users := repositories.NewUserRepository(db)
	genres := repositories.NewGenreRepository(db)
	albums := repositories.NewAlbumRepository(db)
	tracks := repositories.NewTrackRepository(db)
	playlists := repositories.NewPlaylistRepository(db)
	activity := repositories.NewActivityRepository(db)

	auth := NewAuthService(shared.AuthConfig{TokenSecret: "test-secret", ExpiryMinutes: 60})
	music := NewMusicService(genres, albums, tracks, users, playlists, blobs, logger)
	accounts := NewAccountService(users, playlists, music, auth, blobs, logger)

	return &testEnv{
		db:       db,
		blobs:    blobs,
		auth:     auth,
		music:    music,
		accounts: accounts,
		activity: NewActivityService(activity, tracks),
	}
}

func registerTestUser(t *testing.T, env *testEnv, username string) models.User {
	t.Helper()
	ctx := context.Background()
	if _, err := env.accounts.Register(ctx, models.NewUser{
		Name: "Test " + username, Username: username, Password: "secret123",
	}); err != nil {
		t.Fatalf("failed to register user: %v", err)
	}
	full, err := repositories.NewUserRepository(env.db).GetByUsername(ctx, username)
	if err != nil {
		t.Fatalf("failed to fetch registered user: %v", err)
	}
	return full.User
}

func createTestSingle(t *testing.T, env *testEnv, artistID int64, name string) models.Track {
	t.Helper()
	track, err := env.music.CreateSingle(context.Background(), models.NewSingle{
		Name: name, ArtistID: artistID, ReleaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("failed to create single: %v", err)
	}
	return track
}

func uploadTestAudio(t *testing.T, env *testEnv, trackID int64, payload string) {
	t.Helper()
	err := env.music.UploadTrackFile(context.Background(), trackID,
		strings.NewReader(payload), int64(len(payload)), "audio/mpeg")
	if err != nil {
		t.Fatalf("failed to upload audio: %v", err)
	}
}

func TestAuthService(t *testing.T) {
	t.Run("PasswordRoundTrip", func(t *testing.T) {
		auth := NewAuthService(shared.AuthConfig{TokenSecret: "s", ExpiryMinutes: 60})

		hash, err := auth.HashPassword("secret123")
		if err != nil {
			t.Fatalf("failed to hash password: %v", err)
		}
		if hash == "secret123" {
			t.Error("hash should not equal plaintext")
		}
		if err := auth.CheckPassword(hash, "secret123"); err != nil {
			t.Errorf("correct password rejected: %v", err)
		}
		if err := auth.CheckPassword(hash, "wrong"); !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("TokenRoundTrip", func(t *testing.T) {
		auth := NewAuthService(shared.AuthConfig{TokenSecret: "s", ExpiryMinutes: 60})

		token, err := auth.IssueToken(Identity{UserID: 42, Role: models.RoleAdmin})
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}

		id, err := auth.VerifyToken(token)
		if err != nil {
			t.Fatalf("failed to verify token: %v", err)
		}
		if id.UserID != 42 || id.Role != models.RoleAdmin {
			t.Errorf("unexpected identity: %+v", id)
		}
	})

	t.Run("TamperedTokenRejected", func(t *testing.T) {
		auth := NewAuthService(shared.AuthConfig{TokenSecret: "s", ExpiryMinutes: 60})
		other := NewAuthService(shared.AuthConfig{TokenSecret: "different", ExpiryMinutes: 60})

		token, err := other.IssueToken(Identity{UserID: 42, Role: models.RoleUser})
		if err != nil {
			t.Fatalf("failed to issue token: %v", err)
		}
		if _, err := auth.VerifyToken(token); !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}
	})
}

func TestAccessChecks(t *testing.T) {
	admin := Identity{UserID: 1, Role: models.RoleAdmin}
	owner := Identity{UserID: 7, Role: models.RoleUser}
	stranger := Identity{UserID: 8, Role: models.RoleUser}
	analyst := Identity{UserID: 9, Role: models.RoleAnalyst}

	t.Run("OwnerOrAdmin", func(t *testing.T) {
		if err := OwnerOrAdmin(owner, 7); err != nil {
			t.Errorf("owner rejected: %v", err)
		}
		if err := OwnerOrAdmin(admin, 7); err != nil {
			t.Errorf("admin rejected: %v", err)
		}
		if err := OwnerOrAdmin(stranger, 7); !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("AdminOnly", func(t *testing.T) {
		if err := AdminOnly(admin); err != nil {
			t.Errorf("admin rejected: %v", err)
		}
		if err := AdminOnly(analyst); !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("AnalystOrAdmin", func(t *testing.T) {
		if err := AnalystOrAdmin(analyst); err != nil {
			t.Errorf("analyst rejected: %v", err)
		}
		if err := AnalystOrAdmin(owner); !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})

	t.Run("IndirectSkipsLookupForAdmin", func(t *testing.T) {
		err := OwnerOrAdminIndirect(context.Background(), admin, func(context.Context) (int64, error) {
			t.Error("lookup should not run for admin")
			return 0, nil
		})
		if err != nil {
			t.Errorf("admin rejected: %v", err)
		}
	})

	t.Run("IndirectResolvesOwner", func(t *testing.T) {
		lookup := func(context.Context) (int64, error) { return 7, nil }
		if err := OwnerOrAdminIndirect(context.Background(), owner, lookup); err != nil {
			t.Errorf("owner rejected: %v", err)
		}
		if err := OwnerOrAdminIndirect(context.Background(), stranger, lookup); !errors.Is(err, shared.ErrForbidden) {
			t.Errorf("expected ErrForbidden, got %v", err)
		}
	})
}

func TestAccountService(t *testing.T) {
	ctx := context.Background()

	t.Run("RegisterSeedsFavPlaylist", func(t *testing.T) {
		env := setupTestEnv(t)
		user := registerTestUser(t, env, "alice")

		playlists, err := env.accounts.SearchPlaylists(ctx, models.PlaylistSearchParams{
			AuthorID: &user.ID,
		})
		if err != nil {
			t.Fatalf("failed to search playlists: %v", err)
		}
		if len(playlists) != 1 || playlists[0].Name != "fav" {
			t.Errorf("expected a single fav playlist, got %v", playlists)
		}
	})

	t.Run("RegisterReturnsSession", func(t *testing.T) {
		env := setupTestEnv(t)

		session, err := env.accounts.Register(ctx, models.NewUser{
			Name: "Alice", Username: "alice", Password: "secret123",
		})
		if err != nil {
			t.Fatalf("failed to register: %v", err)
		}
		if session.Token == "" {
			t.Error("expected a token")
		}

		id, err := env.auth.VerifyToken(session.Token)
		if err != nil {
			t.Fatalf("failed to verify session token: %v", err)
		}
		if id.Role != models.RoleUser {
			t.Errorf("expected user role, got %s", id.Role)
		}
	})

	t.Run("LoginWrongPassword", func(t *testing.T) {
		env := setupTestEnv(t)
		registerTestUser(t, env, "alice")

		_, err := env.accounts.Login(ctx, models.Credentials{Username: "alice", Password: "wrong"})
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("expected ErrUnauthorized, got %v", err)
		}

		_, err = env.accounts.Login(ctx, models.Credentials{Username: "ghost", Password: "x"})
		if !errors.Is(err, shared.ErrUnauthorized) {
			t.Errorf("unknown user should be ErrUnauthorized, got %v", err)
		}
	})

	t.Run("UpdateUserStripsRole", func(t *testing.T) {
		env := setupTestEnv(t)
		user := registerTestUser(t, env, "alice")

		admin := models.RoleAdmin
		got, err := env.accounts.UpdateUser(ctx, models.UpdateUser{ID: user.ID, Role: &admin})
		if err != nil {
			t.Fatalf("failed to update user: %v", err)
		}
		if got.Role != models.RoleUser {
			t.Errorf("role escalation through self-service update: got %s", got.Role)
		}
	})

	t.Run("AdminUpdateChangesRole", func(t *testing.T) {
		env := setupTestEnv(t)
		user := registerTestUser(t, env, "alice")

		analyst := models.RoleAnalyst
		got, err := env.accounts.AdminUpdateUser(ctx, models.UpdateUser{ID: user.ID, Role: &analyst})
		if err != nil {
			t.Fatalf("failed to update user: %v", err)
		}
		if got.Role != models.RoleAnalyst {
			t.Errorf("expected analyst role, got %s", got.Role)
		}

		bogus := models.Role("root")
		if _, err := env.accounts.AdminUpdateUser(ctx, models.UpdateUser{ID: user.ID, Role: &bogus}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("DeleteUserCascades", func(t *testing.T) {
		env := setupTestEnv(t)
		user := registerTestUser(t, env, "alice")
		track := createTestSingle(t, env, user.ID, "Solo")
		uploadTestAudio(t, env, track.ID, "audio-bytes")

		if err := env.blobs.PutImage(ctx, models.UserImage(user.ID), []byte("img"), "image/png"); err != nil {
			t.Fatalf("failed to store profile image: %v", err)
		}

		if err := env.accounts.DeleteUser(ctx, user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		if _, err := env.accounts.GetUser(ctx, user.ID); !errors.Is(err, shared.ErrUserNotFound) {
			t.Errorf("expected ErrUserNotFound, got %v", err)
		}
		if _, err := env.music.GetTrack(ctx, track.ID); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
		if env.blobs.HasTrack(user.ID, track.ID) {
			t.Error("audio blob should be gone")
		}
		if env.blobs.HasImage(models.UserImage(user.ID)) {
			t.Error("profile image should be gone")
		}
	})

	t.Run("DeleteUserDrainsAllPages", func(t *testing.T) {
		env := setupTestEnv(t)
		user := registerTestUser(t, env, "prolific")

		// More albums and playlists than one search page holds.
		var albumIDs []int64
		for i := 0; i < models.DefaultLimit+5; i++ {
			album, err := env.music.CreateAlbum(ctx, models.NewAlbum{
				Name:        fmt.Sprintf("Album %d", i),
				ArtistID:    user.ID,
				ReleaseDate: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			})
			if err != nil {
				t.Fatalf("failed to create album: %v", err)
			}
			if err := env.blobs.PutImage(ctx, models.AlbumImage(album.ID), []byte("img"), "image/png"); err != nil {
				t.Fatalf("failed to store album cover: %v", err)
			}
			albumIDs = append(albumIDs, album.ID)

			if _, err := env.accounts.CreatePlaylist(ctx, models.NewPlaylist{
				AuthorID: user.ID,
				Name:     fmt.Sprintf("Mix %d", i),
			}); err != nil {
				t.Fatalf("failed to create playlist: %v", err)
			}
		}

		if err := env.accounts.DeleteUser(ctx, user.ID); err != nil {
			t.Fatalf("failed to delete user: %v", err)
		}

		for _, id := range albumIDs {
			if env.blobs.HasImage(models.AlbumImage(id)) {
				t.Fatalf("album %d cover should be gone", id)
			}
			if _, err := env.music.GetAlbum(ctx, id); !errors.Is(err, shared.ErrAlbumNotFound) {
				t.Fatalf("expected ErrAlbumNotFound for album %d, got %v", id, err)
			}
		}

		var remaining int
		if err := env.db.QueryRow("SELECT COUNT(*) FROM playlists WHERE author_id = ?", user.ID).Scan(&remaining); err != nil {
			t.Fatalf("failed to count playlists: %v", err)
		}
		if remaining != 0 {
			t.Errorf("expected no playlists left, got %d", remaining)
		}
	})
}

func TestMusicServiceStreaming(t *testing.T) {
	ctx := context.Background()

	readAll := func(t *testing.T, stream models.TrackStream) string {
		t.Helper()
		defer stream.Stream.Close()
		data, err := io.ReadAll(stream.Stream)
		if err != nil {
			t.Fatalf("failed to read stream: %v", err)
		}
		return string(data)
	}

	t.Run("FullObjectByDefault", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")
		uploadTestAudio(t, env, track.ID, "0123456789")

		stream, err := env.music.StreamTrack(ctx, track.ID, nil, nil)
		if err != nil {
			t.Fatalf("failed to stream: %v", err)
		}
		if stream.Start != 0 || stream.End != 9 || stream.Size != 10 || stream.ContentLength != 10 {
			t.Errorf("unexpected plan: %+v", stream)
		}
		if got := readAll(t, stream); got != "0123456789" {
			t.Errorf("unexpected payload %q", got)
		}
	})

	t.Run("PartialRange", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")
		uploadTestAudio(t, env, track.ID, "0123456789")

		start, end := int64(2), int64(5)
		stream, err := env.music.StreamTrack(ctx, track.ID, &start, &end)
		if err != nil {
			t.Fatalf("failed to stream: %v", err)
		}
		if stream.ContentLength != 4 {
			t.Errorf("expected 4 bytes, got %d", stream.ContentLength)
		}
		if got := readAll(t, stream); got != "2345" {
			t.Errorf("unexpected payload %q", got)
		}
	})

	t.Run("EndClampedToSize", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")
		uploadTestAudio(t, env, track.ID, "0123456789")

		start, end := int64(8), int64(500)
		stream, err := env.music.StreamTrack(ctx, track.ID, &start, &end)
		if err != nil {
			t.Fatalf("failed to stream: %v", err)
		}
		if stream.End != 9 || stream.ContentLength != 2 {
			t.Errorf("unexpected plan: %+v", stream)
		}
		readAll(t, stream)
	})

	t.Run("StartBeyondSize", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")
		uploadTestAudio(t, env, track.ID, "0123456789")

		start := int64(10)
		_, err := env.music.StreamTrack(ctx, track.ID, &start, nil)
		if !errors.Is(err, shared.ErrInvalidStart) {
			t.Errorf("expected ErrInvalidStart, got %v", err)
		}
	})

	t.Run("MissingFile", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		_, err := env.music.StreamTrack(ctx, track.ID, nil, nil)
		if !errors.Is(err, shared.ErrMusicFileNotFound) {
			t.Errorf("expected ErrMusicFileNotFound, got %v", err)
		}
	})

	t.Run("WindowCapped", func(t *testing.T) {
		if _, to, err := planRange(nil, nil, 5*maxStreamWindow); err != nil {
			t.Fatalf("failed to plan range: %v", err)
		} else if to != maxStreamWindow-1 {
			t.Errorf("expected window cap at %d, got %d", maxStreamWindow-1, to)
		}

		start := int64(100)
		if from, to, err := planRange(&start, nil, 5*maxStreamWindow); err != nil {
			t.Fatalf("failed to plan range: %v", err)
		} else if from != 100 || to != 100+maxStreamWindow-1 {
			t.Errorf("unexpected plan %d-%d", from, to)
		}
	})
}

func TestMusicServiceCascades(t *testing.T) {
	ctx := context.Background()

	t.Run("DeleteTrackReapsEmptyAlbum", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")
		uploadTestAudio(t, env, track.ID, "audio")
		if err := env.blobs.PutImage(ctx, models.AlbumImage(track.AlbumID), []byte("cover"), "image/png"); err != nil {
			t.Fatalf("failed to store cover: %v", err)
		}

		if err := env.music.DeleteTrack(ctx, track.ID); err != nil {
			t.Fatalf("failed to delete track: %v", err)
		}

		if _, err := env.music.GetAlbum(ctx, track.AlbumID); !errors.Is(err, shared.ErrAlbumNotFound) {
			t.Errorf("expected album reaped, got %v", err)
		}
		if env.blobs.HasTrack(artist.ID, track.ID) {
			t.Error("audio blob should be gone")
		}
		if env.blobs.HasImage(models.AlbumImage(track.AlbumID)) {
			t.Error("album cover should be gone")
		}
	})

	t.Run("DeleteTrackKeepsPopulatedAlbum", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		first := createTestSingle(t, env, artist.ID, "First")

		second, err := env.music.CreateTrack(ctx, models.NewTrack{
			Name: "Second", AlbumID: first.AlbumID, ArtistID: artist.ID,
		})
		if err != nil {
			t.Fatalf("failed to create track: %v", err)
		}

		if err := env.music.DeleteTrack(ctx, second.ID); err != nil {
			t.Fatalf("failed to delete track: %v", err)
		}
		if _, err := env.music.GetAlbum(ctx, first.AlbumID); err != nil {
			t.Errorf("album with remaining tracks should survive: %v", err)
		}
	})

	t.Run("DeleteTrackWithoutFile", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		// No upload happened; the missing blob must not block the delete.
		if err := env.music.DeleteTrack(ctx, track.ID); err != nil {
			t.Fatalf("failed to delete track: %v", err)
		}
	})

	t.Run("DeleteAlbumRemovesTracksAndBlobs", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		first := createTestSingle(t, env, artist.ID, "First")
		second, err := env.music.CreateTrack(ctx, models.NewTrack{
			Name: "Second", AlbumID: first.AlbumID, ArtistID: artist.ID,
		})
		if err != nil {
			t.Fatalf("failed to create track: %v", err)
		}
		uploadTestAudio(t, env, first.ID, "one")
		uploadTestAudio(t, env, second.ID, "two")

		if err := env.music.DeleteAlbum(ctx, first.AlbumID); err != nil {
			t.Fatalf("failed to delete album: %v", err)
		}
		if env.blobs.HasTrack(artist.ID, first.ID) || env.blobs.HasTrack(artist.ID, second.ID) {
			t.Error("audio blobs should be gone")
		}
		if _, err := env.music.GetTrack(ctx, first.ID); !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("TrackImageIsAlbumImage", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		if err := env.music.PutImage(ctx, models.AlbumImage(track.AlbumID), []byte("cover"), "image/png"); err != nil {
			t.Fatalf("failed to store cover: %v", err)
		}

		data, err := env.music.GetTrackImage(ctx, track.ID)
		if err != nil {
			t.Fatalf("failed to get track image: %v", err)
		}
		if string(data) != "cover" {
			t.Errorf("unexpected image payload %q", data)
		}
	})

	t.Run("PutImageVerifiesTarget", func(t *testing.T) {
		env := setupTestEnv(t)

		err := env.music.PutImage(ctx, models.AlbumImage(9999), []byte("x"), "image/png")
		if !errors.Is(err, shared.ErrAlbumNotFound) {
			t.Errorf("expected ErrAlbumNotFound, got %v", err)
		}
	})
}

func TestActivityService(t *testing.T) {
	ctx := context.Background()

	t.Run("RecordRejectsUnknownEvent", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		_, err := env.activity.Record(ctx, models.NewActivity{
			UserID: artist.ID, TrackID: track.ID, Event: "shuffle",
		})
		if !errors.Is(err, shared.ErrEventNotFound) {
			t.Errorf("expected ErrEventNotFound, got %v", err)
		}
	})

	t.Run("RecordVerifiesTrack", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")

		_, err := env.activity.Record(ctx, models.NewActivity{
			UserID: artist.ID, TrackID: 9999, Event: models.EventPlay,
		})
		if !errors.Is(err, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound, got %v", err)
		}
	})

	t.Run("RecordAndList", func(t *testing.T) {
		env := setupTestEnv(t)
		artist := registerTestUser(t, env, "artist")
		track := createTestSingle(t, env, artist.ID, "Solo")

		if _, err := env.activity.Record(ctx, models.NewActivity{
			UserID: artist.ID, TrackID: track.ID, Event: models.EventPlay,
		}); err != nil {
			t.Fatalf("failed to record: %v", err)
		}

		got, err := env.activity.List(ctx, models.ActivityFilter{UserIDs: []int64{artist.ID}}, 0, 0)
		if err != nil {
			t.Fatalf("failed to list: %v", err)
		}
		if len(got) != 1 {
			t.Errorf("expected 1 event, got %d", len(got))
		}
	})
}
