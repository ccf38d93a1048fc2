package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/repositories"
	"github.com/calliope-fm/calliope/internal/shared"
)

// favPlaylistName is the playlist every account is born with.
const favPlaylistName = "fav"

// AccountService orchestrates registration, login, profile management,
// playlists and subscriptions.
type AccountService struct {
	users     *repositories.UserRepository
	playlists *repositories.PlaylistRepository
	music     *MusicService
	auth      *AuthService
	blobs     BlobStore
	logger    *log.Logger
}

// NewAccountService creates a new [AccountService].
func NewAccountService(
	users *repositories.UserRepository,
	playlists *repositories.PlaylistRepository,
	music *MusicService,
	auth *AuthService,
	blobs BlobStore,
	logger *log.Logger,
) *AccountService {
	return &AccountService{
		users:     users,
		playlists: playlists,
		music:     music,
		auth:      auth,
		blobs:     blobs,
		logger:    logger,
	}
}

// Register creates an account with the user role, seeds its "fav" playlist
// and returns a session for it.
func (s *AccountService) Register(ctx context.Context, newUser models.NewUser) (models.Session, error) {
	return s.register(ctx, newUser, models.RoleUser)
}

// RegisterAdmin creates an admin account. Callers gate this behind the
// bootstrap admin key.
func (s *AccountService) RegisterAdmin(ctx context.Context, newUser models.NewUser) (models.Session, error) {
	return s.register(ctx, newUser, models.RoleAdmin)
}

func (s *AccountService) register(ctx context.Context, newUser models.NewUser, role models.Role) (models.Session, error) {
	if newUser.Username == "" || newUser.Password == "" {
		return models.Session{}, fmt.Errorf("%w: username and password required", shared.ErrInvalidInput)
	}

	hash, err := s.auth.HashPassword(newUser.Password)
	if err != nil {
		return models.Session{}, err
	}
	newUser.Password = hash
	newUser.Role = role

	user, err := s.users.Create(ctx, newUser)
	if err != nil {
		return models.Session{}, err
	}

	if _, err := s.playlists.Create(ctx, models.NewPlaylist{AuthorID: user.ID, Name: favPlaylistName}); err != nil {
		s.logger.Error("failed to seed fav playlist", "user_id", user.ID, "error", err)
		return models.Session{}, err
	}

	s.logger.Info("registered user", "user_id", user.ID, "role", role)
	return s.session(user)
}

// Login verifies credentials and returns a fresh session.
func (s *AccountService) Login(ctx context.Context, creds models.Credentials) (models.Session, error) {
	full, err := s.users.GetByUsername(ctx, creds.Username)
	if err != nil {
		// Do not leak which of the two was wrong.
		if errors.Is(err, shared.ErrUserNotFound) {
			return models.Session{}, fmt.Errorf("%w: invalid credentials", shared.ErrUnauthorized)
		}
		return models.Session{}, err
	}
	if err := s.auth.CheckPassword(full.Password, creds.Password); err != nil {
		return models.Session{}, err
	}
	return s.session(full.User)
}

func (s *AccountService) session(user models.User) (models.Session, error) {
	token, err := s.auth.IssueToken(Identity{UserID: user.ID, Role: user.Role})
	if err != nil {
		return models.Session{}, err
	}
	return models.Session{Token: token, Next: "/home"}, nil
}

// --- Users ---

func (s *AccountService) GetUser(ctx context.Context, id int64) (models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *AccountService) SearchUsers(ctx context.Context, params models.UserSearchParams) ([]models.User, error) {
	if err := params.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.users.Search(ctx, params)
}

// UpdateUser applies a self-service profile merge. Role changes are stripped
// here; they belong to [AccountService.AdminUpdateUser].
func (s *AccountService) UpdateUser(ctx context.Context, upd models.UpdateUser) (models.User, error) {
	upd.Role = nil
	return s.applyUpdate(ctx, upd)
}

// AdminUpdateUser applies a merge including role changes.
func (s *AccountService) AdminUpdateUser(ctx context.Context, upd models.UpdateUser) (models.User, error) {
	if upd.Role != nil && !upd.Role.Valid() {
		return models.User{}, fmt.Errorf("%w: unknown role %q", shared.ErrInvalidInput, *upd.Role)
	}
	return s.applyUpdate(ctx, upd)
}

func (s *AccountService) applyUpdate(ctx context.Context, upd models.UpdateUser) (models.User, error) {
	if upd.Password != nil {
		hash, err := s.auth.HashPassword(*upd.Password)
		if err != nil {
			return models.User{}, err
		}
		upd.Password = &hash
	}
	return s.users.Update(ctx, upd)
}

// DeleteUser removes an account and everything it owns: playlists, albums
// with their tracks and blobs, the profile image, and finally the row.
func (s *AccountService) DeleteUser(ctx context.Context, id int64) error {
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return err
	}

	// Each pass deletes the page it fetched, so searching again from the
	// start drains everything the user owns, not just the first page.
	for {
		playlists, err := s.playlists.Search(ctx, models.PlaylistSearchParams{
			SearchParams: models.SearchParams{Limit: models.DefaultLimit},
			AuthorID:     &id,
		})
		if err != nil {
			return err
		}
		if len(playlists) == 0 {
			break
		}
		for _, playlist := range playlists {
			if err := s.blobs.DeleteImage(ctx, models.PlaylistImage(playlist.ID)); err != nil &&
				!errors.Is(err, shared.ErrImageFileNotFound) {
				return err
			}
			if err := s.playlists.Delete(ctx, playlist.ID); err != nil {
				return err
			}
		}
	}

	for {
		albums, err := s.music.SearchAlbums(ctx, models.AlbumSearchParams{
			SearchParams: models.SearchParams{Limit: models.DefaultLimit},
			ArtistID:     &id,
		})
		if err != nil {
			return err
		}
		if len(albums) == 0 {
			break
		}
		for _, album := range albums {
			if err := s.music.DeleteAlbum(ctx, album.ID); err != nil &&
				!errors.Is(err, shared.ErrAlbumNotFound) {
				return err
			}
		}
	}

	if err := s.blobs.DeleteImage(ctx, models.UserImage(id)); err != nil &&
		!errors.Is(err, shared.ErrImageFileNotFound) {
		return err
	}

	s.logger.Info("deleting user", "user_id", id, "username", user.Username)
	return s.users.Delete(ctx, id)
}

// --- Playlists ---

func (s *AccountService) CreatePlaylist(ctx context.Context, p models.NewPlaylist) (models.Playlist, error) {
	return s.playlists.Create(ctx, p)
}

func (s *AccountService) GetPlaylist(ctx context.Context, id int64) (models.Playlist, error) {
	return s.playlists.GetByID(ctx, id)
}

// PlaylistOwner resolves the author of a playlist, for access checks.
func (s *AccountService) PlaylistOwner(ctx context.Context, id int64) (int64, error) {
	playlist, err := s.playlists.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return playlist.AuthorID, nil
}

func (s *AccountService) SearchPlaylists(ctx context.Context, params models.PlaylistSearchParams) ([]models.Playlist, error) {
	if err := params.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.playlists.Search(ctx, params)
}

func (s *AccountService) UpdatePlaylist(ctx context.Context, upd models.UpdatePlaylist) (models.Playlist, error) {
	return s.playlists.Update(ctx, upd)
}

// DeletePlaylist removes a playlist and its cover image.
func (s *AccountService) DeletePlaylist(ctx context.Context, id int64) error {
	if err := s.blobs.DeleteImage(ctx, models.PlaylistImage(id)); err != nil &&
		!errors.Is(err, shared.ErrImageFileNotFound) {
		return err
	}
	return s.playlists.Delete(ctx, id)
}

func (s *AccountService) AddPlaylistTrack(ctx context.Context, pt models.PlaylistTrack) (models.PlaylistTrack, error) {
	return s.playlists.AddTrack(ctx, pt)
}

func (s *AccountService) RemovePlaylistTrack(ctx context.Context, pt models.PlaylistTrack) error {
	return s.playlists.RemoveTrack(ctx, pt)
}

func (s *AccountService) PlaylistTracks(ctx context.Context, playlistID int64) ([]models.PlaylistTrack, error) {
	return s.playlists.Tracks(ctx, playlistID)
}

// --- Subscriptions ---

func (s *AccountService) Subscribe(ctx context.Context, sub models.Subscription) error {
	return s.users.Subscribe(ctx, sub)
}

func (s *AccountService) Unsubscribe(ctx context.Context, sub models.Subscription) error {
	return s.users.Unsubscribe(ctx, sub)
}

func (s *AccountService) Subscriptions(ctx context.Context, userID int64, skip, limit int) ([]models.User, error) {
	return s.users.Subscriptions(ctx, userID, skip, limit)
}

func (s *AccountService) Subscribers(ctx context.Context, artistID int64, skip, limit int) ([]models.User, error) {
	return s.users.Subscribers(ctx, artistID, skip, limit)
}

func (s *AccountService) SubscriberCount(ctx context.Context, artistID int64) (models.SubscriberCount, error) {
	return s.users.SubscriberCount(ctx, artistID)
}
