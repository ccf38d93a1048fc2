package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/repositories"
	"github.com/calliope-fm/calliope/internal/shared"
)

// maxStreamWindow caps a single range response at 1 MiB; clients follow up
// with further range requests for the rest.
const maxStreamWindow = 1 << 20

// albumCascadeLimit bounds the track page walked during an album delete.
const albumCascadeLimit = 10000

// BlobStore is the object-store surface the music service depends on.
// Implemented by [repositories.BlobRepository].
type BlobStore interface {
	PutTrack(ctx context.Context, artistID, trackID int64, data io.Reader, size int64, contentType string) error
	StatTrack(ctx context.Context, artistID, trackID int64) (models.FileStat, error)
	StreamTrack(ctx context.Context, artistID, trackID, start, end int64) (io.ReadCloser, error)
	DeleteTrack(ctx context.Context, artistID, trackID int64) error
	PutImage(ctx context.Context, target models.ImageTarget, data []byte, contentType string) error
	GetImage(ctx context.Context, target models.ImageTarget) ([]byte, error)
	DeleteImage(ctx context.Context, target models.ImageTarget) error
}

// MusicService orchestrates the catalog: genres, albums, tracks, their audio
// files and cover images. Deletions cascade across metadata and blobs;
// missing blobs are tolerated so a half-deleted entity can still be removed.
type MusicService struct {
	genres    *repositories.GenreRepository
	albums    *repositories.AlbumRepository
	tracks    *repositories.TrackRepository
	users     *repositories.UserRepository
	playlists *repositories.PlaylistRepository
	blobs     BlobStore
	logger    *log.Logger
}

// NewMusicService creates a new [MusicService].
func NewMusicService(
	genres *repositories.GenreRepository,
	albums *repositories.AlbumRepository,
	tracks *repositories.TrackRepository,
	users *repositories.UserRepository,
	playlists *repositories.PlaylistRepository,
	blobs BlobStore,
	logger *log.Logger,
) *MusicService {
	return &MusicService{
		genres:    genres,
		albums:    albums,
		tracks:    tracks,
		users:     users,
		playlists: playlists,
		blobs:     blobs,
		logger:    logger,
	}
}

// --- Genres ---

func (s *MusicService) CreateGenre(ctx context.Context, g models.NewGenre) (models.Genre, error) {
	return s.genres.Create(ctx, g)
}

func (s *MusicService) GetGenre(ctx context.Context, id int64) (models.Genre, error) {
	return s.genres.GetByID(ctx, id)
}

func (s *MusicService) SearchGenres(ctx context.Context, params models.GenreSearchParams) ([]models.Genre, error) {
	if err := params.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.genres.Search(ctx, params)
}

func (s *MusicService) UpdateGenre(ctx context.Context, upd models.UpdateGenre) (models.Genre, error) {
	return s.genres.Update(ctx, upd)
}

func (s *MusicService) DeleteGenre(ctx context.Context, id int64) error {
	return s.genres.Delete(ctx, id)
}

// --- Artists ---

func (s *MusicService) SearchArtists(ctx context.Context, params models.ArtistSearchParams) ([]models.Artist, error) {
	if err := params.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.users.SearchArtists(ctx, params)
}

// --- Albums ---

func (s *MusicService) CreateAlbum(ctx context.Context, a models.NewAlbum) (models.Album, error) {
	return s.albums.Create(ctx, a)
}

func (s *MusicService) GetAlbum(ctx context.Context, id int64) (models.Album, error) {
	return s.albums.GetByID(ctx, id)
}

// AlbumOwner resolves the artist owning an album, for access checks.
func (s *MusicService) AlbumOwner(ctx context.Context, id int64) (int64, error) {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return album.ArtistID, nil
}

func (s *MusicService) SearchAlbums(ctx context.Context, params models.AlbumSearchParams) ([]models.Album, error) {
	if err := params.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.albums.Search(ctx, params)
}

func (s *MusicService) UpdateAlbum(ctx context.Context, upd models.UpdateAlbum) (models.Album, error) {
	return s.albums.Update(ctx, upd)
}

// DeleteAlbum removes an album, its tracks and every associated blob. Blob
// deletions tolerate files that were never uploaded.
func (s *MusicService) DeleteAlbum(ctx context.Context, id int64) error {
	album, err := s.albums.GetByID(ctx, id)
	if err != nil {
		return err
	}

	tracks, err := s.tracks.Search(ctx, models.TrackSearchParams{
		SearchParams: models.SearchParams{Limit: albumCascadeLimit},
		AlbumID:      &id,
	})
	if err != nil {
		return err
	}
	for _, track := range tracks {
		if err := s.blobs.DeleteTrack(ctx, track.ArtistID, track.ID); err != nil &&
			!errors.Is(err, shared.ErrMusicFileNotFound) {
			return err
		}
	}

	if err := s.blobs.DeleteImage(ctx, models.AlbumImage(album.ID)); err != nil &&
		!errors.Is(err, shared.ErrImageFileNotFound) {
		return err
	}

	s.logger.Info("deleting album", "album_id", id, "tracks", len(tracks))
	return s.albums.Delete(ctx, id)
}

// --- Tracks ---

func (s *MusicService) CreateTrack(ctx context.Context, t models.NewTrack) (models.Track, error) {
	return s.tracks.Create(ctx, t)
}

// CreateSingle creates an album carrying the single's name and the track
// inside it. A failed track insert rolls the album back.
func (s *MusicService) CreateSingle(ctx context.Context, single models.NewSingle) (models.Track, error) {
	album, err := s.albums.Create(ctx, models.NewAlbum{
		Name:        single.Name,
		ArtistID:    single.ArtistID,
		ReleaseDate: single.ReleaseDate,
	})
	if err != nil {
		return models.Track{}, err
	}

	track, err := s.tracks.Create(ctx, models.NewTrack{
		Name:        single.Name,
		AlbumID:     album.ID,
		ArtistID:    single.ArtistID,
		GenreID:     single.GenreID,
		ReleaseDate: single.ReleaseDate,
	})
	if err != nil {
		if delErr := s.albums.Delete(ctx, album.ID); delErr != nil {
			s.logger.Error("failed to roll back single album", "album_id", album.ID, "error", delErr)
		}
		return models.Track{}, err
	}
	return track, nil
}

func (s *MusicService) GetTrack(ctx context.Context, id int64) (models.Track, error) {
	return s.tracks.GetByID(ctx, id)
}

// TrackOwner resolves the artist owning a track, for access checks.
func (s *MusicService) TrackOwner(ctx context.Context, id int64) (int64, error) {
	track, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		return 0, err
	}
	return track.ArtistID, nil
}

func (s *MusicService) SearchTracks(ctx context.Context, params models.TrackSearchParams) ([]models.Track, error) {
	if err := params.Normalize(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}
	return s.tracks.Search(ctx, params)
}

func (s *MusicService) UpdateTrack(ctx context.Context, upd models.UpdateTrack) (models.Track, error) {
	return s.tracks.Update(ctx, upd)
}

// DeleteTrack removes a track and its audio file. When the track was the
// album's last, the emptied album and its cover are reaped too.
func (s *MusicService) DeleteTrack(ctx context.Context, id int64) error {
	track, err := s.tracks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	if err := s.blobs.DeleteTrack(ctx, track.ArtistID, track.ID); err != nil &&
		!errors.Is(err, shared.ErrMusicFileNotFound) {
		return err
	}
	if err := s.tracks.Delete(ctx, id); err != nil {
		return err
	}

	remaining, err := s.tracks.Search(ctx, models.TrackSearchParams{
		SearchParams: models.SearchParams{Limit: 1},
		AlbumID:      &track.AlbumID,
	})
	if err != nil {
		// The album itself may be mid-delete; nothing left to reap.
		if errors.Is(err, shared.ErrAlbumNotFound) {
			return nil
		}
		return err
	}
	if len(remaining) > 0 {
		return nil
	}

	s.logger.Info("reaping emptied album", "album_id", track.AlbumID)
	if err := s.blobs.DeleteImage(ctx, models.AlbumImage(track.AlbumID)); err != nil &&
		!errors.Is(err, shared.ErrImageFileNotFound) {
		return err
	}
	if err := s.albums.Delete(ctx, track.AlbumID); err != nil &&
		!errors.Is(err, shared.ErrAlbumNotFound) {
		return err
	}
	return nil
}

// --- Audio files ---

// UploadTrackFile stores the audio object for an existing track.
func (s *MusicService) UploadTrackFile(ctx context.Context, trackID int64, data io.Reader, size int64, contentType string) error {
	track, err := s.tracks.GetByID(ctx, trackID)
	if err != nil {
		return err
	}
	return s.blobs.PutTrack(ctx, track.ArtistID, track.ID, data, size, contentType)
}

// planRange resolves a requested byte range against the object size. A nil
// bound means "unspecified". Starts at or past the end fail with
// [shared.ErrInvalidStart]; ends clamp to the object size and to the
// 1 MiB window.
func planRange(start, end *int64, size int64) (int64, int64, error) {
	from := int64(0)
	if start != nil {
		from = *start
	}
	if from < 0 {
		return 0, 0, fmt.Errorf("%w: negative start %d", shared.ErrInvalidInput, from)
	}
	if from >= size {
		return 0, 0, fmt.Errorf("%w: start %d beyond size %d", shared.ErrInvalidStart, from, size)
	}

	to := size - 1
	if end != nil && *end < to {
		to = *end
	}
	if to < from {
		return 0, 0, fmt.Errorf("%w: end %d before start %d", shared.ErrInvalidInput, to, from)
	}
	if window := from + maxStreamWindow - 1; to > window {
		to = window
	}
	return from, to, nil
}

// StreamTrack opens a planned byte-range read over a track's audio file.
func (s *MusicService) StreamTrack(ctx context.Context, trackID int64, start, end *int64) (models.TrackStream, error) {
	track, err := s.tracks.GetByID(ctx, trackID)
	if err != nil {
		return models.TrackStream{}, err
	}

	stat, err := s.blobs.StatTrack(ctx, track.ArtistID, track.ID)
	if err != nil {
		return models.TrackStream{}, err
	}

	from, to, err := planRange(start, end, stat.Size)
	if err != nil {
		return models.TrackStream{}, err
	}

	stream, err := s.blobs.StreamTrack(ctx, track.ArtistID, track.ID, from, to)
	if err != nil {
		return models.TrackStream{}, err
	}

	return models.TrackStream{
		Stream:        stream,
		Start:         from,
		End:           to,
		Size:          stat.Size,
		ContentLength: to - from + 1,
	}, nil
}

// --- Cover images ---

// PutImage stores a cover image after verifying the target exists.
func (s *MusicService) PutImage(ctx context.Context, target models.ImageTarget, data []byte, contentType string) error {
	if err := s.verifyImageTarget(ctx, target); err != nil {
		return err
	}
	return s.blobs.PutImage(ctx, target, data, contentType)
}

// GetImage reads a cover image back.
func (s *MusicService) GetImage(ctx context.Context, target models.ImageTarget) ([]byte, error) {
	return s.blobs.GetImage(ctx, target)
}

// DeleteImage removes a cover image.
func (s *MusicService) DeleteImage(ctx context.Context, target models.ImageTarget) error {
	return s.blobs.DeleteImage(ctx, target)
}

// GetTrackImage resolves a track's image through its album: tracks carry no
// image of their own.
func (s *MusicService) GetTrackImage(ctx context.Context, trackID int64) ([]byte, error) {
	track, err := s.tracks.GetByID(ctx, trackID)
	if err != nil {
		return nil, err
	}
	return s.blobs.GetImage(ctx, models.AlbumImage(track.AlbumID))
}

func (s *MusicService) verifyImageTarget(ctx context.Context, target models.ImageTarget) error {
	switch target.Kind {
	case models.ImageKindAlbum:
		_, err := s.albums.GetByID(ctx, target.ID)
		return err
	case models.ImageKindUser:
		_, err := s.users.GetByID(ctx, target.ID)
		return err
	case models.ImageKindPlaylist:
		_, err := s.playlists.GetByID(ctx, target.ID)
		return err
	}
	return fmt.Errorf("%w: unknown image kind %q", shared.ErrInvalidInput, target.Kind)
}
