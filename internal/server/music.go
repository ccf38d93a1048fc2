package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/services"
)

// maxAudioBytes caps audio uploads at 100 MiB.
const maxAudioBytes = 100 << 20

// streamCopyChunk is the buffer size of the streaming copy loop.
const streamCopyChunk = 8 << 10

// --- Genres ---

func (s *Server) handleGetGenre(w http.ResponseWriter, r *http.Request) {
	genreID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	genre, err := s.music.GetGenre(r.Context(), genreID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, genre)
}

func (s *Server) handleSearchGenres(w http.ResponseWriter, r *http.Request) {
	base, err := searchParamsFrom(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	genres, err := s.music.SearchGenres(r.Context(), models.GenreSearchParams{SearchParams: base})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, genres)
}

func (s *Server) handleCreateGenre(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.AdminOnly(id); err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.NewGenre
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.Name == "" {
		unprocessable(w, "name is required")
		return
	}

	genre, err := s.music.CreateGenre(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, genre)
}

func (s *Server) handleUpdateGenre(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.AdminOnly(id); err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.UpdateGenre
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ID == 0 {
		unprocessable(w, "id is required")
		return
	}

	genre, err := s.music.UpdateGenre(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, genre)
}

func (s *Server) handleDeleteGenre(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.AdminOnly(id); err != nil {
		respondError(w, s.logger, err)
		return
	}
	genreID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}

	if err := s.music.DeleteGenre(r.Context(), genreID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Albums ---

func (s *Server) handleGetAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	album, err := s.music.GetAlbum(r.Context(), albumID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, album)
}

func (s *Server) handleSearchAlbums(w http.ResponseWriter, r *http.Request) {
	base, err := searchParamsFrom(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	params := models.AlbumSearchParams{SearchParams: base}
	if r.URL.Query().Get("artist_id") != "" {
		artistID, err := queryID(r, "artist_id")
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		params.ArtistID = &artistID
	}
	if params.ReleaseSearchStart, err = queryTime(r, "released_after"); err != nil {
		respondError(w, s.logger, err)
		return
	}
	if params.ReleaseSearchEnd, err = queryTime(r, "released_before"); err != nil {
		respondError(w, s.logger, err)
		return
	}

	albums, err := s.music.SearchAlbums(r.Context(), params)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, albums)
}

func (s *Server) handleCreateAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.NewAlbum
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.Name == "" {
		unprocessable(w, "name is required")
		return
	}
	if body.ArtistID == 0 {
		body.ArtistID = id.UserID
	}
	if err := services.OwnerOrAdmin(id, body.ArtistID); err != nil {
		respondError(w, s.logger, err)
		return
	}

	album, err := s.music.CreateAlbum(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, album)
}

func (s *Server) handleUpdateAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.UpdateAlbum
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ID == 0 {
		unprocessable(w, "id is required")
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.albumOwner(body.ID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	album, err := s.music.UpdateAlbum(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, album)
}

func (s *Server) handleDeleteAlbum(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	albumID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.albumOwner(albumID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.music.DeleteAlbum(r.Context(), albumID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) albumOwner(albumID int64) services.OwnerLookup {
	return func(ctx context.Context) (int64, error) {
		return s.music.AlbumOwner(ctx, albumID)
	}
}

func (s *Server) handleGetAlbumImage(w http.ResponseWriter, r *http.Request) {
	albumID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	s.serveImage(w, r, models.AlbumImage(albumID))
}

func (s *Server) handlePutAlbumImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	albumID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.albumOwner(albumID)); err != nil {
		respondError(w, s.logger, err)
		return
	}
	s.storeImage(w, r, models.AlbumImage(albumID))
}

func (s *Server) handleDeleteAlbumImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	albumID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.albumOwner(albumID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.music.DeleteImage(r.Context(), models.AlbumImage(albumID)); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Tracks ---

func (s *Server) handleGetTrack(w http.ResponseWriter, r *http.Request) {
	trackID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	track, err := s.music.GetTrack(r.Context(), trackID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, track)
}

func (s *Server) handleSearchTracks(w http.ResponseWriter, r *http.Request) {
	params, err := s.trackSearchParams(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	tracks, err := s.music.SearchTracks(r.Context(), params)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleTracksByAlbum(w http.ResponseWriter, r *http.Request) {
	albumID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	base, err := searchParamsFrom(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	tracks, err := s.music.SearchTracks(r.Context(), models.TrackSearchParams{
		SearchParams: base,
		AlbumID:      &albumID,
	})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleTracksByArtist(w http.ResponseWriter, r *http.Request) {
	artistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	base, err := searchParamsFrom(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	tracks, err := s.music.SearchTracks(r.Context(), models.TrackSearchParams{
		SearchParams: base,
		ArtistID:     &artistID,
	})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) trackSearchParams(r *http.Request) (models.TrackSearchParams, error) {
	base, err := searchParamsFrom(r)
	if err != nil {
		return models.TrackSearchParams{}, err
	}
	params := models.TrackSearchParams{SearchParams: base}

	for _, f := range []struct {
		name string
		dst  **int64
	}{
		{"artist_id", &params.ArtistID},
		{"album_id", &params.AlbumID},
		{"genre_id", &params.GenreID},
	} {
		if r.URL.Query().Get(f.name) == "" {
			continue
		}
		v, err := queryID(r, f.name)
		if err != nil {
			return models.TrackSearchParams{}, err
		}
		*f.dst = &v
	}
	if params.ReleaseSearchStart, err = queryTime(r, "released_after"); err != nil {
		return models.TrackSearchParams{}, err
	}
	if params.ReleaseSearchEnd, err = queryTime(r, "released_before"); err != nil {
		return models.TrackSearchParams{}, err
	}
	return params, nil
}

func (s *Server) handleCreateTrack(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.NewTrack
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.Name == "" || body.AlbumID == 0 {
		unprocessable(w, "name and album_id are required")
		return
	}
	if body.ArtistID == 0 {
		body.ArtistID = id.UserID
	}
	if err := services.OwnerOrAdmin(id, body.ArtistID); err != nil {
		respondError(w, s.logger, err)
		return
	}

	track, err := s.music.CreateTrack(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, track)
}

func (s *Server) handleCreateSingle(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.NewSingle
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.Name == "" {
		unprocessable(w, "name is required")
		return
	}
	if body.ArtistID == 0 {
		body.ArtistID = id.UserID
	}
	if err := services.OwnerOrAdmin(id, body.ArtistID); err != nil {
		respondError(w, s.logger, err)
		return
	}

	track, err := s.music.CreateSingle(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, track)
}

func (s *Server) trackOwner(trackID int64) services.OwnerLookup {
	return func(ctx context.Context) (int64, error) {
		return s.music.TrackOwner(ctx, trackID)
	}
}

func (s *Server) handleUpdateTrack(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.UpdateTrack
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ID == 0 {
		unprocessable(w, "id is required")
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.trackOwner(body.ID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	track, err := s.music.UpdateTrack(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, track)
}

func (s *Server) handleDeleteTrack(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	trackID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.trackOwner(trackID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.music.DeleteTrack(r.Context(), trackID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Audio upload and streaming ---

func (s *Server) handlePutTrackFile(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	trackID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.trackOwner(trackID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}
	body := http.MaxBytesReader(w, r.Body, maxAudioBytes)
	if err := s.music.UploadTrackFile(r.Context(), trackID, body, r.ContentLength, contentType); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStreamTrack(w http.ResponseWriter, r *http.Request) {
	trackID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	start, end, err := parseRange(r.Header.Get("Range"))
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	stream, err := s.music.StreamTrack(r.Context(), trackID, start, end)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	defer stream.Stream.Close()

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", stream.Start, stream.End, stream.Size))
	w.Header().Set("Content-Length", strconv.FormatInt(stream.ContentLength, 10))
	w.WriteHeader(http.StatusPartialContent)

	buf := make([]byte, streamCopyChunk)
	if _, err := io.CopyBuffer(w, io.LimitReader(stream.Stream, stream.ContentLength), buf); err != nil {
		// The client walked away mid-stream; nothing to clean up.
		s.logger.Debug("stream aborted", "track_id", trackID, "error", err)
	}
}

// --- Track images (alias for the owning album's cover) ---

func (s *Server) handleGetTrackImage(w http.ResponseWriter, r *http.Request) {
	trackID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}

	data, err := s.music.GetTrackImage(r.Context(), trackID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

func (s *Server) handlePutTrackImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	trackID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.trackOwner(trackID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	track, err := s.music.GetTrack(r.Context(), trackID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	s.storeImage(w, r, models.AlbumImage(track.AlbumID))
}

func (s *Server) handleDeleteTrackImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	trackID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.trackOwner(trackID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	track, err := s.music.GetTrack(r.Context(), trackID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := s.music.DeleteImage(r.Context(), models.AlbumImage(track.AlbumID)); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
