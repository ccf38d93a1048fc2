package server

import (
	"context"
	"net/http"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/services"
)

func (s *Server) playlistOwner(playlistID int64) services.OwnerLookup {
	return func(ctx context.Context) (int64, error) {
		return s.accounts.PlaylistOwner(ctx, playlistID)
	}
}

func (s *Server) handleGetPlaylist(w http.ResponseWriter, r *http.Request) {
	playlistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	playlist, err := s.accounts.GetPlaylist(r.Context(), playlistID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleSearchPlaylists(w http.ResponseWriter, r *http.Request) {
	base, err := searchParamsFrom(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	params := models.PlaylistSearchParams{SearchParams: base}
	if r.URL.Query().Get("author_id") != "" {
		authorID, err := queryID(r, "author_id")
		if err != nil {
			respondError(w, s.logger, err)
			return
		}
		params.AuthorID = &authorID
	}

	playlists, err := s.accounts.SearchPlaylists(r.Context(), params)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, playlists)
}

func (s *Server) handleCreatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.NewPlaylist
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.Name == "" {
		unprocessable(w, "name is required")
		return
	}
	// Playlists are always created under the caller.
	body.AuthorID = id.UserID

	playlist, err := s.accounts.CreatePlaylist(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, playlist)
}

func (s *Server) handleUpdatePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.UpdatePlaylist
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ID == 0 {
		unprocessable(w, "id is required")
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.playlistOwner(body.ID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	playlist, err := s.accounts.UpdatePlaylist(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, playlist)
}

func (s *Server) handleDeletePlaylist(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	playlistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.playlistOwner(playlistID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.accounts.DeletePlaylist(r.Context(), playlistID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handlePlaylistTracks(w http.ResponseWriter, r *http.Request) {
	playlistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	tracks, err := s.accounts.PlaylistTracks(r.Context(), playlistID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, tracks)
}

func (s *Server) handleAddPlaylistTrack(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.PlaylistTrack
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.PlaylistID == 0 || body.TrackID == 0 {
		unprocessable(w, "playlist_id and track_id are required")
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.playlistOwner(body.PlaylistID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	pt, err := s.accounts.AddPlaylistTrack(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, pt)
}

func (s *Server) handleRemovePlaylistTrack(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.PlaylistTrack
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.PlaylistID == 0 || body.TrackID == 0 {
		unprocessable(w, "playlist_id and track_id are required")
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.playlistOwner(body.PlaylistID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.accounts.RemovePlaylistTrack(r.Context(), body); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPlaylistImage(w http.ResponseWriter, r *http.Request) {
	playlistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	s.serveImage(w, r, models.PlaylistImage(playlistID))
}

func (s *Server) handlePutPlaylistImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	playlistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.playlistOwner(playlistID)); err != nil {
		respondError(w, s.logger, err)
		return
	}
	s.storeImage(w, r, models.PlaylistImage(playlistID))
}

func (s *Server) handleDeletePlaylistImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	playlistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	if err := services.OwnerOrAdminIndirect(r.Context(), id, s.playlistOwner(playlistID)); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.music.DeleteImage(r.Context(), models.PlaylistImage(playlistID)); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
