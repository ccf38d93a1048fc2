package server

import (
	"context"
	"net/http"

	"github.com/calliope-fm/calliope/internal/models"
)

// The playback queue is strictly per-user: every handler acts on the
// caller's own queue.

type queuePushRequest struct {
	TrackID int64 `json:"track_id"`
}

type queueInsertRequest struct {
	TrackID  int64 `json:"track_id"`
	Position int64 `json:"position"`
}

type queueMoveRequest struct {
	Src  int64 `json:"src"`
	Dest int64 `json:"dest"`
}

type queueRemoveRequest struct {
	Position int64 `json:"position"`
}

func (s *Server) handleQueuePushLeft(w http.ResponseWriter, r *http.Request) {
	s.queuePush(w, r, s.queue.PushLeft)
}

func (s *Server) handleQueuePushRight(w http.ResponseWriter, r *http.Request) {
	s.queuePush(w, r, s.queue.PushRight)
}

func (s *Server) queuePush(w http.ResponseWriter, r *http.Request, push func(ctx context.Context, userID, trackID int64) error) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body queuePushRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.TrackID == 0 {
		unprocessable(w, "track_id is required")
		return
	}

	if err := push(r.Context(), id.UserID, body.TrackID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleQueueList(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	offset, err := queryIDDefault(r, "offset", 0)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	limit, err := queryIDDefault(r, "limit", 0)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	queue, err := s.queue.List(r.Context(), id.UserID, models.QueueWindow{Offset: offset, Limit: limit})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, queue)
}

func (s *Server) handleQueueInsert(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body queueInsertRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.TrackID == 0 {
		unprocessable(w, "track_id is required")
		return
	}

	if err := s.queue.Insert(r.Context(), id.UserID, body.TrackID, body.Position); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueMove(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body queueMoveRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	if err := s.queue.Move(r.Context(), id.UserID, body.Src, body.Dest); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueRemove(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body queueRemoveRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	if err := s.queue.Remove(r.Context(), id.UserID, body.Position); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleQueueDelete(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.queue.Delete(r.Context(), id.UserID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
