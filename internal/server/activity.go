package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/services"
	"github.com/calliope-fm/calliope/internal/shared"
)

// reportDefaultWindow is the lookback applied when a report omits its start.
const reportDefaultWindow = 30 * 24 * time.Hour

type recordActivityRequest struct {
	TrackID int64        `json:"track_id"`
	Event   models.Event `json:"event"`
}

type listActivityRequest struct {
	models.ActivityFilter
	Skip  int64 `json:"skip"`
	Limit int64 `json:"limit"`
}

type deletedActivity struct {
	Deleted int64 `json:"deleted"`
}

func (s *Server) handleRecordActivity(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body recordActivityRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.TrackID == 0 || body.Event == "" {
		unprocessable(w, "track_id and event are required")
		return
	}

	// Events are always recorded against the caller.
	activity, err := s.activity.Record(r.Context(), models.NewActivity{
		UserID:  id.UserID,
		TrackID: body.TrackID,
		Event:   body.Event,
	})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, activity)
}

func (s *Server) handleGetActivity(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.AnalystOrAdmin(id); err != nil {
		respondError(w, s.logger, err)
		return
	}

	raw := chi.URLParam(r, "id")
	activityID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		respondError(w, s.logger, shared.ErrInvalidInput)
		return
	}

	activity, err := s.activity.Get(r.Context(), activityID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, activity)
}

func (s *Server) handleListActivity(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.AnalystOrAdmin(id); err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body listActivityRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	activities, err := s.activity.List(r.Context(), body.ActivityFilter, body.Skip, body.Limit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, activities)
}

func (s *Server) handleDeleteActivity(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.AdminOnly(id); err != nil {
		respondError(w, s.logger, err)
		return
	}

	var filter models.ActivityFilter
	if err := decodeJSON(r, &filter); err != nil {
		badRequest(w, "malformed request body")
		return
	}

	deleted, err := s.activity.Delete(r.Context(), filter)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, deletedActivity{Deleted: deleted})
}

// reportWindow parses start/end query parameters, defaulting to the last
// thirty days ending now.
func reportWindow(r *http.Request) (time.Time, time.Time, error) {
	end := time.Now()
	start := end.Add(-reportDefaultWindow)

	if t, err := queryTime(r, "start"); err != nil {
		return time.Time{}, time.Time{}, err
	} else if t != nil {
		start = *t
	}
	if t, err := queryTime(r, "end"); err != nil {
		return time.Time{}, time.Time{}, err
	} else if t != nil {
		end = *t
	}
	return start, end, nil
}

func (s *Server) reportAccess(r *http.Request) error {
	id, err := requireIdentity(r)
	if err != nil {
		return err
	}
	return services.AnalystOrAdmin(id)
}

func (s *Server) handleMostPlayed(w http.ResponseWriter, r *http.Request) {
	if err := s.reportAccess(r); err != nil {
		respondError(w, s.logger, err)
		return
	}

	start, end, err := reportWindow(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	limit, err := queryIDDefault(r, "limit", models.DefaultLimit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	rows, err := s.activity.MostPlayedTracks(r.Context(), start, end, limit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleDailyActive(w http.ResponseWriter, r *http.Request) {
	if err := s.reportAccess(r); err != nil {
		respondError(w, s.logger, err)
		return
	}

	start, end, err := reportWindow(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	rows, err := s.activity.DailyActiveUsers(r.Context(), start, end)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

func (s *Server) handleCompletionRates(w http.ResponseWriter, r *http.Request) {
	if err := s.reportAccess(r); err != nil {
		respondError(w, s.logger, err)
		return
	}

	start, end, err := reportWindow(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	limit, err := queryIDDefault(r, "limit", models.DefaultLimit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	rows, err := s.activity.TrackCompletionRates(r.Context(), start, end, limit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}
