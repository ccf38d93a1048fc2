package server

import (
	"io"
	"net/http"

	"github.com/calliope-fm/calliope/internal/models"
	"github.com/calliope-fm/calliope/internal/services"
)

// maxImageBytes caps cover and profile image uploads at 5 MiB.
const maxImageBytes = 5 << 20

// searchParamsFrom reads the base search filters shared by every listing
// endpoint: name, skip, limit, threshold.
func searchParamsFrom(r *http.Request) (models.SearchParams, error) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		return models.SearchParams{}, err
	}
	limit, err := queryInt(r, "limit", 0)
	if err != nil {
		return models.SearchParams{}, err
	}
	threshold, err := queryFloat(r, "threshold", models.DefaultThreshold)
	if err != nil {
		return models.SearchParams{}, err
	}
	return models.SearchParams{
		Name:      r.URL.Query().Get("name"),
		Skip:      skip,
		Limit:     limit,
		Threshold: threshold,
	}, nil
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var body models.NewUser
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.Username == "" || body.Password == "" || body.Name == "" {
		unprocessable(w, "name, username and password are required")
		return
	}

	session, err := s.accounts.Register(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, session)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body models.Credentials
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.Username == "" || body.Password == "" {
		unprocessable(w, "username and password are required")
		return
	}

	session, err := s.accounts.Login(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, session)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	userID, err := queryIDDefault(r, "id", id.UserID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.OwnerOrAdmin(id, userID); err != nil {
		respondError(w, s.logger, err)
		return
	}

	user, err := s.accounts.GetUser(r.Context(), userID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) {
	base, err := searchParamsFrom(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	params := models.UserSearchParams{
		SearchParams: base,
		Username:     r.URL.Query().Get("username"),
	}
	if params.CreatedSearchStart, err = queryTime(r, "created_after"); err != nil {
		respondError(w, s.logger, err)
		return
	}
	if params.CreatedSearchEnd, err = queryTime(r, "created_before"); err != nil {
		respondError(w, s.logger, err)
		return
	}
	if params.UpdatedSearchStart, err = queryTime(r, "updated_after"); err != nil {
		respondError(w, s.logger, err)
		return
	}
	if params.UpdatedSearchEnd, err = queryTime(r, "updated_before"); err != nil {
		respondError(w, s.logger, err)
		return
	}

	users, err := s.accounts.SearchUsers(r.Context(), params)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.UpdateUser
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ID == 0 {
		body.ID = id.UserID
	}
	if err := services.OwnerOrAdmin(id, body.ID); err != nil {
		respondError(w, s.logger, err)
		return
	}

	user, err := s.accounts.UpdateUser(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleAdminUpdateUser(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.AdminOnly(id); err != nil {
		respondError(w, s.logger, err)
		return
	}

	var body models.UpdateUser
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ID == 0 {
		unprocessable(w, "id is required")
		return
	}

	user, err := s.accounts.AdminUpdateUser(r.Context(), body)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, user)
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	userID, err := queryIDDefault(r, "id", id.UserID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.OwnerOrAdmin(id, userID); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.accounts.DeleteUser(r.Context(), userID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetArtist(w http.ResponseWriter, r *http.Request) {
	artistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}

	user, err := s.accounts.GetUser(r.Context(), artistID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, models.Artist{
		ID:          user.ID,
		Name:        user.Name,
		Description: user.Description,
	})
}

func (s *Server) handleSearchArtists(w http.ResponseWriter, r *http.Request) {
	base, err := searchParamsFrom(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	artists, err := s.music.SearchArtists(r.Context(), models.ArtistSearchParams{SearchParams: base})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, artists)
}

// --- Profile images ---

func (s *Server) handleGetUserImage(w http.ResponseWriter, r *http.Request) {
	userID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}
	s.serveImage(w, r, models.UserImage(userID))
}

func (s *Server) handlePutUserImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	userID, err := queryIDDefault(r, "id", id.UserID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.OwnerOrAdmin(id, userID); err != nil {
		respondError(w, s.logger, err)
		return
	}
	s.storeImage(w, r, models.UserImage(userID))
}

func (s *Server) handleDeleteUserImage(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	userID, err := queryIDDefault(r, "id", id.UserID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	if err := services.OwnerOrAdmin(id, userID); err != nil {
		respondError(w, s.logger, err)
		return
	}

	if err := s.music.DeleteImage(r.Context(), models.UserImage(userID)); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// serveImage streams a stored cover image back to the client.
func (s *Server) serveImage(w http.ResponseWriter, r *http.Request, target models.ImageTarget) {
	data, err := s.music.GetImage(r.Context(), target)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(data)
}

// storeImage reads the request body as image bytes and stores them for the target.
func (s *Server) storeImage(w http.ResponseWriter, r *http.Request, target models.ImageTarget) {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	if err != nil {
		badRequest(w, "failed to read image body")
		return
	}
	if len(data) == 0 {
		unprocessable(w, "image body is required")
		return
	}

	contentType := r.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	if err := s.music.PutImage(r.Context(), target, data, contentType); err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- Subscriptions ---

type subscribeRequest struct {
	ArtistID int64 `json:"artist_id"`
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	var body subscribeRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ArtistID == 0 {
		unprocessable(w, "artist_id is required")
		return
	}

	err = s.accounts.Subscribe(r.Context(), models.Subscription{
		SubscriberID: id.UserID,
		ArtistID:     body.ArtistID,
	})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	var body subscribeRequest
	if err := decodeJSON(r, &body); err != nil {
		badRequest(w, "malformed request body")
		return
	}
	if body.ArtistID == 0 {
		unprocessable(w, "artist_id is required")
		return
	}

	err = s.accounts.Unsubscribe(r.Context(), models.Subscription{
		SubscriberID: id.UserID,
		ArtistID:     body.ArtistID,
	})
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubscriptions(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", models.DefaultLimit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	users, err := s.accounts.Subscriptions(r.Context(), id.UserID, skip, limit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleSubscribers(w http.ResponseWriter, r *http.Request) {
	id, err := requireIdentity(r)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	artistID, err := queryIDDefault(r, "id", id.UserID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	skip, err := queryInt(r, "skip", 0)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	limit, err := queryInt(r, "limit", models.DefaultLimit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}

	users, err := s.accounts.Subscribers(r.Context(), artistID, skip, limit)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, users)
}

func (s *Server) handleSubscriberCount(w http.ResponseWriter, r *http.Request) {
	artistID, err := queryID(r, "id")
	if err != nil {
		unprocessable(w, err.Error())
		return
	}

	count, err := s.accounts.SubscriberCount(r.Context(), artistID)
	if err != nil {
		respondError(w, s.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, count)
}
