// package server contains middleware & handlers for the streaming service HTTP boundary
package server

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/calliope-fm/calliope/internal/services"
	"github.com/calliope-fm/calliope/internal/shared"
)

// Server is the HTTP boundary: it maps requests to DTOs, dispatches to the
// services, and translates domain errors to status codes.
type Server struct {
	router   chi.Router
	logger   *log.Logger
	auth     *services.AuthService
	accounts *services.AccountService
	music    *services.MusicService
	queue    *services.QueueService
	activity *services.ActivityService
}

// New wires the router, middleware and every resource handler.
func New(
	cfg shared.ServerConfig,
	logger *log.Logger,
	auth *services.AuthService,
	accounts *services.AccountService,
	music *services.MusicService,
	queue *services.QueueService,
	activity *services.ActivityService,
) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		auth:     auth,
		accounts: accounts,
		music:    music,
		queue:    queue,
		activity: activity,
	}

	s.router.Use(requestLogger(logger))
	s.router.Use(rateLimit(cfg.RateLimit, cfg.RateBurst))
	s.router.Use(authenticate(auth, logger))
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router

	// Accounts
	r.Post("/user/register/", s.handleRegister)
	r.Post("/user/login/", s.handleLogin)
	r.Get("/user/", s.handleGetUser)
	r.Put("/user/", s.handleUpdateUser)
	r.Put("/user/admin/", s.handleAdminUpdateUser)
	r.Delete("/user/", s.handleDeleteUser)
	r.Get("/users/", s.handleSearchUsers)
	r.Get("/user/artist/", s.handleGetArtist)
	r.Get("/users/artist/", s.handleSearchArtists)
	r.Get("/user/image/", s.handleGetUserImage)
	r.Put("/user/image/", s.handlePutUserImage)
	r.Delete("/user/image/", s.handleDeleteUserImage)

	// Subscriptions
	r.Post("/user/subscribe", s.handleSubscribe)
	r.Post("/user/unsubscribe", s.handleUnsubscribe)
	r.Get("/user/subscriptions", s.handleSubscriptions)
	r.Get("/user/subscribers", s.handleSubscribers)
	r.Get("/user/subscriber-count", s.handleSubscriberCount)

	// Genres
	r.Get("/genre/", s.handleGetGenre)
	r.Post("/genre/", s.handleCreateGenre)
	r.Put("/genre/", s.handleUpdateGenre)
	r.Delete("/genre/", s.handleDeleteGenre)
	r.Get("/genres/", s.handleSearchGenres)

	// Albums
	r.Get("/album/", s.handleGetAlbum)
	r.Post("/album/", s.handleCreateAlbum)
	r.Put("/album/", s.handleUpdateAlbum)
	r.Delete("/album/", s.handleDeleteAlbum)
	r.Get("/albums/", s.handleSearchAlbums)
	r.Get("/album/image/", s.handleGetAlbumImage)
	r.Put("/album/image/", s.handlePutAlbumImage)
	r.Delete("/album/image/", s.handleDeleteAlbumImage)

	// Tracks
	r.Get("/track/", s.handleGetTrack)
	r.Post("/track/", s.handleCreateTrack)
	r.Put("/track/", s.handleUpdateTrack)
	r.Delete("/track/", s.handleDeleteTrack)
	r.Get("/tracks/", s.handleSearchTracks)
	r.Get("/tracks/by_album", s.handleTracksByAlbum)
	r.Get("/tracks/by_artist", s.handleTracksByArtist)
	r.Post("/track/single/", s.handleCreateSingle)
	r.Put("/track/file/", s.handlePutTrackFile)
	r.Get("/track/stream/", s.handleStreamTrack)
	r.Get("/track/image/", s.handleGetTrackImage)
	r.Put("/track/image/", s.handlePutTrackImage)
	r.Delete("/track/image/", s.handleDeleteTrackImage)

	// Playlists
	r.Get("/playlist/", s.handleGetPlaylist)
	r.Post("/playlist/", s.handleCreatePlaylist)
	r.Put("/playlist/", s.handleUpdatePlaylist)
	r.Delete("/playlist/", s.handleDeletePlaylist)
	r.Get("/playlists/", s.handleSearchPlaylists)
	r.Get("/playlist/track/", s.handlePlaylistTracks)
	r.Post("/playlist/track/", s.handleAddPlaylistTrack)
	r.Delete("/playlist/track/", s.handleRemovePlaylistTrack)
	r.Get("/playlist/image/", s.handleGetPlaylistImage)
	r.Put("/playlist/image/", s.handlePutPlaylistImage)
	r.Delete("/playlist/image/", s.handleDeletePlaylistImage)

	// Playback queue
	r.Post("/track_queue/left", s.handleQueuePushLeft)
	r.Post("/track_queue/right", s.handleQueuePushRight)
	r.Get("/track_queue/", s.handleQueueList)
	r.Delete("/track_queue/", s.handleQueueDelete)
	r.Patch("/track_queue/insert", s.handleQueueInsert)
	r.Patch("/track_queue/move", s.handleQueueMove)
	r.Patch("/track_queue/remove", s.handleQueueRemove)

	// Activity log
	r.Post("/user_activity/", s.handleRecordActivity)
	r.Get("/user_activity/{id}", s.handleGetActivity)
	r.Post("/user_activity/list", s.handleListActivity)
	r.Post("/user_activity/delete", s.handleDeleteActivity)
	r.Get("/user_activity/report/most-played", s.handleMostPlayed)
	r.Get("/user_activity/report/daily-active", s.handleDailyActive)
	r.Get("/user_activity/report/completion", s.handleCompletionRates)
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// requireIdentity rejects anonymous requests.
func requireIdentity(r *http.Request) (services.Identity, error) {
	id, ok := identityFrom(r.Context())
	if !ok {
		return services.Identity{}, fmt.Errorf("%w: authentication required", shared.ErrUnauthorized)
	}
	return id, nil
}

// queryID parses a required int64 query parameter.
func queryID(r *http.Request, name string) (int64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, fmt.Errorf("missing %s", name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed %s %q", shared.ErrInvalidInput, name, raw)
	}
	return v, nil
}

// queryIDDefault parses an optional int64 query parameter, falling back when absent.
func queryIDDefault(r *http.Request, name string, fallback int64) (int64, error) {
	if r.URL.Query().Get(name) == "" {
		return fallback, nil
	}
	return queryID(r, name)
}

// queryInt parses an optional int query parameter.
func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed %s %q", shared.ErrInvalidInput, name, raw)
	}
	return v, nil
}

// queryFloat parses an optional float query parameter.
func queryFloat(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: malformed %s %q", shared.ErrInvalidInput, name, raw)
	}
	return v, nil
}

// queryTime parses an optional RFC 3339 query parameter.
func queryTime(r *http.Request, name string) (*time.Time, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed %s %q", shared.ErrInvalidInput, name, raw)
	}
	return &t, nil
}
