package shared

import "errors"

// Sentinel errors for the domain. Call sites wrap these with the offending
// id via fmt.Errorf("%w: ...", err) and the HTTP boundary maps them to
// status codes with errors.Is.
var (
	// Not-found family → 404
	ErrUserNotFound          = errors.New("user not found")
	ErrAlbumNotFound         = errors.New("album not found")
	ErrTrackNotFound         = errors.New("track not found")
	ErrGenreNotFound         = errors.New("genre not found")
	ErrPlaylistNotFound      = errors.New("playlist not found")
	ErrPlaylistTrackNotFound = errors.New("playlist track not found")
	ErrSubscriptionNotFound  = errors.New("subscription not found")
	ErrMusicFileNotFound     = errors.New("music file not found")
	ErrImageFileNotFound     = errors.New("image file not found")
	ErrQueueNotFound         = errors.New("track queue not found")
	ErrActivityNotFound      = errors.New("user activity not found")
	ErrEventNotFound         = errors.New("unknown event name")

	// Conflict family → 400
	ErrUserAlreadyExists          = errors.New("user already exists")
	ErrGenreNameAlreadyExists     = errors.New("genre name already exists")
	ErrSubscriptionAlreadyExists  = errors.New("subscription already exists")
	ErrPlaylistTrackAlreadyExists = errors.New("track already in playlist")

	// Request validation
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidStart = errors.New("range start beyond end of file")

	// Auth
	ErrUnauthorized = errors.New("invalid or missing token")
	ErrForbidden    = errors.New("forbidden")
)
