package models

import (
	"time"
)

// Role is the access level carried by a user account and its session tokens.
type Role string

const (
	RoleUser    Role = "user"
	RoleAdmin   Role = "admin"
	RoleAnalyst Role = "analyst"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleAnalyst:
		return true
	}
	return false
}

// User is the public projection of an account. The password hash never
// leaves the repository layer except through [FullUser].
type User struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Username    string    `json:"username"`
	Role        Role      `json:"role"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// FullUser is a [User] together with its bcrypt password hash, used only for
// credential verification during login.
type FullUser struct {
	User
	Password string `json:"-"`
}

// Artist is a user viewed through the album/track ownership relation.
type Artist struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// NewUser holds the fields required to register an account. Password is
// plaintext here; the account service hashes it before it reaches storage.
type NewUser struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Role        Role   `json:"-"`
}

// UpdateUser is a field-level merge over a user row. Nil fields are
// preserved. Role changes ride on the admin-only update path.
type UpdateUser struct {
	ID          int64   `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
	Role        *Role   `json:"role,omitempty"`
}

// Credentials is a login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Session is the response to a successful register or login.
type Session struct {
	Token string `json:"token"`
	Next  string `json:"next"`
}

// UserSearchParams filters user listings.
type UserSearchParams struct {
	SearchParams
	Username           string
	CreatedSearchStart *time.Time
	CreatedSearchEnd   *time.Time
	UpdatedSearchStart *time.Time
	UpdatedSearchEnd   *time.Time
}

// Playlist is a named, user-owned track collection. Every account gets a
// playlist named "fav" at registration time.
type Playlist struct {
	ID        int64     `json:"id"`
	AuthorID  int64     `json:"author_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewPlaylist holds the fields required to create a playlist.
type NewPlaylist struct {
	AuthorID int64  `json:"author_id"`
	Name     string `json:"name"`
}

// UpdatePlaylist is a field-level merge over a playlist row.
type UpdatePlaylist struct {
	ID   int64   `json:"id"`
	Name *string `json:"name,omitempty"`
}

// PlaylistSearchParams filters playlist listings.
type PlaylistSearchParams struct {
	SearchParams
	AuthorID *int64
}

// PlaylistTrack is a playlist membership row; the pair is the primary key.
type PlaylistTrack struct {
	PlaylistID int64 `json:"playlist_id"`
	TrackID    int64 `json:"track_id"`
}

// Subscription is a subscriber → artist edge; the pair is the primary key
// and self-subscriptions are rejected.
type Subscription struct {
	SubscriberID int64 `json:"subscriber_id"`
	ArtistID     int64 `json:"artist_id"`
}

// SubscriberCount is the aggregate returned by the subscriber-count endpoint.
type SubscriberCount struct {
	Count int64 `json:"count"`
}
