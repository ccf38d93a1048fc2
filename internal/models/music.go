package models

import (
	"fmt"
	"io"
	"time"
)

// Genre is a catalog genre with a globally unique, case-sensitive name.
type Genre struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewGenre holds the fields required to create a genre.
type NewGenre struct {
	Name string `json:"name"`
}

// UpdateGenre is a field-level merge over a genre row.
type UpdateGenre struct {
	ID   int64   `json:"id"`
	Name *string `json:"name,omitempty"`
}

// Album groups tracks under an artist. An album with no remaining tracks is
// removed by the track-deletion path.
type Album struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	ArtistID    int64     `json:"artist_id"`
	ReleaseDate time.Time `json:"release_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewAlbum holds the fields required to create an album.
type NewAlbum struct {
	Name        string    `json:"name"`
	ArtistID    int64     `json:"artist_id"`
	ReleaseDate time.Time `json:"release_date"`
}

// UpdateAlbum is a field-level merge over an album row.
type UpdateAlbum struct {
	ID          int64      `json:"id"`
	Name        *string    `json:"name,omitempty"`
	ArtistID    *int64     `json:"artist_id,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
}

// Track is a single audio recording. GenreID is a weak reference: deleting
// the genre nulls it out rather than cascading.
type Track struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	AlbumID     int64     `json:"album_id"`
	ArtistID    int64     `json:"artist_id"`
	GenreID     *int64    `json:"genre_id,omitempty"`
	ReleaseDate time.Time `json:"release_date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTrack holds the fields required to create a track under an existing album.
type NewTrack struct {
	Name        string    `json:"name"`
	AlbumID     int64     `json:"album_id"`
	ArtistID    int64     `json:"artist_id"`
	GenreID     *int64    `json:"genre_id,omitempty"`
	ReleaseDate time.Time `json:"release_date"`
}

// NewSingle creates an album and its only track atomically. The album takes
// the single's name, artist and release date.
type NewSingle struct {
	Name        string    `json:"name"`
	ArtistID    int64     `json:"artist_id"`
	GenreID     *int64    `json:"genre_id,omitempty"`
	ReleaseDate time.Time `json:"release_date"`
}

// UpdateTrack is a field-level merge over a track row.
type UpdateTrack struct {
	ID          int64      `json:"id"`
	Name        *string    `json:"name,omitempty"`
	AlbumID     *int64     `json:"album_id,omitempty"`
	ArtistID    *int64     `json:"artist_id,omitempty"`
	GenreID     *int64     `json:"genre_id,omitempty"`
	ReleaseDate *time.Time `json:"release_date,omitempty"`
}

// SearchParams is the base filter shared by all catalog searches. Name is a
// trigram-similarity filter: rows score at least Threshold and results come
// back ordered by descending similarity.
type SearchParams struct {
	Name      string
	Skip      int
	Limit     int
	Threshold float64
}

// DefaultThreshold is the trigram similarity cutoff applied when a search
// does not specify one.
const DefaultThreshold = 0.3

// DefaultLimit caps result pages; requests asking for more are clamped.
const DefaultLimit = 100

// Normalize validates pagination and threshold bounds, applying defaults for
// unset values. Limit outside [1, DefaultLimit] falls back to DefaultLimit.
func (p *SearchParams) Normalize() error {
	if p.Skip < 0 {
		return fmt.Errorf("negative skip %d", p.Skip)
	}
	if p.Threshold < 0 || p.Threshold > 1 {
		return fmt.Errorf("threshold %v outside [0, 1]", p.Threshold)
	}
	if p.Limit < 1 || p.Limit > DefaultLimit {
		p.Limit = DefaultLimit
	}
	return nil
}

// GenreSearchParams filters genre listings.
type GenreSearchParams struct {
	SearchParams
}

// ArtistSearchParams filters the artist projection of users.
type ArtistSearchParams struct {
	SearchParams
}

// AlbumSearchParams filters album listings.
type AlbumSearchParams struct {
	SearchParams
	ArtistID           *int64
	ReleaseSearchStart *time.Time
	ReleaseSearchEnd   *time.Time
}

// TrackSearchParams filters track listings.
type TrackSearchParams struct {
	SearchParams
	ArtistID           *int64
	AlbumID            *int64
	GenreID            *int64
	ReleaseSearchStart *time.Time
	ReleaseSearchEnd   *time.Time
}

// FileStat describes a stored audio object.
type FileStat struct {
	Size int64
}

// TrackStream is a planned byte-range read over a track's audio object.
// Stream yields at most ContentLength bytes; the caller owns Close.
type TrackStream struct {
	Stream        io.ReadCloser
	Start         int64
	End           int64
	Size          int64
	ContentLength int64
}

// ImageKind tags the owner type of a cover image and doubles as the bucket
// path prefix for that owner.
type ImageKind string

const (
	ImageKindAlbum    ImageKind = "albums"
	ImageKindUser     ImageKind = "user"
	ImageKindPlaylist ImageKind = "playlist"
)

// ImageTarget identifies a cover image by owner kind and owner id. Tracks do
// not appear here: a track's image is its album's image.
type ImageTarget struct {
	Kind ImageKind
	ID   int64
}

// AlbumImage returns the image target for an album cover.
func AlbumImage(id int64) ImageTarget { return ImageTarget{Kind: ImageKindAlbum, ID: id} }

// UserImage returns the image target for a profile image.
func UserImage(id int64) ImageTarget { return ImageTarget{Kind: ImageKindUser, ID: id} }

// PlaylistImage returns the image target for a playlist cover.
func PlaylistImage(id int64) ImageTarget { return ImageTarget{Kind: ImageKindPlaylist, ID: id} }

// Path derives the object key for the target inside the cover bucket.
func (t ImageTarget) Path() string {
	return fmt.Sprintf("%s/%d", t.Kind, t.ID)
}
