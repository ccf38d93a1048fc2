package models

import (
	"time"
)

// Event names the listener actions recorded by the activity log.
type Event string

const (
	EventPlay          Event = "play"
	EventSkip          Event = "skip"
	EventAddToPlaylist Event = "add_to_playlist"
)

// Valid reports whether e is one of the known event names.
func (e Event) Valid() bool {
	switch e {
	case EventPlay, EventSkip, EventAddToPlaylist:
		return true
	}
	return false
}

// Activity is one row of the append-only event log.
type Activity struct {
	ID      int64     `json:"id"`
	UserID  int64     `json:"user_id"`
	TrackID int64     `json:"track_id"`
	Event   Event     `json:"event"`
	Time    time.Time `json:"time"`
}

// NewActivity holds the fields required to append an event.
type NewActivity struct {
	UserID  int64 `json:"user_id"`
	TrackID int64 `json:"track_id"`
	Event   Event `json:"event"`
}

// ActivityFilter conjoins the listed predicates; empty slices and nil times
// match everything.
type ActivityFilter struct {
	IDs       []int64    `json:"ids,omitempty"`
	UserIDs   []int64    `json:"user_ids,omitempty"`
	TrackIDs  []int64    `json:"track_ids,omitempty"`
	Events    []Event    `json:"events,omitempty"`
	StartTime *time.Time `json:"start_time,omitempty"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// TrackPlays is one row of the most-played aggregation.
type TrackPlays struct {
	TrackID int64 `json:"track_id"`
	Plays   int64 `json:"plays"`
}

// DailyActive is one row of the daily-active-users aggregation. Date is the
// UTC calendar day in YYYY-MM-DD form.
type DailyActive struct {
	Date  string `json:"date"`
	Users int64  `json:"users"`
}

// TrackCompletion is one row of the completion-rate aggregation. SkipRate is
// skips divided by plays for the track.
type TrackCompletion struct {
	TrackID  int64   `json:"track_id"`
	Plays    int64   `json:"plays"`
	Skips    int64   `json:"skips"`
	SkipRate float64 `json:"skip_rate"`
}
