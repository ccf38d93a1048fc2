package models

// Queue is the per-user playback queue: an ordered multiset of track ids.
type Queue struct {
	TrackIDs []int64 `json:"track_ids"`
}

// QueueWindow selects a contiguous slice of the queue. Limit zero means
// "through the end".
type QueueWindow struct {
	Offset int64 `json:"offset"`
	Limit  int64 `json:"limit"`
}
