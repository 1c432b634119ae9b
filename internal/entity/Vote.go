package entity

import "time"

type Vote struct {
	ID        int64
	UserID    int64
	PollID    int64
	OptionKey string
	CreatedAt time.Time
}

// RequiredChannel is a mandatory channel the user has not joined yet,
// resolved for display: a human-readable title and a join reference.
// JoinURL may be empty when the channel info could not be resolved.
type RequiredChannel struct {
	Title   string
	JoinURL string
}
