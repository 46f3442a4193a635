package domain

import "time"

// DefaultSourceLabel is used when a source is registered without a label
const DefaultSourceLabel = "My calendar"

// Source is a remote calendar feed registered by a user
type Source struct {
	ID           int64
	UserID       int64
	URL          string
	Label        string
	LastSyncedAt *time.Time // nil until the first successful sync
	CreatedAt    time.Time
}

// NeverSynced returns true if the source has not completed a sync yet
func (s *Source) NeverSynced() bool {
	return s.LastSyncedAt == nil
}
