package domain

import "time"

// Event is one calendar occurrence imported from a Source.
// (SourceID, UID) identifies it; Start and End are always UTC.
type Event struct {
	ID          int64
	SourceID    int64
	UID         string
	Summary     string
	Description string
	Location    string
	Start       time.Time
	End         *time.Time
	Raw         string // original VEVENT text, diagnostics only
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasEnd returns true if the event carries an end timestamp
func (e *Event) HasEnd() bool {
	return e.End != nil && !e.End.IsZero()
}
