package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tazhate/agendasync/internal/domain"
)

// Tx is a storage session scoped to one transaction. Event writes exist
// only here, so every write to events goes through a sync transaction.
type Tx struct {
	tx      *sql.Tx
	dialect dialect
}

func (t *Tx) q(query string) string {
	return rebind(t.dialect, query)
}

// === Calendar Events ===

const eventColumns = `id, source_id, uid, summary, description, location, start_time, end_time, raw, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (*domain.Event, error) {
	e := &domain.Event{}
	if err := row.Scan(&e.ID, &e.SourceID, &e.UID, &e.Summary, &e.Description, &e.Location,
		&e.Start, &e.End, &e.Raw, &e.CreatedAt, &e.UpdatedAt); err != nil {
		return nil, err
	}
	e.Start = e.Start.UTC()
	if e.End != nil {
		end := e.End.UTC()
		e.End = &end
	}
	return e, nil
}

// GetEventByUID returns the event identified by (sourceID, uid), or nil
func (t *Tx) GetEventByUID(ctx context.Context, sourceID int64, uid string) (*domain.Event, error) {
	e, err := scanEvent(t.tx.QueryRowContext(ctx,
		t.q(`SELECT `+eventColumns+` FROM events WHERE source_id = ? AND uid = ?`),
		sourceID, uid,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return e, err
}

// InsertEvent creates a new event row. The insert runs under a savepoint so
// that a unique violation leaves the surrounding transaction usable; in that
// case ErrDuplicateEvent is returned.
func (t *Tx) InsertEvent(ctx context.Context, e *domain.Event) error {
	if _, err := t.tx.ExecContext(ctx, `SAVEPOINT event_insert`); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}

	now := time.Now().UTC()
	err := t.tx.QueryRowContext(ctx,
		t.q(`INSERT INTO events (source_id, uid, summary, description, location, start_time, end_time, raw, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		e.SourceID, e.UID, e.Summary, e.Description, e.Location, e.Start.UTC(), utcPtr(e.End), e.Raw, now, now,
	).Scan(&e.ID)
	if err != nil {
		if _, rbErr := t.tx.ExecContext(ctx, `ROLLBACK TO SAVEPOINT event_insert`); rbErr != nil {
			return fmt.Errorf("rollback to savepoint: %w (after %v)", rbErr, err)
		}
		_, _ = t.tx.ExecContext(ctx, `RELEASE SAVEPOINT event_insert`)
		if isUniqueViolation(err) {
			return ErrDuplicateEvent
		}
		return err
	}

	if _, err := t.tx.ExecContext(ctx, `RELEASE SAVEPOINT event_insert`); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	e.CreatedAt = now
	e.UpdatedAt = now
	return nil
}

// UpdateEventByUID overwrites every mutable field of the (source, uid) row.
// Returns false if no row matched.
func (t *Tx) UpdateEventByUID(ctx context.Context, e *domain.Event) (bool, error) {
	now := time.Now().UTC()
	res, err := t.tx.ExecContext(ctx,
		t.q(`UPDATE events SET summary = ?, description = ?, location = ?, start_time = ?, end_time = ?, raw = ?, updated_at = ?
		 WHERE source_id = ? AND uid = ?`),
		e.Summary, e.Description, e.Location, e.Start.UTC(), utcPtr(e.End), e.Raw, now, e.SourceID, e.UID,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	e.UpdatedAt = now
	return n > 0, nil
}

// MarkSourceSynced records a successful sync of the source
func (t *Tx) MarkSourceSynced(ctx context.Context, sourceID int64, at time.Time) error {
	_, err := t.tx.ExecContext(ctx, t.q(`UPDATE sources SET last_synced_at = ? WHERE id = ?`), at.UTC(), sourceID)
	return err
}

// ListEventsBySource returns stored events of a source ordered by start
func (s *Storage) ListEventsBySource(ctx context.Context, sourceID int64) ([]*domain.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+eventColumns+` FROM events WHERE source_id = ? ORDER BY start_time ASC, id ASC`),
		sourceID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountEvents returns the number of stored events for a source
func (s *Storage) CountEvents(ctx context.Context, sourceID int64) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM events WHERE source_id = ?`), sourceID).Scan(&n)
	return n, err
}

func utcPtr(t *time.Time) any {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC()
}
