package storage

import (
	"context"
	"database/sql"
	"time"

	"github.com/tazhate/agendasync/internal/domain"
)

// === Sources ===

const sourceColumns = `id, user_id, url, label, last_synced_at, created_at`

func scanSource(row interface{ Scan(...any) error }) (*domain.Source, error) {
	src := &domain.Source{}
	if err := row.Scan(&src.ID, &src.UserID, &src.URL, &src.Label, &src.LastSyncedAt, &src.CreatedAt); err != nil {
		return nil, err
	}
	if src.LastSyncedAt != nil {
		t := src.LastSyncedAt.UTC()
		src.LastSyncedAt = &t
	}
	return src, nil
}

func (s *Storage) CreateSource(ctx context.Context, src *domain.Source) error {
	if src.Label == "" {
		src.Label = domain.DefaultSourceLabel
	}
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO sources (user_id, url, label, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		src.UserID, src.URL, src.Label, now,
	).Scan(&src.ID)
	if err != nil {
		return err
	}
	src.CreatedAt = now
	return nil
}

// GetSourceForUser returns the source only if userID owns it
func (s *Storage) GetSourceForUser(ctx context.Context, userID, sourceID int64) (*domain.Source, error) {
	src, err := scanSource(s.db.QueryRowContext(ctx,
		s.q(`SELECT `+sourceColumns+` FROM sources WHERE id = ? AND user_id = ?`),
		sourceID, userID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return src, err
}

func (s *Storage) ListSourcesByUser(ctx context.Context, userID int64) ([]*domain.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT `+sourceColumns+` FROM sources WHERE user_id = ? ORDER BY id`),
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.Source
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// DeleteSource removes a source owned by userID together with all of its
// events in one transaction. Returns false if no such source exists.
func (s *Storage) DeleteSource(ctx context.Context, userID, sourceID int64) (bool, error) {
	found := false
	err := s.WithTx(ctx, func(tx *Tx) error {
		var id int64
		err := tx.tx.QueryRowContext(ctx,
			tx.q(`SELECT id FROM sources WHERE id = ? AND user_id = ?`),
			sourceID, userID,
		).Scan(&id)
		if err == sql.ErrNoRows {
			return nil
		}
		if err != nil {
			return err
		}
		found = true

		if _, err := tx.tx.ExecContext(ctx, tx.q(`DELETE FROM events WHERE source_id = ?`), sourceID); err != nil {
			return err
		}
		_, err = tx.tx.ExecContext(ctx, tx.q(`DELETE FROM sources WHERE id = ?`), sourceID)
		return err
	})
	return found, err
}
