package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tazhate/agendasync/internal/domain"
)

// === Users ===
//
// Accounts are owned by the request-handling layer. CreateUser exists so
// that layer (and tests) can seed rows the sync engine reads.

func (s *Storage) CreateUser(ctx context.Context, u *domain.User) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx,
		s.q(`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) RETURNING id`),
		u.Username, u.PasswordHash, now,
	).Scan(&u.ID)
	if err != nil {
		return err
	}
	u.CreatedAt = now
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*domain.User, error) {
	u := &domain.User{}
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`),
		id,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return u, err
}

// ListUserIDsWithSources returns every user owning at least one source
func (s *Storage) ListUserIDsWithSources(ctx context.Context) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT user_id FROM sources ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// === Friendships ===

// CreateFriendship inserts a pending edge. At most one edge may exist per
// unordered pair, so both orderings are checked in the same transaction.
func (s *Storage) CreateFriendship(ctx context.Context, requesterID, recipientID int64) (*domain.Friendship, error) {
	if requesterID == recipientID {
		return nil, fmt.Errorf("cannot befriend self")
	}

	f := &domain.Friendship{
		RequesterID: requesterID,
		RecipientID: recipientID,
		Status:      domain.FriendshipPending,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.WithTx(ctx, func(tx *Tx) error {
		var existing int64
		err := tx.tx.QueryRowContext(ctx,
			tx.q(`SELECT id FROM friendships
			 WHERE (requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?)`),
			requesterID, recipientID, recipientID, requesterID,
		).Scan(&existing)
		if err == nil {
			return ErrFriendshipExists
		}
		if err != sql.ErrNoRows {
			return err
		}

		err = tx.tx.QueryRowContext(ctx,
			tx.q(`INSERT INTO friendships (requester_id, recipient_id, status, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
			f.RequesterID, f.RecipientID, f.Status, f.CreatedAt,
		).Scan(&f.ID)
		if isUniqueViolation(err) {
			return ErrFriendshipExists
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (s *Storage) SetFriendshipStatus(ctx context.Context, id int64, status domain.FriendshipStatus) error {
	_, err := s.db.ExecContext(ctx, s.q(`UPDATE friendships SET status = ? WHERE id = ?`), status, id)
	return err
}

// GetAcceptedFriendship returns the accepted edge between a and b in either
// direction, or nil if there is none.
func (s *Storage) GetAcceptedFriendship(ctx context.Context, a, b int64) (*domain.Friendship, error) {
	f := &domain.Friendship{}
	err := s.db.QueryRowContext(ctx,
		s.q(`SELECT id, requester_id, recipient_id, status, created_at FROM friendships
		 WHERE ((requester_id = ? AND recipient_id = ?) OR (requester_id = ? AND recipient_id = ?))
		   AND status = ?`),
		a, b, b, a, domain.FriendshipAccepted,
	).Scan(&f.ID, &f.RequesterID, &f.RecipientID, &f.Status, &f.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return f, err
}

// ListAcceptedFriendships returns every accepted edge touching userID
func (s *Storage) ListAcceptedFriendships(ctx context.Context, userID int64) ([]*domain.Friendship, error) {
	rows, err := s.db.QueryContext(ctx,
		s.q(`SELECT id, requester_id, recipient_id, status, created_at FROM friendships
		 WHERE (requester_id = ? OR recipient_id = ?) AND status = ?
		 ORDER BY id`),
		userID, userID, domain.FriendshipAccepted,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Friendship
	for rows.Next() {
		f := &domain.Friendship{}
		if err := rows.Scan(&f.ID, &f.RequesterID, &f.RecipientID, &f.Status, &f.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}
