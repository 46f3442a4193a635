package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/storage"
)

// ownSuffix marks blocks that come from the viewer's own sources
const ownSuffix = "mine"

var ErrUserNotFound = errors.New("user not found")

// AgendaService composes display blocks from stored events. It never
// triggers a sync.
type AgendaService struct {
	storage *storage.Storage
}

func NewAgendaService(s *storage.Storage) *AgendaService {
	return &AgendaService{storage: s}
}

// MyAgenda returns the user's own events plus those of every accepted friend
func (s *AgendaService) MyAgenda(ctx context.Context, userID int64) ([]domain.AgendaBlock, error) {
	blocks, err := s.userBlocks(ctx, userID, ownSuffix, LabelColor)
	if err != nil {
		return nil, err
	}

	friendships, err := s.storage.ListAcceptedFriendships(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list friendships: %w", err)
	}
	for _, f := range friendships {
		friend, err := s.storage.GetUserByID(ctx, f.Other(userID))
		if err != nil {
			return nil, fmt.Errorf("get friend: %w", err)
		}
		if friend == nil {
			continue
		}
		fb, err := s.userBlocks(ctx, friend.ID, friend.Username, FriendLabelColor)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, fb...)
	}

	sortBlocks(blocks)
	return blocks, nil
}

// FriendAgenda returns friendID's events as seen by viewerID. An accepted
// friendship in either direction is required.
func (s *AgendaService) FriendAgenda(ctx context.Context, viewerID, friendID int64) ([]domain.AgendaBlock, error) {
	f, err := s.storage.GetAcceptedFriendship(ctx, viewerID, friendID)
	if err != nil {
		return nil, fmt.Errorf("get friendship: %w", err)
	}
	if f == nil {
		return nil, &domain.AuthorizationError{Reason: domain.NotFriends, ViewerID: viewerID, TargetID: friendID}
	}

	friend, err := s.storage.GetUserByID(ctx, friendID)
	if err != nil {
		return nil, fmt.Errorf("get friend: %w", err)
	}
	if friend == nil {
		return nil, ErrUserNotFound
	}

	blocks, err := s.userBlocks(ctx, friend.ID, friend.Username, FriendLabelColor)
	if err != nil {
		return nil, err
	}
	sortBlocks(blocks)
	return blocks, nil
}

// userBlocks renders every event of userID. Events without an end have no
// extent on the agenda and are left out.
func (s *AgendaService) userBlocks(ctx context.Context, userID int64, suffix string, color func(string) string) ([]domain.AgendaBlock, error) {
	sources, err := s.storage.ListSourcesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	var blocks []domain.AgendaBlock
	for _, src := range sources {
		events, err := s.storage.ListEventsBySource(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("list events of source %d: %w", src.ID, err)
		}
		c := color(src.Label)
		for _, e := range events {
			if !e.HasEnd() {
				continue
			}
			blocks = append(blocks, domain.AgendaBlock{
				Title: fmt.Sprintf("%s (%s)", e.Summary, suffix),
				Start: e.Start,
				End:   *e.End,
				Color: c,
			})
		}
	}
	return blocks, nil
}

func sortBlocks(blocks []domain.AgendaBlock) {
	sort.SliceStable(blocks, func(i, j int) bool {
		if !blocks[i].Start.Equal(blocks[j].Start) {
			return blocks[i].Start.Before(blocks[j].Start)
		}
		return blocks[i].Title < blocks[j].Title
	})
}
