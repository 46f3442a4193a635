package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tazhate/agendasync/internal/clients/webcal"
	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/ics"
	"github.com/tazhate/agendasync/internal/storage"
)

var ErrSourceNotFound = errors.New("source not found")

// SyncResult is the outcome of syncing one source. Err is nil on success.
type SyncResult struct {
	SourceID int64
	UserID   int64
	URL      string // redacted
	Inserted int
	Updated  int
	Dropped  int
	SyncedAt time.Time
	Err      error
}

// Processed returns the number of events inserted or updated
func (r *SyncResult) Processed() int {
	return r.Inserted + r.Updated
}

func (r *SyncResult) OK() bool {
	return r.Err == nil
}

// BatchResult collects per-source results of one batch run
type BatchResult struct {
	RunID   string
	Results []*SyncResult
}

func (b *BatchResult) Succeeded() int {
	n := 0
	for _, r := range b.Results {
		if r.OK() {
			n++
		}
	}
	return n
}

func (b *BatchResult) Failed() []*SyncResult {
	var failed []*SyncResult
	for _, r := range b.Results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

func (b *BatchResult) Processed() int {
	n := 0
	for _, r := range b.Results {
		n += r.Processed()
	}
	return n
}

// SyncService runs Fetch, Parse and Reconcile for sources. Every sync path
// (login, manual refresh, add source, scheduled job) goes through it.
type SyncService struct {
	storage    *storage.Storage
	fetcher    Fetcher
	reconciler *Reconciler
	workers    int
	locks      *keyedMutex
	now        func() time.Time
}

// NewSyncService creates a sync service. SQLite serializes writers, so the
// worker count is forced to 1 there.
func NewSyncService(s *storage.Storage, fetcher Fetcher, workers int) *SyncService {
	if workers < 1 || !s.SupportsHighConcurrency() {
		workers = 1
	}
	return &SyncService{
		storage:    s,
		fetcher:    fetcher,
		reconciler: NewReconciler(),
		workers:    workers,
		locks:      newKeyedMutex(),
		now:        time.Now,
	}
}

// SyncSource syncs one source owned by userID. A failed sync still returns
// its result alongside the error.
func (s *SyncService) SyncSource(ctx context.Context, userID, sourceID int64) (*SyncResult, error) {
	src, err := s.storage.GetSourceForUser(ctx, userID, sourceID)
	if err != nil {
		return nil, fmt.Errorf("get source: %w", err)
	}
	if src == nil {
		return nil, ErrSourceNotFound
	}

	res := s.sync(ctx, src)
	return res, res.Err
}

// SyncUser syncs every source of userID. Failures are logged and collected;
// one bad source never stops the others.
func (s *SyncService) SyncUser(ctx context.Context, userID int64) (*BatchResult, error) {
	sources, err := s.storage.ListSourcesByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	return s.syncBatch(ctx, fmt.Sprintf("user %d", userID), sources), nil
}

// SyncAll syncs the sources of every user that has any
func (s *SyncService) SyncAll(ctx context.Context) (*BatchResult, error) {
	userIDs, err := s.storage.ListUserIDsWithSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}

	var sources []*domain.Source
	for _, id := range userIDs {
		userSources, err := s.storage.ListSourcesByUser(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("list sources of user %d: %w", id, err)
		}
		sources = append(sources, userSources...)
	}
	return s.syncBatch(ctx, "all users", sources), nil
}

// AddSource registers a feed and runs its first sync right away. The source
// is kept even if that sync fails; the failure is reported in the result.
func (s *SyncService) AddSource(ctx context.Context, userID int64, feedURL, label string) (*domain.Source, *SyncResult, error) {
	feedURL = strings.TrimSpace(feedURL)
	if err := ValidateFeedURL(feedURL); err != nil {
		return nil, nil, err
	}

	src := &domain.Source{
		UserID: userID,
		URL:    feedURL,
		Label:  strings.TrimSpace(label),
	}
	if err := s.storage.CreateSource(ctx, src); err != nil {
		return nil, nil, fmt.Errorf("create source: %w", err)
	}
	log.Printf("sync: user %d added source %d (%s)", userID, src.ID, webcal.RedactURL(src.URL))

	res := s.sync(ctx, src)
	if res.OK() {
		synced := res.SyncedAt
		src.LastSyncedAt = &synced
	}
	return src, res, nil
}

// DeleteSource removes a source and all of its events
func (s *SyncService) DeleteSource(ctx context.Context, userID, sourceID int64) error {
	unlock := s.locks.Lock(sourceID)
	defer unlock()

	found, err := s.storage.DeleteSource(ctx, userID, sourceID)
	if err != nil {
		return fmt.Errorf("delete source: %w", err)
	}
	if !found {
		return ErrSourceNotFound
	}
	log.Printf("sync: user %d deleted source %d", userID, sourceID)
	return nil
}

func (s *SyncService) syncBatch(ctx context.Context, scope string, sources []*domain.Source) *BatchResult {
	batch := &BatchResult{
		RunID:   uuid.NewString(),
		Results: make([]*SyncResult, len(sources)),
	}
	if len(sources) == 0 {
		return batch
	}

	workers := min(s.workers, len(sources))
	log.Printf("sync: run %s: %s, %d sources, workers=%d", batch.RunID, scope, len(sources), workers)

	jobs := make(chan int, len(sources))
	for i := range sources {
		jobs <- i
	}
	close(jobs)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				if err := ctx.Err(); err != nil {
					batch.Results[i] = &SyncResult{
						SourceID: sources[i].ID,
						UserID:   sources[i].UserID,
						URL:      webcal.RedactURL(sources[i].URL),
						Err:      err,
					}
					continue
				}
				batch.Results[i] = s.sync(ctx, sources[i])
			}
		}()
	}
	wg.Wait()

	failed := batch.Failed()
	for _, r := range failed {
		log.Printf("sync: run %s: source %d (%s) failed: %v", batch.RunID, r.SourceID, r.URL, r.Err)
	}
	log.Printf("sync: run %s done: %d ok, %d failed, %d events", batch.RunID, batch.Succeeded(), len(failed), batch.Processed())
	return batch
}

// sync runs one source end to end. Fetch and parse happen before the
// transaction opens; reconcile and last_synced_at commit together.
func (s *SyncService) sync(ctx context.Context, src *domain.Source) (res *SyncResult) {
	res = &SyncResult{SourceID: src.ID, UserID: src.UserID, URL: webcal.RedactURL(src.URL)}

	defer func() {
		if p := recover(); p != nil {
			res.Inserted, res.Updated = 0, 0
			res.Err = fmt.Errorf("sync source %d: panic: %v", src.ID, p)
			log.Printf("sync: source %d (%s): %v", src.ID, res.URL, res.Err)
		}
	}()

	unlock := s.locks.Lock(src.ID)
	defer unlock()

	body, err := s.fetcher.Fetch(ctx, src.URL)
	if err != nil {
		res.Err = err
		log.Printf("sync: source %d (%s): fetch failed: %v", src.ID, res.URL, err)
		return res
	}

	parsed, err := ics.Parse(body)
	if err != nil {
		res.Err = err
		log.Printf("sync: source %d (%s): parse failed: %v", src.ID, res.URL, err)
		return res
	}
	res.Dropped = parsed.Dropped

	syncedAt := s.now().UTC()
	var stats ReconcileStats
	err = s.storage.WithTx(ctx, func(tx *storage.Tx) error {
		var err error
		stats, err = s.reconciler.Reconcile(ctx, tx, src.ID, parsed.Events)
		if err != nil {
			return err
		}
		if err := tx.MarkSourceSynced(ctx, src.ID, syncedAt); err != nil {
			return &domain.ReconcileError{SourceID: src.ID, Err: err}
		}
		return nil
	})
	if err != nil {
		var rerr *domain.ReconcileError
		if !errors.As(err, &rerr) {
			err = &domain.ReconcileError{SourceID: src.ID, Err: err}
		}
		res.Err = err
		log.Printf("sync: source %d (%s): rolled back: %v", src.ID, res.URL, err)
		return res
	}

	res.Inserted = stats.Inserted
	res.Updated = stats.Updated
	res.SyncedAt = syncedAt
	if res.Dropped > 0 {
		log.Printf("sync: source %d (%s): %d events skipped", src.ID, res.URL, res.Dropped)
	}
	return res
}
