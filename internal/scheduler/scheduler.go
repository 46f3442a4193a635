package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/tazhate/agendasync/config"
	"github.com/tazhate/agendasync/internal/service"
)

// runTimeout bounds one scheduled batch
const runTimeout = 20 * time.Minute

type Syncer interface {
	SyncAll(ctx context.Context) (*service.BatchResult, error)
}

// Notifier delivers operator alerts about failed sources
type Notifier interface {
	SendSyncAlert(batch *service.BatchResult) error
}

type Scheduler struct {
	cron     *cron.Cron
	cfg      *config.Config
	syncer   Syncer
	notifier Notifier
	ctx      context.Context
}

func New(cfg *config.Config, syncer Syncer) *Scheduler {
	location := cfg.Timezone
	if location == nil {
		location = time.UTC
	}

	c := cron.New(
		cron.WithLocation(location),
		cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)),
	)

	return &Scheduler{
		cron:   c,
		cfg:    cfg,
		syncer: syncer,
		ctx:    context.Background(),
	}
}

func (s *Scheduler) SetNotifier(n Notifier) {
	s.notifier = n
}

// Start registers the sync job and blocks until ctx is done. An empty
// SyncCron leaves the scheduler idle.
func (s *Scheduler) Start(ctx context.Context) error {
	s.ctx = ctx

	if s.cfg.SyncCron == "" {
		log.Println("Scheduler: periodic sync disabled")
		<-ctx.Done()
		return nil
	}

	if _, err := s.cron.AddFunc(s.cfg.SyncCron, s.syncAll); err != nil {
		return fmt.Errorf("add sync job: %w", err)
	}

	s.cron.Start()
	log.Printf("Scheduler started (TZ: %s, sync: %q)", s.cron.Location(), s.cfg.SyncCron)

	<-ctx.Done()
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Println("Scheduler stopped")
}

func (s *Scheduler) syncAll() {
	ctx, cancel := context.WithTimeout(s.ctx, runTimeout)
	defer cancel()

	batch, err := s.syncer.SyncAll(ctx)
	if err != nil {
		log.Printf("Scheduled sync failed: %v", err)
		return
	}

	if len(batch.Failed()) == 0 || s.notifier == nil {
		return
	}
	if err := s.notifier.SendSyncAlert(batch); err != nil {
		log.Printf("Error sending sync alert for run %s: %v", batch.RunID, err)
	}
}
