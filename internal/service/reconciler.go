package service

import (
	"context"
	"errors"

	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/ics"
	"github.com/tazhate/agendasync/internal/storage"
)

// EventWriter is the transactional view of the event store the Reconciler
// needs. *storage.Tx implements it.
type EventWriter interface {
	GetEventByUID(ctx context.Context, sourceID int64, uid string) (*domain.Event, error)
	InsertEvent(ctx context.Context, e *domain.Event) error
	UpdateEventByUID(ctx context.Context, e *domain.Event) (bool, error)
}

var _ EventWriter = (*storage.Tx)(nil)

// ReconcileStats counts what a reconciliation did
type ReconcileStats struct {
	Inserted int
	Updated  int
}

// Processed returns inserted + updated
func (r ReconcileStats) Processed() int {
	return r.Inserted + r.Updated
}

// Reconciler upserts parsed events for one source. Matched events are
// overwritten unconditionally; events missing from the feed are kept.
type Reconciler struct{}

func NewReconciler() *Reconciler {
	return &Reconciler{}
}

func (r *Reconciler) Reconcile(ctx context.Context, w EventWriter, sourceID int64, events []ics.Event) (ReconcileStats, error) {
	var stats ReconcileStats

	for _, pe := range events {
		ev := &domain.Event{
			SourceID:    sourceID,
			UID:         pe.UID,
			Summary:     pe.Summary,
			Description: pe.Description,
			Location:    pe.Location,
			Start:       pe.Start.UTC(),
			End:         pe.End,
			Raw:         pe.Raw,
		}

		existing, err := w.GetEventByUID(ctx, sourceID, ev.UID)
		if err != nil {
			return stats, &domain.ReconcileError{SourceID: sourceID, UID: ev.UID, Err: err}
		}

		if existing == nil {
			err = w.InsertEvent(ctx, ev)
			if err == nil {
				stats.Inserted++
				continue
			}
			if !errors.Is(err, storage.ErrDuplicateEvent) {
				return stats, &domain.ReconcileError{SourceID: sourceID, UID: ev.UID, Err: err}
			}
			// inserted concurrently by another sync; fall through to update
		}

		ok, err := w.UpdateEventByUID(ctx, ev)
		if err != nil {
			return stats, &domain.ReconcileError{SourceID: sourceID, UID: ev.UID, Err: err}
		}
		if !ok {
			return stats, &domain.ReconcileError{SourceID: sourceID, UID: ev.UID, Err: errors.New("event vanished during update")}
		}
		stats.Updated++
	}

	return stats, nil
}
