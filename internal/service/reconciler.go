package service

import (
	"context"

	"github.com/invitapp/guestlist-server/internal/models"
	"go.uber.org/zap"
)

// Broadcaster pushes a fresh table snapshot to connected clients
type Broadcaster interface {
	Broadcast(snapshot *models.GuestsResponse)
}

// Reconciler keeps the live table in sync with the store: it loads the full
// snapshot once on start and again after every change notification, then
// broadcasts it. There is no incremental patching; the table is small
// enough that full recomputation is the simpler, safer choice.
type Reconciler struct {
	svc    Service
	events <-chan models.ChangeEvent
	out    Broadcaster
	logger *zap.Logger
}

// NewReconciler creates a reconciler fed by the given change event stream
func NewReconciler(svc Service, events <-chan models.ChangeEvent, out Broadcaster, logger *zap.Logger) *Reconciler {
	return &Reconciler{
		svc:    svc,
		events: events,
		out:    out,
		logger: logger,
	}
}

// Run blocks until the context is cancelled or the event stream closes.
// Reload failures are logged and the loop keeps going; the next
// notification retries.
func (r *Reconciler) Run(ctx context.Context) {
	r.reload(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-r.events:
			if !ok {
				return
			}
			r.drain()
			r.logger.Debug("change notification",
				zap.String("action", event.Action),
				zap.String("guestId", event.GuestID))
			r.reload(ctx)
		}
	}
}

// drain coalesces a burst of queued notifications into a single reload
func (r *Reconciler) drain() {
	for {
		select {
		case _, ok := <-r.events:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func (r *Reconciler) reload(ctx context.Context) {
	snapshot, err := r.svc.GetGuests(ctx, "")
	if err != nil {
		r.logger.Error("snapshot reload failed", zap.Error(err))
		return
	}
	r.out.Broadcast(snapshot)
}
