package service

import (
	"context"
	"testing"
	"time"

	"github.com/invitapp/guestlist-server/internal/models"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

// stubService counts snapshot loads and returns a canned response
type stubService struct {
	loads chan string
}

func (s *stubService) UploadGuests(ctx context.Context, filename string, data []byte) (*models.UploadResponse, error) {
	return nil, nil
}

func (s *stubService) GetGuests(ctx context.Context, search string) (*models.GuestsResponse, error) {
	s.loads <- search
	return &models.GuestsResponse{Status: "success"}, nil
}

func (s *stubService) ToggleConfirmed(ctx context.Context, guestID string) (*models.ToggleResponse, error) {
	return nil, nil
}

func (s *stubService) ListUploads(ctx context.Context) (*models.UploadsResponse, error) {
	return nil, nil
}

type stubBroadcaster struct {
	snapshots chan *models.GuestsResponse
}

func (b *stubBroadcaster) Broadcast(snapshot *models.GuestsResponse) {
	b.snapshots <- snapshot
}

func TestReconcilerReloadsOnStartAndOnEvents(t *testing.T) {
	svc := &stubService{loads: make(chan string, 8)}
	out := &stubBroadcaster{snapshots: make(chan *models.GuestsResponse, 8)}
	events := make(chan models.ChangeEvent)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := NewReconciler(svc, events, out, zap.NewNop())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	// Initial load happens before any event
	assert.Equal(t, "", waitFor(t, svc.loads))
	waitForSnapshot(t, out.snapshots)

	// Every change notification triggers a full reload
	events <- models.ChangeEvent{Action: "UPDATE", GuestID: "A1"}
	assert.Equal(t, "", waitFor(t, svc.loads))
	waitForSnapshot(t, out.snapshots)

	events <- models.ChangeEvent{Action: "DELETE", GuestID: "A2"}
	waitFor(t, svc.loads)
	waitForSnapshot(t, out.snapshots)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on context cancel")
	}
}

func TestReconcilerStopsWhenStreamCloses(t *testing.T) {
	svc := &stubService{loads: make(chan string, 8)}
	out := &stubBroadcaster{snapshots: make(chan *models.GuestsResponse, 8)}
	events := make(chan models.ChangeEvent)

	r := NewReconciler(svc, events, out, zap.NewNop())
	done := make(chan struct{})
	go func() {
		r.Run(context.Background())
		close(done)
	}()

	waitFor(t, svc.loads)
	waitForSnapshot(t, out.snapshots)

	close(events)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop on closed event stream")
	}
}

func waitFor(t *testing.T, ch chan string) string {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for snapshot load")
		return ""
	}
}

func waitForSnapshot(t *testing.T, ch chan *models.GuestsResponse) {
	t.Helper()
	select {
	case s := <-ch:
		assert.NotNil(t, s)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}
