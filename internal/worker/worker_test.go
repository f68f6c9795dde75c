package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"volunteerledger/internal/ledger"
	"volunteerledger/internal/queue"
)

type refresher struct {
	ids  []string
	fail string
}

func (r *refresher) RefreshSummary(_ context.Context, id string) error {
	if id == r.fail {
		return errors.New("cache down")
	}
	r.ids = append(r.ids, id)
	return nil
}

type reconciler struct{ calls chan struct{} }

func (r reconciler) Reconcile(context.Context) ([]ledger.Drift, error) {
	r.calls <- struct{}{}
	return nil, nil
}

func TestHandle(t *testing.T) {
	ctx := context.Background()
	log := zap.NewNop()
	msg, err := queue.NewMessage(queue.TypeAttendanceMarked, queue.LedgerEvent{EventID: "e1", VolunteerIDs: []string{"v1", "v2"}})
	if err != nil {
		t.Fatalf("NewMessage: %v", err)
	}

	r := &refresher{}
	if err := Handle(ctx, msg, r, log); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(r.ids) != 2 || r.ids[0] != "v1" || r.ids[1] != "v2" {
		t.Errorf("refreshed = %v", r.ids)
	}

	r = &refresher{fail: "v1"}
	if err := Handle(ctx, msg, r, log); err == nil {
		t.Error("expected refresh error to be reported")
	}
	if len(r.ids) != 1 || r.ids[0] != "v2" {
		t.Errorf("remaining volunteers must still be refreshed, got %v", r.ids)
	}

	if err := Handle(ctx, queue.Message{Type: "other"}, &refresher{}, log); err != nil {
		t.Errorf("unknown type err = %v", err)
	}
	if err := Handle(ctx, queue.Message{Type: queue.TypeHoursModified}, &refresher{}, log); err == nil {
		t.Error("expected decode error for empty body")
	}
}

func TestConsume_StopsWhenChannelCloses(t *testing.T) {
	msgs := make(chan queue.Message, 1)
	msg, _ := queue.NewMessage(queue.TypeHoursModified, queue.LedgerEvent{VolunteerIDs: []string{"v9"}})
	msgs <- msg
	close(msgs)

	r := &refresher{}
	Consume(context.Background(), msgs, r, zap.NewNop())
	if len(r.ids) != 1 || r.ids[0] != "v9" {
		t.Errorf("refreshed = %v", r.ids)
	}
}

func TestScheduleReconcile(t *testing.T) {
	if _, err := ScheduleReconcile("not a schedule", reconciler{}, zap.NewNop()); err == nil {
		t.Error("expected error for invalid schedule")
	}

	calls := make(chan struct{}, 4)
	c, err := ScheduleReconcile("@every 1s", reconciler{calls: calls}, zap.NewNop())
	if err != nil {
		t.Fatalf("ScheduleReconcile: %v", err)
	}
	c.Start()
	defer c.Stop()

	select {
	case <-calls:
	case <-time.After(3 * time.Second):
		t.Fatal("reconcile never ran")
	}
}
