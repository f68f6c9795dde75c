package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"volunteerledger/internal/store"
	"volunteerledger/internal/testutil"
)

type repoEnv struct {
	ctx       context.Context
	db        *store.DB
	fx        *testutil.Fixtures
	mentor    testutil.User
	volunteer testutil.User
	event     testutil.Event
}

func newRepoEnv(t *testing.T) repoEnv {
	t.Helper()
	ctx := context.Background()
	db := testutil.OpenDB(t)
	fx := testutil.NewFixtures(t, db)
	mentor := fx.CreateMentor(ctx, "Mentor")
	return repoEnv{
		ctx:       ctx,
		db:        db,
		fx:        fx,
		mentor:    mentor,
		volunteer: fx.CreateVolunteer(ctx, "V1", mentor),
		event:     fx.CreateEvent(ctx, "Beach Cleanup", time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC), 3, mentor),
	}
}

func (e repoEnv) setTotal(t *testing.T, total float64) {
	t.Helper()
	if _, err := e.db.ExecContext(e.ctx, `UPDATE volunteers SET total_hours = ? WHERE id = ?`, total, e.volunteer.ProfileID); err != nil {
		t.Fatalf("seed total: %v", err)
	}
}

func TestAdjustTotal_GuardsAgainstNegativeTotal(t *testing.T) {
	tests := []struct {
		name      string
		stored    float64
		delta     float64
		wantErr   error
		wantTotal float64
	}{
		{name: "increase", stored: 3, delta: 2, wantTotal: 5},
		{name: "decrease covered", stored: 3, delta: -3, wantTotal: 0},
		{name: "zero delta", stored: 3, delta: 0, wantTotal: 3},
		// the stored total shrank after the caller read it
		{name: "decrease beyond stored total", stored: 1, delta: -3, wantErr: ErrNegativeTotal, wantTotal: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newRepoEnv(t)
			e.setTotal(t, tt.stored)

			err := e.db.WithTx(e.ctx, func(tx *store.Tx) error {
				return adjustTotal(e.ctx, tx, e.volunteer.ProfileID, tt.delta)
			})
			if tt.wantErr == nil && err != nil {
				t.Fatalf("adjustTotal: %v", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got, _ := e.fx.VolunteerTotals(e.ctx, e.volunteer.ProfileID); got != tt.wantTotal {
				t.Errorf("total = %v, want %v", got, tt.wantTotal)
			}
		})
	}
}

func TestInsertAttendance_DuplicatePairIsAlreadyMarked(t *testing.T) {
	e := newRepoEnv(t)
	at := time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

	err := e.db.WithTx(e.ctx, func(tx *store.Tx) error {
		if err := insertAttendance(e.ctx, tx, e.volunteer.ProfileID, e.event.ID, e.mentor.ID, at, 3, StatusPresent); err != nil {
			return err
		}
		return insertAttendance(e.ctx, tx, e.volunteer.ProfileID, e.event.ID, e.mentor.ID, at, 0, StatusAbsent)
	})
	if !errors.Is(err, ErrAlreadyMarked) {
		t.Fatalf("err = %v, want ErrAlreadyMarked", err)
	}
	if n := e.fx.Count(e.ctx, "attendance"); n != 0 {
		t.Errorf("attendance rows = %d, want 0 after rollback", n)
	}
	if got := reason(err); got != "already_marked" {
		t.Errorf("reason = %q", got)
	}
}
