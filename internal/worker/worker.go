// Package worker runs the background side of the ledger: it keeps cached
// volunteer summaries warm from ledger notifications and periodically
// reconciles stored aggregates against attendance rows.
package worker

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"volunteerledger/internal/ledger"
	"volunteerledger/internal/queue"
)

// SummaryRefresher reloads one volunteer's cached summary.
type SummaryRefresher interface {
	RefreshSummary(ctx context.Context, volunteerID string) error
}

// Reconciler reports aggregate drift.
type Reconciler interface {
	Reconcile(ctx context.Context) ([]ledger.Drift, error)
}

// Consume handles messages until msgs is closed.
func Consume(ctx context.Context, msgs <-chan queue.Message, r SummaryRefresher, log *zap.Logger) {
	for msg := range msgs {
		if err := Handle(ctx, msg, r, log); err != nil {
			log.Warn("ledger notification not processed", zap.String("type", msg.Type), zap.Error(err))
		}
	}
}

// Handle refreshes the summaries of every volunteer named in a ledger
// notification. Unknown message types are skipped.
func Handle(ctx context.Context, msg queue.Message, r SummaryRefresher, log *zap.Logger) error {
	switch msg.Type {
	case queue.TypeAttendanceMarked, queue.TypeHoursModified:
	default:
		log.Debug("skipping message", zap.String("type", msg.Type))
		return nil
	}

	var ev queue.LedgerEvent
	if err := msg.Decode(&ev); err != nil {
		return err
	}
	var firstErr error
	for _, id := range ev.VolunteerIDs {
		if err := r.RefreshSummary(ctx, id); err != nil {
			log.Warn("summary refresh failed", zap.String("volunteer_id", id), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	log.Debug("ledger notification processed",
		zap.String("type", msg.Type),
		zap.String("event_id", ev.EventID),
		zap.Int("volunteers", len(ev.VolunteerIDs)))
	return firstErr
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.s.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.s.Errorw(msg, append(keysAndValues, "error", err)...)
}

// ScheduleReconcile returns a cron that runs r on schedule. Runs never overlap.
// The caller starts and stops it.
func ScheduleReconcile(schedule string, r Reconciler, log *zap.Logger) (*cron.Cron, error) {
	cl := cronLogger{s: log.Sugar()}
	c := cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		drift, err := r.Reconcile(ctx)
		if err != nil {
			log.Error("reconcile failed", zap.Error(err))
			return
		}
		log.Info("reconcile finished", zap.Int("drifting_volunteers", len(drift)))
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}
