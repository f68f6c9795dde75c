package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volunteerledger/internal/auth"
	"volunteerledger/internal/metrics"
	"volunteerledger/internal/queue"
	"volunteerledger/internal/store"
)

// Invalidator drops cached read models for volunteers whose totals changed.
type Invalidator interface {
	Invalidate(ctx context.Context, volunteerIDs ...string) error
}

// Service runs the ledger write operations.
type Service struct {
	db    *store.DB
	log   *zap.Logger
	pub   queue.Publisher
	cache Invalidator
	now   func() time.Time
}

// NewService creates a ledger service. pub and cache are optional; both are
// only used after a transaction has committed.
func NewService(db *store.DB, log *zap.Logger, pub queue.Publisher, cache Invalidator) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		db:    db,
		log:   log,
		pub:   pub,
		cache: cache,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// MarkBulkAttendance records one attendance row per entry for eventID and
// credits present volunteers with the event's duration. The whole batch is
// one transaction.
func (s *Service) MarkBulkAttendance(ctx context.Context, p auth.Principal, eventID string, records []Mark) (BatchResult, error) {
	res, err := s.markBulk(ctx, p, eventID, records)
	if err != nil {
		metrics.Failures.WithLabelValues("mark_bulk", reason(err)).Inc()
		s.log.Warn("bulk attendance rejected",
			zap.String("event_id", eventID),
			zap.String("marked_by", p.UserID),
			zap.Int("records", len(records)),
			zap.Error(err))
		return BatchResult{}, err
	}

	metrics.AttendanceMarked.WithLabelValues(string(StatusPresent)).Add(float64(res.Present))
	metrics.AttendanceMarked.WithLabelValues(string(StatusAbsent)).Add(float64(res.Marked - res.Present))
	metrics.HoursAwarded.Add(res.HoursAwarded)
	s.log.Info("bulk attendance marked",
		zap.String("event_id", eventID),
		zap.String("marked_by", p.UserID),
		zap.Int("marked", res.Marked),
		zap.Int("present", res.Present),
		zap.Float64("hours_awarded", res.HoursAwarded))

	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.VolunteerID
	}
	s.afterCommit(ctx, queue.TypeAttendanceMarked, eventID, ids, res.MarkedAt)
	return res, nil
}

func (s *Service) markBulk(ctx context.Context, p auth.Principal, eventID string, records []Mark) (BatchResult, error) {
	if !p.Role.CanMarkAttendance() {
		return BatchResult{}, fmt.Errorf("%w: role %s cannot mark attendance", ErrForbidden, p.Role)
	}
	if err := validateBatch(eventID, records); err != nil {
		return BatchResult{}, err
	}

	res := BatchResult{EventID: eventID}
	err := s.db.WithTx(ctx, func(tx *store.Tx) error {
		res.MarkedAt = s.now()

		duration, found, err := eventDuration(ctx, tx, eventID)
		if err != nil {
			return err
		}
		if !found {
			s.log.Warn("event not found, awarding zero hours", zap.String("event_id", eventID))
		}

		for _, r := range records {
			if _, err := volunteerTotal(ctx, tx, r.VolunteerID); err != nil {
				return err
			}
			if _, exists, err := attendanceHours(ctx, tx, r.VolunteerID, eventID); err != nil {
				return err
			} else if exists {
				return fmt.Errorf("%w: volunteer %s, event %s", ErrAlreadyMarked, r.VolunteerID, eventID)
			}

			status, hours := StatusAbsent, 0.0
			if r.IsPresent {
				status, hours = StatusPresent, duration
			}
			if err := insertAttendance(ctx, tx, r.VolunteerID, eventID, p.UserID, res.MarkedAt, hours, status); err != nil {
				return err
			}
			if r.IsPresent {
				if err := addAttendedHours(ctx, tx, r.VolunteerID, hours); err != nil {
					return err
				}
				res.Present++
				res.HoursAwarded += hours
			}
			res.Marked++
		}
		return nil
	})
	if err != nil {
		return BatchResult{}, err
	}
	return res, nil
}

// ModifyHours sets the hours awarded for (volunteerID, eventID) and moves
// the volunteer's total by the difference. Every call appends one log row.
// When no attendance row exists the old value is taken as zero and only the
// total and the log change.
func (s *Service) ModifyHours(ctx context.Context, p auth.Principal, volunteerID, eventID string, newHours float64, reasonText string) (Modification, error) {
	m, err := s.modifyHours(ctx, p, volunteerID, eventID, newHours, reasonText)
	if err != nil {
		metrics.Failures.WithLabelValues("modify_hours", reason(err)).Inc()
		s.log.Warn("hours modification rejected",
			zap.String("volunteer_id", volunteerID),
			zap.String("event_id", eventID),
			zap.String("modified_by", p.UserID),
			zap.Float64("new_hours", newHours),
			zap.Error(err))
		return Modification{}, err
	}

	metrics.HoursModified.Inc()
	s.log.Info("hours modified",
		zap.String("volunteer_id", volunteerID),
		zap.String("event_id", eventID),
		zap.String("modified_by", p.UserID),
		zap.Float64("old_hours", m.OldHours),
		zap.Float64("new_hours", m.NewHours))

	s.afterCommit(ctx, queue.TypeHoursModified, eventID, []string{volunteerID}, m.ModifiedAt)
	return m, nil
}

func (s *Service) modifyHours(ctx context.Context, p auth.Principal, volunteerID, eventID string, newHours float64, reasonText string) (Modification, error) {
	if !p.Role.CanModifyHours() {
		return Modification{}, fmt.Errorf("%w: role %s cannot modify hours", ErrForbidden, p.Role)
	}
	if err := validateModification(volunteerID, eventID, newHours, reasonText); err != nil {
		return Modification{}, err
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Modification{}, fmt.Errorf("modification id: %w", err)
	}
	m := Modification{
		ID:          id.String(),
		VolunteerID: volunteerID,
		EventID:     eventID,
		NewHours:    newHours,
		ModifiedBy:  p.UserID,
		Reason:      strings.TrimSpace(reasonText),
	}
	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		m.ModifiedAt = s.now()

		// volunteer row first, then attendance: the same lock order as marking
		total, err := volunteerTotal(ctx, tx, volunteerID)
		if err != nil {
			return err
		}
		old, exists, err := attendanceHours(ctx, tx, volunteerID, eventID)
		if err != nil {
			return err
		}
		if !exists {
			s.log.Warn("no attendance row for hours modification, using zero",
				zap.String("volunteer_id", volunteerID), zap.String("event_id", eventID))
		}
		m.OldHours = old
		m.Delta = newHours - old

		if total+m.Delta < -hoursEpsilon {
			return fmt.Errorf("%w: %.2f%+.2f", ErrNegativeTotal, total, m.Delta)
		}

		if exists {
			if err := setAttendanceHours(ctx, tx, volunteerID, eventID, newHours); err != nil {
				return err
			}
		}
		if err := adjustTotal(ctx, tx, volunteerID, m.Delta); err != nil {
			return err
		}
		return insertModification(ctx, tx, m)
	})
	if err != nil {
		return Modification{}, err
	}
	return m, nil
}

// afterCommit notifies subscribers and drops cached summaries. Neither may
// fail the request: the ledger rows are already durable.
func (s *Service) afterCommit(ctx context.Context, typ, eventID string, volunteerIDs []string, at time.Time) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, volunteerIDs...); err != nil {
			s.log.Warn("summary cache invalidate failed", zap.Strings("volunteer_ids", volunteerIDs), zap.Error(err))
		}
	}
	if s.pub == nil {
		return
	}
	msg, err := queue.NewMessage(typ, queue.LedgerEvent{EventID: eventID, VolunteerIDs: volunteerIDs, At: at})
	if err == nil {
		err = s.pub.Publish(ctx, msg)
	}
	if err != nil {
		metrics.QueuePublishFailures.Inc()
		s.log.Warn("ledger notification failed", zap.String("type", typ), zap.Error(err))
	}
}
