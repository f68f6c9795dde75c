package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"volunteerledger/internal/store"
)

// Statements below run only inside a transaction handed out by store.WithTx.

func eventDuration(ctx context.Context, tx *store.Tx, eventID string) (float64, bool, error) {
	var hours float64
	err := tx.QueryRowContext(ctx, `SELECT duration_hours FROM events WHERE id = ?`, eventID).Scan(&hours)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("event duration: %w", err)
	}
	return hours, true, nil
}

// volunteerTotal reads the volunteer's total and locks the row until the
// transaction ends.
func volunteerTotal(ctx context.Context, tx *store.Tx, volunteerID string) (float64, error) {
	var total float64
	err := tx.QueryRowContext(ctx, tx.ForUpdate(`SELECT total_hours FROM volunteers WHERE id = ?`), volunteerID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrUnknownVolunteer, volunteerID)
	}
	if err != nil {
		return 0, fmt.Errorf("volunteer total: %w", err)
	}
	return total, nil
}

// attendanceHours returns the hours on the (volunteer, event) row and
// whether the row exists. The row stays locked until the transaction ends.
func attendanceHours(ctx context.Context, tx *store.Tx, volunteerID, eventID string) (float64, bool, error) {
	var hours float64
	err := tx.QueryRowContext(ctx, tx.ForUpdate(`
		SELECT hours_given FROM attendance WHERE volunteer_id = ? AND event_id = ?
	`), volunteerID, eventID).Scan(&hours)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("attendance lookup: %w", err)
	}
	return hours, true, nil
}

func insertAttendance(ctx context.Context, tx *store.Tx, volunteerID, eventID, markedBy string, at time.Time, hours float64, status Status) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO attendance (id, volunteer_id, event_id, marked_by, marked_at, hours_given, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), volunteerID, eventID, markedBy, at, hours, string(status))
	if store.IsUniqueViolation(err) {
		return fmt.Errorf("%w: volunteer %s, event %s", ErrAlreadyMarked, volunteerID, eventID)
	}
	if err != nil {
		return fmt.Errorf("insert attendance for %s: %w", volunteerID, err)
	}
	return nil
}

func addAttendedHours(ctx context.Context, tx *store.Tx, volunteerID string, hours float64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE volunteers SET total_hours = total_hours + ?, events_attended = events_attended + 1
		WHERE id = ?
	`, hours, volunteerID)
	if err != nil {
		return fmt.Errorf("update volunteer %s: %w", volunteerID, err)
	}
	return nil
}

func setAttendanceHours(ctx context.Context, tx *store.Tx, volunteerID, eventID string, hours float64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE attendance SET hours_given = ? WHERE volunteer_id = ? AND event_id = ?
	`, hours, volunteerID, eventID)
	if err != nil {
		return fmt.Errorf("update attendance hours: %w", err)
	}
	return nil
}

// adjustTotal moves the volunteer's total by delta. A decrease only applies
// while the stored total covers it, so the total cannot go negative even if
// it changed after it was read.
func adjustTotal(ctx context.Context, tx *store.Tx, volunteerID string, delta float64) error {
	switch {
	case delta == 0:
		return nil
	case delta > 0:
		_, err := tx.ExecContext(ctx, `UPDATE volunteers SET total_hours = total_hours + ? WHERE id = ?`, delta, volunteerID)
		if err != nil {
			return fmt.Errorf("adjust volunteer total: %w", err)
		}
		return nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE volunteers SET total_hours = total_hours + ?
		WHERE id = ? AND total_hours + ? >= ?
	`, delta, volunteerID, delta, -hoursEpsilon)
	if err != nil {
		return fmt.Errorf("adjust volunteer total: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("adjust volunteer total: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: volunteer %s by %+.2f", ErrNegativeTotal, volunteerID, delta)
	}
	return nil
}

func insertModification(ctx context.Context, tx *store.Tx, m Modification) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO hours_modification_log (id, volunteer_id, event_id, modified_by, old_hours, new_hours, modified_at, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.VolunteerID, m.EventID, m.ModifiedBy, m.OldHours, m.NewHours, m.ModifiedAt, m.Reason)
	if err != nil {
		return fmt.Errorf("insert modification log: %w", err)
	}
	return nil
}
