// Package ledger owns every write to attendance rows and volunteer hour
// totals. Each operation is one transaction: the attendance rows, the
// volunteer aggregates and the modification log move together or not at all.
package ledger

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrValidation       = errors.New("invalid request")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyMarked    = errors.New("attendance already marked")
	ErrUnknownVolunteer = errors.New("unknown volunteer")
	ErrNegativeTotal    = errors.New("total hours would become negative")
)

// Status is the attendance outcome stored on a row.
type Status string

const (
	StatusPresent Status = "present"
	StatusAbsent  Status = "absent"
	StatusExcused Status = "excused"
)

// hoursEpsilon absorbs float drift when checking that a total stays >= 0.
const hoursEpsilon = 1e-9

// Mark is one entry of a bulk attendance batch.
type Mark struct {
	VolunteerID string
	IsPresent   bool
}

// BatchResult describes a committed batch.
type BatchResult struct {
	EventID      string    `json:"event_id"`
	Marked       int       `json:"marked"`
	Present      int       `json:"present"`
	HoursAwarded float64   `json:"hours_awarded"`
	MarkedAt     time.Time `json:"marked_at"`
}

// Modification is a committed hours correction.
type Modification struct {
	ID          string    `json:"id"`
	VolunteerID string    `json:"volunteer_id"`
	EventID     string    `json:"event_id"`
	OldHours    float64   `json:"old_hours"`
	NewHours    float64   `json:"new_hours"`
	Delta       float64   `json:"delta"`
	ModifiedBy  string    `json:"modified_by"`
	ModifiedAt  time.Time `json:"modified_at"`
	Reason      string    `json:"reason"`
}

// Drift is a volunteer whose stored aggregate disagrees with their
// attendance rows.
type Drift struct {
	VolunteerID    string  `json:"volunteer_id"`
	StoredHours    float64 `json:"stored_hours"`
	RowHours       float64 `json:"row_hours"`
	StoredAttended int     `json:"stored_attended"`
	RowAttended    int     `json:"row_attended"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func validateBatch(eventID string, records []Mark) error {
	if strings.TrimSpace(eventID) == "" {
		return invalid("event id is required")
	}
	if len(records) == 0 {
		return invalid("attendance records are required")
	}
	seen := make(map[string]struct{}, len(records))
	for i, r := range records {
		if strings.TrimSpace(r.VolunteerID) == "" {
			return invalid("record %d has no volunteer id", i)
		}
		if _, dup := seen[r.VolunteerID]; dup {
			return invalid("volunteer %s appears more than once", r.VolunteerID)
		}
		seen[r.VolunteerID] = struct{}{}
	}
	return nil
}

func validateModification(volunteerID, eventID string, newHours float64, reason string) error {
	if strings.TrimSpace(volunteerID) == "" || strings.TrimSpace(eventID) == "" {
		return invalid("volunteer id and event id are required")
	}
	if newHours < 0 {
		return invalid("new hours must not be negative")
	}
	if strings.TrimSpace(reason) == "" {
		return invalid("a reason is required")
	}
	return nil
}

// reason maps an error onto the failure metric label.
func reason(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrAlreadyMarked):
		return "already_marked"
	case errors.Is(err, ErrUnknownVolunteer):
		return "unknown_volunteer"
	case errors.Is(err, ErrNegativeTotal):
		return "negative_total"
	}
	return "internal"
}
