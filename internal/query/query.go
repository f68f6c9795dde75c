// Package query serves the read-only ledger projections behind the
// dashboards. Every method degrades to an empty result instead of failing.
package query

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"volunteerledger/internal/store"
)

// HistoryEntry is one attendance row as shown on a volunteer dashboard.
type HistoryEntry struct {
	AttendanceID string    `json:"attendance_id"`
	EventID      string    `json:"event_id"`
	EventName    string    `json:"event_name"`
	EventDate    time.Time `json:"event_date"`
	HoursGiven   float64   `json:"hours_given"`
	Status       string    `json:"attendance_status"`
	MarkedByName string    `json:"marked_by_name"`
	MarkedAt     time.Time `json:"marked_at"`
}

// RosterEntry is one volunteer supervised by a mentor.
type RosterEntry struct {
	VolunteerID    string  `json:"volunteer_id"`
	UserID         string  `json:"user_id"`
	Name           string  `json:"name"`
	RollNumber     string  `json:"roll_number"`
	Wing           string  `json:"wing_name"`
	TotalHours     float64 `json:"total_hours"`
	EventsAttended int     `json:"events_attended"`
}

// Summary is the stored aggregate of a volunteer.
type Summary struct {
	VolunteerID    string  `json:"volunteer_id"`
	EventsAttended int     `json:"events_attended"`
	TotalHours     float64 `json:"total_hours"`
}

// Modification is one hours-correction log row.
type Modification struct {
	ID             string    `json:"id"`
	EventID        string    `json:"event_id"`
	EventName      string    `json:"event_name"`
	ModifiedBy     string    `json:"modified_by"`
	ModifiedByName string    `json:"modified_by_name"`
	OldHours       float64   `json:"old_hours"`
	NewHours       float64   `json:"new_hours"`
	ModifiedAt     time.Time `json:"modified_at"`
	Reason         string    `json:"reason"`
}

// SummaryCache stores summaries outside the database. Implementations must
// be safe for concurrent use.
type SummaryCache interface {
	Get(ctx context.Context, volunteerID string) (Summary, bool, error)
	Set(ctx context.Context, s Summary) error
}

// Service runs the read-side queries.
type Service struct {
	db    *store.DB
	cache SummaryCache
	log   *zap.Logger
}

// NewService creates a query service. cache may be nil.
func NewService(db *store.DB, cache SummaryCache, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, cache: cache, log: log}
}

// History returns a volunteer's attendance, newest event first.
func (s *Service) History(ctx context.Context, volunteerID string) []HistoryEntry {
	out := []HistoryEntry{}
	rows, err := s.db.QueryContext(ctx, `
		SELECT a.id, e.id, e.name, e.event_date, a.hours_given, a.status, u.name, a.marked_at
		FROM attendance a
		JOIN events e ON a.event_id = e.id
		JOIN users u ON a.marked_by = u.id
		WHERE a.volunteer_id = ?
		ORDER BY e.event_date DESC, a.marked_at DESC
	`, volunteerID)
	if err != nil {
		s.log.Warn("history query failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var h HistoryEntry
		if err := rows.Scan(&h.AttendanceID, &h.EventID, &h.EventName, &h.EventDate, &h.HoursGiven, &h.Status, &h.MarkedByName, &h.MarkedAt); err != nil {
			s.log.Warn("history scan failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
			return []HistoryEntry{}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("history rows failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return []HistoryEntry{}
	}
	return out
}

// Roster returns the volunteers supervised by the mentor with the given
// user id, ordered by name.
func (s *Service) Roster(ctx context.Context, mentorUserID string) []RosterEntry {
	out := []RosterEntry{}
	rows, err := s.db.QueryContext(ctx, `
		SELECT v.id, u.id, u.name, u.roll_number, u.wing, v.total_hours, v.events_attended
		FROM volunteers v
		JOIN users u ON v.user_id = u.id
		JOIN mentors m ON v.mentor_id = m.id
		WHERE m.user_id = ?
		ORDER BY u.name
	`, mentorUserID)
	if err != nil {
		s.log.Warn("roster query failed", zap.String("mentor_user_id", mentorUserID), zap.Error(err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var r RosterEntry
		if err := rows.Scan(&r.VolunteerID, &r.UserID, &r.Name, &r.RollNumber, &r.Wing, &r.TotalHours, &r.EventsAttended); err != nil {
			s.log.Warn("roster scan failed", zap.String("mentor_user_id", mentorUserID), zap.Error(err))
			return []RosterEntry{}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("roster rows failed", zap.String("mentor_user_id", mentorUserID), zap.Error(err))
		return []RosterEntry{}
	}
	return out
}

// Summary returns the stored aggregate, read through the cache when one is
// configured. Unknown volunteers get a zero summary.
func (s *Service) Summary(ctx context.Context, volunteerID string) Summary {
	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, volunteerID); err != nil {
			s.log.Debug("summary cache get failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
		} else if ok {
			return cached
		}
	}
	sum, found := s.loadSummary(ctx, volunteerID)
	if found && s.cache != nil {
		if err := s.cache.Set(ctx, sum); err != nil {
			s.log.Debug("summary cache set failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
		}
	}
	return sum
}

// RefreshSummary reloads a summary from the database into the cache.
func (s *Service) RefreshSummary(ctx context.Context, volunteerID string) error {
	if s.cache == nil {
		return nil
	}
	sum, found := s.loadSummary(ctx, volunteerID)
	if !found {
		return nil
	}
	return s.cache.Set(ctx, sum)
}

func (s *Service) loadSummary(ctx context.Context, volunteerID string) (Summary, bool) {
	sum := Summary{VolunteerID: volunteerID}
	err := s.db.QueryRowContext(ctx, `
		SELECT events_attended, total_hours FROM volunteers WHERE id = ?
	`, volunteerID).Scan(&sum.EventsAttended, &sum.TotalHours)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.log.Warn("summary query failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
		}
		return Summary{VolunteerID: volunteerID}, false
	}
	return sum, true
}

// Modifications returns a volunteer's hours corrections, oldest first.
func (s *Service) Modifications(ctx context.Context, volunteerID string) []Modification {
	out := []Modification{}
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.id, l.event_id, COALESCE(e.name, ''), l.modified_by, COALESCE(u.name, ''),
		       l.old_hours, l.new_hours, l.modified_at, l.reason
		FROM hours_modification_log l
		LEFT JOIN events e ON l.event_id = e.id
		LEFT JOIN users u ON l.modified_by = u.id
		WHERE l.volunteer_id = ?
		ORDER BY l.modified_at, l.id
	`, volunteerID)
	if err != nil {
		s.log.Warn("modifications query failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return out
	}
	defer rows.Close()
	for rows.Next() {
		var m Modification
		if err := rows.Scan(&m.ID, &m.EventID, &m.EventName, &m.ModifiedBy, &m.ModifiedByName, &m.OldHours, &m.NewHours, &m.ModifiedAt, &m.Reason); err != nil {
			s.log.Warn("modifications scan failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
			return []Modification{}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		s.log.Warn("modifications rows failed", zap.String("volunteer_id", volunteerID), zap.Error(err))
		return []Modification{}
	}
	return out
}
