// Package events is the catalog of service events attendance is marked
// against.
package events

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volunteerledger/internal/auth"
	"volunteerledger/internal/store"
)

var (
	ErrValidation = errors.New("invalid event")
	ErrNotFound   = errors.New("event not found")
	ErrForbidden  = errors.New("forbidden")
)

// maxDuration bounds a single event's hours.
const maxDuration = 24

type Event struct {
	ID            string    `json:"event_id"`
	Name          string    `json:"event_name"`
	Date          time.Time `json:"event_date"`
	DurationHours float64   `json:"duration_hours"`
	Location      string    `json:"location"`
	CreatedBy     string    `json:"created_by"`
	CreatedAt     time.Time `json:"created_at"`
}

type NewEvent struct {
	Name          string
	Date          time.Time
	DurationHours float64
	Location      string
}

type Service struct {
	db  *store.DB
	log *zap.Logger
	now func() time.Time
}

func NewService(db *store.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log, now: func() time.Time { return time.Now().UTC() }}
}

// Create adds an event. The date is truncated to the day.
func (s *Service) Create(ctx context.Context, p auth.Principal, in NewEvent) (Event, error) {
	if !p.Role.CanManageContent() {
		return Event{}, fmt.Errorf("%w: role %s cannot create events", ErrForbidden, p.Role)
	}
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return Event{}, fmt.Errorf("%w: name is required", ErrValidation)
	case in.Date.IsZero():
		return Event{}, fmt.Errorf("%w: date is required", ErrValidation)
	case in.DurationHours < 0 || in.DurationHours > maxDuration:
		return Event{}, fmt.Errorf("%w: duration must be between 0 and %d hours", ErrValidation, maxDuration)
	}

	e := Event{
		ID:            uuid.NewString(),
		Name:          in.Name,
		Date:          day(in.Date),
		DurationHours: in.DurationHours,
		Location:      strings.TrimSpace(in.Location),
		CreatedBy:     p.UserID,
		CreatedAt:     s.now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO events (id, name, event_date, duration_hours, location, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.Date, e.DurationHours, e.Location, e.CreatedBy, e.CreatedAt)
	if err != nil {
		return Event{}, fmt.Errorf("insert event: %w", err)
	}
	s.log.Info("event created", zap.String("event_id", e.ID), zap.String("created_by", p.UserID))
	return e, nil
}

const columns = `id, name, event_date, duration_hours, location, created_by, created_at`

type scanner interface{ Scan(dest ...any) error }

func scan(r scanner) (Event, error) {
	var e Event
	err := r.Scan(&e.ID, &e.Name, &e.Date, &e.DurationHours, &e.Location, &e.CreatedBy, &e.CreatedAt)
	return e, err
}

func (s *Service) Get(ctx context.Context, id string) (Event, error) {
	e, err := scan(s.db.QueryRowContext(ctx, `SELECT `+columns+` FROM events WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Event{}, ErrNotFound
	}
	if err != nil {
		return Event{}, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// List returns every event, latest first.
func (s *Service) List(ctx context.Context) ([]Event, error) {
	return s.list(ctx, `SELECT `+columns+` FROM events ORDER BY event_date DESC, created_at DESC`)
}

// Active returns events dated today or later, soonest first.
func (s *Service) Active(ctx context.Context) ([]Event, error) {
	return s.list(ctx, `SELECT `+columns+` FROM events WHERE event_date >= ? ORDER BY event_date, created_at`, day(s.now()))
}

func (s *Service) list(ctx context.Context, q string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()
	out := []Event{}
	for rows.Next() {
		e, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
