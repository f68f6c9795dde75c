// Package donations keeps the list of donation campaigns shown on the
// public page.
package donations

import (
	"context"
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
	ErrValidation = errors.New("invalid campaign")
	ErrForbidden  = errors.New("forbidden")
)

type Campaign struct {
	ID        string    `json:"campaign_id"`
	Name      string    `json:"campaign_name"`
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

type Service struct {
	db  *store.DB
	log *zap.Logger
}

func NewService(db *store.DB, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log}
}

// Create adds a campaign running from start to end inclusive.
func (s *Service) Create(ctx context.Context, p auth.Principal, name string, start, end time.Time) (Campaign, error) {
	if !p.Role.CanManageContent() {
		return Campaign{}, fmt.Errorf("%w: role %s cannot create campaigns", ErrForbidden, p.Role)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return Campaign{}, fmt.Errorf("%w: name is required", ErrValidation)
	}
	if start.IsZero() || end.IsZero() {
		return Campaign{}, fmt.Errorf("%w: start and end dates are required", ErrValidation)
	}
	if end.Before(start) {
		return Campaign{}, fmt.Errorf("%w: end date is before start date", ErrValidation)
	}

	c := Campaign{
		ID:        uuid.NewString(),
		Name:      name,
		StartDate: start.UTC(),
		EndDate:   end.UTC(),
		CreatedBy: p.UserID,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO donation_campaigns (id, name, start_date, end_date, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, c.Name, c.StartDate, c.EndDate, c.CreatedBy, c.CreatedAt)
	if err != nil {
		return Campaign{}, fmt.Errorf("insert campaign: %w", err)
	}
	s.log.Info("donation campaign created", zap.String("campaign_id", c.ID), zap.String("created_by", p.UserID))
	return c, nil
}

// List returns all campaigns, most recent start first.
func (s *Service) List(ctx context.Context) ([]Campaign, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, start_date, end_date, created_by, created_at
		FROM donation_campaigns ORDER BY start_date DESC, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list campaigns: %w", err)
	}
	defer rows.Close()

	out := []Campaign{}
	for rows.Next() {
		var c Campaign
		if err := rows.Scan(&c.ID, &c.Name, &c.StartDate, &c.EndDate, &c.CreatedBy, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
