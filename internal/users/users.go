// Package users handles accounts: login and creation of users together with
// their role profile row.
package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"volunteerledger/internal/auth"
	"volunteerledger/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrValidation         = errors.New("invalid user")
	ErrEmailTaken         = errors.New("email already registered")
	ErrForbidden          = errors.New("forbidden")
)

// User is an account joined with its role profile.
type User struct {
	ID             string    `json:"user_id"`
	Email          string    `json:"email"`
	Name           string    `json:"name"`
	Role           auth.Role `json:"role"`
	RollNumber     string    `json:"roll_number"`
	Wing           string    `json:"wing_name"`
	ProfileID      string    `json:"profile_id,omitempty"`
	MentorID       string    `json:"mentor_id,omitempty"`
	TotalHours     float64   `json:"total_hours,omitempty"`
	EventsAttended int       `json:"events_attended,omitempty"`
}

// NewUser is the input for Create. MentorID only applies to volunteers and
// names a mentors row.
type NewUser struct {
	Email      string
	Name       string
	Password   string
	Role       string
	RollNumber string
	Wing       string
	MentorID   string
}

// Session is the result of a successful login.
type Session struct {
	Token auth.Token
	User  User
}

// TokenConfig holds the parameters for signing access tokens.
type TokenConfig struct {
	Issuer     string
	SigningKey string
	TTL        time.Duration
}

// Service manages accounts.
type Service struct {
	db     *store.DB
	log    *zap.Logger
	tokens TokenConfig
}

func NewService(db *store.DB, log *zap.Logger, tokens TokenConfig) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{db: db, log: log, tokens: tokens}
}

// Login verifies the password and issues an access token.
func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	var u User
	var hash, role string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, password_hash, role, roll_number, wing FROM users WHERE email = ?
	`, email).Scan(&u.ID, &u.Email, &u.Name, &hash, &role, &u.RollNumber, &u.Wing)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !auth.CheckPassword(hash, password) {
		s.log.Info("login failed", zap.String("user_id", u.ID))
		return Session{}, ErrInvalidCredentials
	}
	if u.Role, err = auth.ParseRole(role); err != nil {
		return Session{}, fmt.Errorf("user %s: %w", u.ID, err)
	}
	if err := s.loadProfile(ctx, &u); err != nil {
		return Session{}, err
	}

	tok, err := auth.Issue(auth.Principal{UserID: u.ID, Role: u.Role, Email: u.Email}, s.tokens.Issuer, s.tokens.SigningKey, s.tokens.TTL)
	if err != nil {
		return Session{}, fmt.Errorf("issue token: %w", err)
	}
	s.log.Info("login", zap.String("user_id", u.ID), zap.String("role", u.Role.String()))
	return Session{Token: tok, User: u}, nil
}

// loadProfile fills the role-specific fields. A missing profile row leaves
// them empty.
func (s *Service) loadProfile(ctx context.Context, u *User) error {
	var err error
	switch u.Role {
	case auth.RoleVolunteer:
		var mentorID sql.NullString
		err = s.db.QueryRowContext(ctx, `
			SELECT id, mentor_id, total_hours, events_attended FROM volunteers WHERE user_id = ?
		`, u.ID).Scan(&u.ProfileID, &mentorID, &u.TotalHours, &u.EventsAttended)
		u.MentorID = mentorID.String
	default:
		err = s.db.QueryRowContext(ctx, `SELECT id FROM `+u.Role.ProfileTable()+` WHERE user_id = ?`, u.ID).
			Scan(&u.ProfileID)
	}
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("load %s profile: %w", u.Role, err)
	}
	return nil
}

// Create adds an account and its profile row in one transaction. Only
// general secretaries may create accounts.
func (s *Service) Create(ctx context.Context, p auth.Principal, in NewUser) (User, error) {
	if !p.Role.CanManageUsers() {
		return User{}, fmt.Errorf("%w: role %s cannot create users", ErrForbidden, p.Role)
	}
	role, err := validateNewUser(&in)
	if err != nil {
		return User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	u := User{
		ID:         uuid.NewString(),
		Email:      in.Email,
		Name:       in.Name,
		Role:       role,
		RollNumber: in.RollNumber,
		Wing:       in.Wing,
		ProfileID:  uuid.NewString(),
		MentorID:   in.MentorID,
	}
	err = s.db.WithTx(ctx, func(tx *store.Tx) error {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM users WHERE email = ?`, u.Email).Scan(&one)
		if err == nil {
			return ErrEmailTaken
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check email: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, email, name, password_hash, role, roll_number, wing, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, u.ID, u.Email, u.Name, hash, string(u.Role), u.RollNumber, u.Wing, time.Now().UTC()); err != nil {
			return fmt.Errorf("insert user: %w", err)
		}

		if u.Role != auth.RoleVolunteer {
			_, err := tx.ExecContext(ctx, `INSERT INTO `+u.Role.ProfileTable()+` (id, user_id) VALUES (?, ?)`, u.ProfileID, u.ID)
			if err != nil {
				return fmt.Errorf("insert %s profile: %w", u.Role, err)
			}
			return nil
		}

		var mentor any
		if u.MentorID != "" {
			if err := tx.QueryRowContext(ctx, `SELECT 1 FROM mentors WHERE id = ?`, u.MentorID).Scan(&one); err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					return fmt.Errorf("%w: unknown mentor %s", ErrValidation, u.MentorID)
				}
				return fmt.Errorf("check mentor: %w", err)
			}
			mentor = u.MentorID
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO volunteers (id, user_id, mentor_id, total_hours, events_attended) VALUES (?, ?, ?, 0, 0)
		`, u.ProfileID, u.ID, mentor); err != nil {
			return fmt.Errorf("insert volunteer profile: %w", err)
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}

	s.log.Info("user created",
		zap.String("user_id", u.ID),
		zap.String("role", u.Role.String()),
		zap.String("created_by", p.UserID))
	return u, nil
}

func validateNewUser(in *NewUser) (auth.Role, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Name = strings.TrimSpace(in.Name)
	in.RollNumber = strings.TrimSpace(in.RollNumber)
	in.Wing = strings.TrimSpace(in.Wing)
	in.MentorID = strings.TrimSpace(in.MentorID)

	if _, err := mail.ParseAddress(in.Email); err != nil || in.Email == "" {
		return "", fmt.Errorf("%w: invalid email", ErrValidation)
	}
	if in.Name == "" {
		return "", fmt.Errorf("%w: name is required", ErrValidation)
	}
	if len(in.Password) < 8 {
		return "", fmt.Errorf("%w: password must be at least 8 characters", ErrValidation)
	}
	role, err := auth.ParseRole(in.Role)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if role != auth.RoleVolunteer && in.MentorID != "" {
		return "", fmt.Errorf("%w: only volunteers have a mentor", ErrValidation)
	}
	return role, nil
}
