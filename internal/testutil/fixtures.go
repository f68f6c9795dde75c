package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"volunteerledger/internal/auth"
	"volunteerledger/internal/store"
)

// Password is the plain-text password of every fixture user.
const Password = "secret-pass"

var (
	hashOnce sync.Once
	hash     string
	hashErr  error
)

func passwordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() { hash, hashErr = auth.HashPassword(Password) })
	if hashErr != nil {
		t.Fatalf("failed to hash fixture password: %v", hashErr)
	}
	return hash
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *store.DB
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *store.DB) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *store.DB {
	return f.db
}

// User is a created account together with its role profile id.
type User struct {
	ID        string
	ProfileID string
	Name      string
	Email     string
	Role      auth.Role
}

// Principal returns the authenticated caller for this user.
func (u User) Principal() auth.Principal {
	return auth.Principal{UserID: u.ID, Role: u.Role, Email: u.Email}
}

func (f *Fixtures) createUser(ctx context.Context, name string, role auth.Role) User {
	f.t.Helper()

	u := User{
		ID:        uuid.NewString(),
		ProfileID: uuid.NewString(),
		Name:      name,
		Email:     uuid.NewString()[:8] + "@test.org",
		Role:      role,
	}
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, roll_number, wing, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, u.ID, u.Email, u.Name, passwordHash(f.t), string(role), "R-"+u.ID[:4], "Test Wing", time.Now().UTC())
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}
	return u
}

// CreateMentor creates a user with the mentor role and its mentor profile.
func (f *Fixtures) CreateMentor(ctx context.Context, name string) User {
	f.t.Helper()

	u := f.createUser(ctx, name, auth.RoleMentor)
	if _, err := f.db.ExecContext(ctx, `INSERT INTO mentors (id, user_id) VALUES (?, ?)`, u.ProfileID, u.ID); err != nil {
		f.t.Fatalf("failed to create test mentor: %v", err)
	}
	return u
}

// CreateGenSec creates a user with the general secretary role.
func (f *Fixtures) CreateGenSec(ctx context.Context, name string) User {
	f.t.Helper()

	u := f.createUser(ctx, name, auth.RoleGeneralSecretary)
	if _, err := f.db.ExecContext(ctx, `INSERT INTO general_secretaries (id, user_id) VALUES (?, ?)`, u.ProfileID, u.ID); err != nil {
		f.t.Fatalf("failed to create test general secretary: %v", err)
	}
	return u
}

// CreateVolunteer creates a volunteer supervised by mentor. Pass a zero
// User for an unassigned volunteer. ProfileID is the volunteer id used by
// the ledger.
func (f *Fixtures) CreateVolunteer(ctx context.Context, name string, mentor User) User {
	f.t.Helper()

	u := f.createUser(ctx, name, auth.RoleVolunteer)
	var mentorID any
	if mentor.ProfileID != "" {
		mentorID = mentor.ProfileID
	}
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO volunteers (id, user_id, mentor_id, total_hours, events_attended)
		VALUES (?, ?, ?, 0, 0)
	`, u.ProfileID, u.ID, mentorID)
	if err != nil {
		f.t.Fatalf("failed to create test volunteer: %v", err)
	}
	return u
}

// Event is a created catalog event.
type Event struct {
	ID            string
	Name          string
	Date          time.Time
	DurationHours float64
}

// CreateEvent creates an event lasting hours on date.
func (f *Fixtures) CreateEvent(ctx context.Context, name string, date time.Time, hours float64, createdBy User) Event {
	f.t.Helper()

	e := Event{ID: uuid.NewString(), Name: name, Date: date, DurationHours: hours}
	_, err := f.db.ExecContext(ctx, `
		INSERT INTO events (id, name, event_date, duration_hours, location, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.Name, e.Date, e.DurationHours, "Campus", createdBy.ID, time.Now().UTC())
	if err != nil {
		f.t.Fatalf("failed to create test event: %v", err)
	}
	return e
}

// VolunteerTotals reads the stored aggregate of a volunteer.
func (f *Fixtures) VolunteerTotals(ctx context.Context, volunteerID string) (hours float64, events int) {
	f.t.Helper()

	err := f.db.QueryRowContext(ctx, `SELECT total_hours, events_attended FROM volunteers WHERE id = ?`, volunteerID).
		Scan(&hours, &events)
	if err != nil {
		f.t.Fatalf("failed to read volunteer totals: %v", err)
	}
	return hours, events
}

// Count returns the number of rows in table.
func (f *Fixtures) Count(ctx context.Context, table string) int {
	f.t.Helper()

	var n int
	if err := f.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
		f.t.Fatalf("failed to count %s: %v", table, err)
	}
	return n
}
