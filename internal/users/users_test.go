package users_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"volunteerledger/internal/auth"
	"volunteerledger/internal/testutil"
	"volunteerledger/internal/users"
)

const (
	issuer = "test-issuer"
	key    = "test-key"
)

func newService(t *testing.T) (*users.Service, *testutil.Fixtures) {
	t.Helper()
	db := testutil.OpenDB(t)
	svc := users.NewService(db, nil, users.TokenConfig{Issuer: issuer, SigningKey: key, TTL: time.Hour})
	return svc, testutil.NewFixtures(t, db)
}

func TestLogin(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	mentor := fx.CreateMentor(ctx, "Mentor")
	v := fx.CreateVolunteer(ctx, "Asha", mentor)

	sess, err := svc.Login(ctx, "  "+v.Email+" ", testutil.Password)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.User.ID != v.ID || sess.User.Role != auth.RoleVolunteer {
		t.Errorf("user = %+v", sess.User)
	}
	if sess.User.ProfileID != v.ProfileID || sess.User.MentorID != mentor.ProfileID {
		t.Errorf("profile = %q mentor = %q", sess.User.ProfileID, sess.User.MentorID)
	}

	p, err := auth.Parse(sess.Token.Value, key, issuer)
	if err != nil {
		t.Fatalf("Parse token failed: %v", err)
	}
	if p.UserID != v.ID || p.Role != auth.RoleVolunteer || p.Email != v.Email {
		t.Errorf("principal = %+v", p)
	}
}

func TestLogin_MentorProfile(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	mentor := fx.CreateMentor(ctx, "Mentor")

	sess, err := svc.Login(ctx, mentor.Email, testutil.Password)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if sess.User.ProfileID != mentor.ProfileID {
		t.Errorf("ProfileID = %q, want %q", sess.User.ProfileID, mentor.ProfileID)
	}
}

func TestLogin_Rejects(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	mentor := fx.CreateMentor(ctx, "Mentor")

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{name: "wrong password", email: mentor.Email, password: "nope-nope"},
		{name: "unknown email", email: "ghost@test.org", password: testutil.Password},
		{name: "empty", email: "", password: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Login(ctx, tt.email, tt.password); !errors.Is(err, users.ErrInvalidCredentials) {
				t.Errorf("err = %v, want ErrInvalidCredentials", err)
			}
		})
	}
}

func TestCreate_VolunteerWithMentor(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	gs := fx.CreateGenSec(ctx, "GS")
	mentor := fx.CreateMentor(ctx, "Mentor")

	u, err := svc.Create(ctx, gs.Principal(), users.NewUser{
		Email:      "Ravi@IITP.ac.in",
		Name:       "Ravi",
		Password:   "long-enough",
		Role:       "volunteer",
		RollNumber: "2301CS01",
		Wing:       "Education",
		MentorID:   mentor.ProfileID,
	})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if u.Email != "ravi@iitp.ac.in" {
		t.Errorf("email = %q, want lower-cased", u.Email)
	}

	sess, err := svc.Login(ctx, "ravi@iitp.ac.in", "long-enough")
	if err != nil {
		t.Fatalf("Login as new user failed: %v", err)
	}
	if sess.User.ProfileID != u.ProfileID || sess.User.MentorID != mentor.ProfileID {
		t.Errorf("login profile = %+v", sess.User)
	}
}

func TestCreate_Rejects(t *testing.T) {
	svc, fx := newService(t)
	ctx := context.Background()
	gs := fx.CreateGenSec(ctx, "GS")
	mentor := fx.CreateMentor(ctx, "Mentor")

	valid := users.NewUser{Email: "new@test.org", Name: "New", Password: "long-enough", Role: "mentor"}
	tests := []struct {
		name    string
		caller  auth.Principal
		mutate  func(*users.NewUser)
		wantErr error
	}{
		{name: "mentor caller", caller: mentor.Principal(), wantErr: users.ErrForbidden},
		{name: "bad email", caller: gs.Principal(), mutate: func(u *users.NewUser) { u.Email = "nope" }, wantErr: users.ErrValidation},
		{name: "short password", caller: gs.Principal(), mutate: func(u *users.NewUser) { u.Password = "short" }, wantErr: users.ErrValidation},
		{name: "unknown role", caller: gs.Principal(), mutate: func(u *users.NewUser) { u.Role = "admin" }, wantErr: users.ErrValidation},
		{name: "mentor with mentor", caller: gs.Principal(), mutate: func(u *users.NewUser) { u.MentorID = mentor.ProfileID }, wantErr: users.ErrValidation},
		{name: "unknown mentor", caller: gs.Principal(), mutate: func(u *users.NewUser) { u.Role = "volunteer"; u.MentorID = "ghost" }, wantErr: users.ErrValidation},
		{name: "email taken", caller: gs.Principal(), mutate: func(u *users.NewUser) { u.Email = mentor.Email }, wantErr: users.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			if tt.mutate != nil {
				tt.mutate(&in)
			}
			if _, err := svc.Create(ctx, tt.caller, in); !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
	// gs + mentor fixtures only
	if n := fx.Count(ctx, "users"); n != 2 {
		t.Errorf("users = %d, want 2", n)
	}
}
