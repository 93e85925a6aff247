package auth

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"medassist/internal/storage"

	_ "github.com/mattn/go-sqlite3"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite"); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestAuthenticateRegistersNewUser(t *testing.T) {
	svc := NewService(newTestDB(t), nil, time.Hour)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "1234")
	if err != nil {
		t.Fatalf("authenticate new user: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected non-zero user id")
	}

	again, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "1234")
	if err != nil {
		t.Fatalf("authenticate returning user: %v", err)
	}
	if again.ID != user.ID {
		t.Fatalf("expected same user id, got %d and %d", user.ID, again.ID)
	}
}

func TestAuthenticateLockoutAfterThreeFailures(t *testing.T) {
	svc := NewService(newTestDB(t), nil, time.Hour)
	ctx := context.Background()

	if _, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "1234"); err != nil {
		t.Fatalf("register: %v", err)
	}

	for i := 0; i < 2; i++ {
		_, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "0000")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "0000")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("third failure: expected ErrAccountLocked, got %v", err)
	}

	// Even the right PIN is rejected once locked.
	_, err = svc.Authenticate(ctx, "Asha", "1990-04-12", "1234")
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("locked account: expected ErrAccountLocked, got %v", err)
	}
}

func TestAuthenticateResetsCounterOnSuccess(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "0000"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "1234"); err != nil {
		t.Fatalf("correct pin after failure: %v", err)
	}

	var failed int
	if err := db.QueryRow("SELECT failed_attempts FROM users WHERE id = ?", user.ID).Scan(&failed); err != nil {
		t.Fatalf("read failed_attempts: %v", err)
	}
	if failed != 0 {
		t.Fatalf("expected counter reset, got %d", failed)
	}
}

func TestTokenLifecycle(t *testing.T) {
	svc := NewService(newTestDB(t), nil, time.Hour)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	token, err := svc.IssueToken(ctx, user.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	gotID, err := svc.ValidateToken(ctx, token)
	if err != nil {
		t.Fatalf("validate token: %v", err)
	}
	if gotID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, gotID)
	}

	if err := svc.RevokeToken(ctx, token); err != nil {
		t.Fatalf("revoke token: %v", err)
	}
	if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken after revoke, got %v", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	db := newTestDB(t)
	svc := NewService(db, nil, time.Hour)
	ctx := context.Background()

	user, err := svc.Authenticate(ctx, "Asha", "1990-04-12", "1234")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	token, err := svc.IssueToken(ctx, user.ID)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	past := time.Now().Add(-time.Minute)
	if _, err := db.Exec("UPDATE user_tokens SET expires_at = ? WHERE token = ?", past, token); err != nil {
		t.Fatalf("backdate token: %v", err)
	}

	if _, err := svc.ValidateToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}
