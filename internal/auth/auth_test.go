package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/studentpulse/internal/db"
)

func TestIssueAndValidate(t *testing.T) {
	manager, err := NewTokenManager("secret", time.Hour)
	if err != nil {
		t.Fatalf("NewTokenManager returned error: %v", err)
	}

	studentID := uint(7)
	user := db.User{Username: "aryan", Role: "STUDENT", StudentID: &studentID}
	user.ID = 3

	token, err := manager.Issue(user)
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}

	claims, err := manager.Validate(token)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if claims.UserID != 3 || claims.Role != db.RoleStudent || claims.StudentID == nil || *claims.StudentID != 7 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}

func TestValidateRejectsBadTokens(t *testing.T) {
	manager, _ := NewTokenManager("secret", time.Hour)
	other, _ := NewTokenManager("other", time.Hour)

	token, _ := other.Issue(db.User{Username: "x"})
	if _, err := manager.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for wrong secret, got %v", err)
	}
	if _, err := manager.Validate(""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for empty token, got %v", err)
	}

	expired, _ := NewTokenManager("secret", time.Minute)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _ := expired.Issue(db.User{Username: "x"})
	if _, err := manager.Validate(old); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}

	if _, err := NewTokenManager(" ", 0); !errors.Is(err, ErrSecretMissing) {
		t.Fatalf("expected ErrSecretMissing, got %v", err)
	}
}

func TestBearerToken(t *testing.T) {
	if got := BearerToken("Bearer abc"); got != "abc" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := BearerToken("bearer  xyz "); got != "xyz" {
		t.Fatalf("unexpected token %q", got)
	}
	if got := BearerToken("Basic abc"); got != "" {
		t.Fatalf("expected empty token, got %q", got)
	}
}

func TestRoleHierarchy(t *testing.T) {
	if !IsAtLeast(db.RoleAdmin, db.RoleMentor) {
		t.Fatal("admin should be at least mentor")
	}
	if IsAtLeast(db.RoleCounsellor, db.RoleMentor) {
		t.Fatal("counsellor should not be at least mentor")
	}
	if !IsAtLeast(db.RoleSuperAdmin, db.RoleSuperAdmin) {
		t.Fatal("role should satisfy itself")
	}
	if IsAtLeast("wizard", db.RoleCounsellor) {
		t.Fatal("unknown role should be treated as student")
	}
	if ValidRole("wizard") || !ValidRole("Mentor") {
		t.Fatal("unexpected ValidRole result")
	}
	if len(Roles()) != 5 {
		t.Fatalf("expected 5 roles, got %d", len(Roles()))
	}
}
