package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/studentpulse/internal/store"
)

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func TestDirectoryServiceCRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewDirectoryService(store.NewMemoryTable[DirectoryUser]())
	tick := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	svc.now = func() time.Time {
		tick = tick.Add(time.Minute)
		return tick
	}

	first, err := svc.Create(ctx, DirectoryInput{Name: strPtr("Priya Nair"), Email: strPtr("priya@example.edu"), Age: intPtr(20)})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if first.ID == "" || first.CreatedAt.IsZero() {
		t.Fatalf("expected id and timestamps, got %#v", first)
	}
	if _, err := svc.Create(ctx, DirectoryInput{Name: strPtr("Rahul Verma"), Email: strPtr("rahul@example.edu")}); err != nil {
		t.Fatalf("create second failed: %v", err)
	}

	if _, err := svc.Create(ctx, DirectoryInput{Name: strPtr("Duplicate"), Email: strPtr("PRIYA@example.edu")}); !errors.Is(err, ErrDirectoryEmailTaken) {
		t.Fatalf("expected ErrDirectoryEmailTaken, got %v", err)
	}
	if _, err := svc.Create(ctx, DirectoryInput{Name: strPtr("No Email")}); !errors.Is(err, ErrDirectoryInvalidInput) {
		t.Fatalf("expected ErrDirectoryInvalidInput, got %v", err)
	}
	if _, err := svc.Create(ctx, DirectoryInput{Name: strPtr("Old"), Email: strPtr("old@example.edu"), Age: intPtr(200)}); !errors.Is(err, ErrDirectoryInvalidInput) {
		t.Fatalf("expected ErrDirectoryInvalidInput for age, got %v", err)
	}

	found, err := svc.GetByEmail(ctx, " Priya@Example.edu ")
	if err != nil {
		t.Fatalf("get by email failed: %v", err)
	}
	if found.ID != first.ID {
		t.Fatalf("expected %s, got %s", first.ID, found.ID)
	}

	updated, err := svc.Update(ctx, first.ID, DirectoryInput{Age: intPtr(21)})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Priya Nair" || updated.Age == nil || *updated.Age != 21 {
		t.Fatalf("unexpected update result: %#v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("expected updatedAt to move forward, got %v", updated.UpdatedAt)
	}
	if _, err := svc.Update(ctx, first.ID, DirectoryInput{Email: strPtr("rahul@example.edu")}); !errors.Is(err, ErrDirectoryEmailTaken) {
		t.Fatalf("expected ErrDirectoryEmailTaken on update, got %v", err)
	}

	users, err := svc.List(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(users) != 2 || users[0].ID != first.ID {
		t.Fatalf("expected creation order, got %#v", users)
	}

	if err := svc.Delete(ctx, first.ID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := svc.Get(ctx, first.ID); !errors.Is(err, ErrDirectoryUserNotFound) {
		t.Fatalf("expected ErrDirectoryUserNotFound, got %v", err)
	}
	if err := svc.Delete(ctx, first.ID); !errors.Is(err, ErrDirectoryUserNotFound) {
		t.Fatalf("expected ErrDirectoryUserNotFound on second delete, got %v", err)
	}
}

func TestDirectoryServiceWithGormTable(t *testing.T) {
	ctx := context.Background()
	gdb := setupServiceTestDB(t)
	svc := NewDirectoryService(store.NewGormTable[DirectoryUser](gdb, DirectoryCollection))

	created, err := svc.Create(ctx, DirectoryInput{Name: strPtr("Ananya Rao"), Email: strPtr("ananya@example.edu")})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	fetched, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if fetched.Email != "ananya@example.edu" {
		t.Fatalf("unexpected fetched user: %#v", fetched)
	}
}
