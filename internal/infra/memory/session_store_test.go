package memory

import (
	"context"
	"errors"
	"testing"

	"writing-game-service/internal/app"
	"writing-game-service/internal/domain"
)

func TestSessionStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()

	session, err := store.Create(ctx, "4821")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if session.PIN() != "4821" || !session.Active() {
		t.Fatalf("expected active session 4821")
	}
	if _, ok := store.Get("4821"); !ok {
		t.Fatalf("expected session present")
	}
	if _, ok := store.Get("1234"); ok {
		t.Fatalf("unexpected session for unknown pin")
	}

	if _, err := store.Create(ctx, "4821"); !errors.Is(err, domain.ErrPINTaken) {
		t.Fatalf("expected pin taken, got %v", err)
	}
}

func TestSessionStoreReplacesEndedSession(t *testing.T) {
	ctx := context.Background()
	store := NewSessionStore()
	games := app.NewGameStore(store)

	if _, err := games.CreateSession(ctx, "4821"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := games.EndSession(ctx, "4821"); err != nil {
		t.Fatalf("end: %v", err)
	}
	ended, _ := store.Get("4821")
	if ended.Active() {
		t.Fatalf("expected ended session to stay registered as inactive")
	}

	fresh, err := store.Create(ctx, "4821")
	if err != nil {
		t.Fatalf("create after end: %v", err)
	}
	if fresh == ended || !fresh.Active() {
		t.Fatalf("expected a fresh active session")
	}
}
