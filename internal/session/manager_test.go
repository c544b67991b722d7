package session

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestManagerCreateGetEnd(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")
	if s.ID == "" {
		t.Fatalf("session ID should not be empty")
	}

	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.UserID != "u1" || got.Mode != ModeChat || got.Status != StatusActive {
		t.Fatalf("unexpected session state: %+v", got)
	}

	ended, err := m.End(s.ID)
	if err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if ended.Status != StatusEnded {
		t.Fatalf("ended status = %q, want %q", ended.Status, StatusEnded)
	}
	if _, err := m.ForUser("u1"); err != ErrNotFound {
		t.Fatalf("ForUser() after End error = %v, want ErrNotFound", err)
	}
}

func TestManagerBlankUserIsAnonymous(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("  ")
	if s.UserID != "anonymous" {
		t.Fatalf("UserID = %q, want anonymous", s.UserID)
	}
}

func TestManagerModePersonaAndTurns(t *testing.T) {
	m := NewManager(time.Minute)
	s := m.Create("u1")

	if err := m.SetMode(s.ID, ModeQuiz); err != nil {
		t.Fatalf("SetMode() error = %v", err)
	}
	if err := m.SetPersona(s.ID, "planner"); err != nil {
		t.Fatalf("SetPersona() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.RecordTurn(s.ID); err != nil {
			t.Fatalf("RecordTurn() error = %v", err)
		}
	}

	got, err := m.ForUser("u1")
	if err != nil {
		t.Fatalf("ForUser() error = %v", err)
	}
	if got.Mode != ModeQuiz || got.Persona != "planner" || got.Turns != 3 {
		t.Fatalf("unexpected session state: %+v", got)
	}
	if !got.LastActivityAt.After(got.StartedAt) && !got.LastActivityAt.Equal(got.StartedAt) {
		t.Fatalf("LastActivityAt should not precede StartedAt")
	}

	if err := m.SetMode("missing", ModeChat); err != ErrNotFound {
		t.Fatalf("SetMode(missing) error = %v, want ErrNotFound", err)
	}
}

func TestManagerEndKeepsNewerUserSession(t *testing.T) {
	m := NewManager(time.Minute)
	old := m.Create("u1")
	newer := m.Create("u1")

	if _, err := m.End(old.ID); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	got, err := m.ForUser("u1")
	if err != nil {
		t.Fatalf("ForUser() error = %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("ForUser() = %s, want %s", got.ID, newer.ID)
	}
}

func TestManagerJanitorExpiresInactive(t *testing.T) {
	m := NewManager(30 * time.Millisecond)
	s := m.Create("u1")

	var mu sync.Mutex
	var expired []string
	m.SetExpireHook(func(s *Session) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, s.ID)
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.StartJanitor(ctx, 10*time.Millisecond)

	time.Sleep(90 * time.Millisecond)
	got, err := m.Get(s.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusEnded {
		t.Fatalf("Status = %q, want %q", got.Status, StatusEnded)
	}
	if m.ActiveCount() != 0 {
		t.Fatalf("ActiveCount() = %d, want 0", m.ActiveCount())
	}

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != s.ID {
		t.Fatalf("expire hook saw %v, want [%s]", expired, s.ID)
	}
}
