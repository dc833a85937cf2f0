package pagesession

import (
	"context"
	"testing"
)

func TestManagerGetOrCreateReusesSession(t *testing.T) {
	m := NewManager()
	calls := 0
	create := func() (*Session, error) {
		calls++
		ctx, cancel := context.WithCancel(context.Background())
		return New("sess-1", ctx, cancel, nil), nil
	}

	s1, err := m.GetOrCreate("sess-1", create)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	s2, err := m.GetOrCreate("sess-1", create)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	if s1 != s2 {
		t.Fatalf("expected the same session to be returned for the same id")
	}
	if calls != 1 {
		t.Fatalf("expected create to run once, ran %d times", calls)
	}
}

func TestManagerCloseForgetsSession(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithCancel(context.Background())
	_, err := m.GetOrCreate("sess-2", func() (*Session, error) {
		return New("sess-2", ctx, cancel, nil), nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}

	m.Close("sess-2")

	calls := 0
	_, err = m.GetOrCreate("sess-2", func() (*Session, error) {
		calls++
		ctx, cancel := context.WithCancel(context.Background())
		return New("sess-2", ctx, cancel, nil), nil
	})
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a fresh session to be created after Close")
	}
}

func TestSessionRunSerializesViaTurnstile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s := New("sess-3", ctx, cancel, nil)

	// The turnstile starts with one token available; acquiring it
	// manually should make a concurrent acquire block until released.
	select {
	case <-s.turnstile:
	default:
		t.Fatalf("expected turnstile to start with a token")
	}

	acquired := make(chan struct{})
	go func() {
		<-s.turnstile
		close(acquired)
	}()

	select {
	case <-acquired:
		t.Fatalf("expected second acquire to block while the first holds the token")
	default:
	}

	s.turnstile <- struct{}{}
	<-acquired
}
