package cachestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cache.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGetRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := Key("https://example.com", "fingerprint-a")

	if err := s.Put(ctx, key, Entry{URL: "https://example.com", HTML: "<html></html>"}); err != nil {
		t.Fatalf("Put: %v", err)
	}

	entry, ok, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected cache hit")
	}
	if entry.HTML != "<html></html>" {
		t.Fatalf("got HTML %q", entry.HTML)
	}
}

func TestGetMissReturnsFalse(t *testing.T) {
	s := openTestStore(t)
	_, ok, err := s.Get(context.Background(), "nonexistent")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected miss")
	}
}

func TestExpiredEntryIsTreatedAsMiss(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	key := Key("https://example.com", "fp")

	entry := Entry{URL: "https://example.com", TTL: time.Millisecond}
	if err := s.Put(ctx, key, entry); err != nil {
		t.Fatalf("Put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	_, ok, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatalf("expected expired entry to miss")
	}
}

func TestKeyIsStableAndConfigSensitive(t *testing.T) {
	a := Key("https://example.com", "fp-a")
	b := Key("https://example.com", "fp-b")
	c := Key("https://example.com", "fp-a")

	if a == b {
		t.Fatalf("expected different fingerprints to produce different keys")
	}
	if a != c {
		t.Fatalf("expected identical inputs to produce stable keys")
	}
}
