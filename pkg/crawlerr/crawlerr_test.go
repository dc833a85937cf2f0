package crawlerr

import (
	"errors"
	"testing"
)

func TestIsMatchesKindRegardlessOfCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := New(KindNavigation, "https://example.com", "navigate failed", cause)

	if !Is(err, KindNavigation) {
		t.Fatalf("expected Is(err, KindNavigation) to be true")
	}
	if Is(err, KindWaitTimeout) {
		t.Fatalf("expected Is(err, KindWaitTimeout) to be false")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the wrapped cause")
	}
}

func TestKindOf(t *testing.T) {
	err := New(KindRateLimited, "", "too many requests", nil)
	kind, ok := KindOf(err)
	if !ok || kind != KindRateLimited {
		t.Fatalf("KindOf = %v, %v; want KindRateLimited, true", kind, ok)
	}

	_, ok = KindOf(errors.New("plain"))
	if ok {
		t.Fatalf("expected KindOf on a plain error to return false")
	}
}
