package crawlresult

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestBinaryRoundTripsAsBase64(t *testing.T) {
	b := Binary{Data: []byte("hello world")}
	raw, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if strings.Contains(string(raw), "hello") {
		t.Fatalf("expected base64-encoded output, got raw bytes: %s", raw)
	}

	var got Binary
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if string(got.Data) != "hello world" {
		t.Fatalf("got %q, want %q", got.Data, "hello world")
	}
}

func TestCrawlResultSerializesTimestampsAsRFC3339(t *testing.T) {
	cr := CrawlResult{
		URL:            "https://example.com",
		Success:        true,
		FetchStartedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	raw, err := json.Marshal(cr)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(raw), "2026-01-02T03:04:05Z") {
		t.Fatalf("expected RFC3339 timestamp in output, got: %s", raw)
	}
}

func TestDispatchResultProgress(t *testing.T) {
	d := DispatchResult{Submitted: 4, Completed: 2, Failed: 1}
	if got := d.Progress(); got != 0.75 {
		t.Fatalf("Progress() = %v, want 0.75", got)
	}

	var empty DispatchResult
	if got := empty.Progress(); got != 0 {
		t.Fatalf("Progress() on empty = %v, want 0", got)
	}
}
