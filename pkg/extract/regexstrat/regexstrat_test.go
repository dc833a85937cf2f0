package regexstrat

import (
	"context"
	"reflect"
	"testing"
)

func TestExtractCollectsAllMatchesPerPattern(t *testing.T) {
	emailPattern, err := Compile("emails", `[\w.+-]+@[\w-]+(?:\.[\w-]+)+`, 0)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	pricePattern, err := Compile("prices", `\$(\d+(?:\.\d{2})?)`, 1)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	strategy := New(emailPattern, pricePattern)
	content := "Contact sales@example.com or support@example.com. Price: $19.99, sale $9.50"

	result, err := strategy.Extract(context.Background(), content)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	out, ok := result.(map[string][]string)
	if !ok {
		t.Fatalf("expected map[string][]string, got %T", result)
	}
	if !reflect.DeepEqual(out["emails"], []string{"sales@example.com", "support@example.com"}) {
		t.Fatalf("unexpected emails: %v", out["emails"])
	}
	if !reflect.DeepEqual(out["prices"], []string{"19.99", "9.50"}) {
		t.Fatalf("unexpected prices: %v", out["prices"])
	}
}
