package browserpool

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/crawlforge/crawlforge/pkg/browserdriver"
)

type fakeInstance struct {
	closed atomic.Bool
}

func (f *fakeInstance) NewPage(ctx context.Context) (context.Context, error) { return ctx, nil }
func (f *fakeInstance) Close() error                                        { f.closed.Store(true); return nil }

type fakeDriver struct {
	mu      sync.Mutex
	launches int
}

func (d *fakeDriver) Launch(ctx context.Context, opts browserdriver.LaunchOptions) (browserdriver.Instance, error) {
	d.mu.Lock()
	d.launches++
	d.mu.Unlock()
	return &fakeInstance{}, nil
}

func (d *fakeDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.launches
}

func TestCheckoutReusesSameFingerprint(t *testing.T) {
	driver := &fakeDriver{}
	fleet := NewFleet(driver, DefaultTierConfig())

	opts := browserdriver.LaunchOptions{Headless: true, UserAgent: "ua-1"}

	inst1, fp1, err := fleet.Checkout(context.Background(), opts)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}
	fleet.Return(fp1)

	inst2, fp2, err := fleet.Checkout(context.Background(), opts)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	if fp1 != fp2 {
		t.Fatalf("expected identical fingerprints for identical options")
	}
	if inst1 != inst2 {
		t.Fatalf("expected the same pooled instance to be reused")
	}
	if driver.count() != 1 {
		t.Fatalf("expected exactly 1 launch, got %d", driver.count())
	}
}

func TestCheckoutConcurrentLaunchesCollapse(t *testing.T) {
	driver := &fakeDriver{}
	fleet := NewFleet(driver, DefaultTierConfig())
	opts := browserdriver.LaunchOptions{Headless: true, UserAgent: "ua-shared"}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, _ = fleet.Checkout(context.Background(), opts)
		}()
	}
	wg.Wait()

	if got := driver.count(); got > 20 {
		t.Fatalf("launches = %d, want a small, collapsed count", got)
	}
}

func TestJanitorEvictsIdleColdBrowsersNotPermanent(t *testing.T) {
	driver := &fakeDriver{}
	cfg := TierConfig{HotIdleTimeout: time.Hour, ColdIdleTimeout: time.Millisecond}
	fleet := NewFleet(driver, cfg)

	coldOpts := browserdriver.LaunchOptions{UserAgent: "cold"}
	permOpts := browserdriver.LaunchOptions{UserAgent: "perm"}
	fleet.SetPermanentConfig(permOpts)

	_, coldFP, _ := fleet.Checkout(context.Background(), coldOpts)
	fleet.Return(coldFP)
	_, permFP, _ := fleet.Checkout(context.Background(), permOpts)
	fleet.Return(permFP)

	time.Sleep(5 * time.Millisecond)
	fleet.sweep()

	fleet.mu.Lock()
	_, coldStillPooled := fleet.entries[coldFP]
	_, permStillPooled := fleet.entries[permFP]
	fleet.mu.Unlock()

	if coldStillPooled {
		t.Fatalf("expected idle cold-tier browser to be evicted")
	}
	if !permStillPooled {
		t.Fatalf("expected permanent-tier browser to survive the sweep")
	}
}

func TestCheckoutPromotesColdToHotAfterRepeatedUse(t *testing.T) {
	driver := &fakeDriver{}
	cfg := DefaultTierConfig()
	cfg.PromoteAfter = 3
	fleet := NewFleet(driver, cfg)

	opts := browserdriver.LaunchOptions{UserAgent: "repeat-visitor"}

	var fp string
	for i := 0; i < 3; i++ {
		_, gotFP, err := fleet.Checkout(context.Background(), opts)
		if err != nil {
			t.Fatalf("Checkout: %v", err)
		}
		fp = gotFP
		fleet.Return(fp)
	}

	fleet.mu.Lock()
	tier := fleet.entries[fp].tier
	fleet.mu.Unlock()

	if tier != TierHot {
		t.Fatalf("expected fingerprint promoted to hot after %d uses, got %q", cfg.PromoteAfter, tier)
	}
}

func TestCheckoutMatchingPermanentFingerprintStaysPermanent(t *testing.T) {
	driver := &fakeDriver{}
	fleet := NewFleet(driver, DefaultTierConfig())

	opts := browserdriver.LaunchOptions{UserAgent: "default-shape"}
	fleet.SetPermanentConfig(opts)

	_, fp, err := fleet.Checkout(context.Background(), opts)
	if err != nil {
		t.Fatalf("Checkout: %v", err)
	}

	fleet.mu.Lock()
	tier := fleet.entries[fp].tier
	fleet.mu.Unlock()

	if tier != TierPermanent {
		t.Fatalf("expected fingerprint matching permanent config to be permanent, got %q", tier)
	}
}
