package browserpool

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"github.com/crawlforge/crawlforge/pkg/browserdriver"
)

// Fingerprint returns a stable content-address for the
// browser-affecting subset of launch options, so two crawls asking for
// the same browser shape share one pooled instance.
func Fingerprint(opts browserdriver.LaunchOptions) string {
	args := append([]string(nil), opts.ExtraArgs...)
	sort.Strings(args)

	canonical := struct {
		Headless   bool
		Proxy      string
		UserAgent  string
		ViewportW  int
		ViewportH  int
		ExtraArgs  []string
		Persistent bool
	}{
		Headless:   opts.Headless,
		Proxy:      opts.Proxy,
		UserAgent:  opts.UserAgent,
		ViewportW:  opts.ViewportW,
		ViewportH:  opts.ViewportH,
		ExtraArgs:  args,
		Persistent: opts.Persistent,
	}

	// json.Marshal on a fixed-field struct with sorted slices is
	// deterministic, which is all Fingerprint needs from "canonical".
	raw, _ := json.Marshal(canonical)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
