// Package crawlresult defines the immutable result types returned
// from a crawl: CrawlResult, DispatchResult, and the media/link
// sub-structures they carry.
package crawlresult

import (
	"encoding/base64"
	"encoding/json"
	"time"
)

// TokenUsage mirrors the teacher's Usage accounting, generalized to
// the abstract LLM capability in pkg/llmcap.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// Link describes one anchor discovered during the scrape stage. Which
// host it resolved against (same as the page's, or elsewhere) is
// recorded by which of LinkSet's slices it's placed in rather than a
// field on Link itself.
type Link struct {
	Href  string  `json:"href"`
	Text  string  `json:"text"`
	Title string  `json:"title,omitempty"`
	Score float64 `json:"score,omitempty"`
}

// LinkSet splits a page's discovered anchors into same-host and
// cross-host groups, per spec.md §3's links{internal[],external[]}
// data model.
type LinkSet struct {
	Internal []Link `json:"internal,omitempty"`
	External []Link `json:"external,omitempty"`
}

// All concatenates Internal and External, for callers (link ranking,
// citation rendering, frontier expansion without a same-domain
// restriction) that don't care which group a link came from.
func (s LinkSet) All() []Link {
	if len(s.Internal) == 0 && len(s.External) == 0 {
		return nil
	}
	out := make([]Link, 0, len(s.Internal)+len(s.External))
	out = append(out, s.Internal...)
	out = append(out, s.External...)
	return out
}

// MediaItem describes an image/video/audio resource found on the page.
type MediaItem struct {
	Type   string  `json:"type"` // "image" | "video" | "audio"
	Src    string  `json:"src"`
	Alt    string  `json:"alt,omitempty"`
	Width  int     `json:"width,omitempty"`
	Height int     `json:"height,omitempty"`
	Score  float64 `json:"score,omitempty"`
}

// Table is one <table> collected during the scrape stage, per spec.md
// §4.3's tables as {headers,rows,caption,summary} collection rule.
type Table struct {
	Headers []string   `json:"headers,omitempty"`
	Rows    [][]string `json:"rows,omitempty"`
	Caption string     `json:"caption,omitempty"`
	Summary string     `json:"summary,omitempty"`
}

// Markdown carries both the raw and the "fit" (filtered) markdown
// renderings of a page, per spec.md's MarkdownResult entity.
type Markdown struct {
	RawMarkdown       string `json:"raw_markdown"`
	FitMarkdown       string `json:"fit_markdown,omitempty"`
	MarkdownWithCitations string `json:"markdown_with_citations,omitempty"`
	ReferencesMarkdown string `json:"references_markdown,omitempty"`
}

// Binary wraps arbitrary capture bytes (screenshot/pdf/mhtml) so
// MarshalJSON can base64-encode them per the wire-format rule.
type Binary struct {
	Data []byte
}

func (b Binary) MarshalJSON() ([]byte, error) {
	return json.Marshal(base64.StdEncoding.EncodeToString(b.Data))
}

func (b *Binary) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return err
	}
	b.Data = decoded
	return nil
}

// CrawlResult is the immutable outcome of crawling a single URL. Once
// built by the dispatcher it is never mutated — callers receive copies
// by value where sub-structures are themselves read-only.
type CrawlResult struct {
	URL            string    `json:"url"`
	RedirectedURL  string    `json:"redirected_url"`
	StatusCode     int       `json:"status_code"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	ErrorCategory  string    `json:"error_category,omitempty"`

	HTML           string     `json:"html,omitempty"`
	CleanedHTML    string     `json:"cleaned_html,omitempty"`
	Markdown       Markdown   `json:"markdown"`
	ExtractedData  any        `json:"extracted_data,omitempty"`
	Links          LinkSet     `json:"links"`
	Media          []MediaItem `json:"media,omitempty"`
	Tables         []Table     `json:"tables,omitempty"`
	JSExecutionResult any      `json:"js_execution_result,omitempty"`

	Screenshot     *Binary `json:"screenshot,omitempty"`
	PDF            *Binary `json:"pdf,omitempty"`
	MHTML          *Binary `json:"mhtml,omitempty"`
	DebugScreenshot *Binary `json:"debug_screenshot,omitempty"`

	Depth          int       `json:"depth"`
	ParentURL      string    `json:"parent_url,omitempty"`
	SessionID      string    `json:"session_id,omitempty"`

	TaskID        string  `json:"task_id,omitempty"`
	MemoryDeltaMB float64 `json:"memory_delta_mb,omitempty"`

	LLMProvider    string     `json:"llm_provider,omitempty"`
	LLMModel       string     `json:"llm_model,omitempty"`
	TokenUsage     TokenUsage `json:"token_usage,omitempty"`
	CostUSD        float64    `json:"cost_usd,omitempty"`
	RetryCount     int        `json:"retry_count,omitempty"`

	FetchStartedAt  time.Time `json:"fetch_started_at"`
	FetchFinishedAt time.Time `json:"fetch_finished_at"`
	FetchDuration   time.Duration `json:"fetch_duration_ns"`
	ExtractDuration time.Duration `json:"extract_duration_ns,omitempty"`

	Warnings []string `json:"warnings,omitempty"`
}

// DispatchResult aggregates accounting across a CrawlMany batch: how
// many URLs were attempted, how the adaptive concurrency semaphore and
// per-host limiters behaved, and batch-level timing.
type DispatchResult struct {
	Submitted int `json:"submitted"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`

	SubmittedAt time.Time `json:"submitted_at"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`

	PeakConcurrency int `json:"peak_concurrency"`
	RateLimitHits   int `json:"rate_limit_hits"`

	TotalTokensInput  int     `json:"total_tokens_input"`
	TotalTokensOutput int     `json:"total_tokens_output"`
	TotalCostUSD      float64 `json:"total_cost_usd"`

	StoppedEarly bool   `json:"stopped_early"`
	StopReason   string `json:"stop_reason,omitempty"`
}

// Progress reports completion fraction in [0,1]. Returns 0 when
// nothing has been submitted yet, mirroring the cloud SDK's
// CrawlJob.Progress().Percent() convenience used for poll-style callers.
func (d DispatchResult) Progress() float64 {
	if d.Submitted == 0 {
		return 0
	}
	return float64(d.Completed+d.Failed) / float64(d.Submitted)
}
