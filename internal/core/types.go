package core

import "time"

// Outcome classifies a single external call.
type Outcome string

const (
	OutcomeSuccess     Outcome = "success"
	OutcomeFailure     Outcome = "failure"
	OutcomeRateLimited Outcome = "rate_limited"
)

// ConcurrencyState is a point-in-time copy of the concurrency controller.
type ConcurrencyState struct {
	Current           int       `json:"current"`
	Min               int       `json:"min"`
	Max               int       `json:"max"`
	TotalRequests     int64     `json:"total_requests"`
	SuccessCount      int64     `json:"success_count"`
	FailureCount      int64     `json:"failure_count"`
	SuccessRate       float64   `json:"success_rate"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
	LastAdjustmentAt  time.Time `json:"last_adjustment_at"`
}

// CredentialRecord holds rolling statistics for one pool slot.
// A zero LastUsedAt means the credential has never been used.
type CredentialRecord struct {
	Index             int       `json:"index"`
	SuccessCount      int64     `json:"success_count"`
	FailureCount      int64     `json:"failure_count"`
	RateLimitCount    int64     `json:"rate_limit_count"`
	TotalCalls        int64     `json:"total_calls"`
	LastUsedAt        time.Time `json:"last_used_at"`
	AvgResponseTimeMs float64   `json:"avg_response_time_ms"`
}

// SuccessRate returns successes over total calls, 1.0 for an unused credential.
func (r CredentialRecord) SuccessRate() float64 {
	if r.TotalCalls == 0 {
		return 1.0
	}
	return float64(r.SuccessCount) / float64(r.TotalCalls)
}

// AdjustRule names the branch taken by a concurrency adjustment.
type AdjustRule string

const (
	AdjustBackoffErrors  AdjustRule = "backoff_errors"
	AdjustBackoffLatency AdjustRule = "backoff_latency"
	AdjustGrow           AdjustRule = "grow"
	AdjustHold           AdjustRule = "hold"
)

// Adjustment describes one evaluation of the concurrency controller.
type Adjustment struct {
	At                time.Time  `json:"at"`
	Rule              AdjustRule `json:"rule"`
	From              int        `json:"from"`
	To                int        `json:"to"`
	SuccessRate       float64    `json:"success_rate"`
	AvgResponseTimeMs float64    `json:"avg_response_time_ms"`
}

// Changed reports whether the adjustment moved the permit count.
func (a Adjustment) Changed() bool {
	return a.From != a.To
}

// Credential is one interchangeable API key.
type Credential struct {
	Index  int    `json:"index"`
	Label  string `json:"label"`
	APIKey string `json:"-"`
}

// WorkItem is one unit of harvesting work.
type WorkItem struct {
	Keyword string `json:"keyword"`
	Line    int    `json:"line,omitempty"`
}

// CallResult reports the outcome of one attempt against the external API.
type CallResult struct {
	RunID      string        `json:"run_id"`
	Item       WorkItem      `json:"item"`
	Credential int           `json:"credential"`
	Label      string        `json:"label,omitempty"`
	Attempt    int           `json:"attempt"`
	Outcome    Outcome       `json:"outcome"`
	Duration   time.Duration `json:"duration"`
	Error      string        `json:"error,omitempty"`
	At         time.Time     `json:"at"`
}

// ThrottleSnapshot is the persisted cross-run state for one credential pool.
type ThrottleSnapshot struct {
	Pool        string             `json:"pool"`
	Concurrency ConcurrencyState   `json:"concurrency"`
	Credentials []CredentialRecord `json:"credentials"`
	SavedAt     time.Time          `json:"saved_at"`
}

// RunSummary aggregates one harvesting run.
type RunSummary struct {
	RunID            string    `json:"run_id"`
	Pool             string    `json:"pool"`
	StartedAt        time.Time `json:"started_at"`
	FinishedAt       time.Time `json:"finished_at"`
	Items            int       `json:"items"`
	Succeeded        int       `json:"succeeded"`
	Failed           int       `json:"failed"`
	RateLimited      int       `json:"rate_limited"`
	Attempts         int       `json:"attempts"`
	Retries          int       `json:"retries"`
	Windows          int       `json:"windows"`
	FinalConcurrency int       `json:"final_concurrency"`
	MeanLatencyMs    float64   `json:"mean_latency_ms"`
	P50LatencyMs     float64   `json:"p50_latency_ms"`
	P95LatencyMs     float64   `json:"p95_latency_ms"`
	Cancelled        bool      `json:"cancelled,omitempty"`
}

// Duration returns the wall-clock length of the run.
func (s RunSummary) Duration() time.Duration {
	if s.FinishedAt.IsZero() || s.StartedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}
