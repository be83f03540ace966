// Package route selects an execution profile for each request and adapts it
// from observed latency, so a question that timed out on the expensive path
// last time gets a cheaper one next time.
package route

import (
	"context"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"soul-journal-be/internal/pkg/logger"
	"soul-journal-be/pkg/cache"
)

// Config is one execution profile: concurrency and time budgets for the
// retrieval fan-out.
type Config struct {
	Name           string
	MaxConcurrency int
	Timeout        time.Duration
	RecordLimit    int
	EmbeddingLimit int
	CacheStrategy  string
}

var (
	Fast = Config{
		Name:           "fast",
		MaxConcurrency: 2,
		Timeout:        4 * time.Second,
		RecordLimit:    5,
		EmbeddingLimit: 1,
		CacheStrategy:  "aggressive",
	}
	Standard = Config{
		Name:           "standard",
		MaxConcurrency: 4,
		Timeout:        10 * time.Second,
		RecordLimit:    15,
		EmbeddingLimit: 4,
		CacheStrategy:  "normal",
	}
	Comprehensive = Config{
		Name:           "comprehensive",
		MaxConcurrency: 6,
		Timeout:        25 * time.Second,
		RecordLimit:    40,
		EmbeddingLimit: 8,
		CacheStrategy:  "conservative",
	}
)

// fallbackOf maps each route to the cheaper one tried on timeout.
func fallbackOf(cfg Config) Config {
	switch cfg.Name {
	case Comprehensive.Name:
		return Standard
	default:
		return Fast
	}
}

// Signals are the request features the router keys on.
type Signals struct {
	SubQuestionCount  int
	HasTimeConstraint bool
	NeedsAggregation  bool
}

// Tracker keeps a moving average of execution latency per query shape.
// Entries expire after a day so stale slowness does not pin a query to the
// fast path forever.
type Tracker struct {
	store *gocache.Cache
}

type latencySample struct {
	average time.Duration
	count   int
}

func NewTracker() *Tracker {
	return &Tracker{store: gocache.New(24*time.Hour, time.Hour)}
}

func (t *Tracker) Record(query string, elapsed time.Duration) {
	key := cache.EmbeddingKey(query)
	sample := latencySample{average: elapsed, count: 1}
	if prev, found := t.store.Get(key); found {
		p := prev.(latencySample)
		sample.count = p.count + 1
		sample.average = p.average + (elapsed-p.average)/time.Duration(sample.count)
	}
	t.store.Set(key, sample, gocache.DefaultExpiration)
}

// Average returns the observed mean latency for this query shape, or false
// when it has never been seen.
func (t *Tracker) Average(query string) (time.Duration, bool) {
	value, found := t.store.Get(cache.EmbeddingKey(query))
	if !found {
		return 0, false
	}
	return value.(latencySample).average, true
}

type Router struct {
	tracker *Tracker
	logger  logger.ILogger
}

func NewRouter(tracker *Tracker, log logger.ILogger) *Router {
	return &Router{tracker: tracker, logger: log}
}

// Select picks the profile from request signals, then downgrades it when
// history says this query shape runs slow on the chosen path.
func (r *Router) Select(query string, signals Signals) Config {
	cfg := baseConfig(signals)

	if avg, seen := r.tracker.Average(query); seen && avg > cfg.Timeout/2 {
		downgraded := fallbackOf(cfg)
		if downgraded.Name != cfg.Name {
			r.logger.Info("route", "downgrading route from latency history", map[string]interface{}{
				"query_avg_ms": avg.Milliseconds(),
				"from":         cfg.Name,
				"to":           downgraded.Name,
			})
			cfg = downgraded
		}
	}
	return cfg
}

func baseConfig(signals Signals) Config {
	switch {
	case signals.SubQuestionCount >= 3 || signals.NeedsAggregation:
		return Comprehensive
	case signals.SubQuestionCount == 2 || signals.HasTimeConstraint:
		return Standard
	default:
		return Fast
	}
}

// Operation runs one retrieval pass under the given profile and returns its
// result. Results travel through Execute's return path only: an attempt
// abandoned on timeout keeps writing into its own local value, never into
// state a later attempt shares.
type Operation func(ctx context.Context, cfg Config) (interface{}, error)

// Execute runs the operation under the selected route, retrying once on the
// fallback route and finally on the cheapest one. Every attempt's latency is
// recorded, timeouts included, so future selections learn from it. On total
// failure the last value an attempt managed to return is still handed back.
func (r *Router) Execute(ctx context.Context, query string, cfg Config, op Operation) (interface{}, Config, error) {
	attempts := []Config{cfg}
	if fb := fallbackOf(cfg); fb.Name != cfg.Name {
		attempts = append(attempts, fb)
	}
	if last := attempts[len(attempts)-1]; last.Name != Fast.Name {
		attempts = append(attempts, Fast)
	}

	var lastValue interface{}
	var lastErr error
	for _, attempt := range attempts {
		start := time.Now()
		value, err := r.runOnce(ctx, attempt, op)
		r.tracker.Record(query, time.Since(start))

		if err == nil {
			return value, attempt, nil
		}
		if value != nil {
			lastValue = value
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		r.logger.Warn("route", "route attempt failed, trying cheaper profile", map[string]interface{}{
			"route": attempt.Name,
			"error": err.Error(),
		})
	}
	return lastValue, cfg, fmt.Errorf("all route attempts exhausted: %w", lastErr)
}

type attemptResult struct {
	value interface{}
	err   error
}

func (r *Router) runOnce(ctx context.Context, cfg Config, op Operation) (interface{}, error) {
	runCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	done := make(chan attemptResult, 1)
	go func() {
		value, err := op(runCtx, cfg)
		done <- attemptResult{value: value, err: err}
	}()

	select {
	case res := <-done:
		return res.value, res.err
	case <-runCtx.Done():
		return nil, fmt.Errorf("route %s timed out after %s: %w", cfg.Name, cfg.Timeout, runCtx.Err())
	}
}

// DescribeSignals summarizes the routing inputs for logs.
func DescribeSignals(s Signals) string {
	parts := []string{fmt.Sprintf("subq=%d", s.SubQuestionCount)}
	if s.HasTimeConstraint {
		parts = append(parts, "time-bounded")
	}
	if s.NeedsAggregation {
		parts = append(parts, "aggregation")
	}
	return strings.Join(parts, " ")
}
