// Package ratelimit throttles MCP tool calls and simulated epochs with
// per-key token buckets.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrLimited is wrapped by every rejection from CheckLimit and CheckEpochs.
var ErrLimited = errors.New("rate limit exceeded")

// Limiter is a per-key token bucket. Buckets start full. Safe for
// concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   int     // bucket capacity
	nowFunc func() time.Time
}

type bucket struct {
	tokens float64
	seen   time.Time
}

// NewLimiter creates a limiter refilling at rate tokens/sec up to burst.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) bool {
	return l.AllowN(key, 1)
}

// AllowN takes n tokens from key's bucket, or none if fewer than n are
// available. A request larger than the burst never succeeds.
func (l *Limiter) AllowN(key string, n int) bool {
	if n <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()
	b := l.refill(key, now)
	if b.tokens < float64(n) {
		return false
	}
	b.tokens -= float64(n)
	return true
}

// Tokens reports the tokens currently available for key.
func (l *Limiter) Tokens(key string) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.refill(key, l.nowFunc()).tokens
}

// refill returns key's bucket topped up to now. Callers hold l.mu.
func (l *Limiter) refill(key string, now time.Time) *bucket {
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), seen: now}
		l.buckets[key] = b
		return b
	}
	if elapsed := now.Sub(b.seen).Seconds(); elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.seen = now
	}
	return b
}

// ToolLimiters maps tool names to their call limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters returns the default per-tool call limits.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		"cogmap_run":      NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"cogmap_converge": NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"cogmap_graph":    NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		"cogmap_validate": NewLimiter(1.0, 10),      // 60/minute, burst 10
		"cogmap_history":  NewLimiter(1.0, 10),      // 60/minute, burst 10
	}
}

// CheckLimit charges one call to toolName. Tools without a limiter are
// never limited.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrLimited, toolName)
	}
	return nil
}

// Epoch budget shared by all simulation tools.
const (
	EpochBudgetRate  = 10000.0 // epochs per second
	EpochBudgetBurst = 100000
)

// NewEpochBudget returns the limiter that caps simulated epochs.
func NewEpochBudget() *Limiter {
	return NewLimiter(EpochBudgetRate, EpochBudgetBurst)
}

// CheckEpochs charges epochs against the shared budget. A nil budget
// allows everything.
func CheckEpochs(budget *Limiter, epochs int) error {
	if budget == nil {
		return nil
	}
	if epochs > budget.burst {
		return fmt.Errorf("%w: %d epochs exceeds the per-call maximum of %d",
			ErrLimited, epochs, budget.burst)
	}
	if !budget.AllowN("epochs", epochs) {
		return fmt.Errorf("%w: epoch budget exhausted, please try again shortly", ErrLimited)
	}
	return nil
}
