// Package cleaner runs the rate-limited cloud-LLM pass that reconciles
// harvested metadata against extracted text during corpus curation.
package cleaner

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Tokens one cleaning request is assumed to consume.
const DefaultTokensPerItem = 2500

const (
	defaultResetInterval = time.Minute
	defaultPollInterval  = 5 * time.Second
)

// RateBudget is the per-minute/per-day/token triplet governing how many
// cloud requests the session may issue.
type RateBudget struct {
	ReqPerMin int
	ReqPerDay int
	TokPerMin int
}

// Session owns the mutable budget and its reset goroutine. The
// per-minute counters restore on every tick; the per-day counter decays
// for the life of the session.
type Session struct {
	mu      sync.Mutex
	budget  RateBudget
	initial RateBudget

	tokensPerItem int
	resetInterval time.Duration
	pollInterval  time.Duration

	done      chan struct{}
	closeOnce sync.Once
	logger    *slog.Logger
}

func NewSession(budget RateBudget, tokensPerItem int, logger *slog.Logger) *Session {
	if tokensPerItem <= 0 {
		tokensPerItem = DefaultTokensPerItem
	}
	s := &Session{
		budget:        budget,
		initial:       budget,
		tokensPerItem: tokensPerItem,
		resetInterval: defaultResetInterval,
		pollInterval:  defaultPollInterval,
		done:          make(chan struct{}),
		logger:        logger,
	}
	go s.resetLoop()
	return s
}

func (s *Session) resetLoop() {
	ticker := time.NewTicker(s.resetInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.mu.Lock()
			s.budget.ReqPerMin = s.initial.ReqPerMin
			s.budget.TokPerMin = s.initial.TokPerMin
			s.mu.Unlock()
			s.logger.Debug("rate budget reset",
				"req_per_min", s.initial.ReqPerMin,
				"tok_per_min", s.initial.TokPerMin)
		}
	}
}

// Close stops the reset goroutine. Idempotent.
func (s *Session) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Session) canRequest() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget.ReqPerMin > 0 && s.budget.ReqPerDay > 0 && s.budget.TokPerMin >= s.tokensPerItem
}

// Acquire blocks until the budget allows one request, polling while
// exhausted. It does not spend the budget; call Spend after the request
// completes.
func (s *Session) Acquire(ctx context.Context) error {
	for !s.canRequest() {
		s.logger.Warn("rate budget exhausted, waiting", "budget", s.Snapshot())
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.pollInterval):
		}
	}
	return nil
}

// Spend decrements all three counters for one completed request.
func (s *Session) Spend() {
	s.mu.Lock()
	s.budget.ReqPerMin--
	s.budget.ReqPerDay--
	s.budget.TokPerMin -= s.tokensPerItem
	remaining := s.budget
	s.mu.Unlock()
	s.logger.Debug("request spent",
		"req_per_min", remaining.ReqPerMin,
		"req_per_day", remaining.ReqPerDay,
		"tok_per_min", remaining.TokPerMin)
}

// Snapshot returns the current counters.
func (s *Session) Snapshot() RateBudget {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.budget
}
