// Package monitor reports on the health of the scoring backend and the
// coach process itself.
package monitor

import (
	"sync"
	"time"

	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
)

type HealthStatus string

const (
	StatusHealthy  HealthStatus = "healthy"
	StatusDegraded HealthStatus = "degraded"
	StatusFailed   HealthStatus = "failed"
)

// HealthSnapshot is the analyzer health as reported to clients.
type HealthSnapshot struct {
	Status               HealthStatus `json:"status"`
	Provider             string       `json:"provider"`
	Model                string       `json:"model"`
	ConsecutiveFallbacks int          `json:"consecutiveFallbacks"`
	TotalAnalyses        int          `json:"totalAnalyses"`
	FallbackCount        int          `json:"fallbackCount"`
	LastSuccessAt        *time.Time   `json:"lastSuccessAt,omitempty"`
	LastFallbackAt       *time.Time   `json:"lastFallbackAt,omitempty"`
}

// AnalyzerHealth tracks consecutive fallback analyses. Degraded means the
// most recent analysis fell back; failed means at least threshold in a row
// did. Fields are protected by mu because Record is called from request
// goroutines while Snapshot is read by the HTTP handler.
type AnalyzerHealth struct {
	mu                sync.Mutex
	provider          string
	model             string
	threshold         int
	consecutive       int
	total             int
	fallbacks         int
	lastSuccess       time.Time
	lastFallback      time.Time
	lastEmittedStatus HealthStatus
	onChange          func(HealthSnapshot)
	now               func() time.Time
}

func NewAnalyzerHealth(provider, model string, threshold int) *AnalyzerHealth {
	if threshold < 1 {
		threshold = 1
	}
	return &AnalyzerHealth{
		provider:          provider,
		model:             model,
		threshold:         threshold,
		lastEmittedStatus: StatusHealthy,
		now:               time.Now,
	}
}

// OnChange registers a callback invoked when the status changes. Must be
// called before Record is used concurrently.
func (h *AnalyzerHealth) OnChange(fn func(HealthSnapshot)) {
	h.onChange = fn
}

// Record updates health from one analysis result.
func (h *AnalyzerHealth) Record(a analysis.Analysis) {
	h.mu.Lock()
	h.total++
	if a.Fallback {
		h.consecutive++
		h.fallbacks++
		h.lastFallback = h.now()
	} else {
		h.consecutive = 0
		h.lastSuccess = h.now()
	}

	status := h.statusLocked()
	changed := status != h.lastEmittedStatus
	if changed {
		h.lastEmittedStatus = status
	}
	snap := h.snapshotLocked()
	cb := h.onChange
	h.mu.Unlock()

	if changed && cb != nil {
		cb(snap)
	}
}

func (h *AnalyzerHealth) Status() HealthStatus {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.statusLocked()
}

// Snapshot returns a consistent copy of the health fields.
func (h *AnalyzerHealth) Snapshot() HealthSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.snapshotLocked()
}

// statusLocked computes health status. Caller must hold h.mu.
func (h *AnalyzerHealth) statusLocked() HealthStatus {
	switch {
	case h.consecutive >= h.threshold:
		return StatusFailed
	case h.consecutive > 0:
		return StatusDegraded
	default:
		return StatusHealthy
	}
}

func (h *AnalyzerHealth) snapshotLocked() HealthSnapshot {
	s := HealthSnapshot{
		Status:               h.statusLocked(),
		Provider:             h.provider,
		Model:                h.model,
		ConsecutiveFallbacks: h.consecutive,
		TotalAnalyses:        h.total,
		FallbackCount:        h.fallbacks,
	}
	if !h.lastSuccess.IsZero() {
		t := h.lastSuccess
		s.LastSuccessAt = &t
	}
	if !h.lastFallback.IsZero() {
		t := h.lastFallback
		s.LastFallbackAt = &t
	}
	return s
}
