// Package stats keeps running aggregates over every interview session the
// coach has seen since startup.
package stats

import (
	"context"
	"math"
	"sync"

	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
)

type CategoryStats struct {
	Answers      int     `json:"answers"`
	AverageScore float64 `json:"averageScore"`

	scoreSum int
}

type Stats struct {
	TotalSessions     int                                   `json:"totalSessions"`
	Completed         int                                   `json:"completed"`
	Abandoned         int                                   `json:"abandoned"`
	Expired           int                                   `json:"expired"`
	Answers           int                                   `json:"answers"`
	FallbackAnalyses  int                                   `json:"fallbackAnalyses"`
	AverageScore      float64                               `json:"averageScore"`
	ByCategory        map[questions.Category]*CategoryStats `json:"byCategory"`
	PeakConcurrent    int                                   `json:"peakConcurrent"`
	LongestSessionSec float64                               `json:"longestSessionSec"`

	scoreSum int
}

func newStats() *Stats {
	return &Stats{ByCategory: make(map[questions.Category]*CategoryStats)}
}

func (s *Stats) clone() *Stats {
	c := *s
	c.ByCategory = make(map[questions.Category]*CategoryStats, len(s.ByCategory))
	for k, v := range s.ByCategory {
		cs := *v
		c.ByCategory[k] = &cs
	}
	return &c
}

// Tracker observes session lifecycle events and maintains aggregate stats.
type Tracker struct {
	mu      sync.Mutex
	stats   *Stats
	events  chan session.Event
	counted map[string]bool
	scored  map[string]int // session ID -> analysed turns already folded in
}

// NewTracker returns a tracker and the send-only channel the coach delivers
// events on. The caller must run Run in a goroutine.
func NewTracker() (*Tracker, chan<- session.Event) {
	ch := make(chan session.Event, 256)
	return &Tracker{
		stats:   newStats(),
		events:  ch,
		counted: make(map[string]bool),
		scored:  make(map[string]int),
	}, ch
}

// Run processes events until ctx is cancelled.
func (t *Tracker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-t.events:
			t.processEvent(ev)
		}
	}
}

// Stats returns a deep copy of the current aggregates.
func (t *Tracker) Stats() *Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats.clone()
}

func (t *Tracker) processEvent(ev session.Event) {
	s := ev.State
	if s == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if ev.ActiveCount > t.stats.PeakConcurrent {
		t.stats.PeakConcurrent = ev.ActiveCount
	}

	switch ev.Type {
	case session.EventNew:
		if t.counted[s.ID] {
			return
		}
		t.counted[s.ID] = true
		t.stats.TotalSessions++

	case session.EventUpdate:
		t.foldAnswers(s)

	case session.EventTerminal:
		t.foldAnswers(s)
		switch s.Status {
		case session.Complete:
			t.stats.Completed++
		case session.Abandoned:
			t.stats.Abandoned++
		case session.Expired:
			t.stats.Expired++
		}
		if s.CompletedAt != nil && !s.StartedAt.IsZero() {
			dur := s.CompletedAt.Sub(s.StartedAt).Seconds()
			if dur > t.stats.LongestSessionSec {
				t.stats.LongestSessionSec = dur
			}
		}
		delete(t.counted, s.ID)
		delete(t.scored, s.ID)
	}
}

// foldAnswers adds analysed turns not yet counted for s. Caller must hold t.mu.
func (t *Tracker) foldAnswers(s *session.SessionState) {
	seen := t.scored[s.ID]
	n := 0
	for _, turn := range s.Turns {
		if turn.Analysis == nil {
			continue
		}
		n++
		if n <= seen {
			continue
		}
		t.addAnswer(turn.Question.Category, turn.Analysis.Score, turn.Analysis.Fallback)
	}
	if n > seen {
		t.scored[s.ID] = n
	}
}

func (t *Tracker) addAnswer(cat questions.Category, score int, fallback bool) {
	st := t.stats
	st.Answers++
	st.scoreSum += score
	st.AverageScore = round1(float64(st.scoreSum) / float64(st.Answers))
	if fallback {
		st.FallbackAnalyses++
	}

	cs, ok := st.ByCategory[cat]
	if !ok {
		cs = &CategoryStats{}
		st.ByCategory[cat] = cs
	}
	cs.Answers++
	cs.scoreSum += score
	cs.AverageScore = round1(float64(cs.scoreSum) / float64(cs.Answers))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
