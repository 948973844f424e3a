package stats

import (
	"context"
	"testing"
	"time"

	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
)

func answeredState(id string, scores ...int) *session.SessionState {
	st := &session.SessionState{ID: id, StartedAt: time.Now().Add(-time.Minute)}
	for i, score := range scores {
		cat := questions.Behavioral
		if i%2 == 1 {
			cat = questions.Technical
		}
		a := &analysis.Analysis{Score: score}
		st.Turns = append(st.Turns, session.Turn{
			Question: questions.Question{ID: id + "-q", Category: cat},
			Analysis: a,
		})
	}
	return st
}

func TestTracker_NewCountsOnce(t *testing.T) {
	tr, _ := NewTracker()
	st := &session.SessionState{ID: "s1"}

	tr.processEvent(session.Event{Type: session.EventNew, State: st, ActiveCount: 1})
	tr.processEvent(session.Event{Type: session.EventNew, State: st, ActiveCount: 3})

	got := tr.Stats()
	if got.TotalSessions != 1 {
		t.Errorf("TotalSessions = %d, want 1", got.TotalSessions)
	}
	if got.PeakConcurrent != 3 {
		t.Errorf("PeakConcurrent = %d, want 3", got.PeakConcurrent)
	}
}

func TestTracker_AnswersFoldedIncrementally(t *testing.T) {
	tr, _ := NewTracker()

	tr.processEvent(session.Event{Type: session.EventUpdate, State: answeredState("s1", 6)})
	tr.processEvent(session.Event{Type: session.EventUpdate, State: answeredState("s1", 6)})
	tr.processEvent(session.Event{Type: session.EventUpdate, State: answeredState("s1", 6, 9)})

	got := tr.Stats()
	if got.Answers != 2 {
		t.Fatalf("Answers = %d, want 2", got.Answers)
	}
	if got.AverageScore != 7.5 {
		t.Errorf("AverageScore = %v, want 7.5", got.AverageScore)
	}
	if cs := got.ByCategory[questions.Behavioral]; cs == nil || cs.Answers != 1 || cs.AverageScore != 6 {
		t.Errorf("behavioral = %+v", cs)
	}
	if cs := got.ByCategory[questions.Technical]; cs == nil || cs.AverageScore != 9 {
		t.Errorf("technical = %+v", cs)
	}
}

func TestTracker_TerminalOutcomes(t *testing.T) {
	tr, _ := NewTracker()

	tests := []struct {
		id     string
		status session.Status
	}{
		{"a", session.Complete},
		{"b", session.Abandoned},
		{"c", session.Expired},
		{"d", session.Complete},
	}
	for _, tt := range tests {
		st := answeredState(tt.id, 5)
		st.Turns[0].Analysis.Fallback = tt.id == "c"
		st.Finish(tt.status, time.Now())
		tr.processEvent(session.Event{Type: session.EventTerminal, State: st})
	}

	got := tr.Stats()
	if got.Completed != 2 || got.Abandoned != 1 || got.Expired != 1 {
		t.Errorf("outcomes = %d/%d/%d, want 2/1/1", got.Completed, got.Abandoned, got.Expired)
	}
	if got.Answers != 4 {
		t.Errorf("Answers = %d, want 4", got.Answers)
	}
	if got.FallbackAnalyses != 1 {
		t.Errorf("FallbackAnalyses = %d, want 1", got.FallbackAnalyses)
	}
	if got.LongestSessionSec < 59 {
		t.Errorf("LongestSessionSec = %v, want about 60", got.LongestSessionSec)
	}
}

func TestTracker_StatsIsCopy(t *testing.T) {
	tr, _ := NewTracker()
	tr.processEvent(session.Event{Type: session.EventUpdate, State: answeredState("s1", 4)})

	cp := tr.Stats()
	cp.Answers = 99
	cp.ByCategory[questions.Behavioral].Answers = 99

	got := tr.Stats()
	if got.Answers != 1 || got.ByCategory[questions.Behavioral].Answers != 1 {
		t.Error("mutating the returned stats changed the tracker")
	}
}

func TestTracker_RunConsumesChannel(t *testing.T) {
	tr, ch := NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		tr.Run(ctx)
		close(done)
	}()

	ch <- session.Event{Type: session.EventNew, State: &session.SessionState{ID: "s1"}, ActiveCount: 1}

	deadline := time.Now().Add(2 * time.Second)
	for tr.Stats().TotalSessions != 1 {
		if time.Now().After(deadline) {
			t.Fatal("event was not processed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
