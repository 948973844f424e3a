package status

import (
	"strings"
	"testing"

	"github.com/lunar-stra95/coach-coral-mistral/internal/tui/client"
)

func TestView(t *testing.T) {
	m := New()
	m.Width = 100
	v := m.View()
	if !strings.Contains(v, "Connecting") || !strings.Contains(v, "analyzer: unknown") {
		t.Errorf("disconnected view = %q", v)
	}

	m.Connected = true
	m.Health = &client.HealthSnapshot{Status: client.StatusDegraded, Model: "mock", ConsecutiveFallbacks: 2}
	m.Progress = "Q2/5"
	v = m.View()
	for _, want := range []string{"Connected", "analyzer: degraded", "(mock)", "2 fallback", "Q2/5"} {
		if !strings.Contains(v, want) {
			t.Errorf("view missing %q: %q", want, v)
		}
	}
}
