package debug

import (
	"strings"
	"testing"
)

func TestAddCapsEntries(t *testing.T) {
	m := New()
	for i := 0; i < maxEntries+50; i++ {
		m.Addf(KindWS, "msg %d", i)
	}
	if len(m.Entries) != maxEntries {
		t.Fatalf("expected %d entries, got %d", maxEntries, len(m.Entries))
	}
	if m.Entries[0].Message != "msg 50" {
		t.Errorf("oldest entry = %q, want msg 50", m.Entries[0].Message)
	}
}

func TestScroll(t *testing.T) {
	m := New()
	for i := 0; i < 5; i++ {
		m.Add(KindWS, "msg")
	}
	m.ScrollUp(3)
	if m.Offset != 3 {
		t.Errorf("offset = %d, want 3", m.Offset)
	}
	m.ScrollUp(100)
	if m.Offset != 4 {
		t.Errorf("offset = %d, want capped at 4", m.Offset)
	}
	m.ScrollDown(10)
	if m.Offset != 0 {
		t.Errorf("offset = %d, want 0", m.Offset)
	}
	m.ScrollUp(2)
	m.Add(KindWS, "new")
	if m.Offset != 0 {
		t.Error("Add should reset the offset")
	}
}

func TestErrorsOnly(t *testing.T) {
	m := New()
	m.Add(KindWS, "connected")
	m.Add(KindError, "analysis failed")
	m.Add(KindHTTP, "POST /api/sessions")

	m.ToggleErrors()
	v := m.View(100, 30)
	if !strings.Contains(v, "analysis failed") {
		t.Error("errors-only view should show the error")
	}
	if strings.Contains(v, "connected") {
		t.Error("errors-only view should hide ws entries")
	}

	m.ToggleErrors()
	if !strings.Contains(m.View(100, 30), "connected") {
		t.Error("full view should show ws entries")
	}
}

func TestEmptyView(t *testing.T) {
	v := New().View(80, 20)
	if !strings.Contains(v, "Nothing logged yet") {
		t.Errorf("empty view = %q", v)
	}
}
