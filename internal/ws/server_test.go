package ws

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunar-stra95/coach-coral-mistral/internal/agent"
	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/config"
	"github.com/lunar-stra95/coach-coral-mistral/internal/interview"
	"github.com/lunar-stra95/coach-coral-mistral/internal/llm"
	"github.com/lunar-stra95/coach-coral-mistral/internal/monitor"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
	"github.com/lunar-stra95/coach-coral-mistral/internal/stats"
)

const testAnswer = "The situation was a missed deadline. My task was to recover the plan. " +
	"I took action by cutting scope and the result was shipping 3 days early."

type testEnv struct {
	srv    *httptest.Server
	b      *Broadcaster
	coach  *interview.Coach
	health *monitor.AnalyzerHealth
}

func newTestEnv(t *testing.T, mutate func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Server.AuthToken = ""
	cfg.Interview.MaxQuestions = 2
	if mutate != nil {
		mutate(cfg)
	}

	store := session.NewStore()
	b := NewBroadcaster(store, 10*time.Millisecond, time.Hour, 0)
	t.Cleanup(b.Stop)

	bank := questions.DefaultBank()
	master := agent.NewMaster(64)
	master.SetLogFilter(&session.PrivacyFilter{
		RedactContactInfo: cfg.Privacy.RedactContactInfo,
		MaskSessionIDs:    cfg.Privacy.MaskSessionIDs,
	})
	master.Register(agent.NewInterviewer(questions.NewSelector(bank, 1)))
	master.Register(agent.NewAnalyzer(analysis.NewAnalyzer(llm.NewMockProvider(), analysis.Options{})))
	master.Register(agent.NewFrontend(b))

	icfg := interview.DefaultConfig()
	icfg.MaxQuestions = cfg.Interview.MaxQuestions
	coach := interview.New(icfg, store, master, bank)
	coach.SetNotifier(b)

	health := monitor.NewAnalyzerHealth("mock", "mock-scorer", 3)
	coach.SetAnalysisObserver(health)

	tracker, events := stats.NewTracker()
	coach.SetEvents(events)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go tracker.Run(ctx)

	s := NewServer(cfg, coach, b, "", false, nil)
	s.SetStatsTracker(tracker)
	s.SetHealth(health)
	s.SetMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "coach_up 1\n")
	}))

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, b: b, coach: coach, health: health}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, header http.Header) (*http.Response, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, rd)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := e.srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func decodeBody[T any](t *testing.T, data []byte) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		t.Fatalf("decode %s: %v", data, err)
	}
	return v
}

func TestSecurityHeaders(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	securityHeaders(inner).ServeHTTP(rec, req)

	want := map[string]string{
		"X-Content-Type-Options":  "nosniff",
		"X-Frame-Options":         "DENY",
		"X-XSS-Protection":        "1; mode=block",
		"Content-Security-Policy": "default-src 'self'",
	}

	for header, expected := range want {
		if got := rec.Header().Get(header); got != expected {
			t.Errorf("header %s = %q, want %q", header, got, expected)
		}
	}
}

func TestAuthorize(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.AuthToken = "s3cret" })

	tests := []struct {
		name   string
		path   string
		header http.Header
		want   int
	}{
		{"no token", "/api/sessions", nil, http.StatusUnauthorized},
		{"wrong token", "/api/sessions?token=nope", nil, http.StatusUnauthorized},
		{"query token", "/api/sessions?token=s3cret", nil, http.StatusOK},
		{"header token", "/api/sessions", http.Header{"X-Coach-Token": {"s3cret"}}, http.StatusOK},
		{"bearer token", "/api/sessions", http.Header{"Authorization": {"Bearer s3cret"}}, http.StatusOK},
		{"metrics guarded", "/metrics", nil, http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := env.do(t, http.MethodGet, tt.path, nil, tt.header)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestCheckOrigin(t *testing.T) {
	cfg := config.Default()
	s := NewServer(cfg, nil, nil, "", false, nil)

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"http://localhost:3000", true},
		{"http://127.0.0.1:8080", true},
		{"http://[::1]:8080", true},
		{"http://coach.example.com", true}, // same host as the request
		{"http://evil.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "http://coach.example.com/ws", nil)
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := s.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}

	cfg.Server.AllowedOrigins = []string{"https://app.example.com"}
	s = NewServer(cfg, nil, nil, "", false, nil)
	req := httptest.NewRequest(http.MethodGet, "http://coach.example.com/ws", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	if s.checkOrigin(req) {
		t.Error("explicit allow list should reject localhost")
	}
	req.Header.Set("Origin", "https://app.example.com")
	if !s.checkOrigin(req) {
		t.Error("allowed origin rejected")
	}
}

func TestInterviewFlowOverHTTP(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/sessions", map[string]string{"candidate": "Ada", "role": "SRE"}, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start status = %d: %s", resp.StatusCode, body)
	}
	st := decodeBody[session.SessionState](t, body)
	if st.Current == nil {
		t.Fatal("started session has no current question")
	}

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/answer", map[string]string{"answer": testAnswer}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer status = %d: %s", resp.StatusCode, body)
	}
	turn := decodeBody[interview.TurnResult](t, body)
	if turn.Complete || turn.Next == nil {
		t.Fatalf("first answer should yield a next question: %+v", turn)
	}
	if turn.Analysis.Score < 1 || turn.Analysis.Score > 10 {
		t.Errorf("score = %d out of range", turn.Analysis.Score)
	}

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/answer", map[string]string{"answer": "dunno"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("second answer status = %d: %s", resp.StatusCode, body)
	}
	turn = decodeBody[interview.TurnResult](t, body)
	if !turn.Complete || turn.Reason != agent.ReasonBudgetReached || turn.Summary == nil {
		t.Fatalf("second answer should complete the session: %+v", turn)
	}
	if turn.Summary.Count != 2 {
		t.Errorf("summary count = %d, want 2", turn.Summary.Count)
	}

	resp, body = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/answer", map[string]string{"answer": "again"}, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("answer after completion status = %d, want 409: %s", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/sessions/"+st.ID+"/summary", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("summary status = %d", resp.StatusCode)
	}
	sum := decodeBody[analysis.Summary](t, body)
	if sum.Count != 2 || sum.Best < sum.Worst {
		t.Errorf("summary = %+v", sum)
	}
}

func TestSessionErrors(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/sessions/missing", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("missing session status = %d, want 404", resp.StatusCode)
	}
	if e := decodeBody[map[string]string](t, body); e["error"] == "" {
		t.Error("error body should carry an error message")
	}

	_, body = env.do(t, http.MethodPost, "/api/sessions", map[string]string{}, nil)
	st := decodeBody[session.SessionState](t, body)

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/answer", map[string]string{"answer": "   "}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("empty answer status = %d, want 400", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/answer", map[string]string{"reply": "x"}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown field status = %d, want 400", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodPut, "/api/sessions/"+st.ID, nil, nil)
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("PUT status = %d, want 405", resp.StatusCode)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+st.ID+"/bogus", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown action status = %d, want 404", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodDelete, "/api/sessions/"+st.ID, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("abandon status = %d: %s", resp.StatusCode, body)
	}
	if got := decodeBody[session.SessionState](t, body); got.Status != session.Abandoned {
		t.Errorf("status = %s, want abandoned", got.Status)
	}
	resp, _ = env.do(t, http.MethodDelete, "/api/sessions/"+st.ID, nil, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second abandon status = %d, want 409", resp.StatusCode)
	}
}

func TestBodyLimit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Server.MaxBodyBytes = 64 })

	resp, _ := env.do(t, http.MethodPost, "/api/sessions", map[string]string{"candidate": strings.Repeat("x", 200)}, nil)
	if resp.StatusCode != http.StatusRequestEntityTooLarge {
		t.Errorf("status = %d, want 413", resp.StatusCode)
	}
}

func TestQuestionsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodGet, "/api/questions?category=behavioral&difficulty=medium", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	qs := decodeBody[[]questions.Question](t, body)
	if len(qs) == 0 {
		t.Fatal("expected behavioral medium questions")
	}
	for _, q := range qs {
		if q.Category != questions.Behavioral || q.Difficulty != questions.Medium {
			t.Errorf("unexpected question %s (%s/%s)", q.ID, q.Category, q.Difficulty)
		}
	}

	resp, _ = env.do(t, http.MethodGet, "/api/questions?category=astrology", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad category status = %d, want 400", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/questions?difficulty=extreme", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad difficulty status = %d, want 400", resp.StatusCode)
	}
}

func TestAnalyzeEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, body := env.do(t, http.MethodPost, "/api/analyze", map[string]string{
		"questionId": "teammate-conflict",
		"answer":     testAnswer,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	a := decodeBody[analysis.Analysis](t, body)
	if a.Score < 1 || a.Fallback {
		t.Errorf("analysis = %+v", a)
	}

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"no question", map[string]string{"answer": testAnswer}, http.StatusBadRequest},
		{"unknown question", map[string]string{"questionId": "nope", "answer": testAnswer}, http.StatusNotFound},
		{"empty answer", map[string]string{"question": "Why us?", "answer": ""}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, http.MethodPost, "/api/analyze", tt.body, nil)
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d: %s", resp.StatusCode, tt.want, body)
			}
		})
	}

	if got := env.health.Snapshot().TotalAnalyses; got != 1 {
		t.Errorf("health saw %d analyses, want 1", got)
	}
}

func TestHealthStatsAndAgentLog(t *testing.T) {
	env := newTestEnv(t, nil)
	env.do(t, http.MethodPost, "/api/sessions", map[string]string{"candidate": "Ada"}, nil)

	resp, body := env.do(t, http.MethodGet, "/api/health", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", resp.StatusCode)
	}
	h := decodeBody[healthResponse](t, body)
	if h.Status != monitor.StatusHealthy || h.ActiveSessions != 1 || len(h.Agents) != 3 {
		t.Errorf("health = %+v", h)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		_, body = env.do(t, http.MethodGet, "/api/stats", nil, nil)
		if decodeBody[stats.Stats](t, body).TotalSessions == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("stats never counted the session: %s", body)
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, body = env.do(t, http.MethodGet, "/api/agents/log?n=10", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("agent log status = %d", resp.StatusCode)
	}
	entries := decodeBody[agentLogResponse](t, body)
	if len(entries.Messages) == 0 || entries.Counts[agent.MsgQuestionRequest] == 0 {
		t.Errorf("agent log = %+v", entries)
	}

	resp, _ = env.do(t, http.MethodGet, "/api/agents/log?n=zero", nil, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad n status = %d, want 400", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/metrics", nil, nil)
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "coach_up 1") {
		t.Errorf("metrics = %d %s", resp.StatusCode, body)
	}
}

func TestAgentLogRedactsAnswers(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Privacy.RedactContactInfo = true
		c.Privacy.MaskSessionIDs = true
	})

	_, body := env.do(t, http.MethodPost, "/api/sessions", map[string]string{"candidate": "Ada"}, nil)
	st := decodeBody[session.SessionState](t, body)

	answer := "Call me at jane.doe@example.com or +1 415 555 0100. " + testAnswer
	resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/answer", map[string]string{"answer": answer}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("answer status = %d", resp.StatusCode)
	}

	resp, body = env.do(t, http.MethodGet, "/api/agents/log", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("agent log status = %d", resp.StatusCode)
	}
	logBody := string(body)
	for _, leak := range []string{"jane.doe@example.com", "415 555 0100", st.ID} {
		if strings.Contains(logBody, leak) {
			t.Errorf("agent log contains %q", leak)
		}
	}
	if !strings.Contains(logBody, "[email]") {
		t.Errorf("agent log has no redacted answer: %s", logBody)
	}
}

func TestWebSocketSubscription(t *testing.T) {
	env := newTestEnv(t, nil)

	_, body := env.do(t, http.MethodPost, "/api/sessions", map[string]string{"candidate": "Ada"}, nil)
	st := decodeBody[session.SessionState](t, body)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws?session=" + st.ID
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	readUntil(t, conn, MsgSnapshot)

	env.do(t, http.MethodPost, "/api/sessions/"+st.ID+"/answer", map[string]string{"answer": testAnswer}, nil)

	msg := readUntil(t, conn, MsgAnalysis)
	var sid string
	_ = json.Unmarshal(msg["sessionId"], &sid)
	if sid != st.ID {
		t.Errorf("analysis for %q, want %q", sid, st.ID)
	}
	var payload agent.AnalysisPayload
	if err := json.Unmarshal(msg["payload"], &payload); err != nil {
		t.Fatalf("payload: %v", err)
	}
	if payload.Analysis.Score < 1 {
		t.Errorf("score = %d", payload.Analysis.Score)
	}
	readUntil(t, conn, MsgQuestion)
}

func TestWebSocketRejectsForeignOrigin(t *testing.T) {
	env := newTestEnv(t, nil)

	wsURL := "ws" + strings.TrimPrefix(env.srv.URL, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, http.Header{"Origin": {"http://evil.example.com"}})
	if err == nil {
		t.Fatal("expected dial to fail for foreign origin")
	}
	if resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("response = %v, want 403", resp)
	}
}
