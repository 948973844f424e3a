package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lunar-stra95/coach-coral-mistral/internal/agent"
	"github.com/lunar-stra95/coach-coral-mistral/internal/analysis"
	"github.com/lunar-stra95/coach-coral-mistral/internal/config"
	"github.com/lunar-stra95/coach-coral-mistral/internal/interview"
	"github.com/lunar-stra95/coach-coral-mistral/internal/monitor"
	"github.com/lunar-stra95/coach-coral-mistral/internal/questions"
	"github.com/lunar-stra95/coach-coral-mistral/internal/session"
	"github.com/lunar-stra95/coach-coral-mistral/internal/stats"
)

const defaultAgentLogLimit = 50

type Server struct {
	coach           *interview.Coach
	broadcaster     *Broadcaster
	frontendDir     string
	dev             bool
	embeddedHandler http.Handler
	allowedOrigins  map[string]bool
	allowedHosts    map[string]bool
	authToken       string
	maxBodyBytes    int64

	tracker *stats.Tracker
	health  *monitor.AnalyzerHealth
	metrics http.Handler
}

func NewServer(cfg *config.Config, coach *interview.Coach, broadcaster *Broadcaster, frontendDir string, dev bool, embeddedHandler http.Handler) *Server {
	s := &Server{
		coach:           coach,
		broadcaster:     broadcaster,
		frontendDir:     frontendDir,
		dev:             dev,
		embeddedHandler: embeddedHandler,
		allowedOrigins:  make(map[string]bool),
		allowedHosts:    make(map[string]bool),
		authToken:       cfg.Server.AuthToken,
		maxBodyBytes:    cfg.Server.MaxBodyBytes,
	}

	for _, origin := range cfg.Server.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// SetStatsTracker configures the tracker behind /api/stats. Must be called
// before SetupRoutes.
func (s *Server) SetStatsTracker(tracker *stats.Tracker) {
	s.tracker = tracker
}

// SetHealth configures the analyzer health reported by /api/health.
func (s *Server) SetHealth(h *monitor.AnalyzerHealth) {
	s.health = h
}

// SetMetricsHandler mounts h at /metrics.
func (s *Server) SetMetricsHandler(h http.Handler) {
	s.metrics = h
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/questions", s.handleQuestions)
	mux.HandleFunc("/api/sessions", s.handleSessions)
	mux.HandleFunc("/api/sessions/", s.handleSessionRoutes)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/api/stats", s.handleStats)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/agents/log", s.handleAgentLog)
	if s.metrics != nil {
		mux.Handle("/metrics", s.requireAuth(s.metrics))
	}

	if s.dev {
		log.Printf("Serving frontend from filesystem: %s", s.frontendDir)
		mux.Handle("/", http.FileServer(http.Dir(s.frontendDir)))
	} else if s.embeddedHandler != nil {
		log.Println("Serving embedded frontend")
		mux.Handle("/", s.embeddedHandler)
	}
}

// Handler builds the complete HTTP handler with security headers applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.SetupRoutes(mux)
	return securityHeaders(mux)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("X-XSS-Protection", "1; mode=block")
		h.Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.authorize(r) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if s.broadcaster.maxConns > 0 && s.broadcaster.ClientCount() >= s.broadcaster.maxConns {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("ws upgrade error: %v", err)
		return
	}

	c, err := s.broadcaster.AddClient(conn)
	if err != nil {
		log.Printf("ws client rejected: %v", err)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, err.Error()))
		conn.Close()
		return
	}
	log.Printf("WebSocket client connected: %s", r.RemoteAddr)
	if id := r.URL.Query().Get("session"); id != "" {
		c.subscribe(id)
	}

	go func() {
		defer func() {
			s.broadcaster.RemoveClient(c)
			log.Printf("WebSocket client disconnected: %s", r.RemoteAddr)
		}()
		conn.SetReadLimit(4096)
		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				var syntaxErr *json.SyntaxError
				if errors.As(err, &syntaxErr) {
					continue
				}
				return
			}
			switch msg.Type {
			case CtlSubscribe:
				c.subscribe(msg.SessionID)
			case CtlUnsubscribe:
				c.subscribe("")
			}
		}
	}()
}

func (s *Server) handleQuestions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	category := questions.Category(q.Get("category"))
	if category != "" && !category.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown category %q", category))
		return
	}
	var difficulty *questions.Difficulty
	if v := q.Get("difficulty"); v != "" {
		d, err := questions.ParseDifficulty(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		difficulty = &d
	}

	writeJSON(w, http.StatusOK, s.coach.Bank().Filter(category, difficulty))
}

func (s *Server) handleSessions(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, s.broadcaster.FilterSessions(s.coach.List()))
	case http.MethodPost:
		var req interview.StartRequest
		if !s.decode(w, r, &req) {
			return
		}
		st, err := s.coach.Start(r.Context(), req)
		if err != nil {
			writeCoachError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, st)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

type answerRequest struct {
	Answer string `json:"answer"`
}

func (s *Server) handleSessionRoutes(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	// Parse: /api/sessions/{id}[/answer|/summary]
	path := strings.TrimPrefix(r.URL.Path, "/api/sessions/")
	parts := strings.SplitN(path, "/", 2)
	sessionID, err := url.PathUnescape(parts[0])
	if err != nil || sessionID == "" {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}
	action := ""
	if len(parts) == 2 {
		action = parts[1]
	}

	switch {
	case action == "" && r.Method == http.MethodGet:
		st, err := s.coach.Get(sessionID)
		if err != nil {
			writeCoachError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case action == "" && r.Method == http.MethodDelete:
		st, err := s.coach.Abandon(r.Context(), sessionID)
		if err != nil {
			writeCoachError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	case action == "answer" && r.Method == http.MethodPost:
		var req answerRequest
		if !s.decode(w, r, &req) {
			return
		}
		res, err := s.coach.Submit(r.Context(), sessionID, req.Answer)
		if err != nil {
			writeCoachError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	case action == "summary" && r.Method == http.MethodGet:
		sum, err := s.coach.Summary(sessionID)
		if err != nil {
			writeCoachError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	case action == "" || action == "answer" || action == "summary":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req analysis.Request
	if !s.decode(w, r, &req) {
		return
	}
	if req.QuestionID == "" && strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question or questionId is required")
		return
	}

	a, err := s.coach.AnalyzeOnce(r.Context(), req)
	if err != nil {
		writeCoachError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	if s.tracker == nil {
		writeError(w, http.StatusServiceUnavailable, "stats not available")
		return
	}

	writeJSON(w, http.StatusOK, s.tracker.Stats())
}

type healthResponse struct {
	Status         monitor.HealthStatus     `json:"status"`
	Analyzer       *monitor.HealthSnapshot  `json:"analyzer,omitempty"`
	Process        *monitor.ProcessSnapshot `json:"process,omitempty"`
	ActiveSessions int                      `json:"activeSessions"`
	Clients        int                      `json:"clients"`
	Agents         []agent.Role             `json:"agents"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	resp := healthResponse{
		Status:         monitor.StatusHealthy,
		ActiveSessions: countActive(s.coach.List()),
		Clients:        s.broadcaster.ClientCount(),
		Agents:         s.coach.Master().Roles(),
	}
	if s.health != nil {
		snap := s.health.Snapshot()
		resp.Analyzer = &snap
		resp.Status = snap.Status
	}
	if proc, err := monitor.ProcessStats(r.Context()); err == nil {
		resp.Process = &proc
	} else {
		log.Printf("process stats: %v", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func countActive(sessions []*session.SessionState) int {
	n := 0
	for _, st := range sessions {
		if !st.IsTerminal() {
			n++
		}
	}
	return n
}

type agentLogResponse struct {
	Messages []agent.Message       `json:"messages"`
	Counts   map[agent.MsgType]int `json:"counts"`
}

func (s *Server) handleAgentLog(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit := defaultAgentLogLimit
	if v := r.URL.Query().Get("n"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "n must be a positive integer")
			return
		}
		limit = n
	}

	m := s.coach.Master()
	writeJSON(w, http.StatusOK, agentLogResponse{
		Messages: m.Recent(limit),
		Counts:   m.Counts(),
	})
}

// decode reads a JSON body into v, writing a 400 or 413 on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if s.maxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeCoachError maps coach errors onto HTTP status codes.
func writeCoachError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, interview.ErrUnknownQuestion):
		status = http.StatusNotFound
	case errors.Is(err, session.ErrSessionComplete),
		errors.Is(err, session.ErrAnalysisInProgress),
		errors.Is(err, session.ErrNoQuestionPending):
		status = http.StatusConflict
	case errors.Is(err, analysis.ErrEmptyAnswer),
		errors.Is(err, interview.ErrAnswerTooLong),
		errors.Is(err, interview.ErrInvalidDifficulty):
		status = http.StatusBadRequest
	case errors.Is(err, agent.ErrUnknownRole):
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusInternalServerError {
		log.Printf("request failed: %v", err)
	}
	writeError(w, status, err.Error())
}

func (s *Server) authorize(r *http.Request) bool {
	if s.authToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.authToken {
		return true
	}

	if r.Header.Get("X-Coach-Token") == s.authToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.authToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	switch parsed.Hostname() {
	case "localhost", "127.0.0.1", "::1":
		return true
	}

	return false
}

// Serve runs h on host:port until ctx is cancelled, then shuts down
// gracefully.
func Serve(ctx context.Context, host string, port int, h http.Handler) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
