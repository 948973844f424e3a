// Package metrics records coach activity as Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder implements the llm, analysis and interview recorder interfaces.
type Recorder struct {
	registry *prometheus.Registry

	llmRequests     *prometheus.CounterVec
	llmDuration     *prometheus.HistogramVec
	llmTokens       *prometheus.CounterVec
	analyses        *prometheus.CounterVec
	sessionsStarted prometheus.Counter
	sessionsEnded   *prometheus.CounterVec
	sessionsActive  prometheus.Gauge
	wsClients       prometheus.Gauge
}

// NewRecorder registers the coach collectors on a fresh registry along with
// the Go runtime and process collectors.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		llmRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_llm_requests_total",
				Help: "LLM requests by provider, model and status",
			},
			[]string{"provider", "model", "status"},
		),
		llmDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coach_llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model"},
		),
		llmTokens: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_llm_tokens_total",
				Help: "Tokens used by LLM requests",
			},
			[]string{"provider", "type"},
		),
		analyses: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_analyses_total",
				Help: "Answer analyses by source (llm or fallback)",
			},
			[]string{"source"},
		),
		sessionsStarted: f.NewCounter(prometheus.CounterOpts{
			Name: "coach_sessions_started_total",
			Help: "Interview sessions started",
		}),
		sessionsEnded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coach_sessions_finished_total",
				Help: "Interview sessions finished by outcome",
			},
			[]string{"outcome"},
		),
		sessionsActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "coach_sessions_active",
			Help: "Sessions not yet finished",
		}),
		wsClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "coach_ws_clients",
			Help: "Connected WebSocket clients",
		}),
	}
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveLLMRequest(provider, model, status string, elapsed time.Duration) {
	r.llmRequests.WithLabelValues(provider, model, status).Inc()
	r.llmDuration.WithLabelValues(provider, model).Observe(elapsed.Seconds())
}

func (r *Recorder) AddLLMTokens(provider string, prompt, completion uint32) {
	r.llmTokens.WithLabelValues(provider, "prompt").Add(float64(prompt))
	r.llmTokens.WithLabelValues(provider, "completion").Add(float64(completion))
}

func (r *Recorder) ObserveAnalysis(source string) {
	r.analyses.WithLabelValues(source).Inc()
}

func (r *Recorder) SessionStarted() {
	r.sessionsStarted.Inc()
}

func (r *Recorder) SessionFinished(outcome string) {
	r.sessionsEnded.WithLabelValues(outcome).Inc()
}

func (r *Recorder) SetActiveSessions(n int) {
	r.sessionsActive.Set(float64(n))
}

func (r *Recorder) SetWSClients(n int) {
	r.wsClients.Set(float64(n))
}
