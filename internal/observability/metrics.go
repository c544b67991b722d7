package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. Every
// instrument is registered on the instance's own registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ActiveSessions  prometheus.Gauge
	SessionEvents   *prometheus.CounterVec
	WSMessages      *prometheus.CounterVec
	MatchOutcomes   *prometheus.CounterVec
	CaptureErrors   *prometheus.CounterVec
	QuizAnswers     *prometheus.CounterVec
	QuizCompletions *prometheus.CounterVec
	Turns           prometheus.Counter
	StoreErrors     *prometheus.CounterVec
	ReplyLatency    prometheus.Histogram
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Number of active assistant sessions.",
		}),
		SessionEvents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_events_total",
			Help:      "Session events by type.",
		}, []string{"event"}),
		WSMessages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		MatchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_outcomes_total",
			Help:      "Replies by the rung of the fallback ladder that produced them.",
		}, []string{"source"}),
		CaptureErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_errors_total",
			Help:      "Speech capture failures by error code.",
		}, []string{"code"}),
		QuizAnswers: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_answers_total",
			Help:      "Quiz questions by outcome (answered or skipped).",
		}, []string{"outcome"}),
		QuizCompletions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_completions_total",
			Help:      "Completed persona quizzes by detected persona.",
		}, []string{"persona"}),
		Turns: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversation_turns_total",
			Help:      "Conversation turns recorded.",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Persisted store failures by operation.",
		}, []string{"op"}),
		ReplyLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reply_latency_ms",
			Help:      "Time from captured input to reply in milliseconds.",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
	}
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SetActiveSessions mirrors the session manager's active count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) ObserveSessionEvent(event string) {
	if m == nil {
		return
	}
	m.SessionEvents.WithLabelValues(event).Inc()
}

func (m *Metrics) ObserveWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) ObserveMatch(source string) {
	if m == nil {
		return
	}
	m.MatchOutcomes.WithLabelValues(source).Inc()
}

func (m *Metrics) ObserveCaptureError(code string) {
	if m == nil {
		return
	}
	m.CaptureErrors.WithLabelValues(code).Inc()
}

func (m *Metrics) ObserveQuizAnswer(answered bool) {
	if m == nil {
		return
	}
	outcome := "skipped"
	if answered {
		outcome = "answered"
	}
	m.QuizAnswers.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveQuizCompletion(persona string) {
	if m == nil {
		return
	}
	m.QuizCompletions.WithLabelValues(persona).Inc()
}

func (m *Metrics) ObserveTurn() {
	if m == nil {
		return
	}
	m.Turns.Inc()
}

func (m *Metrics) ObserveStoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
}

func (m *Metrics) ObserveReplyLatency(d time.Duration) {
	if m == nil {
		return
	}
	m.ReplyLatency.Observe(float64(d.Milliseconds()))
}
