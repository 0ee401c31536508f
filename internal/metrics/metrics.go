// Package metrics holds the prometheus counters of the conversation and quiz
// orchestration layer. A nil *Metrics is valid and records nothing.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "advisor_chat"

// History load outcomes.
const (
	HistoryLoaded = "loaded"
	HistoryEmpty  = "empty"
	HistoryFailed = "failed"
	HistoryStale  = "stale"
)

type Metrics struct {
	messages          *prometheus.CounterVec
	malformed         prometheus.Counter
	transportFailures prometheus.Counter
	historyLoads      *prometheus.CounterVec
	staleSends        prometheus.Counter
	quizSubmissions   *prometheus.CounterVec
	reportFailures    prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_appended_total",
			Help:      "Messages appended to conversations, by role.",
		}, []string{"role"}),
		malformed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "malformed_payloads_total",
			Help:      "Advisor payloads that yielded no answer, tips or disclaimers.",
		}),
		transportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transport_failures_total",
			Help:      "Questions that failed at the transport layer.",
		}),
		historyLoads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_loads_total",
			Help:      "History fetches, by outcome.",
		}, []string{"result"}),
		staleSends: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_send_results_total",
			Help:      "Answers discarded because the active conversation changed mid-request.",
		}),
		quizSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quiz_submissions_total",
			Help:      "Submitted quiz attempts, by verdict.",
		}, []string{"passed"}),
		reportFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "progress_report_failures_total",
			Help:      "Enrollment progress reports that were not acknowledged.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.messages, m.malformed, m.transportFailures, m.historyLoads,
			m.staleSends, m.quizSubmissions, m.reportFailures)
	}
	return m
}

func (m *Metrics) MessageAppended(role string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(role).Inc()
}

func (m *Metrics) MalformedPayload() {
	if m == nil {
		return
	}
	m.malformed.Inc()
}

func (m *Metrics) TransportFailure() {
	if m == nil {
		return
	}
	m.transportFailures.Inc()
}

func (m *Metrics) HistoryLoad(result string) {
	if m == nil {
		return
	}
	m.historyLoads.WithLabelValues(result).Inc()
}

func (m *Metrics) StaleSend() {
	if m == nil {
		return
	}
	m.staleSends.Inc()
}

func (m *Metrics) QuizSubmitted(passed bool) {
	if m == nil {
		return
	}
	m.quizSubmissions.WithLabelValues(strconv.FormatBool(passed)).Inc()
}

func (m *Metrics) ProgressReportFailed() {
	if m == nil {
		return
	}
	m.reportFailures.Inc()
}

// RegisterLiveSessions exposes count as the number of sessions held in memory.
func RegisterLiveSessions(reg prometheus.Registerer, count func() int) prometheus.GaugeFunc {
	gauge := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "live_sessions",
		Help:      "Conversation sessions currently held in memory.",
	}, func() float64 { return float64(count()) })
	reg.MustRegister(gauge)
	return gauge
}
