package observability

import (
	"strconv"
	"sync"
	"time"
)

// Metrics provides basic in-memory counters. The dashboard reads the
// snapshot through /metrics.
type Metrics struct {
	mu            sync.Mutex
	requestCount  map[string]int64
	errorCount    map[string]int64
	sweepTicks    int64
	sweepErrors   int64
	slaWarnings   int64
	slaBreaches   int64
	escalations   int64
	webhookEvents map[string]int64
}

// Snapshot is a point-in-time copy of all counters.
type Snapshot struct {
	Requests      map[string]int64 `json:"requests"`
	Errors        map[string]int64 `json:"errors"`
	SweepTicks    int64            `json:"sweep_ticks"`
	SweepErrors   int64            `json:"sweep_errors"`
	SLAWarnings   int64            `json:"sla_warnings"`
	SLABreaches   int64            `json:"sla_breaches"`
	Escalations   int64            `json:"escalations"`
	WebhookEvents map[string]int64 `json:"webhook_events"`
}

// NewMetrics initializes metrics storage.
func NewMetrics() *Metrics {
	return &Metrics{
		requestCount:  make(map[string]int64),
		errorCount:    make(map[string]int64),
		webhookEvents: make(map[string]int64),
	}
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	key := pathKey(path, method, status)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestCount[key]++
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	key := path + "|" + method + "|" + code
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errorCount[key]++
}

// RecordSweep accumulates one sweep tick and its per-task failure count.
func (m *Metrics) RecordSweep(taskErrors int) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepTicks++
	m.sweepErrors += int64(taskErrors)
}

// RecordSLAWarning counts a warning signal.
func (m *Metrics) RecordSLAWarning() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaWarnings++
}

// RecordSLABreach counts a breach signal.
func (m *Metrics) RecordSLABreach() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.slaBreaches++
}

// RecordEscalation counts a dispatched escalation.
func (m *Metrics) RecordEscalation() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.escalations++
}

// RecordWebhook counts one ingested event by source and outcome.
func (m *Metrics) RecordWebhook(source, outcome string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.webhookEvents[source+"|"+outcome]++
}

// Snapshot copies current counter state.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := Snapshot{
		Requests:      make(map[string]int64, len(m.requestCount)),
		Errors:        make(map[string]int64, len(m.errorCount)),
		SweepTicks:    m.sweepTicks,
		SweepErrors:   m.sweepErrors,
		SLAWarnings:   m.slaWarnings,
		SLABreaches:   m.slaBreaches,
		Escalations:   m.escalations,
		WebhookEvents: make(map[string]int64, len(m.webhookEvents)),
	}
	for k, v := range m.requestCount {
		snap.Requests[k] = v
	}
	for k, v := range m.errorCount {
		snap.Errors[k] = v
	}
	for k, v := range m.webhookEvents {
		snap.WebhookEvents[k] = v
	}
	return snap
}

func pathKey(path, method string, status int) string {
	return path + "|" + method + "|" + strconv.Itoa(status)
}
