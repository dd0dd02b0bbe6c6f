// Package telemetry - tracker.go implements the telemetry tracker: a richer
// event stream layered above the experiment logger. A fixed subset of event
// types is transparently forwarded into the logger so the two parallel logs
// stay consistent by construction.
package telemetry

import (
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// DefaultTrackerFlushEvery is the tracker's batching constant.
const DefaultTrackerFlushEvery = 5

// DefaultModel is recorded on forwarded log entries when the event carries
// no explicit model.
const DefaultModel = "system"

// Tracker owns the telemetry event stream. It shares lifecycle shape with
// Logger (initialize / buffered appends / finalize) but writes its own file
// and keeps its own lock and counters. Safe for concurrent use.
type Tracker struct {
	mu               sync.Mutex
	sessionID        string
	startTime        string
	path             string
	flushEvery       int
	events           []Event
	appendCount      int
	currentIteration int
	lastTimestamp    string
	dirty            bool

	logger       *Logger // forwarding sink; nil disables forwarding
	defaultModel string
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerFlushEvery overrides the flush batching constant.
func WithTrackerFlushEvery(n int) TrackerOption {
	return func(t *Tracker) {
		if n < 1 {
			n = 1
		}
		t.flushEvery = n
	}
}

// WithDefaultModel sets the model recorded on forwarded entries when the
// call does not specify one.
func WithDefaultModel(model string) TrackerOption {
	return func(t *Tracker) { t.defaultModel = model }
}

// NewTracker creates a Tracker forwarding qualifying events into logger.
func NewTracker(logger *Logger, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		sessionID:    uuid.NewString(),
		startTime:    now(),
		flushEvery:   DefaultTrackerFlushEvery,
		logger:       logger,
		defaultModel: DefaultModel,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// SessionID returns the tracker's session identity.
func (t *Tracker) SessionID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID
}

// CurrentIteration returns the iteration tag attached to tracked events.
func (t *Tracker) CurrentIteration() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.currentIteration
}

// Initialize creates logDir if absent, binds <logDir>/telemetry_data.json
// and writes an initial snapshot. Same resume and corruption-recovery
// semantics as Logger.Initialize; session identity is preserved.
func (t *Tracker) Initialize(logDir string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := ensureDir(logDir); err != nil {
		return err
	}
	path := filepath.Join(logDir, TelemetryFileName)

	prior, err := readTelemetryDocument(path)
	if err != nil {
		return err
	}
	if prior != nil && len(prior.Events) > 0 {
		t.events = append(prior.Events, t.events...)
		if last := prior.Events[len(prior.Events)-1].Timestamp; last > t.lastTimestamp {
			t.lastTimestamp = last
		}
		log.Info().Int("resumed_events", len(prior.Events)).Str("path", path).
			Msg("telemetry: resumed existing document")
	}

	t.path = path
	t.dirty = true
	return t.flushLocked()
}

// EventOption sets per-event optional fields.
type EventOption func(*Event, *string)

// WithDuration records the event's duration in milliseconds.
func WithDuration(ms float64) EventOption {
	return func(e *Event, _ *string) { e.DurationMS = &ms }
}

// WithSuccess overrides the default success=true flag.
func WithSuccess(success bool) EventOption {
	return func(e *Event, _ *string) { e.Success = success }
}

// WithErrorMessage attaches an error message and marks the event failed.
func WithErrorMessage(msg string) EventOption {
	return func(e *Event, _ *string) {
		e.ErrorMessage = &msg
		e.Success = false
	}
}

// WithModel sets the model recorded on the forwarded log entry.
func WithModel(model string) EventOption {
	return func(_ *Event, forwardModel *string) { *forwardModel = model }
}

// TrackEvent appends one event to the tracker's buffer and, when eventType
// is in the forwarding map, also records a corresponding experiment log
// entry. Forwarding failures are logged to the console and swallowed:
// telemetry collection must never abort the pipeline it observes.
//
// The returned error covers only the tracker's own persistence.
func (t *Tracker) TrackEvent(eventType EventType, agentName string, data Fields, opts ...EventOption) (string, error) {
	if data == nil {
		data = Fields{}
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return "", &PersistenceError{Path: t.path, Op: "serialize event data", Err: err}
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	event := Event{
		EventID:   uuid.NewString(),
		EventType: eventType,
		AgentName: agentName,
		Iteration: t.currentIteration,
		Data:      raw,
		Success:   true,
	}
	model := t.defaultModel
	for _, opt := range opts {
		opt(&event, &model)
	}
	event.Timestamp = t.stampLocked()

	t.events = append(t.events, event)
	t.appendCount++
	t.dirty = true

	if action, ok := forwardedActions[eventType]; ok {
		t.forward(&event, action, model)
	}

	if t.path != "" && t.appendCount%t.flushEvery == 0 {
		if err := t.flushLocked(); err != nil {
			return "", err
		}
	}
	return event.EventID, nil
}

// forward translates event into the experiment log format and hands it to
// the logger. Missing mandatory keys are synthesized from the event so the
// logger's contract is always satisfiable on this path.
func (t *Tracker) forward(event *Event, action Action, model string) {
	if t.logger == nil {
		return
	}

	details := make(json.RawMessage, len(event.Data))
	copy(details, event.Data)

	var err error
	if gjson.GetBytes(details, KeyInputPrompt).String() == "" {
		target := gjson.GetBytes(details, "file").String()
		if target == "" {
			target = "unknown"
		}
		details, err = sjson.SetBytes(details, KeyInputPrompt,
			"[auto-generated] "+string(event.EventType)+" on "+target)
	}
	if err == nil && gjson.GetBytes(details, KeyOutputResponse).String() == "" {
		result := "failure"
		if event.Success {
			result = "success"
		}
		details, err = sjson.SetBytes(details, KeyOutputResponse, "[auto-generated] result: "+result)
	}

	status := StatusSuccess
	if !event.Success {
		status = StatusFailure
	}
	if err == nil {
		_, err = t.logger.logEntryRaw(event.AgentName, model, action, details, status)
	}
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(event.EventType)).
			Str("agent", event.AgentName).
			Msg("telemetry: forwarding to experiment log failed")
	}
}

// StartIteration sets the iteration tag for subsequent events and emits an
// iteration_start marker.
func (t *Tracker) StartIteration(n int) {
	t.mu.Lock()
	t.currentIteration = n
	t.mu.Unlock()
	if _, err := t.TrackEvent(EventIterationStart, "system", Fields{"iteration": n}); err != nil {
		log.Warn().Err(err).Int("iteration", n).Msg("telemetry: iteration start marker failed")
	}
}

// EndIteration emits an iteration_end marker carrying the round's outcome.
func (t *Tracker) EndIteration(n int, success bool) {
	if _, err := t.TrackEvent(EventIterationEnd, "system",
		Fields{"iteration": n, "success": success}, WithSuccess(success)); err != nil {
		log.Warn().Err(err).Int("iteration", n).Msg("telemetry: iteration end marker failed")
	}
}

// Metrics computes the derived summary over the in-memory buffer.
func (t *Tracker) Metrics() TelemetryMetrics {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.metricsLocked()
}

// Finalize flushes the tracker's buffer. Idempotent.
func (t *Tracker) Finalize() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.path == "" {
		return nil
	}
	return t.flushLocked()
}

// Reset clears the buffer and regenerates the session identity. Intended
// for test isolation, not production use.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = nil
	t.sessionID = uuid.NewString()
	t.startTime = now()
	t.currentIteration = 0
	t.appendCount = 0
	t.lastTimestamp = ""
	t.dirty = true
}

func (t *Tracker) stampLocked() string {
	ts := now()
	if ts < t.lastTimestamp {
		ts = t.lastTimestamp
	}
	t.lastTimestamp = ts
	return ts
}

func (t *Tracker) metricsLocked() TelemetryMetrics {
	m := TelemetryMetrics{
		SessionID:              t.sessionID,
		StartTime:              t.startTime,
		EndTime:                now(),
		TotalIterations:        t.currentIteration,
		TotalEvents:            len(t.events),
		AgentsStatistics:       make(map[string]int),
		EventTypesDistribution: make(map[string]int),
	}
	for _, e := range t.events {
		if e.Success {
			m.SuccessfulEvents++
		} else {
			m.FailedEvents++
		}
		m.AgentsStatistics[e.AgentName]++
		m.EventTypesDistribution[string(e.EventType)]++
	}
	if m.TotalEvents > 0 {
		m.SuccessRate = float64(m.SuccessfulEvents) / float64(m.TotalEvents)
	}
	return m
}

// flushLocked rewrites the whole document, recomputing the metrics block so
// every persisted snapshot is internally consistent. Caller must hold mu.
func (t *Tracker) flushLocked() error {
	if !t.dirty {
		return nil
	}
	doc := TelemetryDocument{
		Metadata: TelemetryMetadata{
			SessionID:        t.sessionID,
			StartTime:        t.startTime,
			LastUpdate:       now(),
			TotalEvents:      len(t.events),
			CurrentIteration: t.currentIteration,
		},
		Metrics: t.metricsLocked(),
		Events:  t.events,
	}
	if doc.Events == nil {
		doc.Events = []Event{}
	}
	if err := writeDocument(t.path, doc); err != nil {
		return err
	}
	t.dirty = false
	return nil
}
