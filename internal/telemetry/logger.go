// Package telemetry - logger.go implements the experiment logger: the sole
// writer of the canonical action log and gatekeeper of the mandatory-field
// contract.
//
// DESIGN: The logger is an explicit handle constructed once at process start
// and passed to every call site (no package-level singleton). All mutation
// paths — append, counter increment, conditional flush — run inside one
// critical section, so concurrent callers observe a consistent buffer and
// insertion order equals timestamp order.
package telemetry

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"
	"github.com/tidwall/gjson"
)

// DefaultLoggerFlushEvery is the batching constant: every N-th append
// rewrites the document on disk. Tunable, not a semantic contract.
const DefaultLoggerFlushEvery = 3

// Logger accumulates log records in memory and periodically persists them
// as a single JSON document. Safe for concurrent use.
type Logger struct {
	mu            sync.Mutex
	sessionID     string
	startTime     string
	path          string // empty until Initialize binds a log dir
	flushEvery    int
	records       []LogRecord
	appendCount   int
	lastTimestamp string
	dirty         bool
}

// LoggerOption configures a Logger.
type LoggerOption func(*Logger)

// WithFlushEvery overrides the flush batching constant. Values < 1 flush
// on every append.
func WithFlushEvery(n int) LoggerOption {
	return func(l *Logger) {
		if n < 1 {
			n = 1
		}
		l.flushEvery = n
	}
}

// NewLogger creates a Logger with a fresh session identity. The identity
// lives for the whole process and is not reset by Initialize.
func NewLogger(opts ...LoggerOption) *Logger {
	l := &Logger{
		sessionID:  uuid.NewString(),
		startTime:  now(),
		flushEvery: DefaultLoggerFlushEvery,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// SessionID returns the logger's session identity.
func (l *Logger) SessionID() string { return l.sessionID }

// Path returns the bound target file, or "" before Initialize.
func (l *Logger) Path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.path
}

// Initialize creates logDir if absent, binds <logDir>/experiment_data.json
// and persists an initial document immediately. Records already present in
// a parseable file at that path are adopted into the buffer (resume); an
// unparseable file is discarded with a warning. Session identity and any
// buffered records are preserved: re-initializing redirects future flushes,
// it does not start a new experiment.
func (l *Logger) Initialize(logDir string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := ensureDir(logDir); err != nil {
		return err
	}
	path := filepath.Join(logDir, ExperimentFileName)

	prior, err := readExperimentDocument(path)
	if err != nil {
		return err
	}
	if prior != nil && len(prior.Logs) > 0 {
		l.records = append(prior.Logs, l.records...)
		if last := prior.Logs[len(prior.Logs)-1].Timestamp; last > l.lastTimestamp {
			l.lastTimestamp = last
		}
		log.Info().Int("resumed_logs", len(prior.Logs)).Str("path", path).
			Msg("experiment log: resumed existing document")
	}

	l.path = path
	l.dirty = true
	if err := l.flushLocked(); err != nil {
		return err
	}

	log.Info().Str("session_id", l.sessionID).Str("path", path).
		Msg("experiment log: initialized")
	return nil
}

// LogEntry validates, stamps and appends one record, flushing the document
// every flushEvery-th append. Returns the new record's id.
//
// For prompt-driven actions the details MUST contain input_prompt and
// output_response; a missing key fails with *ContractViolationError
// before anything is buffered.
func (l *Logger) LogEntry(agentName, modelUsed string, action Action, details Fields, status string) (string, error) {
	if details == nil {
		details = Fields{}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		return "", fmt.Errorf("telemetry: serialize details (agent %q): %w", agentName, err)
	}
	return l.logEntryRaw(agentName, modelUsed, action, raw, status)
}

// logEntryRaw is the shared append path for LogEntry and the tracker's
// forwarding. The contract check runs here so no caller can bypass it.
func (l *Logger) logEntryRaw(agentName, modelUsed string, action Action, raw json.RawMessage, status string) (string, error) {
	if !action.Valid() {
		return "", fmt.Errorf("telemetry: invalid action %q (agent %q)", action, agentName)
	}
	if action.promptDriven() {
		for _, key := range []string{KeyInputPrompt, KeyOutputResponse} {
			if !gjson.GetBytes(raw, key).Exists() {
				return "", &ContractViolationError{AgentName: agentName, Action: action, MissingKey: key}
			}
		}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	rec := LogRecord{
		LogID:     uuid.NewString(),
		Timestamp: l.stampLocked(),
		AgentName: agentName,
		ModelUsed: modelUsed,
		Action:    action,
		Status:    status,
		Details:   raw,
	}
	l.records = append(l.records, rec)
	l.appendCount++
	l.dirty = true

	log.Debug().Str("agent", agentName).Str("action", string(action)).
		Str("status", status).Msg("experiment log: entry recorded")

	if l.path != "" && l.appendCount%l.flushEvery == 0 {
		if err := l.flushLocked(); err != nil {
			return "", err
		}
	}
	return rec.LogID, nil
}

// Finalize forces a flush regardless of the batching counter. Safe to call
// repeatedly: flushing an unchanged buffer is a no-op, so back-to-back
// finalizes leave the document byte-identical.
func (l *Logger) Finalize() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.path == "" {
		return nil
	}
	return l.flushLocked()
}

// Stats is the read-only aggregate view over the in-memory buffer.
type Stats struct {
	Total        int            `json:"total"`
	SuccessCount int            `json:"success_count"`
	FailureCount int            `json:"failure_count"`
	Agents       []string       `json:"agents"`
	Actions      map[string]int `json:"actions"`
}

// Stats aggregates the in-memory buffer; it never touches the disk.
func (l *Logger) Stats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := Stats{Total: len(l.records), Actions: make(map[string]int)}
	agents := make(map[string]struct{})
	for _, rec := range l.records {
		if rec.Status == StatusSuccess {
			s.SuccessCount++
		} else {
			s.FailureCount++
		}
		agents[rec.AgentName] = struct{}{}
		s.Actions[string(rec.Action)]++
	}
	for a := range agents {
		s.Agents = append(s.Agents, a)
	}
	sort.Strings(s.Agents)
	return s
}

// stampLocked assigns a creation timestamp that never decreases across the
// record sequence, even if the wall clock steps backwards. Caller must hold mu.
func (l *Logger) stampLocked() string {
	ts := now()
	if ts < l.lastTimestamp {
		ts = l.lastTimestamp
	}
	l.lastTimestamp = ts
	return ts
}

// flushLocked rewrites the whole document from the current buffer.
// Caller must hold mu. Skips the write when nothing changed since the last
// flush so repeated finalizes are idempotent.
func (l *Logger) flushLocked() error {
	if !l.dirty {
		return nil
	}
	doc := ExperimentDocument{
		SessionID:  l.sessionID,
		StartTime:  l.startTime,
		LastUpdate: now(),
		TotalLogs:  len(l.records),
		Logs:       l.records,
	}
	if doc.Logs == nil {
		doc.Logs = []LogRecord{}
	}
	if err := writeDocument(l.path, doc); err != nil {
		return err
	}
	l.dirty = false
	return nil
}
