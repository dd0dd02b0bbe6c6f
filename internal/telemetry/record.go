// Package telemetry - record.go defines the canonical shapes of the two
// persisted streams: LogRecord entries in the experiment log and Event
// entries in the richer telemetry stream.
//
// DESIGN: Both streams carry an open JSON payload (details / data) stored as
// raw bytes so arbitrary extra keys survive round-trips unchanged. The
// mandatory keys are special-cased via gjson accessors instead of a rigid
// struct schema.
package telemetry

import (
	"encoding/json"
	"time"

	"github.com/tidwall/gjson"
)

// Action classifies a log record. The four prompt-driven kinds carry a
// mandatory input_prompt / output_response pair in their details.
type Action string

const (
	ActionAnalysis   Action = "analysis"   // code audit, bug hunting
	ActionGeneration Action = "generation" // new code/tests/docs
	ActionDebug      Action = "debug"      // runtime error / test analysis
	ActionFix        Action = "fix"        // applying corrections

	// Lifecycle markers, exempt from the mandatory-field contract.
	ActionStartup  Action = "startup"
	ActionShutdown Action = "shutdown"
)

// promptDriven reports whether the action kind requires the
// input_prompt / output_response pair in its details.
func (a Action) promptDriven() bool {
	switch a {
	case ActionAnalysis, ActionGeneration, ActionDebug, ActionFix:
		return true
	}
	return false
}

// Valid reports whether a is a known action kind.
func (a Action) Valid() bool {
	switch a {
	case ActionAnalysis, ActionGeneration, ActionDebug, ActionFix, ActionStartup, ActionShutdown:
		return true
	}
	return false
}

// Record statuses. Status is a free string on the wire; these are the
// conventional values.
const (
	StatusSuccess = "SUCCESS"
	StatusFailure = "FAILURE"
	StatusError   = "ERROR"
)

// Mandatory detail keys for prompt-driven actions.
const (
	KeyInputPrompt    = "input_prompt"
	KeyOutputResponse = "output_response"
)

// Fields is the open payload callers attach to records and events.
// Values must be JSON-serializable.
type Fields map[string]any

// timestampLayout is fixed-width UTC with microseconds so that
// lexicographic order of timestamps equals chronological order.
const timestampLayout = "2006-01-02T15:04:05.000000Z"

// LogRecord is one persisted entry in the canonical experiment log.
// LogID and Timestamp are assigned at creation and never overwritten;
// appended records are immutable — corrections must be new records.
type LogRecord struct {
	LogID     string          `json:"log_id"`
	Timestamp string          `json:"timestamp"`
	AgentName string          `json:"agent_name"`
	ModelUsed string          `json:"model_used"`
	Action    Action          `json:"action"`
	Status    string          `json:"status"`
	Details   json.RawMessage `json:"details"`
}

// InputPrompt returns the mandatory input_prompt detail, or "" if absent.
func (r *LogRecord) InputPrompt() string {
	return gjson.GetBytes(r.Details, KeyInputPrompt).String()
}

// OutputResponse returns the mandatory output_response detail, or "" if absent.
func (r *LogRecord) OutputResponse() string {
	return gjson.GetBytes(r.Details, KeyOutputResponse).String()
}

// Detail returns an arbitrary detail value by gjson path.
func (r *LogRecord) Detail(path string) gjson.Result {
	return gjson.GetBytes(r.Details, path)
}

// EventType tags entries in the telemetry stream. The taxonomy is open:
// any non-empty string is accepted, these are the well-known values.
type EventType string

const (
	EventAgentStart       EventType = "agent_start"
	EventAgentEnd         EventType = "agent_end"
	EventCodeAnalysis     EventType = "code_analysis"     // forwarded as ActionAnalysis
	EventCodeModification EventType = "code_modification" // forwarded as ActionFix
	EventTestExecution    EventType = "test_execution"    // forwarded as ActionDebug
	EventIterationStart   EventType = "iteration_start"
	EventIterationEnd     EventType = "iteration_end"
	EventError            EventType = "error"
	EventQualityMetric    EventType = "quality_metric"
	EventToolCall         EventType = "tool_call"
)

// forwardedActions maps telemetry event types onto the experiment log
// action kinds they must also be recorded as.
var forwardedActions = map[EventType]Action{
	EventCodeAnalysis:     ActionAnalysis,
	EventCodeModification: ActionFix,
	EventTestExecution:    ActionDebug,
}

// Event is one persisted entry in the telemetry stream.
type Event struct {
	EventID      string          `json:"event_id"`
	Timestamp    string          `json:"timestamp"`
	EventType    EventType       `json:"event_type"`
	AgentName    string          `json:"agent_name"`
	Iteration    int             `json:"iteration"`
	Data         json.RawMessage `json:"data"`
	DurationMS   *float64        `json:"duration_ms"`
	Success      bool            `json:"success"`
	ErrorMessage *string         `json:"error_message"`
}

// Datum returns an arbitrary data value by gjson path.
func (e *Event) Datum(path string) gjson.Result {
	return gjson.GetBytes(e.Data, path)
}

// now returns the current UTC time formatted with timestampLayout.
func now() string {
	return time.Now().UTC().Format(timestampLayout)
}
