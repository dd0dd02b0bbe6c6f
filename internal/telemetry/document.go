// Package telemetry - document.go defines the on-disk document shapes and
// the shared read/write helpers. A flush is always a full-document rewrite:
// one file, one write, atomic from the caller's perspective.
package telemetry

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/encoding/json"
)

// ExperimentFileName is the experiment logger's file inside its log dir.
const ExperimentFileName = "experiment_data.json"

// TelemetryFileName is the tracker's file inside its log dir.
const TelemetryFileName = "telemetry_data.json"

// ExperimentDocument is the experiment logger's persisted unit.
type ExperimentDocument struct {
	SessionID  string      `json:"session_id"`
	StartTime  string      `json:"start_time"`
	LastUpdate string      `json:"last_update"`
	TotalLogs  int         `json:"total_logs"`
	Logs       []LogRecord `json:"logs"`
}

// TelemetryMetadata is the metadata block of the tracker's document.
type TelemetryMetadata struct {
	SessionID        string `json:"session_id"`
	StartTime        string `json:"start_time"`
	LastUpdate       string `json:"last_update"`
	TotalEvents      int    `json:"total_events"`
	CurrentIteration int    `json:"current_iteration"`
}

// TelemetryMetrics is the derived summary block, recomputed on every flush
// so any persisted document is internally consistent by construction.
type TelemetryMetrics struct {
	SessionID              string         `json:"session_id"`
	StartTime              string         `json:"start_time"`
	EndTime                string         `json:"end_time"`
	TotalIterations        int            `json:"total_iterations"`
	TotalEvents            int            `json:"total_events"`
	SuccessfulEvents       int            `json:"successful_events"`
	FailedEvents           int            `json:"failed_events"`
	SuccessRate            float64        `json:"success_rate"`
	AgentsStatistics       map[string]int `json:"agents_statistics"`
	EventTypesDistribution map[string]int `json:"event_types_distribution"`
}

// TelemetryDocument is the tracker's persisted unit.
type TelemetryDocument struct {
	Metadata TelemetryMetadata `json:"metadata"`
	Metrics  TelemetryMetrics  `json:"metrics"`
	Events   []Event           `json:"events"`
}

// ensureDir creates dir (and parents) if absent.
func ensureDir(dir string) error {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return &PersistenceError{Path: dir, Op: "create log dir", Err: err}
	}
	return nil
}

// writeDocument serializes doc and overwrites path in a single write.
func writeDocument(path string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return &PersistenceError{Path: path, Op: "serialize", Err: err}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return &PersistenceError{Path: filepath.Dir(path), Op: "create log dir", Err: err}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return &PersistenceError{Path: path, Op: "write", Err: err}
	}
	return nil
}

// readExperimentDocument loads a pre-existing experiment document for
// read-modify-write resumption. A missing file yields (nil, nil). A file
// that cannot be parsed is recoverable by contract: discard it, warn, and
// let the caller start a fresh collection.
func readExperimentDocument(path string) (*ExperimentDocument, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Path: path, Op: "read", Err: err}
	}
	var doc ExperimentDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Str("path", path).Err(err).
			Msg("telemetry: corrupted experiment log on disk, starting a fresh collection")
		return nil, nil
	}
	return &doc, nil
}

// readTelemetryDocument is the tracker-side counterpart of
// readExperimentDocument, with the same corruption-recovery contract.
func readTelemetryDocument(path string) (*TelemetryDocument, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, &PersistenceError{Path: path, Op: "read", Err: err}
	}
	var doc TelemetryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		log.Warn().Str("path", path).Err(err).
			Msg("telemetry: corrupted telemetry log on disk, starting a fresh collection")
		return nil, nil
	}
	return &doc, nil
}
