// Package metrics is the read-only aggregation engine over a finalized
// telemetry document: per-agent performance, per-iteration breakdown,
// quality-score time series and error clustering.
//
// The analyzer assumes the document was already validated; it never
// re-checks the schema (caller's responsibility).
package metrics

import (
	"fmt"
	"os"
	"sort"

	"github.com/segmentio/encoding/json"

	"github.com/codeswarm/refactor-swarm/internal/telemetry"
)

// Analyzer holds one loaded telemetry document.
type Analyzer struct {
	path string
	doc  telemetry.TelemetryDocument
}

// NewAnalyzer loads the document at path.
func NewAnalyzer(path string) (*Analyzer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("metrics: read %s: %w", path, err)
	}
	var doc telemetry.TelemetryDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("metrics: parse %s: %w", path, err)
	}
	return &Analyzer{path: path, doc: doc}, nil
}

// AgentPerformance summarizes one agent's recorded activity.
type AgentPerformance struct {
	TotalActions      int            `json:"total_actions"`
	SuccessfulActions int            `json:"successful_actions"`
	FailedActions     int            `json:"failed_actions"`
	SuccessRate       float64        `json:"success_rate"`
	AverageDurationMS float64        `json:"average_duration_ms"`
	EventTypes        map[string]int `json:"event_types"`
}

// GetAgentPerformance aggregates per agent. Average duration is computed
// only over events that carry a duration value; empty denominators yield 0.
func (a *Analyzer) GetAgentPerformance() map[string]AgentPerformance {
	type acc struct {
		perf          AgentPerformance
		totalDuration float64
		timedEvents   int
	}
	accs := make(map[string]*acc)

	for i := range a.doc.Events {
		e := &a.doc.Events[i]
		st, ok := accs[e.AgentName]
		if !ok {
			st = &acc{perf: AgentPerformance{EventTypes: make(map[string]int)}}
			accs[e.AgentName] = st
		}
		st.perf.TotalActions++
		if e.Success {
			st.perf.SuccessfulActions++
		} else {
			st.perf.FailedActions++
		}
		if e.DurationMS != nil {
			st.totalDuration += *e.DurationMS
			st.timedEvents++
		}
		st.perf.EventTypes[string(e.EventType)]++
	}

	result := make(map[string]AgentPerformance, len(accs))
	for agent, st := range accs {
		if st.perf.TotalActions > 0 {
			st.perf.SuccessRate = float64(st.perf.SuccessfulActions) / float64(st.perf.TotalActions)
		}
		if st.timedEvents > 0 {
			st.perf.AverageDurationMS = st.totalDuration / float64(st.timedEvents)
		}
		result[agent] = st.perf
	}
	return result
}

// IterationStats summarizes one logical retry round.
type IterationStats struct {
	Iteration        int      `json:"iteration"`
	EventsCount      int      `json:"events_count"`
	SuccessfulEvents int      `json:"successful_events"`
	FailedEvents     int      `json:"failed_events"`
	SuccessRate      float64  `json:"success_rate"`
	AgentsInvolved   []string `json:"agents_involved"`
	StartTime        string   `json:"start_time"`
	EndTime          string   `json:"end_time"`
}

// GetIterationAnalysis groups events by their iteration tag, sorted
// numerically. AgentsInvolved is a sorted set.
func (a *Analyzer) GetIterationAnalysis() []IterationStats {
	type acc struct {
		stats  IterationStats
		agents map[string]struct{}
	}
	iters := make(map[int]*acc)

	for i := range a.doc.Events {
		e := &a.doc.Events[i]
		st, ok := iters[e.Iteration]
		if !ok {
			st = &acc{
				stats:  IterationStats{Iteration: e.Iteration, StartTime: e.Timestamp},
				agents: make(map[string]struct{}),
			}
			iters[e.Iteration] = st
		}
		st.stats.EventsCount++
		if e.Success {
			st.stats.SuccessfulEvents++
		} else {
			st.stats.FailedEvents++
		}
		st.agents[e.AgentName] = struct{}{}
		st.stats.EndTime = e.Timestamp
	}

	nums := make([]int, 0, len(iters))
	for n := range iters {
		nums = append(nums, n)
	}
	sort.Ints(nums)

	result := make([]IterationStats, 0, len(nums))
	for _, n := range nums {
		st := iters[n]
		for agent := range st.agents {
			st.stats.AgentsInvolved = append(st.stats.AgentsInvolved, agent)
		}
		sort.Strings(st.stats.AgentsInvolved)
		if st.stats.EventsCount > 0 {
			st.stats.SuccessRate = float64(st.stats.SuccessfulEvents) / float64(st.stats.EventsCount)
		}
		result = append(result, st.stats)
	}
	return result
}

// QualityPoint is one sample in the quality-score time series.
type QualityPoint struct {
	Timestamp string  `json:"timestamp"`
	Iteration int     `json:"iteration"`
	Score     float64 `json:"score"`
	File      string  `json:"file"`
}

// GetQualityEvolution extracts the chronological series of quality_metric
// events.
func (a *Analyzer) GetQualityEvolution() []QualityPoint {
	points := make([]QualityPoint, 0)
	for i := range a.doc.Events {
		e := &a.doc.Events[i]
		if e.EventType != telemetry.EventQualityMetric {
			continue
		}
		file := e.Datum("file").String()
		if file == "" {
			file = "unknown"
		}
		points = append(points, QualityPoint{
			Timestamp: e.Timestamp,
			Iteration: e.Iteration,
			Score:     e.Datum("score").Float(),
			File:      file,
		})
	}
	return points
}

// RecordedError is one clustered error occurrence.
type RecordedError struct {
	Timestamp    string `json:"timestamp"`
	Iteration    int    `json:"iteration"`
	ErrorMessage string `json:"error_message"`
	EventType    string `json:"event_type"`
}

// ErrorAnalysis clusters failures by agent and event type. An "error" is
// any event with success == false that carries an error message.
type ErrorAnalysis struct {
	TotalErrors   int                        `json:"total_errors"`
	ErrorsByAgent map[string][]RecordedError `json:"errors_by_agent"`
	ErrorsByType  map[string]int             `json:"errors_by_type"`
}

// GetErrorAnalysis aggregates recorded errors.
func (a *Analyzer) GetErrorAnalysis() ErrorAnalysis {
	result := ErrorAnalysis{
		ErrorsByAgent: make(map[string][]RecordedError),
		ErrorsByType:  make(map[string]int),
	}
	for i := range a.doc.Events {
		e := &a.doc.Events[i]
		if e.Success || e.ErrorMessage == nil || *e.ErrorMessage == "" {
			continue
		}
		result.TotalErrors++
		result.ErrorsByAgent[e.AgentName] = append(result.ErrorsByAgent[e.AgentName], RecordedError{
			Timestamp:    e.Timestamp,
			Iteration:    e.Iteration,
			ErrorMessage: *e.ErrorMessage,
			EventType:    string(e.EventType),
		})
		result.ErrorsByType[string(e.EventType)]++
	}
	return result
}

// ExportForVisualization writes a JSON bundle of the four aggregations to
// path, in a shape convenient for plotting tools.
func (a *Analyzer) ExportForVisualization(path string) error {
	bundle := struct {
		AgentPerformance  map[string]AgentPerformance `json:"agent_performance"`
		IterationAnalysis []IterationStats            `json:"iteration_analysis"`
		QualityEvolution  []QualityPoint              `json:"quality_evolution"`
		ErrorAnalysis     ErrorAnalysis               `json:"error_analysis"`
	}{
		AgentPerformance:  a.GetAgentPerformance(),
		IterationAnalysis: a.GetIterationAnalysis(),
		QualityEvolution:  a.GetQualityEvolution(),
		ErrorAnalysis:     a.GetErrorAnalysis(),
	}
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("metrics: serialize export: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("metrics: write export %s: %w", path, err)
	}
	return nil
}
