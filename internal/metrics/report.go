package metrics

import (
	"fmt"
	"sort"
	"strings"
)

const reportWidth = 80

// SummaryReport renders a plain-text summary of the whole session:
// totals, per-agent performance, per-iteration breakdown, quality
// evolution and error clusters.
func (a *Analyzer) SummaryReport() string {
	var b strings.Builder
	rule := strings.Repeat("=", reportWidth)

	fmt.Fprintln(&b, rule)
	fmt.Fprintln(&b, "SESSION SUMMARY REPORT")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Session ID: %s\n", a.doc.Metadata.SessionID)
	fmt.Fprintf(&b, "Start time: %s\n", a.doc.Metrics.StartTime)
	if a.doc.Metrics.EndTime != "" {
		fmt.Fprintf(&b, "End time:   %s\n", a.doc.Metrics.EndTime)
	}
	fmt.Fprintf(&b, "Total events: %d\n", a.doc.Metrics.TotalEvents)
	fmt.Fprintf(&b, "Total iterations: %d\n", a.doc.Metrics.TotalIterations)
	fmt.Fprintf(&b, "Overall success rate: %.1f%%\n", a.doc.Metrics.SuccessRate*100)

	fmt.Fprintln(&b, "")
	fmt.Fprintln(&b, "AGENT PERFORMANCE")
	fmt.Fprintln(&b, strings.Repeat("-", reportWidth))
	perf := a.GetAgentPerformance()
	agents := make([]string, 0, len(perf))
	for agent := range perf {
		agents = append(agents, agent)
	}
	sort.Strings(agents)
	for _, agent := range agents {
		p := perf[agent]
		fmt.Fprintf(&b, "%s:\n", agent)
		fmt.Fprintf(&b, "  actions: %d (%d ok, %d failed), success rate %.1f%%\n",
			p.TotalActions, p.SuccessfulActions, p.FailedActions, p.SuccessRate*100)
		if p.AverageDurationMS > 0 {
			fmt.Fprintf(&b, "  average duration: %.1f ms\n", p.AverageDurationMS)
		}
	}

	fmt.Fprintln(&b, "")
	fmt.Fprintln(&b, "ITERATIONS")
	fmt.Fprintln(&b, strings.Repeat("-", reportWidth))
	for _, it := range a.GetIterationAnalysis() {
		fmt.Fprintf(&b, "iteration %d: %d events, success rate %.1f%%, agents: %s\n",
			it.Iteration, it.EventsCount, it.SuccessRate*100,
			strings.Join(it.AgentsInvolved, ", "))
	}

	quality := a.GetQualityEvolution()
	if len(quality) > 0 {
		fmt.Fprintln(&b, "")
		fmt.Fprintln(&b, "QUALITY EVOLUTION")
		fmt.Fprintln(&b, strings.Repeat("-", reportWidth))
		for _, q := range quality {
			fmt.Fprintf(&b, "iteration %d: %s scored %.2f\n", q.Iteration, q.File, q.Score)
		}
	}

	errs := a.GetErrorAnalysis()
	fmt.Fprintln(&b, "")
	fmt.Fprintln(&b, "ERRORS")
	fmt.Fprintln(&b, strings.Repeat("-", reportWidth))
	if errs.TotalErrors == 0 {
		fmt.Fprintln(&b, "no errors recorded")
	} else {
		fmt.Fprintf(&b, "total errors: %d\n", errs.TotalErrors)
		names := make([]string, 0, len(errs.ErrorsByAgent))
		for agent := range errs.ErrorsByAgent {
			names = append(names, agent)
		}
		sort.Strings(names)
		for _, agent := range names {
			for _, e := range errs.ErrorsByAgent[agent] {
				fmt.Fprintf(&b, "  [%s] iteration %d (%s): %s\n",
					agent, e.Iteration, e.EventType, e.ErrorMessage)
			}
		}
	}
	fmt.Fprintln(&b, rule)
	return b.String()
}
