package validate

import (
	"fmt"
	"strings"
)

const ruleWidth = 60

// GenerateReport renders a ValidateFile outcome for path as human-readable
// text. This form is part of the CLI contract and exists alongside the
// programmatic ValidateFile result; it does not re-run validation.
func GenerateReport(path string, isValid bool, errs []string) string {
	var b strings.Builder
	rule := strings.Repeat("=", ruleWidth)

	b.WriteString(rule + "\n")
	b.WriteString("VALIDATION REPORT - telemetry log\n")
	b.WriteString(rule + "\n")
	b.WriteString(fmt.Sprintf("File: %s\n\n", path))

	if isValid {
		b.WriteString("VALIDATION PASSED\n")
		b.WriteString("The document satisfies every required criterion.\n")
	} else {
		b.WriteString("VALIDATION FAILED\n\n")
		b.WriteString("Detected errors:\n")
		for i, e := range errs {
			b.WriteString(fmt.Sprintf("  %d. %s\n", i+1, e))
		}
	}
	b.WriteString(rule)

	return b.String()
}
