// Package tools shells out to the quality toolchain of the target
// codebase: pylint for static scoring and pytest for the test verdict.
package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strconv"

	"github.com/rs/zerolog/log"
)

// scoreRe matches pylint's summary line, e.g.
// "Your code has been rated at 7.50/10 (previous run: 6.80/10, +0.70)".
var scoreRe = regexp.MustCompile(`rated at (-?\d+(?:\.\d+)?)/10`)

// PylintResult carries the linter score and its raw output.
type PylintResult struct {
	Score  float64
	Output string
}

// PytestResult carries the test verdict and the combined output.
type PytestResult struct {
	Passed bool
	Output string
}

// RunPylint lints dir and parses the overall score. Pylint exits non-zero
// whenever it has findings, so a non-zero exit with parseable output is
// not an error; only a missing binary or an unparseable summary is.
func RunPylint(ctx context.Context, dir string) (*PylintResult, error) {
	out, runErr := runCommand(ctx, dir, "pylint", ".")
	score, ok := ParsePylintScore(out)
	if !ok {
		if runErr != nil {
			return nil, fmt.Errorf("tools: pylint failed: %w", runErr)
		}
		return nil, fmt.Errorf("tools: no score found in pylint output")
	}
	log.Debug().Float64("score", score).Str("dir", dir).Msg("tools: pylint finished")
	return &PylintResult{Score: score, Output: out}, nil
}

// ParsePylintScore extracts the x/10 score from pylint output.
func ParsePylintScore(output string) (float64, bool) {
	m := scoreRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}
	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, false
	}
	return score, true
}

// RunPytest runs the test suite in dir. A non-zero exit means failing
// tests, not a tool error.
func RunPytest(ctx context.Context, dir string) (*PytestResult, error) {
	out, runErr := runCommand(ctx, dir, "pytest", ".")
	if runErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(runErr, &exitErr) {
			return nil, fmt.Errorf("tools: pytest failed: %w", runErr)
		}
		log.Debug().Str("dir", dir).Msg("tools: pytest reported failures")
		return &PytestResult{Passed: false, Output: out}, nil
	}
	log.Debug().Str("dir", dir).Msg("tools: pytest passed")
	return &PytestResult{Passed: true, Output: out}, nil
}

func runCommand(ctx context.Context, dir, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	return buf.String(), err
}
