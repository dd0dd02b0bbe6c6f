package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePylintScore(t *testing.T) {
	tests := []struct {
		name   string
		output string
		want   float64
		ok     bool
	}{
		{
			name:   "plain score",
			output: "Your code has been rated at 7.50/10\n",
			want:   7.5,
			ok:     true,
		},
		{
			name:   "score with previous run",
			output: "Your code has been rated at 9.17/10 (previous run: 8.33/10, +0.83)\n",
			want:   9.17,
			ok:     true,
		},
		{
			name:   "negative score",
			output: "Your code has been rated at -2.50/10\n",
			want:   -2.5,
			ok:     true,
		},
		{
			name:   "no summary line",
			output: "************* Module broken\nbroken.py:1:0: E0001: invalid syntax\n",
			ok:     false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParsePylintScore(tt.output)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// stubBinary installs a shell script under a private PATH so the runner
// exercises real subprocess plumbing without the actual toolchain.
func stubBinary(t *testing.T, name, script string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+script), 0700))
	t.Setenv("PATH", dir)
}

func TestRunPylintParsesStubOutput(t *testing.T) {
	stubBinary(t, "pylint", `echo "Your code has been rated at 6.80/10"; exit 4`)

	res, err := RunPylint(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, 6.8, res.Score)
	assert.Contains(t, res.Output, "rated at")
}

func TestRunPylintMissingBinary(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	_, err := RunPylint(context.Background(), t.TempDir())
	assert.Error(t, err)
}

func TestRunPytestVerdicts(t *testing.T) {
	stubBinary(t, "pytest", `echo "3 passed"; exit 0`)
	res, err := RunPytest(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.True(t, res.Passed)
	assert.Contains(t, res.Output, "3 passed")

	stubBinary(t, "pytest", `echo "1 failed, 2 passed"; exit 1`)
	res, err = RunPytest(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.False(t, res.Passed)
	assert.Contains(t, res.Output, "1 failed")
}
