package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrocollab/grouper/config"
	"github.com/metrocollab/grouper/internal/application/query"
	"github.com/metrocollab/grouper/internal/domain/grouping"
	"github.com/metrocollab/grouper/internal/domain/shared"
)

// isolate clears the environment the CLI reads so tests never dial Redis
// or pick up a developer's config file.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv(config.ConfigFileEnv, "")
	t.Setenv("APP_ENV", "test")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DB_HOST", "")
	t.Setenv("REDIS_DISABLED", "true")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("EMBEDDING_PATH", "")
	t.Setenv("GROUPING_STRATEGY", "")
	t.Setenv("GROUPING_MIN_SIZE", "")
	t.Setenv("GROUPING_MAX_SIZE", "")
	t.Setenv("LOG_LEVEL", "error")
}

func run(t *testing.T, stdin string, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = execute(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return code, out.String(), errOut.String()
}

func rosterJSON(n int) string {
	var b strings.Builder
	b.WriteString(`{"min_size":2,"max_size":3,"students":[`)
	for i := range n {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"id":"s%d","skills":["Go"," SQL "],"interests":["web"],"hours_per_week":"5-10"}`, i)
	}
	b.WriteString("]}")
	return b.String()
}

// ══════════════════════════════════════════════════════════════════════════════
// PLAN
// ══════════════════════════════════════════════════════════════════════════════

func TestPlan(t *testing.T) {
	isolate(t)

	code, out, stderr := run(t, "", "plan", "--students", "10", "--min", "2", "--max", "3")
	require.Equal(t, exitOK, code, stderr)

	var view query.PlanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, 10, view.Students)
	assert.Equal(t, 4, view.GroupCount)
	assert.Equal(t, []int{3, 3, 2, 2}, view.Sizes)
	assert.False(t, view.Fallback)
}

func TestPlan_InvalidBounds(t *testing.T) {
	isolate(t)

	code, _, stderr := run(t, "", "plan", "--students", "10", "--min", "4", "--max", "2")
	assert.Equal(t, exitInvalidConfig, code)
	assert.Contains(t, stderr, "min_size 4 is greater than max_size 2")
}

func TestPlan_BadFlag(t *testing.T) {
	isolate(t)

	code, _, _ := run(t, "", "plan", "--students", "ten")
	assert.Equal(t, exitInvalidConfig, code)
}

// ══════════════════════════════════════════════════════════════════════════════
// SORT
// ══════════════════════════════════════════════════════════════════════════════

func TestSort_File(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "class.json")
	require.NoError(t, os.WriteFile(path, []byte(rosterJSON(6)), 0o600))

	code, out, stderr := run(t, "", "sort", path, "--seed", "7")
	require.Equal(t, exitOK, code, stderr)

	var res grouping.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, grouping.Bounds{MinSize: 2, MaxSize: 3}, res.Bounds)
	assert.Len(t, res.Groups, 2)

	total := 0
	for _, members := range res.Groups {
		assert.Len(t, members, 3)
		total += len(members)
	}
	assert.Equal(t, 6, total)
}

func TestSort_StdinBareArray(t *testing.T) {
	isolate(t)

	in := `[{"id":"a"},{"id":"b"},{"id":"c"},{"id":"d"}]`
	code, out, stderr := run(t, in, "sort", "-", "--min", "2", "--max", "2", "--strategy", "repair")
	require.Equal(t, exitOK, code, stderr)

	var res grouping.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, grouping.StrategyRepair, res.Strategy)
	assert.Len(t, res.Groups, 2)
}

func TestSort_FlagsOverrideFile(t *testing.T) {
	isolate(t)

	code, out, stderr := run(t, rosterJSON(6), "sort", "--min", "3", "--max", "3")
	require.Equal(t, exitOK, code, stderr)

	var res grouping.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, grouping.Bounds{MinSize: 3, MaxSize: 3}, res.Bounds)
}

func TestSort_Errors(t *testing.T) {
	tests := []struct {
		name  string
		stdin string
		args  []string
		code  int
		msg   string
	}{
		{
			name:  "unknown strategy",
			stdin: rosterJSON(4),
			args:  []string{"sort", "--strategy", "annealing"},
			code:  exitInvalidConfig,
			msg:   "annealing",
		},
		{
			name:  "invalid bounds",
			stdin: rosterJSON(4),
			args:  []string{"sort", "--min", "0"},
			code:  exitInvalidConfig,
			msg:   "min_size must be at least 1",
		},
		{
			name:  "not json",
			stdin: "students: []",
			args:  []string{"sort"},
			code:  exitFailure,
			msg:   "not valid JSON",
		},
		{
			name:  "duplicate ids",
			stdin: `[{"id":"a"},{"id":"a"}]`,
			args:  []string{"sort", "--min", "1", "--max", "2"},
			code:  exitFailure,
		},
		{
			name:  "numeric hours",
			stdin: `{"students":[{"id":"a","hours_per_week":10}]}`,
			args:  []string{"sort", "--min", "1", "--max", "1"},
			code:  exitFailure,
			msg:   "malformed student record",
		},
		{
			name: "missing file",
			args: []string{"sort", "/nonexistent/class.json"},
			code: exitFailure,
			msg:  "read roster",
		},
		{
			name: "too many args",
			args: []string{"sort", "a.json", "b.json"},
			code: exitInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolate(t)

			code, out, stderr := run(t, tt.stdin, tt.args...)
			assert.Equal(t, tt.code, code, stderr)
			assert.Empty(t, out)
			if tt.msg != "" {
				assert.Contains(t, stderr, tt.msg)
			}
		})
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// CONFIGURATION
// ══════════════════════════════════════════════════════════════════════════════

func TestReadRoster_ErrorKinds(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		malformed bool
	}{
		{"numeric hours", `{"students":[{"id":"a","hours_per_week":10}]}`, true},
		{"bare array with string skills", `[{"id":"a","skills":"go"}]`, true},
		{"string bounds", `{"min_size":"2","students":[]}`, false},
		{"truncated", `{"students":[`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := readRoster("-", strings.NewReader(tt.input))
			require.Error(t, err)
			assert.Equal(t, tt.malformed, shared.IsMalformedRecord(err))
			assert.Equal(t, !tt.malformed, errors.Is(err, shared.ErrInvalidFormat))
		})
	}
}

func TestConfigFile(t *testing.T) {
	isolate(t)

	path := filepath.Join(t.TempDir(), "grouper.yaml")
	require.NoError(t, os.WriteFile(path, []byte("grouping:\n  min_size: 2\n  max_size: 2\n"), 0o600))

	code, out, stderr := run(t, "", "--config", path, "plan", "--students", "6")
	require.Equal(t, exitOK, code, stderr)

	var view query.PlanView
	require.NoError(t, json.Unmarshal([]byte(out), &view))
	assert.Equal(t, []int{2, 2, 2}, view.Sizes)
}

func TestInvalidConfiguration(t *testing.T) {
	isolate(t)
	t.Setenv("GROUPING_STRATEGY", "annealing")

	code, _, stderr := run(t, "", "plan", "--students", "6")
	assert.Equal(t, exitInvalidConfig, code)
	assert.Contains(t, stderr, "invalid configuration")
}

func TestGenerate_RequiresDatabase(t *testing.T) {
	isolate(t)

	code, _, stderr := run(t, "", "generate", "ABC123")
	assert.Equal(t, exitInvalidConfig, code)
	assert.Contains(t, stderr, "DATABASE_URL")
}

func TestGenerate_RequiresCode(t *testing.T) {
	isolate(t)

	code, _, _ := run(t, "", "generate")
	assert.Equal(t, exitInvalidConfig, code)
}
