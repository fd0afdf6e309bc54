package cbc

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/internal/solver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleModel() *model.Model {
	return &model.Model{
		Name:      "Maximize_TVR",
		Namespace: "abc",
		Variables: []model.Variable{
			{Name: "x_abc_0", Lower: 0, Upper: 20},
			{Name: "x_abc_1", Lower: 0, Upper: 0},
		},
		Objective: []model.Term{{Var: 0, Coef: 5.5}, {Var: 1, Coef: 2}},
		Constraints: []model.Constraint{
			{Name: "total budget", Kind: model.KindGlobalBudget, Terms: []model.Term{{Var: 0, Coef: 100}, {Var: 1, Coef: 50}}, Lower: 950, Upper: 1050},
			{Name: "empty", Kind: model.KindChannelShare, Lower: 0, Upper: 10},
			{Name: "zero", Kind: model.KindChannelShare, Terms: []model.Term{{Var: 1, Coef: 1}}, ForcedZero: true},
		},
	}
}

func TestWriteLP(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteLP(&buf, sampleModel()))
	lp := buf.String()

	assert.Contains(t, lp, "Maximize\nobj: + 5.5 x_abc_0 + 2 x_abc_1\n")
	assert.Contains(t, lp, "c0_total_budget_L: + 100 x_abc_0 + 50 x_abc_1 >= 950\n")
	assert.Contains(t, lp, "c0_total_budget_U: + 100 x_abc_0 + 50 x_abc_1 <= 1050\n")
	assert.NotContains(t, lp, "empty")
	assert.Contains(t, lp, "c2_zero: + 1 x_abc_1 = 0\n")
	assert.Contains(t, lp, " 0 <= x_abc_0 <= 20\n")
	assert.Contains(t, lp, " x_abc_1 = 0\n")
	assert.Contains(t, lp, "General\n x_abc_0 x_abc_1\nEnd\n")
}

func TestWriteLPRejectsEmptyModel(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, WriteLP(&buf, &model.Model{}))
}

func TestParseSolution(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		status    solver.RawStatus
		timeLimit bool
		values    map[string]float64
	}{
		{
			name:   "optimal",
			text:   "Optimal - objective value 15.00000000\n      0 x_abc_0        3        0\n      1 x_abc_1        0        0\n",
			status: solver.RawOptimal,
			values: map[string]float64{"x_abc_0": 3, "x_abc_1": 0},
		},
		{
			name:      "stopped on time",
			text:      "Stopped on time - objective value 12.00000000\n      0 x_abc_0        2        0\n",
			status:    solver.RawNotSolved,
			timeLimit: true,
			values:    map[string]float64{"x_abc_0": 2},
		},
		{
			name:   "infeasible with flagged rows",
			text:   "Infeasible - objective value 0.00000000\n**    0 x_abc_0        1.5        0\n",
			status: solver.RawInfeasible,
			values: map[string]float64{"x_abc_0": 1.5},
		},
		{
			name:   "integer infeasible",
			text:   "Integer infeasible - objective value 0.00000000\n",
			status: solver.RawInfeasible,
			values: map[string]float64{},
		},
		{
			name:   "unbounded",
			text:   "Unbounded - objective value 0\n",
			status: solver.RawUnbounded,
			values: map[string]float64{},
		},
		{
			name:   "unknown",
			text:   "Something else\n",
			status: solver.RawUndefined,
			values: map[string]float64{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ParseSolution(strings.NewReader(tt.text))
			require.NoError(t, err)
			assert.Equal(t, tt.status, raw.Status)
			assert.Equal(t, tt.timeLimit, raw.TimeLimitReported)
			require.Len(t, raw.Values, len(tt.values))
			for name, want := range tt.values {
				require.NotNil(t, raw.Values[name])
				assert.InDelta(t, want, *raw.Values[name], 1e-9)
			}
		})
	}
}

func TestParseSolutionErrors(t *testing.T) {
	_, err := ParseSolution(strings.NewReader(""))
	assert.Error(t, err)

	_, err = ParseSolution(strings.NewReader("Optimal\n 0 x_abc_0 notanumber 0\n"))
	assert.Error(t, err)
}

func TestLogReportsTimeLimit(t *testing.T) {
	assert.True(t, LogReportsTimeLimit("Result - Stopped on time limit\n"))
	assert.True(t, LogReportsTimeLimit("maximum time limit reached"))
	assert.False(t, LogReportsTimeLimit("Result - Optimal solution found"))
}

// solutionRunner writes text to the solution path passed after "solu".
func solutionRunner(t *testing.T, text, log string, gotArgs *[]string) Runner {
	return func(ctx context.Context, binary string, args ...string) ([]byte, error) {
		*gotArgs = args
		for i, a := range args {
			if a == "solu" && i+1 < len(args) {
				require.NoError(t, os.WriteFile(args[i+1], []byte(text), 0o600))
			}
		}
		return []byte(log), nil
	}
}

func TestBackendSolve(t *testing.T) {
	dir := t.TempDir()
	var args []string
	b := New(nil, Config{WorkDir: dir, Threads: 2}).WithRunner(solutionRunner(t,
		"Optimal - objective value 16.5\n 0 x_abc_0 3 0\n", "Result - Optimal solution found", &args))

	raw, err := b.Solve(context.Background(), sampleModel(), 90*time.Second)
	require.NoError(t, err)
	assert.Equal(t, solver.RawOptimal, raw.Status)
	assert.False(t, raw.TimeLimitReported)
	require.NotNil(t, raw.Values["x_abc_0"])
	assert.Equal(t, 3.0, *raw.Values["x_abc_0"])

	require.NotEmpty(t, args)
	assert.Equal(t, modelFile, filepath.Base(args[0]))
	joined := strings.Join(args, " ")
	assert.Contains(t, joined, "sec 90 timeMode elapsed")
	assert.Contains(t, joined, "threads 2")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "scratch dir should be removed")
}

func TestBackendKeepFilesAndLogTimeLimit(t *testing.T) {
	dir := t.TempDir()
	var args []string
	b := New(nil, Config{WorkDir: dir, KeepFiles: true}).WithRunner(solutionRunner(t,
		"Optimal - objective value 5.5\n 0 x_abc_0 1 0\n", "Result - Stopped on time limit", &args))

	raw, err := b.Solve(context.Background(), sampleModel(), time.Second)
	require.NoError(t, err)
	assert.True(t, raw.TimeLimitReported)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].Name(), "mediaplan-abc-"))
	for _, name := range []string{modelFile, solutionFile, logFile} {
		_, err := os.Stat(filepath.Join(dir, entries[0].Name(), name))
		assert.NoError(t, err, name)
	}
}

func TestBackendMissingBinary(t *testing.T) {
	b := New(nil, Config{WorkDir: t.TempDir()}).WithRunner(
		func(ctx context.Context, binary string, args ...string) ([]byte, error) {
			return nil, &exec.Error{Name: binary, Err: exec.ErrNotFound}
		})
	_, err := b.Solve(context.Background(), sampleModel(), time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exec.ErrNotFound))
}

func TestBackendKilledWithoutSolution(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	b := New(nil, Config{WorkDir: t.TempDir()}).WithRunner(
		func(ctx context.Context, binary string, args ...string) ([]byte, error) {
			cancel()
			return nil, ctx.Err()
		})
	raw, err := b.Solve(ctx, sampleModel(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, solver.RawNotSolved, raw.Status)
	assert.True(t, raw.TimeLimitReported)
	assert.Empty(t, raw.Values)
}
