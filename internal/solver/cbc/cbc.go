// Package cbc runs models through the COIN-OR CBC command-line solver.
package cbc

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/iwvelando/mediaplan/internal/model"
	"github.com/iwvelando/mediaplan/internal/solver"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"go.uber.org/zap"
)

const (
	modelFile    = "model.lp"
	solutionFile = "solution.txt"
	logFile      = "cbc.log"
)

// Config holds the CBC backend settings.
type Config struct {
	Binary    string
	Threads   int
	KeepFiles bool
	WorkDir   string
}

// Runner executes the solver binary and returns its combined output.
type Runner func(ctx context.Context, binary string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, binary string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, binary, args...).CombinedOutput()
}

// Backend implements solver.Solver with a CBC subprocess.
type Backend struct {
	logger *zap.Logger
	cfg    Config
	run    Runner
}

// New returns a CBC backend.
func New(logger *zap.Logger, cfg Config) *Backend {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Binary == "" {
		cfg.Binary = constants.DefaultSolverBinary
	}
	return &Backend{logger: logger, cfg: cfg, run: execRunner}
}

// WithRunner replaces the process runner.
func (b *Backend) WithRunner(run Runner) *Backend {
	b.run = run
	return b
}

// Solve writes m to a scratch directory, runs CBC on it and reads back the
// solution.
func (b *Backend) Solve(ctx context.Context, m *model.Model, limit time.Duration) (solver.Raw, error) {
	tag := m.Namespace
	if tag == "" {
		tag = uuid.NewString()
	}
	dir, err := os.MkdirTemp(b.cfg.WorkDir, "mediaplan-"+tag+"-")
	if err != nil {
		return solver.Raw{}, fmt.Errorf("creating work dir: %w", err)
	}
	if b.cfg.KeepFiles {
		b.logger.Debug("keeping solver files",
			zap.String("op", "cbc.Solve"),
			zap.String("dir", dir),
		)
	} else {
		defer os.RemoveAll(dir)
	}

	modelPath := filepath.Join(dir, modelFile)
	solutionPath := filepath.Join(dir, solutionFile)
	if err := writeModel(modelPath, m); err != nil {
		return solver.Raw{}, err
	}

	args := b.args(modelPath, solutionPath, limit)
	output, runErr := b.run(ctx, b.cfg.Binary, args...)
	if b.cfg.KeepFiles {
		if err := os.WriteFile(filepath.Join(dir, logFile), output, 0o600); err != nil {
			b.logger.Warn("failed to write solver log",
				zap.String("op", "cbc.Solve"),
				zap.Error(err),
			)
		}
	}
	if runErr != nil && ctx.Err() == nil && !isExitError(runErr) {
		return solver.Raw{}, fmt.Errorf("running %s: %w", b.cfg.Binary, runErr)
	}

	file, err := os.Open(solutionPath)
	if err != nil {
		if ctx.Err() != nil {
			// Killed before a solution was written.
			return solver.Raw{Status: solver.RawNotSolved, TimeLimitReported: true}, nil
		}
		return solver.Raw{}, fmt.Errorf("reading solution: %w", err)
	}
	defer file.Close()

	raw, err := ParseSolution(file)
	if err != nil {
		return solver.Raw{}, err
	}
	if LogReportsTimeLimit(string(output)) || ctx.Err() != nil {
		raw.TimeLimitReported = true
	}

	b.logger.Debug("cbc finished",
		zap.String("op", "cbc.Solve"),
		zap.String("status", string(raw.Status)),
		zap.Bool("timeLimitReported", raw.TimeLimitReported),
		zap.Int("values", len(raw.Values)),
	)
	return raw, nil
}

func (b *Backend) args(modelPath, solutionPath string, limit time.Duration) []string {
	args := []string{modelPath}
	if limit > 0 {
		seconds := int(math.Ceil(limit.Seconds()))
		args = append(args, "sec", strconv.Itoa(seconds), "timeMode", "elapsed")
	}
	if b.cfg.Threads > 0 {
		args = append(args, "threads", strconv.Itoa(b.cfg.Threads))
	}
	return append(args, "solve", "printingOptions", "all", "solu", solutionPath)
}

func writeModel(path string, m *model.Model) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating model file: %w", err)
	}
	if err := WriteLP(file, m); err != nil {
		file.Close()
		return fmt.Errorf("writing model file: %w", err)
	}
	return file.Close()
}

func isExitError(err error) bool {
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr)
}
