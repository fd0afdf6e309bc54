package integration

import (
	"context"
	"math"
	"os"
	"testing"
	"time"

	"github.com/iwvelando/mediaplan/internal/config"
	"github.com/iwvelando/mediaplan/internal/planner"
	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/internal/solver"
	"github.com/iwvelando/mediaplan/pkg/testutil"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// loadPlanner wires the planner the way main() does, with backend in place of CBC.
func loadPlanner(t *testing.T, backend solver.Solver) *planner.Planner {
	t.Helper()
	logger := zap.NewNop()

	conf, err := config.LoadConfiguration("../test_config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	store, err := ratecard.LoadFile("../ratecard.yaml")
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	cached := ratecard.NewCachedStore(store, conf.Database.CacheTTL)
	return planner.New(logger, cached, solver.NewGateway(logger, backend), conf.PlannerConfig())
}

func loadPayload(t *testing.T, path string) planner.Payload {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	var payload planner.Payload
	if err := yaml.Unmarshal(data, &payload); err != nil {
		t.Fatalf("failed to parse %s: %v", path, err)
	}
	return payload
}

// TestPlanFileNormalization prices the example plan with the configured rules.
func TestPlanFileNormalization(t *testing.T) {
	p := loadPlanner(t, testutil.ExhaustiveSolver(solver.RawOptimal))

	req, err := loadPayload(t, "../plan.yaml").OptimizeRequest()
	if err != nil {
		t.Fatalf("OptimizeRequest() error = %v", err)
	}
	if req.Programs == nil {
		t.Fatal("expected the plan to select programs")
	}

	rows, err := p.GenerateRows(context.Background(), *req.Programs)
	if err != nil {
		t.Fatalf("GenerateRows() error = %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("expected 10 rows (5 programs x 2 commercials), got %d", len(rows))
	}

	type key struct {
		id         int64
		commercial int
	}
	byKey := make(map[key]pricing.AllocationRow, len(rows))
	for _, r := range rows {
		byKey[key{r.ID, r.Commercial}] = r
	}

	// DERANA carries a 35% channel discount, SIRASA uses net cost where the
	// card has one and the 25% default otherwise.
	expected := []struct {
		id         int64
		commercial int
		ncost      float64
		ntvr       float64
	}{
		{1, 0, 65000, 5},
		{1, 1, 32500, 2.5},
		{2, 0, 13000, 1.5},
		{3, 1, 39000, 3.1},
		{4, 0, 60000, 4},
		{4, 1, 30000, 2},
		{5, 0, 12000, 1.25},
		{5, 1, 6000, 0.63},
	}
	for _, e := range expected {
		r, ok := byKey[key{e.id, e.commercial}]
		if !ok {
			t.Errorf("missing row for program %d commercial %d", e.id, e.commercial)
			continue
		}
		if math.Abs(r.NCost-e.ncost) > 0.01 {
			t.Errorf("program %d commercial %d: NCost = %.2f, want %.2f", e.id, e.commercial, r.NCost, e.ncost)
		}
		if math.Abs(r.NTVR-e.ntvr) > 0.01 {
			t.Errorf("program %d commercial %d: NTVR = %.2f, want %.2f", e.id, e.commercial, r.NTVR, e.ntvr)
		}
	}
	if got := byKey[key{1, 1}].CommercialKey; got != "com_2" {
		t.Errorf("expected default commercial key com_2, got %q", got)
	}
}

// TestSmallPlanEndToEnd solves a plan small enough to enumerate and checks
// the aggregated report.
func TestSmallPlanEndToEnd(t *testing.T) {
	p := loadPlanner(t, testutil.ExhaustiveSolver(solver.RawOptimal))

	payload := planner.Payload{
		"program_ids":   []any{2, 5},
		"durations":     []any{30},
		"budget":        25000,
		"budget_bound":  5000,
		"budget_shares": map[string]any{"DERANA": 50, "SIRASA": 50},
		"prime_pct":     0,
		"nonprime_pct":  100,
		"max_spots":     2,
	}
	req, err := payload.OptimizeRequest()
	if err != nil {
		t.Fatalf("OptimizeRequest() error = %v", err)
	}

	result, err := p.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if !result.Success || !result.IsOptimal {
		t.Fatalf("expected an optimal plan, got %+v", result)
	}
	if math.Abs(result.TotalCost-25000) > 0.01 {
		t.Errorf("TotalCost = %.2f, want 25000", result.TotalCost)
	}
	if math.Abs(result.TotalRating-2.75) > 0.01 {
		t.Errorf("TotalRating = %.2f, want 2.75", result.TotalRating)
	}

	for _, ch := range []string{"DERANA", "SIRASA"} {
		summary := testutil.FindChannel(result.ChannelSummary, ch)
		if summary == nil {
			t.Errorf("missing channel summary for %s", ch)
			continue
		}
		if summary.PrimeCost != 0 {
			t.Errorf("%s: expected no prime spend, got %.2f", ch, summary.PrimeCost)
		}
		if math.Abs(summary.NonPrimeCostPct-100) > 0.01 {
			t.Errorf("%s: NonPrimeCostPct = %.2f, want 100", ch, summary.NonPrimeCostPct)
		}
	}
}

// TestSmallPlanInfeasible asks for a budget no spot combination can reach.
func TestSmallPlanInfeasible(t *testing.T) {
	p := loadPlanner(t, testutil.ExhaustiveSolver(solver.RawOptimal))

	payload := planner.Payload{
		"program_ids":   []any{2, 5},
		"durations":     []any{30},
		"budget":        1000000,
		"budget_bound":  0,
		"budget_shares": map[string]any{"DERANA": 50, "SIRASA": 50},
		"max_spots":     2,
		"time_limit":    1,
	}
	req, err := payload.OptimizeRequest()
	if err != nil {
		t.Fatalf("OptimizeRequest() error = %v", err)
	}
	if req.TimeLimit != time.Second {
		t.Fatalf("expected a one second time limit, got %v", req.TimeLimit)
	}

	result, err := p.Optimize(context.Background(), req)
	if err != nil {
		t.Fatalf("Optimize() error = %v", err)
	}
	if result.Success {
		t.Fatalf("expected no plan, got %+v", result)
	}
	if result.SolverStatus != string(solver.RawInfeasible) {
		t.Errorf("SolverStatus = %q, want %q", result.SolverStatus, solver.RawInfeasible)
	}
}
