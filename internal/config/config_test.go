package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadConfiguration(t *testing.T) {
	tests := []struct {
		name       string
		configPath string
		wantError  bool
	}{
		{
			name:       "Non-existent config file",
			configPath: "nonexistent.yaml",
			wantError:  true,
		},
		{
			name:       "Test config",
			configPath: "../../test/test_config.yaml",
			wantError:  false,
		},
		{
			name:       "Example config",
			configPath: "../../config.yaml.example",
			wantError:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config, err := LoadConfiguration(tt.configPath)
			if tt.wantError {
				if err == nil {
					t.Errorf("LoadConfiguration() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Errorf("LoadConfiguration() error = %v", err)
				return
			}
			if config == nil {
				t.Errorf("LoadConfiguration() returned nil config")
			}
		})
	}
}

func TestLoadConfigurationStructure(t *testing.T) {
	config, err := LoadConfiguration("../../test/test_config.yaml")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if config.Logging.Level != "debug" || config.Logging.Format != "console" {
		t.Errorf("unexpected logging config %+v", config.Logging)
	}
	if config.Output.Format != "json" {
		t.Errorf("Expected output format json, got %q", config.Output.Format)
	}
	if config.Server.Address != ":9090" || config.Server.MaxUploadSize != "2M" {
		t.Errorf("unexpected server config %+v", config.Server)
	}
	if config.Database.CacheTTL != time.Minute {
		t.Errorf("Expected cacheTTL 1m, got %v", config.Database.CacheTTL)
	}
	if config.Solver.TimeLimit != 45*time.Second {
		t.Errorf("Expected timeLimit 45s, got %v", config.Solver.TimeLimit)
	}
	if config.Solver.Threads != 2 || !config.Solver.KeepFiles || config.Solver.Binary != "/usr/bin/cbc" {
		t.Errorf("unexpected solver config %+v", config.Solver)
	}
	if config.Defaults.MaxSpots != 15 || config.Defaults.PrimePct != 75 || config.Defaults.NonPrimePct != 25 {
		t.Errorf("unexpected defaults %+v", config.Defaults)
	}
	if config.Defaults.BudgetBound != 50000 {
		t.Errorf("Expected budgetBound 50000, got %v", config.Defaults.BudgetBound)
	}
	if config.Pricing.DefaultDiscountPct == nil || *config.Pricing.DefaultDiscountPct != 25 {
		t.Errorf("Expected discountPct 25, got %v", config.Pricing.DefaultDiscountPct)
	}
	if config.Pricing.Client != "ACME" {
		t.Errorf("Expected client ACME, got %q", config.Pricing.Client)
	}
	if len(config.Pricing.NetCostChannels) != 1 || config.Pricing.NetCostChannels[0] != "SIRASA" {
		t.Errorf("unexpected netCostChannels %v", config.Pricing.NetCostChannels)
	}

	// Map keys come back lower-cased from the loader.
	found := false
	for ch, pct := range config.Pricing.ChannelDiscounts {
		if strings.EqualFold(ch, "DERANA") && pct == 35 {
			found = true
		}
	}
	if !found {
		t.Errorf("channel discount for DERANA not loaded: %v", config.Pricing.ChannelDiscounts)
	}
}

func TestLoadConfigurationFromReaderDefaults(t *testing.T) {
	config, err := LoadConfigurationFromReader(strings.NewReader("output:\n  format: csv\n"))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}

	if config.Output.Format != "csv" {
		t.Errorf("Expected output format csv, got %q", config.Output.Format)
	}
	if config.Server.Address != ":8080" {
		t.Errorf("Expected default address, got %q", config.Server.Address)
	}
	if config.Solver.TimeLimit != 120*time.Second {
		t.Errorf("Expected default time limit, got %v", config.Solver.TimeLimit)
	}
	if config.Solver.Binary != "cbc" {
		t.Errorf("Expected default binary cbc, got %q", config.Solver.Binary)
	}
	if config.Defaults.MaxSpots != 20 || config.Defaults.PrimePct != 80 || config.Defaults.NonPrimePct != 20 {
		t.Errorf("unexpected defaults %+v", config.Defaults)
	}
	if config.Pricing.DefaultDiscountPct == nil || *config.Pricing.DefaultDiscountPct != 30 {
		t.Errorf("Expected default discount 30, got %v", config.Pricing.DefaultDiscountPct)
	}
}

func TestLoadConfigurationFromReaderInvalid(t *testing.T) {
	if _, err := LoadConfigurationFromReader(strings.NewReader("output: [unclosed")); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfigurationEnvOverride(t *testing.T) {
	t.Setenv("MEDIAPLAN_DATABASE_DSN", "postgres://example/mediaplan")
	t.Setenv("MEDIAPLAN_SOLVER_THREADS", "4")

	config, err := LoadConfigurationFromReader(strings.NewReader("logging:\n  level: warn\n"))
	if err != nil {
		t.Fatalf("LoadConfigurationFromReader() error = %v", err)
	}
	if config.Database.DSN != "postgres://example/mediaplan" {
		t.Errorf("Expected DSN from environment, got %q", config.Database.DSN)
	}
	if config.Solver.Threads != 4 {
		t.Errorf("Expected threads from environment, got %d", config.Solver.Threads)
	}
}

func TestDefault(t *testing.T) {
	config := Default()
	if config.Output.Format != "pretty" {
		t.Errorf("Expected default output pretty, got %q", config.Output.Format)
	}
	if config.Database.CacheTTL != 5*time.Minute {
		t.Errorf("Expected default cacheTTL, got %v", config.Database.CacheTTL)
	}
}

func TestValidateConfiguration(t *testing.T) {
	valid := Default()
	valid.Database.RateCardFile = "ratecard.yaml"
	if warnings := valid.ValidateConfiguration(); len(warnings) != 0 {
		t.Errorf("Expected no warnings for defaults with a rate card, got %v", warnings)
	}

	conf := Default()
	conf.Output.Format = "xml"
	conf.Solver.TimeLimit = 100 * time.Millisecond
	conf.Solver.Threads = -1
	conf.Defaults.MinSpots = 5
	conf.Defaults.MaxSpots = 2
	conf.Defaults.PrimePct = 70
	discount := 130.0
	conf.Pricing.DefaultDiscountPct = &discount
	conf.Pricing.ChannelDiscounts = map[string]float64{"derana": -5}
	conf.Pricing.ClientChannels = []string{"HIRU"}

	warnings := conf.ValidateConfiguration()
	expected := []string{
		"output format",
		"No rate card configured",
		"below one second",
		"threads -1",
		"Maximum spots 2",
		"does not sum to 100",
		"pricing.discountPct",
		"pricing.channelDiscounts.derana",
		"without pricing.client",
	}
	if len(warnings) != len(expected) {
		t.Fatalf("Expected %d warnings, got %d: %v", len(expected), len(warnings), warnings)
	}
	for i, want := range expected {
		if !strings.Contains(warnings[i], want) {
			t.Errorf("warning %d = %q, want it to mention %q", i, warnings[i], want)
		}
	}
}

func TestConversions(t *testing.T) {
	conf := Default()
	conf.Solver.Threads = -3
	conf.Solver.KeepFiles = true
	conf.Pricing.ChannelDiscounts = map[string]float64{"DERANA": 40}

	pc := conf.PlannerConfig()
	if pc.TimeLimit != 120*time.Second {
		t.Errorf("Expected planner time limit 120s, got %v", pc.TimeLimit)
	}
	if pc.Defaults.MaxSpots != 20 || pc.Rules.DefaultDiscountPct == nil || *pc.Rules.DefaultDiscountPct != 30 {
		t.Errorf("unexpected planner config %+v", pc)
	}
	if pc.ChannelDiscounts["DERANA"] != 40 {
		t.Errorf("channel discounts not carried over: %v", pc.ChannelDiscounts)
	}

	cc := conf.CBCConfig()
	if cc.Threads != 0 || !cc.KeepFiles || cc.Binary != "cbc" {
		t.Errorf("unexpected CBC config %+v", cc)
	}
}
