// Package config defines the service configuration and the functions that
// load and check it.
package config

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/iwvelando/mediaplan/internal/planner"
	"github.com/iwvelando/mediaplan/internal/pricing"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/validation"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. MEDIAPLAN_DATABASE_DSN.
const EnvPrefix = "MEDIAPLAN"

// Configuration holds all configuration for mediaplan.
type Configuration struct {
	Logging  LoggingConfig    `mapstructure:"logging" yaml:"logging,omitempty"`
	Output   OutputConfig     `mapstructure:"output" yaml:"output,omitempty"`
	Server   ServerConfig     `mapstructure:"server" yaml:"server,omitempty"`
	Database DatabaseConfig   `mapstructure:"database" yaml:"database,omitempty"`
	Solver   SolverConfig     `mapstructure:"solver" yaml:"solver,omitempty"`
	Defaults planner.Defaults `mapstructure:"defaults" yaml:"defaults,omitempty"`
	Pricing  PricingConfig    `mapstructure:"pricing" yaml:"pricing,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level,omitempty"`           // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format,omitempty"`         // json, console
	OutputFile string `mapstructure:"outputFile" yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format,omitempty"` // pretty, csv, json
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Address       string `mapstructure:"address" yaml:"address,omitempty"`
	MaxUploadSize string `mapstructure:"maxUploadSize" yaml:"maxUploadSize,omitempty"`
}

// DatabaseConfig points at the rate card. DSN selects PostgreSQL; otherwise
// RateCardFile is read into memory.
type DatabaseConfig struct {
	DSN          string        `mapstructure:"dsn" yaml:"dsn,omitempty"`
	CacheTTL     time.Duration `mapstructure:"cacheTTL" yaml:"cacheTTL,omitempty"`
	RateCardFile string        `mapstructure:"rateCardFile" yaml:"rateCardFile,omitempty"`
}

// SolverConfig holds the CBC backend settings.
type SolverConfig struct {
	Binary    string        `mapstructure:"binary" yaml:"binary,omitempty"`
	TimeLimit time.Duration `mapstructure:"timeLimit" yaml:"timeLimit,omitempty"`
	Threads   int           `mapstructure:"threads" yaml:"threads,omitempty"`
	KeepFiles bool          `mapstructure:"keepFiles" yaml:"keepFiles,omitempty"`
	WorkDir   string        `mapstructure:"workDir" yaml:"workDir,omitempty"`
}

// PricingConfig holds the default pricing rules and channel discounts.
type PricingConfig struct {
	pricing.Rules    `mapstructure:",squash" yaml:",inline"`
	ChannelDiscounts map[string]float64 `mapstructure:"channelDiscounts" yaml:"channelDiscounts,omitempty"`
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("output.format", constants.OutputFormatPretty)
	v.SetDefault("server.address", constants.DefaultServerAddress)
	v.SetDefault("server.maxUploadSize", "8M")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.cacheTTL", constants.DefaultCacheTTL)
	v.SetDefault("database.rateCardFile", "")
	v.SetDefault("solver.binary", constants.DefaultSolverBinary)
	v.SetDefault("solver.timeLimit", constants.DefaultTimeLimit)
	v.SetDefault("solver.threads", 0)
	v.SetDefault("solver.keepFiles", false)
	v.SetDefault("solver.workDir", "")
	v.SetDefault("defaults.minSpots", constants.DefaultMinSpots)
	v.SetDefault("defaults.maxSpots", constants.DefaultMaxSpots)
	v.SetDefault("defaults.budgetBound", 0.0)
	v.SetDefault("defaults.primePct", constants.DefaultPrimePct)
	v.SetDefault("defaults.nonPrimePct", constants.DefaultNonPrimePct)
	v.SetDefault("pricing.discountPct", constants.DefaultDiscountPct)
	return v
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := newViper()
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %w", err)
	}
	return decode(v)
}

// LoadConfigurationFromReader loads YAML configuration from r.
func LoadConfigurationFromReader(r io.Reader) (*Configuration, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("error reading config data, %w", err)
	}
	return decode(v)
}

// Default returns the configuration used when no file is given.
func Default() *Configuration {
	conf, err := decode(newViper())
	if err != nil {
		// Defaults are static and always decode.
		panic(err)
	}
	return conf
}

func decode(v *viper.Viper) (*Configuration, error) {
	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %w", err)
	}
	return &configuration, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	var warnings []string

	if err := validation.ValidateOutputFormat(c.Output.Format); err != nil {
		warnings = append(warnings, err.Error())
	}
	if c.Database.DSN == "" && c.Database.RateCardFile == "" {
		warnings = append(warnings, "No rate card configured (database.dsn or database.rateCardFile); only requests carrying df_full rows can be planned")
	}
	if c.Solver.TimeLimit > 0 && c.Solver.TimeLimit < time.Second {
		warnings = append(warnings, fmt.Sprintf("Solver time limit %s is below one second", c.Solver.TimeLimit))
	}
	if c.Solver.Threads < 0 {
		warnings = append(warnings, fmt.Sprintf("Solver threads %d is negative and will be ignored", c.Solver.Threads))
	}

	warnings = append(warnings, validation.ValidateSpotBounds(c.Defaults.MinSpots, c.Defaults.MaxSpots)...)
	warnings = append(warnings, validation.ValidateSlotSplit("defaults", c.Defaults.PrimePct, c.Defaults.NonPrimePct)...)
	if c.Pricing.DefaultDiscountPct != nil {
		warnings = append(warnings, validation.ValidatePercentage("pricing.discountPct", *c.Pricing.DefaultDiscountPct)...)
	}
	for _, ch := range sortedKeys(c.Pricing.ChannelDiscounts) {
		warnings = append(warnings, validation.ValidatePercentage(fmt.Sprintf("pricing.channelDiscounts.%s", ch), c.Pricing.ChannelDiscounts[ch])...)
	}
	if len(c.Pricing.ClientChannels) > 0 && c.Pricing.Client == "" {
		warnings = append(warnings, "pricing.clientChannels is set without pricing.client; client rates will not apply")
	}
	return warnings
}
