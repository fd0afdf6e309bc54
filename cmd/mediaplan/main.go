package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/iwvelando/mediaplan/internal/config"
	"github.com/iwvelando/mediaplan/internal/planner"
	"github.com/iwvelando/mediaplan/internal/ratecard"
	"github.com/iwvelando/mediaplan/internal/server"
	"github.com/iwvelando/mediaplan/internal/solver"
	"github.com/iwvelando/mediaplan/internal/solver/cbc"
	"github.com/iwvelando/mediaplan/pkg/constants"
	"github.com/iwvelando/mediaplan/pkg/output"
	"github.com/iwvelando/mediaplan/pkg/validation"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// initializeLogger creates a zap logger based on configuration and CLI override
func initializeLogger(loggingConfig config.LoggingConfig, logLevelOverride string) (*zap.Logger, error) {
	// Determine log level (CLI override takes precedence)
	level := loggingConfig.Level
	if logLevelOverride != "" {
		level = logLevelOverride
	}
	if level == "" {
		level = "info"
	}

	var zapLevel zapcore.Level
	switch level {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn", "warning":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		return nil, fmt.Errorf("invalid log level: %s", level)
	}

	format := loggingConfig.Format
	if format == "" {
		format = "json"
	}

	var zc zap.Config
	switch format {
	case "console":
		zc = zap.NewDevelopmentConfig()
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}
	zc.Level = zap.NewAtomicLevelAt(zapLevel)

	if loggingConfig.OutputFile != "" {
		if dir := filepath.Dir(loggingConfig.OutputFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %v", dir, err)
			}
		}

		// Test if we can create/write to the file
		file, err := os.OpenFile(loggingConfig.OutputFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file %s: %v", loggingConfig.OutputFile, err)
		}
		_ = file.Close()

		zc.OutputPaths = []string{loggingConfig.OutputFile}
		zc.ErrorOutputPaths = []string{loggingConfig.OutputFile}
	}

	return zc.Build()
}

// loadConfiguration reads path, falling back to defaults when the default
// config file is absent.
func loadConfiguration(path string) (*config.Configuration, error) {
	if path == constants.DefaultConfigFile {
		if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
			return config.Default(), nil
		}
	}
	return config.LoadConfiguration(path)
}

// openStore picks the rate card source: PostgreSQL when a DSN is set, else a
// YAML file, else an empty card. Stores are cached when CacheTTL is positive.
// The returned func releases the store's resources.
func openStore(ctx context.Context, logger *zap.Logger, db config.DatabaseConfig) (ratecard.Store, func(), error) {
	var (
		store   ratecard.Store
		release = func() {}
	)
	switch {
	case db.DSN != "":
		pg, pool, err := ratecard.OpenPostgres(ctx, logger, db.DSN)
		if err != nil {
			return nil, nil, err
		}
		store, release = pg, pool.Close
	case db.RateCardFile != "":
		mem, err := ratecard.LoadFile(db.RateCardFile)
		if err != nil {
			return nil, nil, err
		}
		store = mem
	default:
		logger.Warn("no rate card configured; only df_full requests can be planned",
			zap.String("op", "main.openStore"),
		)
		store = ratecard.NewMemoryStore(nil)
	}

	if db.CacheTTL > 0 {
		store = ratecard.NewCachedStore(store, db.CacheTTL)
	}
	return store, release, nil
}

// runRequest plans the YAML request at path once and writes the report to w.
func runRequest(ctx context.Context, p *planner.Planner, path string, bonus bool, outputFormat string, w io.Writer) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	raw := map[string]any{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("failed to parse request: %w", err)
	}
	payload := planner.Payload(raw)

	if bonus {
		req, err := payload.BonusRequest()
		if err != nil {
			return err
		}
		result, err := p.OptimizeBonus(ctx, req)
		if err != nil {
			return err
		}
		return output.WriteBonus(w, outputFormat, result)
	}

	req, err := payload.OptimizeRequest()
	if err != nil {
		return err
	}
	result, err := p.Optimize(ctx, req)
	if err != nil {
		return err
	}
	return output.Write(w, outputFormat, result)
}

// runServer serves the HTTP API until ctx is cancelled.
func runServer(ctx context.Context, logger *zap.Logger, conf *config.Configuration, p *planner.Planner) error {
	serverConfig, err := server.NewConfig(conf.Server)
	if err != nil {
		return err
	}
	srv := server.NewServer(serverConfig, server.NewHandler(logger, p, serverConfig.UploadSizeBytes(), version))

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving",
			zap.String("op", "main.runServer"),
			zap.String("address", serverConfig.Address),
			zap.String("version", version),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	configLocation := flag.String("config", constants.DefaultConfigFile, "path to configuration file")
	outputFormatFlag := flag.String("output-format", "", "type of output override: pretty, csv, json")
	logLevel := flag.String("log-level", "", "log level override (debug, info, warn, error)")
	requestFile := flag.String("request", "", "path to a YAML plan request to run once")
	bonus := flag.Bool("bonus", false, "treat -request as a bonus airtime optimization")
	serve := flag.Bool("serve", false, "serve the HTTP API")
	flag.Parse()

	conf, err := loadConfiguration(*configLocation)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to load configuration at %s\", \"error\": \"%v\"}\n", *configLocation, err)
		os.Exit(1)
	}

	logger, err := initializeLogger(conf.Logging, *logLevel)
	if err != nil {
		fmt.Printf("{\"op\": \"main\", \"level\": \"fatal\", \"msg\": \"failed to initialize logger\", \"error\": \"%v\"}\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	// Determine output format (CLI override takes precedence over config)
	outputFormat := conf.Output.Format
	if *outputFormatFlag != "" {
		outputFormat = *outputFormatFlag
	}
	if outputFormat == "" {
		outputFormat = constants.OutputFormatPretty
	}
	if err := validation.ValidateOutputFormat(outputFormat); err != nil {
		logger.Fatal(err.Error(),
			zap.String("op", "main"),
		)
	}

	for _, warning := range conf.ValidateConfiguration() {
		logger.Warn("Configuration warning: "+warning,
			zap.String("op", "main"),
		)
	}

	if !*serve && *requestFile == "" {
		logger.Fatal("nothing to do: pass -request <file> or -serve",
			zap.String("op", "main"),
		)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, release, err := openStore(ctx, logger, conf.Database)
	if err != nil {
		logger.Fatal("failed to open rate card",
			zap.String("op", "main"),
			zap.Error(err),
		)
	}
	defer release()

	gateway := solver.NewGateway(logger, cbc.New(logger, conf.CBCConfig()))
	p := planner.New(logger, store, gateway, conf.PlannerConfig())

	if *serve {
		err = runServer(ctx, logger, conf, p)
	} else {
		err = runRequest(ctx, p, *requestFile, *bonus, outputFormat, os.Stdout)
	}
	if err != nil {
		logger.Error("run failed",
			zap.String("op", "main"),
			zap.Error(err),
		)
		release()
		_ = logger.Sync()
		os.Exit(1)
	}
}
