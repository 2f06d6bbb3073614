// Package agent wires the configuration, logger and components together and
// runs the daemon.
package agent

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/stone-age-io/hwinventory/internal/autostart"
	"github.com/stone-age-io/hwinventory/internal/config"
	"github.com/stone-age-io/hwinventory/internal/directory"
	"github.com/stone-age-io/hwinventory/internal/form"
	"github.com/stone-age-io/hwinventory/internal/inventory"
	"github.com/stone-age-io/hwinventory/internal/orchestrator"
	"github.com/stone-age-io/hwinventory/internal/probe"
	"github.com/stone-age-io/hwinventory/internal/store"
	"github.com/stone-age-io/hwinventory/internal/submission"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Agent holds the wired components
type Agent struct {
	config       *config.Config
	configPath   string
	logger       *zap.Logger
	store        *store.Store
	directory    *directory.Client
	collector    *inventory.Collector
	orchestrator *orchestrator.Orchestrator
	version      string
}

// New loads the configuration and builds every component
func New(configPath string, version string) (*Agent, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	return build(cfg, configPath, version, logger), nil
}

func build(cfg *config.Config, configPath, version string, logger *zap.Logger) *Agent {
	httpClient := newHTTPClient(cfg.API.InsecureSkipVerify)
	if cfg.API.InsecureSkipVerify {
		logger.Debug("TLS certificate verification disabled for the inventory API")
	}

	st := store.New(cfg.State.SelectionPath(), cfg.State.MarkerPath())

	p := probe.New(runtime.GOOS, probe.NewExecRunner(cfg.Probe.CommandTimeout), logger)
	collector := inventory.NewCollector(inventory.NewSystemSources(), p, logger)

	dir := directory.NewClient(httpClient, directory.Endpoints{
		Places:    cfg.API.PlacesURL,
		Equipment: cfg.API.EquipmentURL,
		Users:     cfg.API.UsersURL,
	}, cfg.API.ReadTimeout, logger)

	sub := submission.NewClient(httpClient, cfg.API.SubmitURL, cfg.API.SubmitTimeout, st, logger)

	logger.Debug("Components ready",
		zap.String("version", version),
		zap.String("probe", p.Name()),
		zap.String("state_dir", cfg.State.Dir))

	return &Agent{
		config:       cfg,
		configPath:   configPath,
		logger:       logger,
		store:        st,
		directory:    dir,
		collector:    collector,
		orchestrator: orchestrator.New(collector, sub, st, logger),
		version:      version,
	}
}

// Logger returns the agent's logger
func (a *Agent) Logger() *zap.Logger {
	return a.logger
}

// Directory returns the directory client
func (a *Agent) Directory() *directory.Client {
	return a.directory
}

// Collect builds an inventory record of this machine
func (a *Agent) Collect(ctx context.Context) inventory.Record {
	return a.collector.Collect(ctx)
}

// Autostart returns the autostart manager
func (a *Agent) Autostart() *autostart.Manager {
	return autostart.New(a.config.Autostart, a.configPath, a.logger)
}

// RunForm runs the interactive form
func (a *Agent) RunForm(ctx context.Context, in io.Reader, out io.Writer) error {
	a.logger.Info("Starting form", zap.String("version", a.version))
	f := form.New(a.directory, a.store, a.orchestrator, in, out, a.logger)
	return f.Run(ctx)
}

// SubmitOnce submits without prompting; empty ids come from the cache
func (a *Agent) SubmitOnce(ctx context.Context, override store.Selection, out io.Writer) error {
	return form.SubmitOnce(ctx, a.store, a.orchestrator, override, out)
}

// Close stops any submission in progress, waiting up to the configured
// shutdown timeout, and flushes the log
func (a *Agent) Close() {
	if !a.orchestrator.Shutdown(a.config.Daemon.ShutdownTimeout) {
		a.logger.Warn("Closing with a submission still in flight")
	}
	_ = a.logger.Sync()
}

// initLogger creates and configures the logger with log rotation
func initLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "timestamp"
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // megabytes
		MaxBackups: cfg.MaxBackups,
		MaxAge:     28, // days
		Compress:   true,
	}

	return newLogger(encoderConfig, level, zapcore.AddSync(fileWriter), zapcore.Lock(os.Stderr)), nil
}

// newLogger tees a JSON file core and a console core
func newLogger(enc zapcore.EncoderConfig, level zapcore.Level, file, console zapcore.WriteSyncer) *zap.Logger {
	core := zapcore.NewTee(
		zapcore.NewCore(zapcore.NewJSONEncoder(enc), file, level),
		zapcore.NewCore(zapcore.NewConsoleEncoder(enc), console, level),
	)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
}
