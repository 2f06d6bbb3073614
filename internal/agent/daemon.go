package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/kardianos/service"
	"github.com/stone-age-io/hwinventory/internal/autostart"
	"github.com/stone-age-io/hwinventory/internal/orchestrator"
	"github.com/stone-age-io/hwinventory/internal/store"
	"go.uber.org/zap"
)

// dueStore is the part of the local store the daemon reads
type dueStore interface {
	DueForSubmission(now time.Time) bool
	LoadSelection() (store.Selection, error)
}

type submitter interface {
	Submit(sel store.Selection) (*orchestrator.Handle, error)
}

// Daemon periodically resubmits the cached selection once per calendar month
type Daemon struct {
	store    dueStore
	orch     submitter
	interval time.Duration
	logger   *zap.Logger
	now      func() time.Time

	// month of the last attempt started by this daemon; a failed attempt is
	// not repeated until the next month or a restart
	attempted time.Time

	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

func newDaemon(st dueStore, orch submitter, interval time.Duration, logger *zap.Logger) *Daemon {
	ctx, cancel := context.WithCancel(context.Background())
	return &Daemon{
		store:    st,
		orch:     orch,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start schedules the check, running it once immediately
func (d *Daemon) Start() error {
	s, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = s.NewJob(
		gocron.DurationJob(d.interval),
		gocron.NewTask(func() { d.check(d.ctx) }),
		gocron.WithName("submission-check"),
		gocron.WithStartAt(gocron.WithStartImmediately()),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return fmt.Errorf("failed to schedule submission check: %w", err)
	}

	d.scheduler = s
	s.Start()
	d.logger.Info("Daemon started", zap.Duration("check_interval", d.interval))
	return nil
}

// Stop cancels a running check and stops the scheduler
func (d *Daemon) Stop() error {
	d.cancel()
	if d.scheduler == nil {
		return nil
	}
	if err := d.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to stop scheduler: %w", err)
	}
	d.logger.Info("Daemon stopped")
	return nil
}

// check submits the cached selection when a submission is due and reports
// whether one was accepted by the server
func (d *Daemon) check(ctx context.Context) bool {
	if !d.store.DueForSubmission(d.now()) {
		d.logger.Debug("Submission not due")
		return false
	}

	sel, err := d.store.LoadSelection()
	if errors.Is(err, store.ErrNoSelection) {
		d.logger.Info("Submission due but no selection saved yet; run the form once")
		return false
	}
	if err != nil {
		d.logger.Warn("Could not load saved selection", zap.Error(err))
		return false
	}
	if !sel.Complete() {
		d.logger.Warn("Saved selection is incomplete", zap.Strings("missing", sel.Missing()))
		return false
	}

	now := d.now()
	if sameMonth(d.attempted, now) {
		d.logger.Debug("Submission already attempted this month")
		return false
	}

	h, err := d.orch.Submit(sel)
	if errors.Is(err, orchestrator.ErrBusy) {
		d.logger.Debug("Submission already in progress")
		return false
	}
	if err != nil {
		d.logger.Error("Could not start submission", zap.Error(err))
		return false
	}
	d.attempted = now

	ev, ok := h.Wait(ctx)
	if !ok {
		h.Cancel()
		d.logger.Info("Scheduled submission cancelled")
		return false
	}
	if ev.Kind != orchestrator.EventSuccess {
		d.logger.Warn("Scheduled submission failed; next attempt next month or after a restart")
		return false
	}
	d.logger.Info("Scheduled submission sent", zap.String("asset", sel.Asset))
	return true
}

func sameMonth(a, b time.Time) bool {
	return !a.IsZero() && a.Year() == b.Year() && a.Month() == b.Month()
}

// program adapts the daemon to the service manager
type program struct {
	agent  *Agent
	daemon *Daemon
}

func (p *program) Start(service.Service) error {
	return p.daemon.Start()
}

func (p *program) Stop(service.Service) error {
	err := p.daemon.Stop()
	p.agent.Close()
	return err
}

// RunDaemon runs the daemon under the service manager, or in the foreground
// until SIGINT or SIGTERM when started from a terminal
func (a *Agent) RunDaemon() error {
	d := newDaemon(a.store, a.orchestrator, a.config.Daemon.CheckInterval, a.logger)

	svc, err := service.New(&program{agent: a, daemon: d}, autostart.ServiceConfig(a.config.Autostart, a.configPath))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}

	a.logger.Info("Starting daemon",
		zap.String("version", a.version),
		zap.Bool("interactive", service.Interactive()))
	return svc.Run()
}
