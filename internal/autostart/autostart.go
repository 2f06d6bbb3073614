// Package autostart registers the agent with the operating system's service
// manager so the daemon starts with the machine.
package autostart

import (
	"errors"
	"fmt"

	"github.com/kardianos/service"
	"github.com/stone-age-io/hwinventory/internal/config"
	"go.uber.org/zap"
)

// ErrNotInstalled is returned by Status when no registration exists
var ErrNotInstalled = errors.New("autostart is not installed")

// Status of the registration
type Status string

const (
	StatusRunning Status = "running"
	StatusStopped Status = "stopped"
	StatusUnknown Status = "unknown"
)

type factory func(i service.Interface, c *service.Config) (service.Service, error)

// Manager installs and removes the registration
type Manager struct {
	cfg        *service.Config
	logger     *zap.Logger
	newService factory
}

// ServiceConfig describes the daemon to the service manager. configPath is
// passed through to the daemon when set.
func ServiceConfig(cfg config.AutostartConfig, configPath string) *service.Config {
	args := []string{"daemon"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return &service.Config{
		Name:        cfg.Name,
		DisplayName: cfg.DisplayName,
		Description: cfg.Description,
		Arguments:   args,
	}
}

// New creates a manager for the given registration
func New(cfg config.AutostartConfig, configPath string, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:        ServiceConfig(cfg, configPath),
		logger:     logger,
		newService: service.New,
	}
}

// Install registers the daemon and starts it. A failed start is logged and
// does not undo the registration.
func (m *Manager) Install() error {
	s, err := m.service()
	if err != nil {
		return err
	}

	if err := s.Install(); err != nil {
		m.logger.Error("Failed to install autostart", zap.String("name", m.cfg.Name), zap.Error(err))
		return fmt.Errorf("failed to install %s: %w", m.cfg.Name, err)
	}
	m.logger.Info("Autostart installed",
		zap.String("name", m.cfg.Name),
		zap.String("platform", s.Platform()))

	if err := s.Start(); err != nil {
		m.logger.Warn("Autostart installed but could not be started now", zap.Error(err))
	}
	return nil
}

// Uninstall stops and removes the registration
func (m *Manager) Uninstall() error {
	s, err := m.service()
	if err != nil {
		return err
	}

	if err := s.Stop(); err != nil {
		m.logger.Debug("Stop before uninstall failed", zap.Error(err))
	}

	if err := s.Uninstall(); err != nil {
		m.logger.Error("Failed to remove autostart", zap.String("name", m.cfg.Name), zap.Error(err))
		return fmt.Errorf("failed to remove %s: %w", m.cfg.Name, err)
	}
	m.logger.Info("Autostart removed", zap.String("name", m.cfg.Name))
	return nil
}

// Status reports the registration state
func (m *Manager) Status() (Status, error) {
	s, err := m.service()
	if err != nil {
		return StatusUnknown, err
	}

	st, err := s.Status()
	if errors.Is(err, service.ErrNotInstalled) {
		return StatusUnknown, ErrNotInstalled
	}
	if err != nil {
		return StatusUnknown, fmt.Errorf("failed to query %s: %w", m.cfg.Name, err)
	}

	switch st {
	case service.StatusRunning:
		return StatusRunning, nil
	case service.StatusStopped:
		return StatusStopped, nil
	default:
		return StatusUnknown, nil
	}
}

// Name returns the registration name
func (m *Manager) Name() string {
	return m.cfg.Name
}

func (m *Manager) service() (service.Service, error) {
	s, err := m.newService(idle{}, m.cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to access service manager: %w", err)
	}
	return s, nil
}

// idle satisfies service.Interface for management calls, which never run
// the program
type idle struct{}

func (idle) Start(service.Service) error { return nil }
func (idle) Stop(service.Service) error  { return nil }
