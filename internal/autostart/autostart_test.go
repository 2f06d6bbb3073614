package autostart

import (
	"errors"
	"testing"

	"github.com/kardianos/service"
	"github.com/stone-age-io/hwinventory/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeService struct {
	service.Service

	installErr   error
	startErr     error
	uninstallErr error
	status       service.Status
	statusErr    error

	calls []string
}

func (f *fakeService) Install() error {
	f.calls = append(f.calls, "install")
	return f.installErr
}

func (f *fakeService) Start() error {
	f.calls = append(f.calls, "start")
	return f.startErr
}

func (f *fakeService) Stop() error {
	f.calls = append(f.calls, "stop")
	return errors.New("not running")
}

func (f *fakeService) Uninstall() error {
	f.calls = append(f.calls, "uninstall")
	return f.uninstallErr
}

func (f *fakeService) Status() (service.Status, error) {
	return f.status, f.statusErr
}

func (f *fakeService) Platform() string { return "fake" }

func newManager(svc *fakeService) *Manager {
	m := New(config.AutostartConfig{Name: "HardwareMonitorUFMGSTI"}, "/etc/hwinventory/config.yaml", zap.NewNop())
	m.newService = func(service.Interface, *service.Config) (service.Service, error) {
		return svc, nil
	}
	return m
}

func TestServiceConfig(t *testing.T) {
	cfg := ServiceConfig(config.AutostartConfig{Name: "Inv", DisplayName: "Inventory"}, "")
	assert.Equal(t, "Inv", cfg.Name)
	assert.Equal(t, "Inventory", cfg.DisplayName)
	assert.Equal(t, []string{"daemon"}, cfg.Arguments)

	cfg = ServiceConfig(config.AutostartConfig{Name: "Inv"}, "/tmp/c.yaml")
	assert.Equal(t, []string{"daemon", "--config", "/tmp/c.yaml"}, cfg.Arguments)
}

func TestInstall(t *testing.T) {
	svc := &fakeService{}
	m := newManager(svc)

	require.NoError(t, m.Install())
	assert.Equal(t, []string{"install", "start"}, svc.calls)
}

func TestInstallStartFailureIsNotFatal(t *testing.T) {
	svc := &fakeService{startErr: errors.New("access denied")}
	m := newManager(svc)

	assert.NoError(t, m.Install())
}

func TestInstallFailure(t *testing.T) {
	svc := &fakeService{installErr: errors.New("already exists")}
	m := newManager(svc)

	err := m.Install()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HardwareMonitorUFMGSTI")
	assert.Equal(t, []string{"install"}, svc.calls)
}

func TestUninstall(t *testing.T) {
	svc := &fakeService{}
	m := newManager(svc)

	require.NoError(t, m.Uninstall())
	assert.Equal(t, []string{"stop", "uninstall"}, svc.calls)

	svc = &fakeService{uninstallErr: errors.New("boom")}
	m = newManager(svc)
	assert.Error(t, m.Uninstall())
}

func TestStatus(t *testing.T) {
	tests := []struct {
		name    string
		svc     *fakeService
		want    Status
		wantErr error
	}{
		{"running", &fakeService{status: service.StatusRunning}, StatusRunning, nil},
		{"stopped", &fakeService{status: service.StatusStopped}, StatusStopped, nil},
		{"unknown", &fakeService{status: service.StatusUnknown}, StatusUnknown, nil},
		{"not installed", &fakeService{statusErr: service.ErrNotInstalled}, StatusUnknown, ErrNotInstalled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newManager(tt.svc)
			got, err := m.Status()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServiceManagerUnavailable(t *testing.T) {
	m := New(config.AutostartConfig{Name: "Inv"}, "", zap.NewNop())
	m.newService = func(service.Interface, *service.Config) (service.Service, error) {
		return nil, errors.New("no service manager")
	}

	assert.Error(t, m.Install())
	assert.Error(t, m.Uninstall())
	_, err := m.Status()
	assert.Error(t, err)
}
