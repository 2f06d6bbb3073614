package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stone-age-io/hwinventory/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestInitLoggerInvalidLevel(t *testing.T) {
	_, err := initLogger(config.LoggingConfig{Level: "chatty", File: filepath.Join(t.TempDir(), "x.log")})
	assert.Error(t, err)
}

func TestNewLoggerTee(t *testing.T) {
	var file, console bytes.Buffer

	enc := zap.NewProductionEncoderConfig()
	enc.TimeKey = "timestamp"
	enc.EncodeTime = zapcore.ISO8601TimeEncoder

	logger := newLogger(enc, zapcore.InfoLevel, zapcore.AddSync(&file), zapcore.AddSync(&console))
	logger.Debug("hidden")
	logger.Info("Inventory collected", zap.String("hostname", "LAB-PC-07"))
	require.NoError(t, logger.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &entry))
	assert.Equal(t, "Inventory collected", entry["msg"])
	assert.Equal(t, "LAB-PC-07", entry["hostname"])
	assert.Contains(t, entry, "timestamp")

	assert.Contains(t, console.String(), "Inventory collected")
	assert.NotContains(t, console.String(), "hidden")
}

func TestNewHTTPClient(t *testing.T) {
	for _, insecure := range []bool{true, false} {
		c := newHTTPClient(insecure)
		tr, ok := c.Transport.(*http.Transport)
		require.True(t, ok)
		assert.Equal(t, insecure, tr.TLSClientConfig.InsecureSkipVerify)
		assert.Zero(t, c.Timeout, "deadlines come from request contexts")
	}
}

func testConfig(t *testing.T) *config.Config {
	dir := t.TempDir()
	return &config.Config{
		API: config.APIConfig{
			SubmitURL:          "https://inventory.example.org/v1/submission",
			PlacesURL:          "https://inventory.example.org/v1/places",
			EquipmentURL:       "https://inventory.example.org/v1/equipaments/?client=x9h",
			UsersURL:           "https://inventory.example.org/v1/users/",
			ReadTimeout:        15 * time.Second,
			SubmitTimeout:      30 * time.Second,
			InsecureSkipVerify: true,
		},
		State: config.StateConfig{
			Dir:           dir,
			SelectionFile: "user_data.json",
			MarkerFile:    "ultimo_envio.txt",
		},
		Probe:     config.ProbeConfig{CommandTimeout: 20 * time.Second},
		Autostart: config.AutostartConfig{Name: "HardwareMonitorUFMGSTI"},
		Daemon:    config.DaemonConfig{CheckInterval: time.Hour, ShutdownTimeout: time.Second},
		Logging:   config.LoggingConfig{Level: "debug", File: filepath.Join(dir, "hwinventory.log")},
	}
}

func TestBuild(t *testing.T) {
	cfg := testConfig(t)
	a := build(cfg, "/etc/hwinventory/config.yaml", "1.2.3", zaptest.NewLogger(t))

	assert.NotNil(t, a.Directory())
	assert.NotNil(t, a.Logger())
	assert.Equal(t, "HardwareMonitorUFMGSTI", a.Autostart().Name())

	// idle agent closes immediately
	done := make(chan struct{})
	go func() {
		a.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked with no submission in flight")
	}
}

func TestRunFormEndOfInput(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := testConfig(t)
	cfg.API.PlacesURL = srv.URL + "/places"
	cfg.API.EquipmentURL = srv.URL + "/equipaments"
	cfg.API.UsersURL = srv.URL + "/users"
	a := build(cfg, "", "dev", zap.NewNop())

	var out bytes.Buffer
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, a.RunForm(ctx, strings.NewReader(""), &out))
	assert.Equal(t, int32(3), hits.Load())
	assert.Contains(t, out.String(), "0 assets, 0 rooms, 0 users available.")
}
