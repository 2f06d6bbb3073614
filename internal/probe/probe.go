// Package probe shells out to each operating system's native hardware-query
// tools to describe the GPU and the media type of the system disk.
//
// A Probe never fails: when a tool is missing, exits non-zero or prints
// something unexpected, the matching sentinel is returned instead.
package probe

import (
	"context"

	"go.uber.org/zap"
)

// Sentinel values reported when a signal cannot be determined
const (
	NotAvailable = "N/A"
	Unknown      = "Desconhecido"
)

// Disk media classifications
const (
	DiskSSD     = "SSD"
	DiskHDD     = "HDD"
	DiskNVMe    = "SSD (NVMe)"
	DiskSCM     = "SSD (SCM)"
	diskMacMiss = Unknown + " (macOS)"
)

// Probe describes the hardware signals that have no portable API
type Probe interface {
	// GPU returns a comma-separated description of the graphics adapters,
	// or NotAvailable
	GPU(ctx context.Context) string

	// DiskType classifies the media backing the root/system volume, or
	// returns a value starting with Unknown
	DiskType(ctx context.Context) string

	// Name returns the variant name for logging
	Name() string
}

type constructor func(runner Runner, logger *zap.Logger) Probe

// variants maps GOOS values to their probe implementation
var variants = map[string]constructor{
	"windows": func(r Runner, l *zap.Logger) Probe { return newWindowsProbe(r, l) },
	"linux":   func(r Runner, l *zap.Logger) Probe { return newLinuxProbe(r, l) },
	"darwin":  func(r Runner, l *zap.Logger) Probe { return newDarwinProbe(r, l) },
}

// New returns the probe for the given operating system (a runtime.GOOS value).
// Unsupported systems get a probe that only reports sentinels.
func New(goos string, runner Runner, logger *zap.Logger) Probe {
	if logger == nil {
		logger = zap.NewNop()
	}

	build, ok := variants[goos]
	if !ok {
		logger.Info("No hardware probe for platform, reporting sentinels", zap.String("os", goos))
		return unsupportedProbe{}
	}

	p := build(runner, logger)
	logger.Debug("Selected hardware probe", zap.String("probe", p.Name()))
	return p
}

type unsupportedProbe struct{}

func (unsupportedProbe) GPU(context.Context) string      { return NotAvailable }
func (unsupportedProbe) DiskType(context.Context) string { return Unknown }
func (unsupportedProbe) Name() string                    { return "unsupported" }
