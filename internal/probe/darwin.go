package probe

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

type darwinProbe struct {
	runner Runner
	logger *zap.Logger
}

func newDarwinProbe(runner Runner, logger *zap.Logger) *darwinProbe {
	return &darwinProbe{runner: runner, logger: logger}
}

func (p *darwinProbe) Name() string { return "darwin" }

// GPU lists the chipset models reported by system_profiler
func (p *darwinProbe) GPU(ctx context.Context) string {
	out, err := p.runner.Run(ctx, "system_profiler", "SPDisplaysDataType")
	if err != nil {
		p.logger.Debug("system_profiler failed", zap.Error(err))
		return NotAvailable
	}

	var models []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if model, ok := strings.CutPrefix(line, "Chipset Model:"); ok {
			models = append(models, strings.TrimSpace(model))
		}
	}
	return joinDistinct(models)
}

// DiskType reads the solid-state flags printed by diskutil for the root volume
func (p *darwinProbe) DiskType(ctx context.Context) string {
	out, err := p.runner.Run(ctx, "diskutil", "info", "/")
	if err != nil {
		p.logger.Debug("diskutil failed", zap.Error(err))
		return Unknown
	}
	return parseDiskutil(string(out))
}

func parseDiskutil(out string) string {
	for _, line := range strings.Split(out, "\n") {
		key, value, ok := strings.Cut(strings.TrimSpace(line), ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.ToUpper(strings.TrimSpace(value))

		switch key {
		case "Solid State":
			if value == "YES" {
				return DiskSSD
			}
			if value == "NO" {
				return DiskHDD
			}
		case "Medium Type":
			if strings.Contains(value, "SOLID STATE") {
				return DiskSSD
			}
			if strings.Contains(value, "ROTATIONAL") {
				return DiskHDD
			}
		}
	}
	return diskMacMiss
}
