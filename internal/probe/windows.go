package probe

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/text/encoding/charmap"
)

const mediaTypeCommand = "(Get-PhysicalDisk (Get-Partition -DriveLetter C).DiskNumber).MediaType"

type windowsProbe struct {
	runner Runner
	logger *zap.Logger
}

func newWindowsProbe(runner Runner, logger *zap.Logger) *windowsProbe {
	return &windowsProbe{runner: runner, logger: logger}
}

func (p *windowsProbe) Name() string { return "windows" }

// GPU queries Win32_VideoController through wmic
func (p *windowsProbe) GPU(ctx context.Context) string {
	out, err := p.runner.Run(ctx, "wmic", "path", "Win32_VideoController", "get", "Name")
	if err != nil {
		p.logger.Debug("wmic GPU query failed", zap.Error(err))
		return NotAvailable
	}
	return parseWMICNames(decodeOEM(out))
}

// DiskType asks Storage Management for the media type of the disk holding C:
func (p *windowsProbe) DiskType(ctx context.Context) string {
	out, err := p.runner.Run(ctx, "powershell", "-NoProfile", "-Command", mediaTypeCommand)
	if err != nil {
		p.logger.Debug("PowerShell media type query failed", zap.Error(err))
		return Unknown
	}
	return classifyMediaType(string(out))
}

// decodeOEM converts console output from code page 850; wmic writes in the
// OEM code page rather than UTF-8
func decodeOEM(out []byte) string {
	decoded, err := charmap.CodePage850.NewDecoder().Bytes(out)
	if err != nil {
		return string(out)
	}
	return string(decoded)
}

// parseWMICNames extracts adapter names from a single-column wmic table
func parseWMICNames(out string) string {
	var names []string
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.EqualFold(line, "name") {
			continue
		}
		names = append(names, line)
	}
	return joinDistinct(names)
}

// classifyMediaType maps MSFT_PhysicalDisk.MediaType codes and names
func classifyMediaType(raw string) string {
	value := strings.ToUpper(strings.TrimSpace(raw))
	switch value {
	case "3", "HDD":
		return DiskHDD
	case "4", "SSD":
		return DiskSSD
	case "5", "SCM":
		return DiskSCM
	case "0", "UNSPECIFIED":
		return Unknown + " (Unspecified)"
	case "":
		return Unknown
	default:
		return Unknown + " (" + value + ")"
	}
}

// joinDistinct joins values with ", " keeping first occurrences in order
func joinDistinct(values []string) string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	if len(out) == 0 {
		return NotAvailable
	}
	return strings.Join(out, ", ")
}
