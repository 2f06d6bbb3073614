package probe

import (
	"context"
	"os"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

var (
	scsiDevice   = regexp.MustCompile(`^([svh]d[a-z]+)[0-9]*$`)
	nvmeDevice   = regexp.MustCompile(`^(nvme[0-9]+n[0-9]+)p[0-9]+$`)
	mmcDevice    = regexp.MustCompile(`^(mmcblk[0-9]+)p[0-9]+$`)
	vendorPrefix = regexp.MustCompile(`^\[.*?\]\s*`)
	revSuffix    = regexp.MustCompile(`\s*\(rev .*\)\s*$`)
)

var displayClasses = []string{"VGA compatible controller", "3D controller", "Display controller"}

type linuxProbe struct {
	runner   Runner
	logger   *zap.Logger
	readFile func(name string) ([]byte, error)
}

func newLinuxProbe(runner Runner, logger *zap.Logger) *linuxProbe {
	return &linuxProbe{runner: runner, logger: logger, readFile: os.ReadFile}
}

func (p *linuxProbe) Name() string { return "linux" }

// GPU prefers the OpenGL renderer reported by glxinfo and falls back to the
// display controllers listed by lspci
func (p *linuxProbe) GPU(ctx context.Context) string {
	out, err := p.runner.Run(ctx, "glxinfo")
	if err != nil {
		p.logger.Debug("glxinfo unavailable", zap.Error(err))
	} else if renderer := parseGLXRenderer(string(out)); renderer != "" {
		return renderer
	}

	out, err = p.runner.Run(ctx, "lspci")
	if err != nil {
		p.logger.Debug("lspci unavailable", zap.Error(err))
		return NotAvailable
	}
	return parseLSPCI(string(out))
}

// DiskType resolves the device mounted on / and reads the kernel's
// rotational flag for its base block device
func (p *linuxProbe) DiskType(ctx context.Context) string {
	out, err := p.runner.Run(ctx, "df", "-P", "/")
	if err != nil {
		p.logger.Debug("df failed", zap.Error(err))
		return Unknown
	}

	device := parseDFDevice(string(out))
	if !strings.HasPrefix(device, "/dev/") {
		p.logger.Debug("Root filesystem is not backed by a block device", zap.String("device", device))
		return Unknown
	}

	base := baseBlockDevice(device[strings.LastIndex(device, "/")+1:])
	if strings.HasPrefix(base, "nvme") {
		return DiskNVMe
	}

	data, err := p.readFile("/sys/block/" + base + "/queue/rotational")
	if err != nil {
		p.logger.Debug("Rotational flag unavailable", zap.String("device", base), zap.Error(err))
		return Unknown
	}

	switch strings.TrimSpace(string(data)) {
	case "0":
		return DiskSSD
	case "1":
		return DiskHDD
	default:
		return Unknown
	}
}

func parseGLXRenderer(out string) string {
	for _, line := range strings.Split(out, "\n") {
		if !strings.Contains(line, "OpenGL renderer string") {
			continue
		}
		if _, value, ok := strings.Cut(line, ":"); ok {
			return strings.TrimSpace(value)
		}
	}
	return ""
}

// parseLSPCI collects display controllers, e.g.
// "00:02.0 VGA compatible controller: Intel Corporation UHD Graphics 620 (rev 07)"
func parseLSPCI(out string) string {
	var gpus []string
	for _, line := range strings.Split(out, "\n") {
		if !isDisplayController(line) {
			continue
		}

		desc := strings.TrimSpace(line)
		if parts := strings.SplitN(line, ":", 3); len(parts) == 3 {
			desc = strings.TrimSpace(parts[2])
		}
		desc = vendorPrefix.ReplaceAllString(desc, "")
		desc = revSuffix.ReplaceAllString(desc, "")
		gpus = append(gpus, strings.TrimSpace(desc))
	}
	return joinDistinct(gpus)
}

func isDisplayController(line string) bool {
	for _, class := range displayClasses {
		if strings.Contains(line, class) {
			return true
		}
	}
	return false
}

// parseDFDevice returns the filesystem column of the first data row
func parseDFDevice(out string) string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) < 2 {
		return ""
	}
	fields := strings.Fields(lines[1])
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// baseBlockDevice strips the partition suffix from a kernel device name:
// sda2 -> sda, nvme0n1p3 -> nvme0n1, mmcblk0p1 -> mmcblk0
func baseBlockDevice(name string) string {
	if m := scsiDevice.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if m := nvmeDevice.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if m := mmcDevice.FindStringSubmatch(name); m != nil {
		return m[1]
	}
	if strings.Contains(name, "nvme") && strings.Contains(name, "p") {
		return name[:strings.Index(name, "p")]
	}
	return name
}
