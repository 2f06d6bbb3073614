// Package inventory builds the hardware inventory record submitted to the
// inventory API.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/stone-age-io/hwinventory/internal/probe"
	"github.com/stone-age-io/hwinventory/internal/utils"
	"go.uber.org/zap"
)

// HostFacts describes the running operating system
type HostFacts struct {
	OS      string // runtime.GOOS style identifier, e.g. "windows"
	Release string // kernel or platform release
}

// Sources supplies every OS fact the collector needs apart from the probe
type Sources interface {
	Host(ctx context.Context) (HostFacts, error)
	Hostname() (string, error)
	CPUModel(ctx context.Context) (string, error)
	CPUCount(ctx context.Context, logical bool) (int, error)
	TotalMemory(ctx context.Context) (uint64, error)
	RootDiskTotal(ctx context.Context) (uint64, error)
	LookupIPv4(ctx context.Context, host string) (string, error)
	// NodeID returns the machine's primary hardware address; ok is false
	// when no real interface backs it
	NodeID() (addr net.HardwareAddr, ok bool)
	InterfaceMACs(ctx context.Context) ([]string, error)
}

var errNoMAC = errors.New("no link-layer address found")

// Collector assembles inventory records
type Collector struct {
	sources Sources
	probe   probe.Probe
	logger  *zap.Logger
	arch    string
}

// NewCollector creates a collector
func NewCollector(sources Sources, p probe.Probe, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		sources: sources,
		probe:   p,
		logger:  logger,
		arch:    strconv.Itoa(strconv.IntSize) + "bit",
	}
}

// Collect gathers a complete record. Each field is collected independently;
// failures are logged and replaced with a sentinel, never returned.
func (c *Collector) Collect(ctx context.Context) Record {
	start := time.Now()
	var errs *multierror.Error

	keep := func(err error) {
		if err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	system := capture("system", func() (string, error) { return c.system(ctx) })
	keep(system.Err)

	hostname := capture("hostname", c.sources.Hostname)
	keep(hostname.Err)

	ip := capture("ip", func() (string, error) {
		if hostname.Err != nil {
			return "", fmt.Errorf("hostname unavailable")
		}
		return c.sources.LookupIPv4(ctx, hostname.Value)
	})
	keep(ip.Err)

	mac := capture("mac", func() (string, error) { return c.mac(ctx) })
	keep(mac.Err)

	cpuModel := capture("processor", func() (string, error) { return c.sources.CPUModel(ctx) })
	keep(cpuModel.Err)

	cores := capture("cores", func() (int, error) { return positive(c.sources.CPUCount(ctx, false)) })
	keep(cores.Err)

	threads := capture("threads", func() (int, error) { return positive(c.sources.CPUCount(ctx, true)) })
	keep(threads.Err)

	ram := capture("ram", func() (uint64, error) { return c.sources.TotalMemory(ctx) })
	keep(ram.Err)

	disk := capture("disk_total", func() (uint64, error) { return c.sources.RootDiskTotal(ctx) })
	keep(disk.Err)

	gpu := capture("gpu", func() (string, error) { return c.probe.GPU(ctx), nil })
	keep(gpu.Err)

	diskType := capture("disk_type", func() (string, error) { return c.probe.DiskType(ctx), nil })
	keep(diskType.Err)

	rec := Record{
		System:       system.Or(NotAvailable),
		Architecture: c.arch,
		Hostname:     hostname.Or(NotAvailable),
		IP:           ip.Or(NotAvailable),
		MAC:          mac.Or(NotAvailable),
		Processor:    nonEmpty(cpuModel.Or(NotAvailable)),
		GPU:          nonEmpty(gpu.Or(probe.NotAvailable)),
		RAM:          formatBytes(ram),
		DiskTotal:    formatBytes(disk),
		DiskType:     nonEmptyOr(diskType.Or(probe.Unknown), probe.Unknown),
	}
	if cores.Err == nil {
		rec.Cores = CountOf(cores.Value)
	}
	if threads.Err == nil {
		rec.Threads = CountOf(threads.Value)
	}

	if err := errs.ErrorOrNil(); err != nil {
		c.logger.Warn("Some inventory fields are unavailable",
			zap.Int("failed_fields", len(errs.Errors)),
			zap.Error(err))
	}
	c.logger.Debug("Inventory collected",
		zap.String("hostname", rec.Hostname),
		zap.Duration("duration", time.Since(start)))

	return rec
}

func (c *Collector) system(ctx context.Context) (string, error) {
	facts, err := c.sources.Host(ctx)
	if err != nil {
		return "", err
	}
	name := osDisplayName(facts.OS)
	if name == "" {
		return "", fmt.Errorf("unknown operating system")
	}
	return strings.TrimSpace(name + " " + facts.Release), nil
}

// mac prefers the node id and falls back to scanning the interfaces when the
// node id is null, broadcast or randomly generated
func (c *Collector) mac(ctx context.Context) (string, error) {
	if addr, ok := c.sources.NodeID(); ok && len(addr) == 6 && !isNullMAC(addr) {
		return strings.ToUpper(addr.String()), nil
	}

	macs, err := c.sources.InterfaceMACs(ctx)
	if err != nil {
		return "", err
	}
	for _, m := range macs {
		if len(m) != 17 {
			continue
		}
		hw, err := net.ParseMAC(m)
		if err != nil || isNullMAC(hw) {
			continue
		}
		return strings.ToUpper(m), nil
	}
	return "", errNoMAC
}

func isNullMAC(addr net.HardwareAddr) bool {
	zero, broadcast := true, true
	for _, b := range addr {
		if b != 0x00 {
			zero = false
		}
		if b != 0xff {
			broadcast = false
		}
	}
	return zero || broadcast
}

// osDisplayName follows the names operating systems report for themselves
func osDisplayName(goos string) string {
	switch goos {
	case "windows":
		return "Windows"
	case "linux":
		return "Linux"
	case "darwin":
		return "Darwin"
	case "freebsd":
		return "FreeBSD"
	case "":
		return ""
	default:
		return strings.ToUpper(goos[:1]) + goos[1:]
	}
}

func positive(n int, err error) (int, error) {
	if err != nil {
		return 0, err
	}
	if n <= 0 {
		return 0, fmt.Errorf("count not reported")
	}
	return n, nil
}

func formatBytes(r Result[uint64]) string {
	if r.Err != nil || r.Value == 0 {
		return NotAvailable
	}
	return utils.FormatGB(r.Value)
}

func nonEmpty(s string) string {
	return nonEmptyOr(s, NotAvailable)
}

func nonEmptyOr(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
