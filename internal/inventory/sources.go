package inventory

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
	psnet "github.com/shirou/gopsutil/v3/net"
)

// SystemSources reads facts from the local machine using gopsutil
type SystemSources struct{}

// NewSystemSources returns the live implementation of Sources
func NewSystemSources() *SystemSources {
	return &SystemSources{}
}

// Host returns the OS identifier and release
func (SystemSources) Host(ctx context.Context) (HostFacts, error) {
	info, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostFacts{}, err
	}

	facts := HostFacts{OS: info.OS, Release: info.KernelVersion}
	if info.OS == "windows" {
		// Report the product generation ("10") rather than the full build
		facts.Release, _, _ = strings.Cut(info.PlatformVersion, ".")
	}
	return facts, nil
}

// Hostname returns the machine's host name
func (SystemSources) Hostname() (string, error) {
	return os.Hostname()
}

// CPUModel returns the processor brand string
func (SystemSources) CPUModel(ctx context.Context) (string, error) {
	infos, err := cpu.InfoWithContext(ctx)
	if err != nil {
		return "", err
	}
	for _, info := range infos {
		if model := strings.TrimSpace(info.ModelName); model != "" {
			return model, nil
		}
	}
	return "", fmt.Errorf("no CPU model reported")
}

// CPUCount returns the physical core count, or the logical thread count
func (SystemSources) CPUCount(ctx context.Context, logical bool) (int, error) {
	return cpu.CountsWithContext(ctx, logical)
}

// TotalMemory returns installed physical memory in bytes
func (SystemSources) TotalMemory(ctx context.Context) (uint64, error) {
	vmem, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return 0, err
	}
	return vmem.Total, nil
}

// RootDiskTotal returns the capacity of the root (or system drive) volume
func (SystemSources) RootDiskTotal(ctx context.Context) (uint64, error) {
	usage, err := disk.UsageWithContext(ctx, rootPath())
	if err != nil {
		return 0, err
	}
	return usage.Total, nil
}

// LookupIPv4 resolves the host name and returns its first IPv4 address
func (SystemSources) LookupIPv4(ctx context.Context, hostname string) (string, error) {
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, hostname)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if v4 := addr.IP.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", fmt.Errorf("no IPv4 address for %s", hostname)
}

// NodeID returns the hardware address uuid uses for time-based UUIDs. When no
// interface has one, uuid falls back to random bytes, which are rejected here.
func (SystemSources) NodeID() (net.HardwareAddr, bool) {
	id := uuid.NodeID()
	if uuid.NodeInterface() == "random" || len(id) == 0 {
		return nil, false
	}
	return net.HardwareAddr(id), true
}

// InterfaceMACs lists the link-layer addresses of all interfaces
func (SystemSources) InterfaceMACs(ctx context.Context) ([]string, error) {
	ifaces, err := psnet.InterfacesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	var macs []string
	for _, iface := range ifaces {
		if iface.HardwareAddr != "" {
			macs = append(macs, iface.HardwareAddr)
		}
	}
	return macs, nil
}

func rootPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + `\`
	}
	return "/"
}
