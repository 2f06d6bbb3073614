package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errSource = errors.New("source unavailable")

// fakeSources fails every source whose name is in fail
type fakeSources struct {
	fail   map[string]bool
	panics map[string]bool
	node   net.HardwareAddr
	nodeOK bool
	macs   []string
}

func healthySources() *fakeSources {
	return &fakeSources{
		fail:   map[string]bool{},
		panics: map[string]bool{},
		node:   net.HardwareAddr{0x3c, 0x52, 0x82, 0x0a, 0xbc, 0xde},
		nodeOK: true,
		macs:   []string{"3c:52:82:0a:bc:de"},
	}
}

func (f *fakeSources) check(name string) error {
	if f.panics[name] {
		panic(name + " exploded")
	}
	if f.fail[name] {
		return errSource
	}
	return nil
}

func (f *fakeSources) Host(context.Context) (HostFacts, error) {
	return HostFacts{OS: "linux", Release: "6.1.0-18-amd64"}, f.check("host")
}

func (f *fakeSources) Hostname() (string, error) {
	return "lab-pc-07", f.check("hostname")
}

func (f *fakeSources) CPUModel(context.Context) (string, error) {
	return "Intel(R) Core(TM) i5-8250U CPU @ 1.60GHz", f.check("cpu")
}

func (f *fakeSources) CPUCount(_ context.Context, logical bool) (int, error) {
	if logical {
		return 8, f.check("threads")
	}
	return 4, f.check("cores")
}

func (f *fakeSources) TotalMemory(context.Context) (uint64, error) {
	return 16_685_944_832, f.check("ram")
}

func (f *fakeSources) RootDiskTotal(context.Context) (uint64, error) {
	return 250 << 30, f.check("disk")
}

func (f *fakeSources) LookupIPv4(_ context.Context, host string) (string, error) {
	return "10.0.0.42", f.check("ip")
}

func (f *fakeSources) NodeID() (net.HardwareAddr, bool) {
	if f.fail["node"] {
		return nil, false
	}
	return f.node, f.nodeOK
}

func (f *fakeSources) InterfaceMACs(context.Context) ([]string, error) {
	return f.macs, f.check("interfaces")
}

type fakeProbe struct {
	gpu, disk string
	panics    bool
}

func (p fakeProbe) GPU(context.Context) string {
	if p.panics {
		panic("probe exploded")
	}
	return p.gpu
}
func (p fakeProbe) DiskType(context.Context) string { return p.disk }
func (p fakeProbe) Name() string                    { return "fake" }

func TestCollectHealthy(t *testing.T) {
	c := NewCollector(healthySources(), fakeProbe{gpu: "Intel UHD Graphics 620", disk: "SSD"}, zaptest.NewLogger(t))

	rec := c.Collect(context.Background())

	assert.Equal(t, "Linux 6.1.0-18-amd64", rec.System)
	assert.Contains(t, []string{"32bit", "64bit"}, rec.Architecture)
	assert.Equal(t, "lab-pc-07", rec.Hostname)
	assert.Equal(t, "10.0.0.42", rec.IP)
	assert.Equal(t, "3C:52:82:0A:BC:DE", rec.MAC)
	assert.Equal(t, "Intel(R) Core(TM) i5-8250U CPU @ 1.60GHz", rec.Processor)
	assert.Equal(t, "Intel UHD Graphics 620", rec.GPU)
	assert.Equal(t, "4", rec.Cores.String())
	assert.Equal(t, "8", rec.Threads.String())
	assert.Equal(t, "15.54 GB", rec.RAM)
	assert.Equal(t, "250.00 GB", rec.DiskTotal)
	assert.Equal(t, "SSD", rec.DiskType)
}

// Every combination of failing sources still yields a fully populated record
func TestCollectFailureCombinations(t *testing.T) {
	names := []string{"host", "hostname", "cpu", "cores", "threads", "ram", "disk", "ip", "node", "interfaces"}

	for mask := 0; mask < 1<<len(names); mask++ {
		src := healthySources()
		for i, name := range names {
			if mask&(1<<i) != 0 {
				src.fail[name] = true
			}
		}

		rec := NewCollector(src, fakeProbe{gpu: "N/A", disk: "Desconhecido"}, nil).Collect(context.Background())

		for key, value := range rec.Fields() {
			if s, ok := value.(string); ok && s == "" {
				t.Fatalf("mask %b: field %s is empty", mask, key)
			}
		}
		if src.fail["cores"] {
			require.Equal(t, NotAvailable, rec.Cores.String())
		}
		if src.fail["ram"] {
			require.Equal(t, NotAvailable, rec.RAM)
		}
		if src.fail["hostname"] {
			require.Equal(t, NotAvailable, rec.IP, "ip depends on hostname")
		}
		if src.fail["node"] && src.fail["interfaces"] {
			require.Equal(t, NotAvailable, rec.MAC)
		}
	}
}

func TestCollectRecoversPanics(t *testing.T) {
	src := healthySources()
	src.panics["cpu"] = true
	src.panics["ram"] = true

	rec := NewCollector(src, fakeProbe{panics: true, disk: "HDD"}, zaptest.NewLogger(t)).Collect(context.Background())

	assert.Equal(t, NotAvailable, rec.Processor)
	assert.Equal(t, NotAvailable, rec.RAM)
	assert.Equal(t, NotAvailable, rec.GPU)
	assert.Equal(t, "HDD", rec.DiskType)
	assert.Equal(t, "lab-pc-07", rec.Hostname)
}

func TestCollectEmptyProbeValues(t *testing.T) {
	rec := NewCollector(healthySources(), fakeProbe{}, nil).Collect(context.Background())
	assert.Equal(t, NotAvailable, rec.GPU)
	assert.Equal(t, "Desconhecido", rec.DiskType)
}

func TestMACFallback(t *testing.T) {
	tests := []struct {
		name   string
		node   net.HardwareAddr
		nodeOK bool
		macs   []string
		want   string
	}{
		{
			name:   "node id used",
			node:   net.HardwareAddr{0x00, 0x1a, 0x2b, 0x3c, 0x4d, 0x5e},
			nodeOK: true,
			want:   "00:1A:2B:3C:4D:5E",
		},
		{
			name:   "null node id falls back",
			node:   net.HardwareAddr{0, 0, 0, 0, 0, 0},
			nodeOK: true,
			macs:   []string{"", "00:00:00:00:00:00", "aa:bb:cc:dd:ee:ff"},
			want:   "AA:BB:CC:DD:EE:FF",
		},
		{
			name:   "broadcast node id falls back",
			node:   net.HardwareAddr{0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
			nodeOK: true,
			macs:   []string{"02:42:ac:11:00:02"},
			want:   "02:42:AC:11:00:02",
		},
		{
			name:   "random node id falls back",
			nodeOK: false,
			macs:   []string{"00:00:00:00:00:00:00:e0", "52:54:00:12:34:56"},
			want:   "52:54:00:12:34:56",
		},
		{
			name:   "nothing usable",
			nodeOK: false,
			macs:   []string{"00:00:00:00:00:00"},
			want:   NotAvailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := healthySources()
			src.node, src.nodeOK, src.macs = tt.node, tt.nodeOK, tt.macs

			rec := NewCollector(src, fakeProbe{}, nil).Collect(context.Background())
			assert.Equal(t, tt.want, rec.MAC)
		})
	}
}

func TestOSDisplayName(t *testing.T) {
	assert.Equal(t, "Windows", osDisplayName("windows"))
	assert.Equal(t, "Darwin", osDisplayName("darwin"))
	assert.Equal(t, "Openbsd", osDisplayName("openbsd"))
	assert.Equal(t, "", osDisplayName(""))
}

func TestRecordJSON(t *testing.T) {
	rec := Record{
		System:   "Windows 10",
		Cores:    CountOf(6),
		RAM:      "31.87 GB",
		DiskType: "SSD (NVMe)",
	}

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	s := string(data)
	assert.True(t, strings.Contains(s, `"nucleos":6`), s)
	assert.True(t, strings.Contains(s, `"threads":"N/A"`), s)
	assert.True(t, strings.Contains(s, `"tipo_disco_principal":"SSD (NVMe)"`), s)

	var back Record
	require.NoError(t, json.Unmarshal(data, &back))
	n, ok := back.Cores.Value()
	assert.True(t, ok)
	assert.Equal(t, 6, n)
	_, ok = back.Threads.Value()
	assert.False(t, ok)
}

func TestFieldsKeys(t *testing.T) {
	fields := Record{}.Fields()
	want := []string{"sistema", "arquitetura", "nome_pc", "ip", "mac", "processador", "gpu",
		"nucleos", "threads", "ram", "disco_total", "tipo_disco_principal"}
	assert.Len(t, fields, len(want))
	for _, key := range want {
		assert.Contains(t, fields, key)
	}
}
