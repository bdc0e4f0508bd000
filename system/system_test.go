package system

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProbe(t *testing.T) {
	info := Probe()
	if info.CPUs < 1 {
		t.Fatalf("Expected at least one cpu, got %v", info)
	}
	assert.NotEmpty(t, info.OS)
}

func TestParseCPUInfo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cpuinfo")
	os.WriteFile(path, []byte("processor\t: 0\nmodel name\t: Test\ncpu MHz\t\t: 2394.454\n"), 0644)
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer f.Close()
	assert.Equal(t, 2.39, parseCPUInfo(f))
}

func TestFirstIPv4(t *testing.T) {
	addrs := []net.Addr{
		&net.IPNet{IP: net.ParseIP("127.0.0.1")},
		&net.IPNet{IP: net.ParseIP("fe80::1")},
		&net.IPAddr{IP: net.ParseIP("192.168.1.20")},
	}
	assert.Equal(t, net.ParseIP("192.168.1.20").To4(), firstIPv4(addrs))
	assert.Nil(t, firstIPv4(addrs[:2]))
}
