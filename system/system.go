// Package system describes the local machine: the capacity and address a
// node advertises to the rest of the grid.
package system

import (
	"bufio"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Info is a snapshot of local capacity.
type Info struct {
	OS    string
	CPUs  int
	GHz   float64
	MemGB float64
	// Load is the one minute load average.
	Load float64
}

// Probe inspects the local machine. Values it can't determine are left zero.
func Probe() Info {
	info := Info{
		OS:   runtime.GOOS,
		CPUs: runtime.NumCPU(),
		GHz:  cpuGHz(),
	}
	info.MemGB, info.Load = memAndLoad()
	return info
}

// Load returns the current one minute load average.
func Load() float64 {
	_, load := memAndLoad()
	return load
}

var (
	cpuMaxFreqPath = "/sys/devices/system/cpu/cpu0/cpufreq/cpuinfo_max_freq"
	cpuInfoPath    = "/proc/cpuinfo"
)

func cpuGHz() float64 {
	if data, err := os.ReadFile(cpuMaxFreqPath); err == nil {
		if khz, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64); err == nil && khz > 0 {
			return round(khz / 1e6)
		}
	}
	f, err := os.Open(cpuInfoPath)
	if err != nil {
		return 0
	}
	defer f.Close()
	return parseCPUInfo(f)
}

// parseCPUInfo returns the first "cpu MHz" entry in GHz.
func parseCPUInfo(f *os.File) float64 {
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), ":")
		if !ok || strings.TrimSpace(key) != "cpu MHz" {
			continue
		}
		if mhz, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return round(mhz / 1e3)
		}
	}
	return 0
}

func round(f float64) float64 {
	return float64(int64(f*100+0.5)) / 100
}

// LocalAddr returns the first non-loopback IPv4 address on an interface that is up.
func LocalAddr() (net.IP, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		if ip := firstIPv4(addrs); ip != nil {
			return ip, nil
		}
	}
	return nil, errors.New("no non-loopback IPv4 address found")
}

func firstIPv4(addrs []net.Addr) net.IP {
	for _, addr := range addrs {
		var ip net.IP
		switch v := addr.(type) {
		case *net.IPNet:
			ip = v.IP
		case *net.IPAddr:
			ip = v.IP
		}
		if v4 := ip.To4(); v4 != nil && !v4.IsLoopback() {
			return v4
		}
	}
	return nil
}
