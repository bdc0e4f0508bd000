package system

import (
	"golang.org/x/sys/unix"
)

func memAndLoad() (memGB float64, load float64) {
	var si unix.Sysinfo_t
	if err := unix.Sysinfo(&si); err != nil {
		return 0, 0
	}
	memGB = round(float64(uint64(si.Totalram)*uint64(si.Unit)) / (1 << 30))
	// Loads are fixed point with 16 fractional bits.
	load = round(float64(si.Loads[0]) / (1 << 16))
	return memGB, load
}
