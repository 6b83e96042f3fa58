package utils

import (
	"errors"

	"github.com/shirou/gopsutil/cpu"
)

// CPUUsage samples the host-wide CPU usage in percent since the last call.
func CPUUsage() (float64, error) {
	usage, err := cpu.Percent(0, false)
	if err != nil {
		return 0, err
	}
	if len(usage) == 0 {
		return 0, errors.New("no cpu usage sample")
	}
	return usage[0], nil
}

// CheckCPUUsage reports whether the host is below maxCPUUsage percent. A failed
// sample does not block work.
func CheckCPUUsage(maxCPUUsage float64) (bool, float64) {
	usage, err := CPUUsage()
	if err != nil {
		return true, 0
	}
	return usage <= maxCPUUsage, usage
}
