//go:build !darwin

package sysinfo

// detectSysRAMGB is a no-op on non-Darwin platforms.
// Linux reads /proc/meminfo instead.
func detectSysRAMGB() float64 {
	return 0
}
