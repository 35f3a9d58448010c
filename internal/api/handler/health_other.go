//go:build !unix

package handler

// getCPUUsage is only implemented on unix systems.
func getCPUUsage() float64 {
	return 0
}
