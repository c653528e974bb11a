//go:build !linux

package helpers

// SystemMemoryMB is unknown off Linux; callers fall back to the default.
func SystemMemoryMB() int {
	return 0
}
