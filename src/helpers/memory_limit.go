package helpers

const (
	fallbackMemoryLimitMB = 256
	memoryLimitShare      = 0.5
)

// RecommendedMemoryLimitMB returns the soft heap limit for the process: half
// of physical memory, never below 256MB unless the host has less.
func RecommendedMemoryLimitMB() int {
	return memoryLimitFor(SystemMemoryMB())
}

// -----------------------------------------------------------------------------

func memoryLimitFor(totalMB int) int {
	if totalMB <= 0 {
		return fallbackMemoryLimitMB
	}
	limit := int(float64(totalMB) * memoryLimitShare)
	if limit >= fallbackMemoryLimitMB {
		return limit
	}
	if totalMB < fallbackMemoryLimitMB {
		return totalMB
	}
	return fallbackMemoryLimitMB
}
