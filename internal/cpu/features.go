package cpu

import "golang.org/x/sys/cpu"

// featureSupported answers the "validation of required features" contract
// from §4.A using the host's actual CPUID-derived feature flags rather than
// a hand-rolled CPUID decode.
func featureSupported(name string) bool {
	switch name {
	case "SSE2":
		return cpu.X86.HasSSE2
	case "AVX":
		return cpu.X86.HasAVX
	case "AVX2":
		return cpu.X86.HasAVX2
	default:
		return false
	}
}
