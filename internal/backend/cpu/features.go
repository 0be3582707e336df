package cpu

import (
	"runtime"
	"strings"

	syscpu "golang.org/x/sys/cpu"
)

// Features lists the instruction set extensions relevant to the kernels.
type Features struct {
	Arch   string
	SSE4   bool
	AVX    bool
	AVX2   bool
	FMA    bool
	AVX512 bool
	NEON   bool
}

// DetectFeatures queries the running CPU.
func DetectFeatures() Features {
	return Features{
		Arch:   runtime.GOARCH,
		SSE4:   syscpu.X86.HasSSE41 || syscpu.X86.HasSSE42,
		AVX:    syscpu.X86.HasAVX,
		AVX2:   syscpu.X86.HasAVX2,
		FMA:    syscpu.X86.HasFMA,
		AVX512: syscpu.X86.HasAVX512F,
		NEON:   syscpu.ARM64.HasASIMD,
	}
}

// String returns a compact description such as "amd64 [SSE4 AVX AVX2 FMA]".
func (f Features) String() string {
	var names []string
	for _, feat := range []struct {
		ok   bool
		name string
	}{
		{f.SSE4, "SSE4"},
		{f.AVX, "AVX"},
		{f.AVX2, "AVX2"},
		{f.FMA, "FMA"},
		{f.AVX512, "AVX512"},
		{f.NEON, "NEON"},
	} {
		if feat.ok {
			names = append(names, feat.name)
		}
	}
	if len(names) == 0 {
		return f.Arch + " [scalar]"
	}
	return f.Arch + " [" + strings.Join(names, " ") + "]"
}
