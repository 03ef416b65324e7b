package isa

import (
	"fmt"
	"strings"
)

// Descriptor is an ISA's frame-rendering and register contract (§4.A).
// Simulated backends (package isa/simulated) satisfy the same interface but
// point CreateCommand at an external tool instead of the compiled binary.
type Descriptor interface {
	// Name is the identifier this ISA is selected by, e.g. "x86_64".
	Name() string

	RegisterFile() *RegisterFile

	// ImmediatePrefix is prepended to an immediate's textual form (empty on
	// x86_64, "#" on AArch64).
	ImmediatePrefix() string

	// AsImm renders an integer as this ISA's immediate operand syntax.
	AsImm(v int) string

	// InitCodeForRegister returns the asm fragment that seeds one clobbered
	// register with a known, non-zero value before timing starts.
	InitCodeForRegister(repr string) string

	// ProgramFrame returns the C template with {ASM_INIT}, {ASM_INSTRUCTIONS}
	// and {WARMUP_CODE} already substituted, and the per-run holes
	// ({num_iterations}, {loop_body}, ...) still open.
	ProgramFrame() string

	// IsSimulated reports whether CreateCommand invokes an external tool
	// rather than running compiled native code.
	IsSimulated() bool

	// AdditionalCCFlags are extra compiler flags this ISA's frame needs
	// (e.g. simulated backends compiling without linking).
	AdditionalCCFlags() []string

	// CreateCommand builds the argv used to run (or simulate) the compiled
	// benchmark binary, pinned to core when pinning applies.
	CreateCommand(bin string, core int) []string

	// ExtractResult parses the tool's stdout into the §6 result dict.
	// numTestcaseInstances is the loop-body repeat count the experiment
	// was rendered with; simulated backends that report a whole block's
	// cycles rather than a single iteration's divide by it before
	// returning "cycles".
	ExtractResult(stdout string, numTestcaseInstances int) (map[string]any, error)
}

// baseFrame is the C template shared by every native backend, with the four
// ISA-specific holes ({INCLUDES}, {ASM_INIT}, {ASM_INSTRUCTIONS},
// {WARMUP_CODE}) still open; per-ISA constructors fill those in once, ahead
// of the per-run holes the driver fills in for every experiment.
const baseFrame = `#include <stdio.h>
#include <stdlib.h>
#include <dirent.h>
#include <dlfcn.h>
#include <sys/time.h>
#include <sys/stat.h>
#include <sys/types.h>
#include <string.h>

{INCLUDES}

int main (void) {
    struct timeval start, end;
    double benchtime;
    long long mem_size = 4096 + 32768;
    char * memt = (char*) aligned_alloc(4096, mem_size);
    for (int i = 0; i < mem_size; ++i) {
        memt[i] = 42;
    }
    long long N = {num_iterations};
    double freq = {frequency};
    long long num_instances_per_iteration = {num_instances_per_iteration};

{ASM_INIT}

    { // Warmup Code
    register void * mem asm("{membasereg}") = memt + 4096;
    register long long div asm("{div_reg}") = 44;
{WARMUP_CODE}
    }

    FILE* f = fopen("{freq_path}", "r");
    long long meas_freq;
    fscanf(f, "%lld", &meas_freq);
    fclose(f);

    freq = (double)meas_freq;

    gettimeofday(&start, NULL);

    register void * mem asm("{membasereg}") = memt + 4096;
    register long long div asm("{div_reg}") = 44;

{ASM_INSTRUCTIONS}

    gettimeofday(&end, NULL);

    fprintf (stdout, "{\n");
    benchtime = ((double)end.tv_sec - (double)start.tv_sec) * 1000000 + ((double)end.tv_usec - (double)start.tv_usec);
    fprintf(stdout, "  \"benchtime\": %.2f,\n", benchtime);

    double instruction_throughput = (benchtime * freq) / ((double)N * num_instances_per_iteration * 1000.0);
    fprintf(stdout, "  \"cycles\": %.10f,\n", instruction_throughput);
    fprintf(stdout, "  \"meas_freq\": %lld\n", meas_freq);
    fprintf(stdout, "}\n");
}
`

// fillFrame substitutes hole exactly once, the way the Python program_frame
// constructors do with str.replace(..., 1) — a repeated hole name in the
// template is a bug that must not silently fan out.
func fillFrame(frame, hole, value string) string {
	return strings.Replace(frame, hole, value, 1)
}

// renderFrame produces a native backend's program frame from its includes,
// init asm and instruction-loop asm template.
func renderFrame(includes, asmInit, asmLoopTemplate string) (frame, warmup string) {
	frame = fillFrame(baseFrame, "{INCLUDES}", includes)
	frame = fillFrame(frame, "{ASM_INIT}", asmInit)
	frame = fillFrame(frame, "{ASM_INSTRUCTIONS}", asmLoopTemplate)
	warmupTemplate := strings.ReplaceAll(asmLoopTemplate, "{num_iterations}", "1000")
	warmupTemplate = strings.ReplaceAll(warmupTemplate, "TestbenchLabel", "WarmupLabel")
	frame = fillFrame(frame, "{WARMUP_CODE}", warmupTemplate)
	return frame, warmupTemplate
}

// byName is the registry consulted by Lookup; native and simulated backends
// register themselves in their package init().
var byName = map[string]func() Descriptor{}

// Register adds a backend constructor to the registry under name. Backend
// packages call this from init(); a duplicate name is a build-time wiring
// bug and panics immediately.
func Register(name string, ctor func() Descriptor) {
	if _, exists := byName[name]; exists {
		panic("isa: backend already registered: " + name)
	}
	byName[name] = ctor
}

// Lookup returns a fresh Descriptor for the named ISA/backend.
func Lookup(name string) (Descriptor, error) {
	ctor, ok := byName[name]
	if !ok {
		return nil, fmt.Errorf("isa: unsupported ISA or backend %q", name)
	}
	return ctor(), nil
}

// Names returns the registered backend names, for CLI help text.
func Names() []string {
	res := make([]string, 0, len(byName))
	for n := range byName {
		res = append(res, n)
	}
	return res
}
