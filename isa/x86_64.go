package isa

import (
	"encoding/json"
	"fmt"
	"strings"
)

func init() {
	Register("x86_64", func() Descriptor { return newX8664() })
}

const x8664InitVal = 42

const x8664AsmLoop = `    __asm__ __volatile__ (
        "   .intel_syntax noprefix\n"
{init_code}
        "   mov r15, {num_iterations}\n"
        "   mov rcx, 4\n"
        "   .p2align 4,,15\n"
        "TestbenchLabel:\n"
{loop_body}
        "   sub r15, 1\n"
        "   jnz TestbenchLabel\n"
        "   .att_syntax\n"
        : /* no output */
        : "r" (mem),
          "r" (div)
        : "r15", "rcx", "rax", "rdx" {used_regs}
    );`

// x8664 is the native x86_64 ISA descriptor (§4.A). Denormal-flush is set
// once in asm_init since SSE/AVX instructions otherwise pay a severe
// microcode penalty on denormal inputs, which would dominate any throughput
// measurement unrelated to the instruction under test.
type x8664 struct {
	regFile *RegisterFile
	frame   string
}

func newX8664() *x8664 {
	d := &x8664{regFile: X8664RegisterFile()}
	asmInit := `    _mm_setcsr( _mm_getcsr() | (1<<15) | (1<<6));`
	d.frame, _ = renderFrame("#include <xmmintrin.h>", asmInit, x8664AsmLoop)
	return d
}

func (d *x8664) Name() string              { return "x86_64" }
func (d *x8664) RegisterFile() *RegisterFile { return d.regFile }
func (d *x8664) ImmediatePrefix() string    { return "" }
func (d *x8664) AsImm(v int) string         { return fmt.Sprintf("%d", v) }
func (d *x8664) ProgramFrame() string       { return d.frame }
func (d *x8664) IsSimulated() bool          { return false }
func (d *x8664) AdditionalCCFlags() []string { return nil }

func (d *x8664) InitCodeForRegister(repr string) string {
	switch {
	case strings.HasPrefix(repr, "r"):
		return fmt.Sprintf("        \"   mov %s, %d\\n\"\n", repr, x8664InitVal)
	case strings.HasPrefix(repr, "ymm"):
		xmm := strings.Replace(repr, "y", "x", 1)
		return fmt.Sprintf(`
        "   mov r15d, %d\n"
        "   vcvtsi2ss %s, %s, r15d\n"
        "   vpermilps %s, %s, 0\n"
        "   vinsertf128 %s, %s, %s, 1\n"`, x8664InitVal, xmm, xmm, xmm, xmm, repr, repr, xmm)
	default:
		panic("isa: x86_64 has no init code for register " + repr)
	}
}

func (d *x8664) CreateCommand(bin string, core int) []string {
	return []string{"taskset", "-c", fmt.Sprintf("%d", core), bin}
}

func (d *x8664) ExtractResult(stdout string, numTestcaseInstances int) (map[string]any, error) {
	var raw map[string]any
	if err := json.Unmarshal([]byte(stdout), &raw); err != nil {
		return nil, fmt.Errorf("isa: x86_64 could not parse benchmark output: %w", err)
	}
	return raw, nil
}

func X8664RegisterFile() *RegisterFile {
	g := func(w64, w32, repr string) RegisterGroup {
		return RegisterGroup{Widths: map[int]string{64: w64, 32: w32}, Repr: repr}
	}
	vec := func(y, x, repr string) RegisterGroup {
		return RegisterGroup{Widths: map[int]string{256: y, 128: x}, Repr: repr}
	}
	return &RegisterFile{Categories: map[RegisterCategory][]RegisterGroup{
		CategoryGeneral: {
			g("rbx", "ebx", "rbx"),
			g("rsi", "esi", "rsi"),
			g("rdi", "edi", "rdi"),
			g("r8", "r8d", "r8"),
			g("r9", "r9d", "r9"),
			g("r10", "r10d", "r10"),
			g("r11", "r11d", "r11"),
			g("r12", "r12d", "r12"),
		},
		CategoryVector: {
			vec("ymm0", "xmm0", "ymm0"), vec("ymm1", "xmm1", "ymm1"),
			vec("ymm2", "xmm2", "ymm2"), vec("ymm3", "xmm3", "ymm3"),
			vec("ymm4", "xmm4", "ymm4"), vec("ymm5", "xmm5", "ymm5"),
			vec("ymm6", "xmm6", "ymm6"), vec("ymm7", "xmm7", "ymm7"),
			vec("ymm8", "xmm8", "ymm8"), vec("ymm9", "xmm9", "ymm9"),
			vec("ymm10", "xmm10", "ymm10"), vec("ymm11", "xmm11", "ymm11"),
			vec("ymm12", "xmm12", "ymm12"), vec("ymm13", "xmm13", "ymm13"),
			vec("ymm14", "xmm14", "ymm14"), vec("ymm15", "xmm15", "ymm15"),
		},
		CategoryDiv: {g("r13", "r13d", "")},
		CategoryMem: {g("r14", "r14d", "")},
	}}
}
