// Package simulated registers the non-native ISA backends: tools that
// estimate throughput from the rendered assembly instead of running it
// (IACA, the Ithemal learned predictor, and llvm-mca variants). They share
// the native frame-rendering machinery of package isa but point
// CreateCommand at an external analyzer and parse its textual report
// instead of a JSON stdout blob (§4.A "Simulated ISAs", §4.D "Simulated
// backends").
package simulated

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/sarchlab/pite/isa"
)

func init() {
	isa.Register("IACAx86_64", func() isa.Descriptor { return newIACA() })
	isa.Register("Ithemalx86_64", func() isa.Descriptor { return newIthemal() })
	isa.Register("LLVMMCA_SKLx86_64", func() isa.Descriptor { return newLLVMMCA(llvmMCAConfig{
		name: "LLVMMCA_SKLx86_64", target: "x86_64", march: "x86-64", mcpu: "skylake", aarch64: false,
	}) })
	isa.Register("LLVMMCA_ZENPx86_64", func() isa.Descriptor { return newLLVMMCA(llvmMCAConfig{
		name: "LLVMMCA_ZENPx86_64", target: "x86_64", march: "x86-64", mcpu: "znver1", aarch64: false,
	}) })
	isa.Register("LLVMMCA_A72_ARM", func() isa.Descriptor { return newLLVMMCA(llvmMCAConfig{
		name: "LLVMMCA_A72_ARM", target: "aarch64", march: "aarch64", mcpu: "cortex-a72", aarch64: true,
	}) })
}

// x8664SimFrame is the kernel-function frame shared by IACA, Ithemal and
// the x86_64 llvm-mca variants: IACA start/end marker bytes surround an
// `# LLVM-MCA-BEGIN`/`END` comment pair so any of the three tools can find
// the region of interest in the same compiled object.
const x8664SimFrame = `
void *aligned_alloc(long unsigned int alignment, long unsigned int size);

int kernel(int n) {
    void * memt = aligned_alloc(4096, 4096);
    register void * mem asm("{membasereg}") = memt;
    register long long div asm("{div_reg}") = 44;
    __asm__ __volatile__ (
        "movl $111, %ebx\n"
        ".byte 0x64, 0x67, 0x90\n"
        "   .intel_syntax noprefix\n"
        "# LLVM-MCA-BEGIN\n"
{loop_body}
        "# LLVM-MCA-END\n"
        "   .att_syntax\n"
        "movl $222, %ebx\n"
        ".byte 0x64, 0x67, 0x90\n"
    : /* no output */
    : "r" (mem),
      "r" (div)
    : "ebx", "rax", "rdx" {used_regs}, "memory"
    );
    return 0;
}
`

// aarch64SimFrame is the llvm-mca-only counterpart for AArch64; it carries
// no IACA marker bytes since IACA never supported that ISA.
const aarch64SimFrame = `
void *aligned_alloc(long unsigned int alignment, long unsigned int size);

int kernel(int n) {
    void * memt = aligned_alloc(4096, 4096);
    register void * mem asm("{membasereg}") = memt;
    register long long div asm("{div_reg}") = 44;
    __asm__ __volatile__ (
        "# LLVM-MCA-BEGIN\n"
{loop_body}
        "# LLVM-MCA-END\n"
    : /* no output */
    : "r" (mem),
      "r" (div)
    : "x0" {used_regs}, "memory"
    );
    return 0;
}
`

type simBase struct {
	name    string
	regFile *isa.RegisterFile
	frame   string
	ccFlags []string
}

func (s *simBase) Name() string                { return s.name }
func (s *simBase) RegisterFile() *isa.RegisterFile { return s.regFile }
func (s *simBase) ImmediatePrefix() string     { return "" }
func (s *simBase) AsImm(v int) string          { return strconv.Itoa(v) }
func (s *simBase) ProgramFrame() string        { return s.frame }
func (s *simBase) IsSimulated() bool           { return true }
func (s *simBase) AdditionalCCFlags() []string { return s.ccFlags }
func (s *simBase) InitCodeForRegister(string) string { return "" }

// iaca wraps Intel's IACA static analyzer.
type iaca struct {
	simBase
	parsing *regexp.Regexp
}

func newIACA() *iaca {
	return &iaca{
		simBase: simBase{
			name:    "IACAx86_64",
			regFile: isa.X8664RegisterFile(),
			frame:   x8664SimFrame,
			ccFlags: []string{"-c"},
		},
		parsing: regexp.MustCompile(`Block Throughput: (\d+\.\d+)`),
	}
}

func (d *iaca) CreateCommand(bin string, core int) []string {
	return []string{"iaca", bin}
}

func (d *iaca) ExtractResult(stdout string, numTestcaseInstances int) (map[string]any, error) {
	m := d.parsing.FindStringSubmatch(stdout)
	if m == nil {
		return map[string]any{"cycles": nil, "error_cause": "throughput missing in iaca output"}, nil
	}
	cycles, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("simulated: iaca output unparsable: %w", err)
	}
	return map[string]any{"cycles": cycles / float64(numTestcaseInstances)}, nil
}

// ithemal wraps the Ithemal learned throughput predictor.
type ithemal struct {
	simBase
	parsing *regexp.Regexp
}

func newIthemal() *ithemal {
	return &ithemal{
		simBase: simBase{
			name:    "Ithemalx86_64",
			regFile: isa.X8664RegisterFile(),
			frame:   x8664SimFrame,
			ccFlags: []string{"-c"},
		},
		parsing: regexp.MustCompile(`(\d+\.\d+)`),
	}
}

func (d *ithemal) CreateCommand(bin string, core int) []string {
	return []string{
		"/home/ithemal/ithemal/learning/pytorch/ithemal/predict.py",
		"--model", "/home/ithemal/ithemal/skylake/predictor.dump",
		"--model-data", "/home/ithemal/ithemal/skylake/trained.mdl",
		"--file", bin,
	}
}

func (d *ithemal) ExtractResult(stdout string, numTestcaseInstances int) (map[string]any, error) {
	m := d.parsing.FindStringSubmatch(stdout)
	if m == nil {
		return map[string]any{"cycles": nil, "error_cause": "throughput missing in ithemal output"}, nil
	}
	cycles, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("simulated: ithemal output unparsable: %w", err)
	}
	return map[string]any{"cycles": cycles / float64(numTestcaseInstances)}, nil
}

type llvmMCAConfig struct {
	name    string
	target  string
	march   string
	mcpu    string
	aarch64 bool
}

// llvmMCA wraps LLVM's static throughput analyzer for one (ISA, cpu model)
// pair; skylake/znver1/cortex-a72 share the same tool and parsing, differing
// only in -march/-mcpu and which ISA's register file and frame apply.
type llvmMCA struct {
	simBase
	mcaArgs []string
	parsing *regexp.Regexp
}

func newLLVMMCA(cfg llvmMCAConfig) *llvmMCA {
	regFile := isa.X8664RegisterFile()
	frame := x8664SimFrame
	if cfg.aarch64 {
		regFile = isa.AArch64RegisterFile()
		frame = aarch64SimFrame
	}
	return &llvmMCA{
		simBase: simBase{
			name:    cfg.name,
			regFile: regFile,
			frame:   frame,
			ccFlags: []string{"-c", "-S", "--target=" + cfg.target},
		},
		mcaArgs: []string{"-march=" + cfg.march, "-mcpu=" + cfg.mcpu},
		parsing: regexp.MustCompile(`Total Cycles:\s*(\d+)`),
	}
}

func (d *llvmMCA) CreateCommand(bin string, core int) []string {
	command := append([]string{"llvm-mca"}, d.mcaArgs...)
	return append(command, bin)
}

func (d *llvmMCA) ExtractResult(stdout string, numTestcaseInstances int) (map[string]any, error) {
	m := d.parsing.FindStringSubmatch(stdout)
	if m == nil {
		return map[string]any{"cycles": nil, "error_cause": "throughput missing in llvm-mca output"}, nil
	}
	cycles, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return nil, fmt.Errorf("simulated: llvm-mca output unparsable: %w", err)
	}
	return map[string]any{"cycles": cycles / float64(numTestcaseInstances)}, nil
}
