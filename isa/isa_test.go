package isa_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/isa"
	_ "github.com/sarchlab/pite/isa/simulated"
)

var _ = Describe("Lookup", func() {
	It("resolves every registered native and simulated backend", func() {
		for _, name := range []string{
			"x86_64", "aarch64",
			"IACAx86_64", "Ithemalx86_64",
			"LLVMMCA_SKLx86_64", "LLVMMCA_ZENPx86_64", "LLVMMCA_A72_ARM",
		} {
			d, err := isa.Lookup(name)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.Name()).To(Equal(name))
		}
	})

	It("errors on an unknown backend name", func() {
		_, err := isa.Lookup("not-a-real-isa")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("x86_64 descriptor", func() {
	var d isa.Descriptor

	BeforeEach(func() {
		var err error
		d, err = isa.Lookup("x86_64")
		Expect(err).NotTo(HaveOccurred())
	})

	It("has no immediate prefix", func() {
		Expect(d.ImmediatePrefix()).To(Equal(""))
		Expect(d.AsImm(44)).To(Equal("44"))
	})

	It("is not simulated and pins via taskset", func() {
		Expect(d.IsSimulated()).To(BeFalse())
		Expect(d.CreateCommand("/tmp/bmk", 3)).To(Equal([]string{"taskset", "-c", "3", "/tmp/bmk"}))
	})

	It("renders a frame with all four holes substituted exactly once", func() {
		frame := d.ProgramFrame()
		Expect(frame).NotTo(ContainSubstring("{INCLUDES}"))
		Expect(frame).NotTo(ContainSubstring("{ASM_INIT}"))
		Expect(frame).NotTo(ContainSubstring("{ASM_INSTRUCTIONS}"))
		Expect(frame).NotTo(ContainSubstring("{WARMUP_CODE}"))
		Expect(frame).To(ContainSubstring("{num_iterations}"))
	})

	It("seeds a general register with mov and a vector register via broadcast", func() {
		Expect(d.InitCodeForRegister("rbx")).To(ContainSubstring("mov rbx, 42"))
		Expect(d.InitCodeForRegister("ymm0")).To(ContainSubstring("vinsertf128 ymm0, ymm0, xmm0, 1"))
	})

	It("panics for a register it has no init recipe for", func() {
		Expect(func() { d.InitCodeForRegister("zzz0") }).To(Panic())
	})

	It("reserves r14/r13 as memory-base and divisor registers, outside the clobber list", func() {
		rf := d.RegisterFile()
		Expect(rf.MemoryBase(64)).To(Equal("r14"))
		Expect(rf.DivRegister(64)).To(Equal("r13"))
		Expect(rf.ClobberList()).NotTo(ContainElement("r14"))
		Expect(rf.ClobberList()).NotTo(ContainElement("r13"))
	})

	It("resolves the memory-base and divisor registers at a narrower width", func() {
		rf := d.RegisterFile()
		Expect(rf.MemoryBase(32)).To(Equal("r14d"))
		Expect(rf.DivRegister(32)).To(Equal("r13d"))
	})

	It("extracts the JSON result dict the generated binary prints", func() {
		got, err := d.ExtractResult(`{"benchtime": 100.0, "cycles": 1.5, "meas_freq": 2000000}`, 4)
		Expect(err).NotTo(HaveOccurred())
		Expect(got["cycles"]).To(Equal(1.5))
	})
})

var _ = Describe("aarch64 descriptor", func() {
	var d isa.Descriptor

	BeforeEach(func() {
		var err error
		d, err = isa.Lookup("aarch64")
		Expect(err).NotTo(HaveOccurred())
	})

	It("prefixes immediates with #", func() {
		Expect(d.ImmediatePrefix()).To(Equal("#"))
		Expect(d.AsImm(44)).To(Equal("#44"))
	})

	It("reserves x28/x29 as memory-base and divisor registers", func() {
		rf := d.RegisterFile()
		Expect(rf.MemoryBase(64)).To(Equal("x28"))
		Expect(rf.DivRegister(64)).To(Equal("x29"))
	})

	It("seeds general and vector registers with their respective instructions", func() {
		Expect(d.InitCodeForRegister("x2")).To(ContainSubstring("mov x2, #42"))
		Expect(d.InitCodeForRegister("v0")).To(ContainSubstring("fmov v0.4s, 24.0"))
	})
})

var _ = Describe("simulated backends", func() {
	It("IACA parses a Block Throughput line into per-instance cycles", func() {
		d, err := isa.Lookup("IACAx86_64")
		Expect(err).NotTo(HaveOccurred())
		got, err := d.ExtractResult("... Block Throughput: 12.50 Cycles ...", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got["cycles"]).To(Equal(12.5))
	})

	It("IACA divides the block's total cycles by numTestcaseInstances", func() {
		d, err := isa.Lookup("IACAx86_64")
		Expect(err).NotTo(HaveOccurred())
		got, err := d.ExtractResult("... Block Throughput: 50.00 Cycles ...", 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(got["cycles"]).To(Equal(10.0))
	})

	It("IACA reports a missing-throughput error cause when the pattern is absent", func() {
		d, err := isa.Lookup("IACAx86_64")
		Expect(err).NotTo(HaveOccurred())
		got, err := d.ExtractResult("no useful output here", 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(got["cycles"]).To(BeNil())
		Expect(got["error_cause"]).To(Equal("throughput missing in iaca output"))
	})

	It("llvm-mca variants compile without linking", func() {
		d, err := isa.Lookup("LLVMMCA_SKLx86_64")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.AdditionalCCFlags()).To(ContainElement("-S"))
		Expect(strings.Join(d.CreateCommand("bin", 0), " ")).To(ContainSubstring("llvm-mca"))
	})

	It("is reported as simulated with zero measurement uncertainty by construction", func() {
		d, err := isa.Lookup("LLVMMCA_A72_ARM")
		Expect(err).NotTo(HaveOccurred())
		Expect(d.IsSimulated()).To(BeTrue())
	})
})
