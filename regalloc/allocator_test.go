package regalloc_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/form"
	"github.com/sarchlab/pite/isa"
	_ "github.com/sarchlab/pite/isa/simulated"
	"github.com/sarchlab/pite/regalloc"
)

var _ = Describe("Allocator", func() {
	var desc isa.Descriptor

	BeforeEach(func() {
		var err error
		desc, err = isa.Lookup("x86_64")
		Expect(err).NotTo(HaveOccurred())
	})

	It("assigns the write-index register before advancing the read index", func() {
		a := regalloc.New(desc)
		insn, err := form.Parse("mov ((REG:W:G:64)), ((REG:R:G:64))")
		Expect(err).NotTo(HaveOccurred())

		a.Allocate([]*form.Instance{insn})

		writeReg := desc.RegisterFile().GroupAt(isa.CategoryGeneral, 0).NameAtWidth(64)
		Expect(insn.Render()).To(ContainSubstring("mov " + writeReg + ","))
		// the read-only operand must not reuse the just-written register
		Expect(insn.Render()).NotTo(HaveSuffix(", " + writeReg))
	})

	It("resets the read index to the write index ahead of each instruction", func() {
		a := regalloc.New(desc)
		i1, err := form.Parse("mov ((REG:W:G:64)), ((IMM:32))")
		Expect(err).NotTo(HaveOccurred())
		i2, err := form.Parse("add ((REG:RW:G:64)), ((REG:R:G:64))")
		Expect(err).NotTo(HaveOccurred())

		a.Allocate([]*form.Instance{i1, i2})

		// i2's write register should be the register right after i1's write
		// register (rotation continues across instructions).
		first := desc.RegisterFile().GroupAt(isa.CategoryGeneral, 0).NameAtWidth(64)
		second := desc.RegisterFile().GroupAt(isa.CategoryGeneral, 1).NameAtWidth(64)
		Expect(i1.Render()).To(ContainSubstring(first))
		Expect(i2.Render()).To(ContainSubstring(second))

		// i2's read operand starts from the write index (2), not from the read
		// index left at 0.
		third := desc.RegisterFile().GroupAt(isa.CategoryGeneral, 2).NameAtWidth(64)
		Expect(i2.Render()).To(Equal("add " + second + ", " + third))
	})

	It("rotates the memory offset by the fixed step and wraps at the ceiling", func() {
		a := regalloc.New(desc)
		var instances []*form.Instance
		for i := 0; i < 64; i++ {
			in, err := form.Parse("mov rax, [((MEM:64)) + ((MIMM:32))]")
			Expect(err).NotTo(HaveOccurred())
			instances = append(instances, in)
		}
		a.Allocate(instances)
		Expect(instances[0].Render()).To(ContainSubstring("+ 64]"))
		Expect(instances[1].Render()).To(ContainSubstring("+ 128]"))
		// the 63rd offset is 4032; the 64th wraps back to 64.
		Expect(instances[62].Render()).To(ContainSubstring("+ 4032]"))
		Expect(instances[63].Render()).To(ContainSubstring("+ 64]"))
	})

	It("always resolves MEM and DIV placeholders to the reserved registers", func() {
		a := regalloc.New(desc)
		insn, err := form.Parse("div ((DIV:64)), [((MEM:64))]")
		Expect(err).NotTo(HaveOccurred())
		a.Allocate([]*form.Instance{insn})
		rf := desc.RegisterFile()
		Expect(insn.Render()).To(ContainSubstring(rf.DivRegister(64)))
		Expect(insn.Render()).To(ContainSubstring(rf.MemoryBase(64)))
	})

	It("resolves MEM and DIV placeholders at the placeholder's own width", func() {
		a := regalloc.New(desc)
		insn, err := form.Parse("div ((DIV:32)), [((MEM:32))]")
		Expect(err).NotTo(HaveOccurred())
		a.Allocate([]*form.Instance{insn})
		rf := desc.RegisterFile()
		Expect(insn.Render()).To(ContainSubstring(rf.DivRegister(32)))
		Expect(insn.Render()).To(ContainSubstring(rf.MemoryBase(32)))
	})

	It("formats IMM placeholders through the ISA's immediate syntax", func() {
		a := regalloc.New(desc)
		insn, err := form.Parse("mov rax, ((IMM:32))")
		Expect(err).NotTo(HaveOccurred())
		a.Allocate([]*form.Instance{insn})
		Expect(insn.Render()).To(Equal("mov rax, " + desc.AsImm(44)))
	})

	It("panics on a REG category the target ISA's register file does not have", func() {
		a := regalloc.New(desc)
		insn, err := form.Parse("mov ((REG:W:NOPE:64))")
		Expect(err).NotTo(HaveOccurred())
		Expect(func() { a.Allocate([]*form.Instance{insn}) }).To(Panic())
	})
})
