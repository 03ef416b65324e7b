package bench_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/bench"
	"github.com/sarchlab/pite/isa"
	_ "github.com/sarchlab/pite/isa/simulated"
	"github.com/sarchlab/pite/model"
)

var _ = Describe("Renderer", func() {
	var (
		desc isa.Descriptor
		arch *model.Architecture
		add  *model.Instruction
	)

	BeforeEach(func() {
		var err error
		desc, err = isa.Lookup("x86_64")
		Expect(err).NotTo(HaveOccurred())

		arch = model.NewArchitecture()
		add = arch.AddInsn("add")
	})

	It("fills every hole and repeats the loop body numTestcaseInstances times", func() {
		r := &bench.Renderer{
			Desc:  desc,
			Forms: map[string]string{"add": "add ((REG:RW:G:64)), ((IMM:32))"},
		}

		src, err := r.Render([]*model.Instruction{add}, 3, 123456, "/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq")
		Expect(err).NotTo(HaveOccurred())

		Expect(src).To(ContainSubstring("123456"))
		Expect(src).To(ContainSubstring("/sys/devices/system/cpu/cpu0/cpufreq/scaling_cur_freq"))
		Expect(src).NotTo(ContainSubstring("{num_iterations}"))
		Expect(src).NotTo(ContainSubstring("{loop_body}"))
		Expect(src).NotTo(ContainSubstring("{used_regs}"))

		// the loop body holds three copies of "add" and appears twice, in the
		// timed loop and in the warmup loop.
		Expect(strings.Count(src, `"add `)).To(Equal(6))
	})

	It("errors when an instruction has no registered form", func() {
		r := &bench.Renderer{Desc: desc, Forms: map[string]string{}}
		_, err := r.Render([]*model.Instruction{add}, 1, 1, "/x")
		Expect(err).To(HaveOccurred())
	})
})
