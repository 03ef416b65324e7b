package orchestrator_test

import (
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/orchestrator"
)

func fiveInsnArch() *model.Architecture {
	arch := model.NewArchitecture()
	arch.AddPorts([]string{"0"})
	for _, name := range []string{"add", "sub", "mul", "div", "xor"} {
		arch.AddInsn(name)
	}
	return arch
}

var _ = Describe("SampleExperiments", func() {
	It("draws the requested number of distinct multisets within the length range", func() {
		arch := fiveInsnArch()
		rng := rand.New(rand.NewSource(1))

		samples := orchestrator.SampleExperiments(rng, arch.InsnList(), 2, 4, 10)
		Expect(samples).To(HaveLen(10))

		seen := map[string]bool{}
		for _, iseq := range samples {
			Expect(len(iseq)).To(BeNumerically(">=", 2))
			Expect(len(iseq)).To(BeNumerically("<", 4))
			key := ""
			for _, insn := range iseq {
				key += insn.Name + ","
			}
			Expect(seen[key]).To(BeFalse(), "samples must be distinct")
			seen[key] = true
		}
	})

	It("caps singleton sampling at the number of available instructions", func() {
		arch := fiveInsnArch()
		rng := rand.New(rand.NewSource(2))

		samples := orchestrator.SampleExperiments(rng, arch.InsnList(), 1, 2, 100)
		Expect(samples).To(HaveLen(5))
	})
})

var _ = Describe("GenerateEvalSet and GenerateLengthSweep", func() {
	It("builds an experiment list of the requested size", func() {
		arch := fiveInsnArch()
		rng := rand.New(rand.NewSource(3))

		el := orchestrator.GenerateEvalSet(rng, arch, 2, 5, 6)
		Expect(el.Exps).To(HaveLen(6))
	})

	It("builds one experiment list per length", func() {
		arch := fiveInsnArch()
		rng := rand.New(rand.NewSource(4))

		sweep := orchestrator.GenerateLengthSweep(rng, arch, 1, 4, 3)
		Expect(sweep).To(HaveLen(3))
		for length, el := range sweep {
			for _, e := range el.Exps {
				Expect(e.ISeq).To(HaveLen(length))
			}
		}
	})
})

var _ = Describe("GenerateSingletonAndPairs", func() {
	It("emits one singleton per instruction and a balanced second pair when cycles differ", func() {
		arch := model.NewArchitecture()
		arch.AddPorts([]string{"0"})
		slow := arch.AddInsn("slow")
		fast := arch.AddInsn("fast")

		cycles := map[*model.Instruction]float64{slow: 4.0, fast: 1.0}

		singletons, pairs := orchestrator.GenerateSingletonAndPairs(arch, cycles)
		Expect(singletons.Exps).To(HaveLen(2))

		Expect(len(pairs.Exps)).To(Equal(2))
		Expect(pairs.Exps[0].ISeq).To(ConsistOf(slow, fast))

		balanced := pairs.Exps[1]
		Expect(balanced.ISeq[0]).To(Equal(slow))
		for _, insn := range balanced.ISeq[1:] {
			Expect(insn).To(Equal(fast))
		}
		Expect(len(balanced.ISeq)).To(Equal(5))
	})

	It("skips the balanced pair when cycles are equal", func() {
		arch := model.NewArchitecture()
		arch.AddPorts([]string{"0"})
		a := arch.AddInsn("a")
		b := arch.AddInsn("b")

		cycles := map[*model.Instruction]float64{a: 2.0, b: 2.0}

		_, pairs := orchestrator.GenerateSingletonAndPairs(arch, cycles)
		Expect(pairs.Exps).To(HaveLen(1))
	})
})
