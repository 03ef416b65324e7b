package measure_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/bench"
	"github.com/sarchlab/pite/isa"
	_ "github.com/sarchlab/pite/isa/simulated"
	"github.com/sarchlab/pite/measure"
	"github.com/sarchlab/pite/model"
)

// fakeToolchain is a hand-written bench.Toolchain stub; measure's own test
// binary cannot reach bench's internal *_test.go mocks, so this package
// gets its own minimal fake rather than reusing bench.MockToolchain.
type fakeToolchain struct {
	runOutput []byte
	runErr    error
}

func (f *fakeToolchain) Compile(ctx context.Context, src string, ccFlags []string) (string, error) {
	return "/tmp/fake-bin", nil
}

func (f *fakeToolchain) Run(ctx context.Context, argv []string) ([]byte, error) {
	return f.runOutput, f.runErr
}

var _ = Describe("DriverEvaluator", func() {
	var (
		arch *model.Architecture
		desc isa.Descriptor
		eval *measure.DriverEvaluator
	)

	BeforeEach(func() {
		arch = model.NewArchitecture()
		arch.AddPorts([]string{"0", "1"})
		arch.AddInsn("add")
		arch.AddInsn("sub")

		var err error
		desc, err = isa.Lookup("IACAx86_64")
		Expect(err).NotTo(HaveOccurred())

		renderer := &bench.Renderer{
			Desc: desc,
			Forms: map[string]string{
				"add": "add ((REG:RW:G:64)), ((IMM:32))",
				"sub": "sub ((REG:RW:G:64)), ((IMM:32))",
			},
		}
		toolchain := &fakeToolchain{runOutput: []byte("Block Throughput: 1.00 Cycles")}
		driver := bench.NewDriver(desc, renderer, toolchain,
			&bench.Calibration{NumTotalDynamicInsns: 1000, NumInsnsPerIteration: 2},
			bench.Settings{Core: 0, Repetitions: 1, MaxUncertainty: 0.02})

		eval = &measure.DriverEvaluator{Arch: arch, Desc: desc, Renderer: renderer, Driver: driver, NumPorts: 2}
	})

	It("returns the sorted instruction list", func() {
		Expect(eval.GetInsns()).To(Equal([]string{"add", "sub"}))
	})

	It("returns the configured port count", func() {
		Expect(eval.GetNumPorts()).To(Equal(2))
	})

	It("returns a human-readable description naming the backend", func() {
		Expect(eval.GetDescription()).To(ContainSubstring("IACAx86_64"))
	})

	It("runs an experiment and reports the measured cycle count", func() {
		res := eval.RunExperiment(context.Background(), measure.RunExperimentRequest{Insns: []string{"add"}})
		// NumInsnsPerIteration 2 over one instruction gives two instances per
		// loop body, so IACA's block throughput of 1.00 is halved.
		Expect(res["cycles"]).To(Equal(0.5))
	})

	It("reports an error cause instead of a Go error for an unknown instruction", func() {
		res := eval.RunExperiment(context.Background(), measure.RunExperimentRequest{Insns: []string{"nope"}})
		Expect(res["cycles"]).To(BeNil())
		Expect(res["error_cause"]).To(ContainSubstring("unknown instruction"))
	})

	It("renders the loop body for gen_code without compiling or running anything", func() {
		body, instances, err := eval.GenCode(context.Background(), measure.GenCodeRequest{Insns: []string{"add", "sub"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(instances).To(BeNumerically(">=", 1))
		Expect(body).To(ContainSubstring("add "))
		Expect(body).To(ContainSubstring("sub "))
	})
})
