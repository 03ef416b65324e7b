package bench_test

import (
	"context"
	"fmt"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/bench"
	"github.com/sarchlab/pite/isa"
	"github.com/sarchlab/pite/model"
)

var _ = Describe("Calibrator", func() {
	var (
		ctrl      *gomock.Controller
		toolchain *bench.MockToolchain
		desc      isa.Descriptor
		arch      *model.Architecture
		insns     []*model.Instruction
		renderer  *bench.Renderer
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		toolchain = bench.NewMockToolchain(ctrl)

		var err error
		desc, err = isa.Lookup("x86_64")
		Expect(err).NotTo(HaveOccurred())

		arch = model.NewArchitecture()
		insns = []*model.Instruction{arch.AddInsn("a"), arch.AddInsn("b"), arch.AddInsn("c")}

		renderer = &bench.Renderer{
			Desc: desc,
			Forms: map[string]string{
				"a": "add ((REG:RW:G:64)), ((IMM:32))",
				"b": "add ((REG:RW:G:64)), ((IMM:32))",
				"c": "add ((REG:RW:G:64)), ((IMM:32))",
			},
		}

		toolchain.EXPECT().Compile(gomock.Any(), gomock.Any(), gomock.Any()).
			Return("/tmp/bin", nil).AnyTimes()
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	It("picks the target time divided by the minimum observed benchtime across samples", func() {
		benchtimes := []float64{500000, 100000, 300000}
		call := 0
		toolchain.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
			func(context.Context, []string) ([]byte, error) {
				bt := benchtimes[call]
				call++
				return []byte(fmt.Sprintf(`{"benchtime": %f, "cycles": 1.0, "meas_freq": 2000000}`, bt)), nil
			}).Times(3)

		c := &bench.Calibrator{
			Desc: desc, Renderer: renderer, Toolchain: toolchain, Core: 0,
			TargetTimeUS: 400000, NumSamples: 1,
		}

		total, err := c.CalibrateTotalDynamicInsns(context.Background(), insns)
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(int64(4000000000)))
	})

	It("picks the shortest candidate length when every candidate ties", func() {
		toolchain.EXPECT().Run(gomock.Any(), gomock.Any()).Return(
			[]byte(`{"benchtime": 100000.0, "cycles": 2.0, "meas_freq": 2000000}`), nil).AnyTimes()

		c := &bench.Calibrator{
			Desc: desc, Renderer: renderer, Toolchain: toolchain, Core: 0,
			TargetTimeUS: 400000, NumSamples: 1,
		}

		length, err := c.CalibrateInsnsPerIteration(context.Background(), insns, 1_000_000)
		Expect(err).NotTo(HaveOccurred())
		Expect(length).To(Equal(1))
	})
})
