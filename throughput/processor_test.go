package throughput_test

import (
	"math/rand"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/throughput"
)

var _ = Describe("Delayed", func() {
	It("sleeps for at least the configured delay before returning", func() {
		arch, a, _, _ := twoPortArch()
		m := model.NewMapping2(arch)
		m.Set(a, model.NewPortSet("p0"))
		base := throughput.NewBottleneckProcessor(m)
		d := throughput.NewDelayed(base, 10*time.Millisecond)

		start := time.Now()
		cycles := d.Cycles([]*model.Instruction{a})
		Expect(time.Since(start)).To(BeNumerically(">=", 10*time.Millisecond))
		Expect(cycles).To(Equal(1.0))
	})

	It("describes itself as wrapping the underlying processor", func() {
		arch, a, _, _ := twoPortArch()
		m := model.NewMapping2(arch)
		m.Set(a, model.NewPortSet("p0"))
		base := throughput.NewBottleneckProcessor(m)
		d := throughput.NewDelayed(base, time.Millisecond)
		Expect(d.Description()).To(ContainSubstring("bottleneck"))
	})
})

var _ = Describe("Jittered", func() {
	It("perturbs the reported cycle count within +/- jitter", func() {
		arch, a, _, _ := twoPortArch()
		m := model.NewMapping2(arch)
		m.Set(a, model.NewPortSet("p0"))
		base := throughput.NewBottleneckProcessor(m)
		j := throughput.NewJittered(base, 0.5, rand.New(rand.NewSource(1)))

		cycles := j.Cycles([]*model.Instruction{a})
		Expect(cycles).To(BeNumerically("~", 1.0, 0.5))
	})

	It("perturbs Execute's cycles entry the same way", func() {
		arch, a, _, _ := twoPortArch()
		m := model.NewMapping2(arch)
		m.Set(a, model.NewPortSet("p0"))
		base := throughput.NewBottleneckProcessor(m)
		j := throughput.NewJittered(base, 0.5, rand.New(rand.NewSource(1)))

		res := j.Execute([]*model.Instruction{a})
		Expect(res["cycles"]).To(BeNumerically("~", 1.0, 0.5))
		Expect(res["backend"]).To(Equal("bottleneck"))
	})
})

var _ = Describe("EvalList", func() {
	It("records each experiment's cycle count as its primary result, in list order", func() {
		arch, a, b, _ := twoPortArch()
		m := model.NewMapping2(arch)
		m.Set(a, model.NewPortSet("p0"))
		m.Set(b, model.NewPortSet("p1"))
		p := throughput.NewBottleneckProcessor(m)

		el := model.NewExperimentList(arch)
		el.CreateExp([]*model.Instruction{a, a})
		el.CreateExp([]*model.Instruction{a, b})

		throughput.EvalList(p, el)

		for _, e := range el.Exps {
			Expect(e.Result).NotTo(BeNil())
			cycles, err := e.Cycles()
			Expect(err).NotTo(HaveOccurred())
			Expect(cycles).To(BeNumerically(">", 0))
		}
	})
})
