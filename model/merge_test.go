package model_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/model"
)

var _ = Describe("MergeResults", func() {
	var (
		arch     *model.Architecture
		add, sub *model.Instruction
		dst, src *model.ExperimentList
	)

	BeforeEach(func() {
		arch = model.NewArchitecture()
		add = arch.AddInsn("ADD")
		sub = arch.AddInsn("SUB")
		arch.AddPorts([]string{"0"})

		dst = model.NewExperimentList(arch)
		dst.CreateExp([]*model.Instruction{add})
		dst.CreateExp([]*model.Instruction{sub})

		src = model.NewExperimentList(arch)
	})

	It("fills in primary results for matching instruction sequences", func() {
		e := src.CreateExp([]*model.Instruction{add})
		c := 1.0
		e.Result = &model.Result{Cycles: &c}

		dropped, err := model.MergeResults(dst, src)
		Expect(err).NotTo(HaveOccurred())
		Expect(dropped).To(Equal(0))

		got, err := dst.Exps[0].Cycles()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(1.0))
	})

	It("errors rather than overwrites an existing primary result", func() {
		c1, c2 := 1.0, 2.0
		dst.Exps[0].Result = &model.Result{Cycles: &c1}

		e := src.CreateExp([]*model.Instruction{add})
		e.Result = &model.Result{Cycles: &c2}

		_, err := model.MergeResults(dst, src)
		Expect(err).To(HaveOccurred())
	})

	It("drops, rather than errors on, an other-result id already present", func() {
		Expect(dst.Exps[0].AddOtherResult("iaca", model.Result{})).To(Succeed())

		e := src.CreateExp([]*model.Instruction{add})
		Expect(e.AddOtherResult("iaca", model.Result{})).To(Succeed())

		dropped, err := model.MergeResults(dst, src)
		Expect(err).NotTo(HaveOccurred())
		Expect(dropped).To(Equal(1))
		Expect(dst.Exps[0].OtherResults).To(HaveLen(1))
	})

	It("is a no-op to re-merge an identical primary result", func() {
		c := 1.0
		dst.Exps[0].Result = &model.Result{Cycles: &c}

		e := src.CreateExp([]*model.Instruction{add})
		c2 := 1.0
		e.Result = &model.Result{Cycles: &c2}

		dropped, err := model.MergeResults(dst, src)
		Expect(err).NotTo(HaveOccurred())
		Expect(dropped).To(Equal(0))

		got, err := dst.Exps[0].Cycles()
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(1.0))
	})

	It("merging an experiment list into itself changes nothing", func() {
		c1, c2 := 1.0, 2.0
		dst.Exps[0].Result = &model.Result{Cycles: &c1}
		dst.Exps[1].Result = &model.Result{Cycles: &c2}
		Expect(dst.Exps[0].AddOtherResult("iaca", model.Result{Cycles: &c1})).To(Succeed())

		selfCopy := model.NewExperimentList(arch)
		for _, e := range dst.Exps {
			clone := selfCopy.CreateExp(e.ISeq)
			clone.Result = e.Result
			for _, or := range e.OtherResults {
				Expect(clone.AddOtherResult(or.ID, or.Result)).To(Succeed())
			}
		}

		dropped, err := model.MergeResults(dst, selfCopy)
		Expect(err).NotTo(HaveOccurred())
		Expect(dropped).To(Equal(1))

		got0, err := dst.Exps[0].Cycles()
		Expect(err).NotTo(HaveOccurred())
		Expect(got0).To(Equal(1.0))
		got1, err := dst.Exps[1].Cycles()
		Expect(err).NotTo(HaveOccurred())
		Expect(got1).To(Equal(2.0))
	})

	It("errors when the source references an experiment absent from the destination", func() {
		other := arch.AddInsn("MUL")
		src.CreateExp([]*model.Instruction{other})

		_, err := model.MergeResults(dst, src)
		Expect(err).To(HaveOccurred())
	})
})
