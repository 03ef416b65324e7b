package orchestrator_test

import (
	"context"

	"github.com/golang/mock/gomock"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/orchestrator"
)

func cyclesPtr(v float64) *float64 { return &v }

var _ = Describe("Inferrer", func() {
	It("restricts to representatives, invokes the search runner, and generalizes the result", func() {
		arch := model.NewArchitecture()
		arch.AddPorts([]string{"0"})
		a := arch.AddInsn("a")
		b := arch.AddInsn("b")
		c := arch.AddInsn("c")

		exps := model.NewExperimentList(arch)
		singletonA := exps.CreateExp([]*model.Instruction{a})
		singletonA.Result = &model.Result{Cycles: cyclesPtr(1.0)}
		singletonB := exps.CreateExp([]*model.Instruction{b})
		singletonB.Result = &model.Result{Cycles: cyclesPtr(1.0)}
		singletonC := exps.CreateExp([]*model.Instruction{c})
		singletonC.Result = &model.Result{Cycles: cyclesPtr(5.0)}

		pairAB := exps.CreateExp([]*model.Instruction{a, c})
		pairAB.Result = &model.Result{Cycles: cyclesPtr(6.0)}
		pairBC := exps.CreateExp([]*model.Instruction{b, c})
		pairBC.Result = &model.Result{Cycles: cyclesPtr(6.0)}

		ctrl := gomock.NewController(GinkgoT())
		defer ctrl.Finish()

		runner := orchestrator.NewMockSearchRunner(ctrl)
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).DoAndReturn(
			func(ctx context.Context, restricted *model.ExperimentList) (*model.Mapping3, error) {
				Expect(len(restricted.Arch.Insns)).To(BeNumerically("<", 3))
				mapping := model.NewMapping3(restricted.Arch)
				for _, insn := range restricted.Arch.InsnList() {
					mapping.Set(insn, []model.PortSet{model.NewPortSet("0")})
				}
				return mapping, nil
			})

		inf := orchestrator.NewInferrer(runner, orchestrator.Config{Epsilon: 0.1})
		mapping, err := inf.Infer(context.Background(), exps)
		Expect(err).NotTo(HaveOccurred())

		Expect(mapping.Get(a)).To(Equal(mapping.Get(b)))
		Expect(mapping.Get(c)).To(Equal([]model.PortSet{model.NewPortSet("0")}))
	})

	It("propagates a search failure", func() {
		arch := model.NewArchitecture()
		arch.AddPorts([]string{"0"})
		arch.AddInsn("a")

		exps := model.NewExperimentList(arch)
		s := exps.CreateExp([]*model.Instruction{arch.Insns["a"]})
		s.Result = &model.Result{Cycles: cyclesPtr(1.0)}

		ctrl := gomock.NewController(GinkgoT())
		defer ctrl.Finish()

		runner := orchestrator.NewMockSearchRunner(ctrl)
		runner.EXPECT().Run(gomock.Any(), gomock.Any()).Return(nil, context.DeadlineExceeded)

		inf := orchestrator.NewInferrer(runner, orchestrator.Config{})
		_, err := inf.Infer(context.Background(), exps)
		Expect(err).To(HaveOccurred())
	})
})
