package model_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/model"
)

var _ = Describe("PortSet", func() {
	It("canonicalizes duplicate and unordered names", func() {
		a := model.NewPortSet("p1", "p0", "p1")
		Expect([]string(a)).To(Equal([]string{"p0", "p1"}))
	})

	It("compares equal by Key() regardless of construction order", func() {
		a := model.NewPortSet("p0", "p1")
		b := model.NewPortSet("p1", "p0")
		Expect(a.Key()).To(Equal(b.Key()))
	})
})

var _ = Describe("Mapping2/Mapping3", func() {
	var (
		arch *model.Architecture
		add  *model.Instruction
	)

	BeforeEach(func() {
		arch = model.NewArchitecture()
		add = arch.AddInsn("ADD")
		arch.AddPorts([]string{"0", "1", "2"})
	})

	It("derives a Mapping2 as the union of a Mapping3's uop port sets", func() {
		m3 := model.NewMapping3(arch)
		m3.Set(add, []model.PortSet{
			model.NewPortSet("0"),
			model.NewPortSet("1", "2"),
		})

		m2 := model.FromMapping3(m3)
		Expect(m2.Get(add).Key()).To(Equal(model.NewPortSet("0", "1", "2").Key()))
	})

	It("round-trips a Mapping2 through JSON", func() {
		m2 := model.NewMapping2(arch)
		m2.Set(add, model.NewPortSet("0", "1"))

		data, err := m2.MarshalJSON()
		Expect(err).NotTo(HaveOccurred())

		round := model.NewMapping2(arch)
		Expect(round.UnmarshalJSON(data)).To(Succeed())
		Expect(round.Get(add).Key()).To(Equal(m2.Get(add).Key()))
	})

	It("round-trips a Mapping3 through JSON", func() {
		m3 := model.NewMapping3(arch)
		m3.Set(add, []model.PortSet{model.NewPortSet("0"), model.NewPortSet("1")})

		data, err := m3.MarshalJSON()
		Expect(err).NotTo(HaveOccurred())

		round := model.NewMapping3(arch)
		Expect(round.UnmarshalJSON(data)).To(Succeed())
		Expect(round.NumUops(add)).To(Equal(2))
	})
})
