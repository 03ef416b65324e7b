package orchestrator_test

import (
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/orchestrator"
)

var _ = Describe("Cache", func() {
	It("stores and retrieves a measurement by instruction sequence", func() {
		dir := GinkgoT().TempDir()
		cache, err := orchestrator.OpenCache(filepath.Join(dir, "cache.sqlite3"))
		Expect(err).NotTo(HaveOccurred())
		defer cache.Close()

		arch := model.NewArchitecture()
		arch.AddPorts([]string{"0"})
		add := arch.AddInsn("add")
		sub := arch.AddInsn("sub")

		_, ok, err := cache.Lookup([]*model.Instruction{add, sub})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		Expect(cache.Store([]*model.Instruction{add, sub}, 3.5, 1000)).To(Succeed())

		cycles, ok, err := cache.Lookup([]*model.Instruction{add, sub})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(cycles).To(Equal(3.5))
	})

	It("overwrites a prior measurement for the same sequence", func() {
		dir := GinkgoT().TempDir()
		cache, err := orchestrator.OpenCache(filepath.Join(dir, "cache.sqlite3"))
		Expect(err).NotTo(HaveOccurred())
		defer cache.Close()

		arch := model.NewArchitecture()
		arch.AddPorts([]string{"0"})
		add := arch.AddInsn("add")

		Expect(cache.Store([]*model.Instruction{add}, 1.0, 1)).To(Succeed())
		Expect(cache.Store([]*model.Instruction{add}, 2.0, 2)).To(Succeed())

		cycles, ok, err := cache.Lookup([]*model.Instruction{add})
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(cycles).To(Equal(2.0))
	})
})

var _ = Describe("Vault", func() {
	It("assigns sequential progress ids and replays entries in order", func() {
		dir := GinkgoT().TempDir()
		cache, err := orchestrator.OpenCache(filepath.Join(dir, "cache.sqlite3"))
		Expect(err).NotTo(HaveOccurred())
		defer cache.Close()

		vault, err := orchestrator.OpenVault(cache)
		Expect(err).NotTo(HaveOccurred())

		_, ok, err := vault.LastProgress()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeFalse())

		id0, err := vault.Add(map[string]any{"iseq": "add"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id0).To(Equal(0))

		id1, err := vault.Add(map[string]any{"iseq": "sub"})
		Expect(err).NotTo(HaveOccurred())
		Expect(id1).To(Equal(1))

		last, ok, err := vault.LastProgress()
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(last).To(Equal(1))

		entries, err := vault.All()
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(2))
		Expect(string(entries[0])).To(ContainSubstring("add"))
		Expect(string(entries[1])).To(ContainSubstring("sub"))
	})
})
