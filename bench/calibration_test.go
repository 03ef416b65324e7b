package bench_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/bench"
)

var _ = Describe("Calibration", func() {
	It("round-trips through Save/LoadCalibration", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "calibration.json")

		c := &bench.Calibration{NumTotalDynamicInsns: 42, NumInsnsPerIteration: 7}
		Expect(c.Save(path)).To(Succeed())

		loaded, err := bench.LoadCalibration(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(c))
	})

	It("backs up the prior cache to .bak on re-save", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "calibration.json")

		first := &bench.Calibration{NumTotalDynamicInsns: 1, NumInsnsPerIteration: 1}
		Expect(first.Save(path)).To(Succeed())

		second := &bench.Calibration{NumTotalDynamicInsns: 2, NumInsnsPerIteration: 2}
		Expect(second.Save(path)).To(Succeed())

		_, err := os.Stat(path + ".bak")
		Expect(err).NotTo(HaveOccurred())

		backup, err := bench.LoadCalibration(path + ".bak")
		Expect(err).NotTo(HaveOccurred())
		Expect(backup).To(Equal(first))
	})
})
