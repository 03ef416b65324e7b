package isa_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pite/isa"
)

var _ = Describe("FormSet", func() {
	It("loads ports and instruction templates from YAML and builds an architecture", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "insns.yaml")
		Expect(os.WriteFile(path, []byte(`
ports: ["0", "1"]
instructions:
  add: "add ((REG:RW:G:64)), ((IMM:32))"
  sub: "sub ((REG:RW:G:64)), ((IMM:32))"
`), 0o644)).To(Succeed())

		fs, err := isa.LoadFormSet(path)
		Expect(err).NotTo(HaveOccurred())

		arch := fs.Architecture()
		Expect(arch.InsnList()).To(HaveLen(2))
		Expect(arch.PortList()).To(HaveLen(2))

		forms := fs.Forms()
		Expect(forms).To(HaveKeyWithValue("add", "add ((REG:RW:G:64)), ((IMM:32))"))
	})

	It("rejects a form set with no instructions", func() {
		dir := GinkgoT().TempDir()
		path := filepath.Join(dir, "empty.yaml")
		Expect(os.WriteFile(path, []byte("ports: [\"0\"]\n"), 0o644)).To(Succeed())

		_, err := isa.LoadFormSet(path)
		Expect(err).To(HaveOccurred())
	})
})
