package measure_test

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"

	"github.com/sarchlab/pite/bench"
	"github.com/sarchlab/pite/isa"
	_ "github.com/sarchlab/pite/isa/simulated"
	"github.com/sarchlab/pite/measure"
	"github.com/sarchlab/pite/model"
)

var _ = Describe("Server and Client over mTLS", func() {
	var (
		ctx    context.Context
		cancel context.CancelFunc
		m      measure.Material
		addr   string
	)

	BeforeEach(func() {
		dir := GinkgoT().TempDir()
		var err error
		m, err = measure.Bootstrap(filepath.Join(dir, "ssl"))
		Expect(err).NotTo(HaveOccurred())

		arch := model.NewArchitecture()
		arch.AddPorts([]string{"0"})
		arch.AddInsn("add")

		desc, err := isa.Lookup("IACAx86_64")
		Expect(err).NotTo(HaveOccurred())

		renderer := &bench.Renderer{
			Desc:  desc,
			Forms: map[string]string{"add": "add ((REG:RW:G:64)), ((IMM:32))"},
		}
		toolchain := &fakeToolchain{runOutput: []byte("Block Throughput: 2.00 Cycles")}
		driver := bench.NewDriver(desc, renderer, toolchain,
			&bench.Calibration{NumTotalDynamicInsns: 1000, NumInsnsPerIteration: 1},
			bench.Settings{Core: 0, Repetitions: 1, MaxUncertainty: 0.02})

		eval := &measure.DriverEvaluator{Arch: arch, Desc: desc, Renderer: renderer, Driver: driver, NumPorts: 1}

		log := logrus.New()
		log.SetLevel(logrus.ErrorLevel)
		server := measure.NewServer(eval, log)

		lis, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())
		addr = lis.Addr().String()
		lis.Close()

		ctx, cancel = context.WithCancel(context.Background())
		go func() { _ = server.Listen(ctx, addr, m) }()
		time.Sleep(150 * time.Millisecond)
	})

	AfterEach(func() {
		cancel()
	})

	It("serves get_insns, get_num_ports, get_description and run_experiment over a certificate-verified channel", func() {
		client, err := measure.NewClient(fmt.Sprintf("https://%s", addr), m)
		Expect(err).NotTo(HaveOccurred())

		insns, err := client.GetInsns(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(insns).To(Equal([]string{"add"}))

		numPorts, err := client.GetNumPorts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(numPorts).To(Equal(1))

		desc, err := client.GetDescription(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(desc).To(ContainSubstring("IACAx86_64"))

		res, err := client.RunExperiment(ctx, measure.RunExperimentRequest{Insns: []string{"add"}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res["cycles"]).To(Equal(2.0))
	})
})
