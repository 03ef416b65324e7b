// Command pite-server runs the measurement RPC service of §4.H: it loads
// an ISA descriptor and instruction-form set, pins a core and its
// frequency (unless told not to), and serves get_insns/get_num_ports/
// get_description/run_experiment/gen_code over mutual TLS until
// interrupted.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/pite/bench"
	"github.com/sarchlab/pite/isa"
	_ "github.com/sarchlab/pite/isa/simulated"
	"github.com/sarchlab/pite/measure"
)

func main() {
	var (
		port      int
		sslpath   string
		isaName   string
		core      int
		numPorts  int
		formSet   string
		noroot    bool
		precise   bool
		noprecise bool
		newSU     bool
		noNewSU   bool
	)

	cmd := &cobra.Command{
		Use:   "pite-server",
		Short: "Serve the PITE instruction-throughput measurement RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()
			if noprecise {
				precise = false
			}
			if noNewSU {
				newSU = false
			}

			desc, err := isa.Lookup(isaName)
			if err != nil {
				return fmt.Errorf("pite-server: %w", err)
			}

			fs, err := isa.LoadFormSet(formSet)
			if err != nil {
				return fmt.Errorf("pite-server: %w", err)
			}
			arch := fs.Architecture()
			renderer := &bench.Renderer{Desc: desc, Forms: fs.Forms()}

			if !desc.IsSimulated() {
				if err := bench.ValidateCore(core); err != nil {
					return fmt.Errorf("pite-server: %w", err)
				}
				if !noroot {
					pinning, err := bench.PinFrequency(core)
					if err != nil {
						return fmt.Errorf("pite-server: pinning frequency: %w", err)
					}
					defer pinning.Release()
				} else {
					log.Warn("--noroot set: running without frequency pinning")
				}
			}

			toolchain := &bench.GCCToolchain{TempDir: filepath.Join(os.TempDir(), fmt.Sprintf("pite_%d", port))}
			settings := bench.DefaultSettings(core)
			calib := &bench.Calibration{
				NumTotalDynamicInsns: 10_000_000,
				NumInsnsPerIteration: 100,
			}

			driver := bench.NewDriver(desc, renderer, toolchain, calib, settings)
			eval := &measure.DriverEvaluator{
				Arch: arch, Desc: desc, Renderer: renderer, Driver: driver, NumPorts: numPorts,
			}

			material, err := measure.Bootstrap(sslpath)
			if err != nil {
				return fmt.Errorf("pite-server: bootstrapping TLS material: %w", err)
			}

			server := measure.NewServer(eval, log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			addr := fmt.Sprintf("0.0.0.0:%d", port)
			log.WithFields(logrus.Fields{
				"addr": addr, "isa": isaName, "core": core, "precise": precise, "new_su": newSU,
			}).Info("starting measurement service")
			return server.Listen(ctx, addr, material)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&port, "port", 8443, "listening port")
	flags.StringVar(&sslpath, "sslpath", "/tmp/pite-ssl", "directory holding (or to create) TLS material")
	flags.StringVar(&isaName, "isa", "x86_64", "ISA descriptor to serve (x86_64, aarch64, IACAx86_64, Ithemalx86_64, ...)")
	flags.IntVar(&core, "core", 0, "CPU core to pin benchmarks to")
	flags.IntVar(&numPorts, "numports", 0, "number of ports to report via get_num_ports")
	flags.StringVar(&formSet, "forms", "", "path to the YAML instruction/port form set (use --isa=IACAx86_64 or --isa=Ithemalx86_64 to target those backends)")
	flags.BoolVar(&noroot, "noroot", false, "skip frequency pinning (requires no root privileges)")
	flags.BoolVar(&precise, "precise", true, "accepted for compatibility; only recorded in the startup log")
	flags.BoolVar(&noprecise, "no-precise", false, "alias of --precise=false")
	flags.BoolVar(&newSU, "newSU", true, "accepted for compatibility; only recorded in the startup log")
	flags.BoolVar(&noNewSU, "no-newSU", false, "alias of --newSU=false")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
