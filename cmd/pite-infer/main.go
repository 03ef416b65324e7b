// Command pite-infer drives the offline inference pipeline (§4.I): it
// samples a mixed-length experiment batch for an instruction/port
// architecture, hands it to the external search binary through
// orchestrator.SubprocessSearchRunner, partitions instructions into
// equivalence classes along the way, and prints the resulting port
// mapping as a table. The final mapping is recorded in a sqlite3-backed
// Vault; a new run starts from scratch and does not resume from earlier
// Vault entries.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sarchlab/pite/isa"
	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/orchestrator"
)

func main() {
	var (
		configPath string
		formsPath  string
		seed       int64
	)

	cmd := &cobra.Command{
		Use:   "pite-infer",
		Short: "Infer a port mapping for an architecture via sampled experiments",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logrus.StandardLogger()

			cfg, err := orchestrator.LoadFileConfig(configPath)
			if err != nil {
				return fmt.Errorf("pite-infer: %w", err)
			}

			fs, err := isa.LoadFormSet(formsPath)
			if err != nil {
				return fmt.Errorf("pite-infer: %w", err)
			}
			arch := fs.Architecture()

			cache, err := orchestrator.OpenCache(cfg.CachePath)
			if err != nil {
				return fmt.Errorf("pite-infer: opening cache: %w", err)
			}
			defer cache.Close()

			vault, err := orchestrator.OpenVault(cache)
			if err != nil {
				return fmt.Errorf("pite-infer: opening vault: %w", err)
			}

			rng := rand.New(rand.NewSource(seed))
			exps := orchestrator.GenerateEvalSet(rng, arch, cfg.MinLength, cfg.MaxLength, cfg.NumMixes)
			log.WithField("experiments", len(exps.Exps)).Info("sampled experiment batch")

			runner := &orchestrator.SubprocessSearchRunner{Config: cfg.ToSearchConfig()}
			inferrer := orchestrator.NewInferrer(runner, orchestrator.Config{Epsilon: cfg.Epsilon, Log: log})

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			profiler := orchestrator.NewStageProfiler()
			var mapping *model.Mapping3
			err = profiler.Track("infer", func() error {
				var infErr error
				mapping, infErr = inferrer.Infer(ctx, exps)
				return infErr
			})
			if err != nil {
				return fmt.Errorf("pite-infer: %w", err)
			}

			if _, verr := vault.Add(mapping.ToJSONDict()); verr != nil {
				log.WithError(verr).Warn("failed to checkpoint inferred mapping to vault")
			}

			orchestrator.WriteMappingDiff(os.Stdout, arch, model.NewMapping3(arch), mapping)

			if profPath := os.Getenv("PITE_INFER_PROFILE"); profPath != "" {
				f, ferr := os.Create(profPath)
				if ferr != nil {
					log.WithError(ferr).Warn("failed to create profile output")
				} else {
					defer f.Close()
					if werr := profiler.Write(f); werr != nil {
						log.WithError(werr).Warn("failed to write profile")
					}
				}
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&configPath, "config", "", "path to the YAML search/sampling configuration")
	flags.StringVar(&formsPath, "forms", "", "path to the YAML instruction/port form set")
	flags.Int64Var(&seed, "seed", 1, "PRNG seed for experiment sampling")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagRequired("forms")

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
