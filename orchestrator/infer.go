package orchestrator

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/partition"
)

// Config bundles the partitioning epsilon and logging used while inferring
// a mapping, separate from the sampling parameters of sample.go and the
// external binary parameters of SearchConfig.
type Config struct {
	Epsilon float64
	Log     *logrus.Logger
}

// Inferrer runs the full §4.I pipeline: partition the experiment set into
// equivalence classes, restrict to representatives, hand the restricted
// set to a SearchRunner, then generalize the resulting mapping back onto
// every instruction in the original architecture.
type Inferrer struct {
	Search SearchRunner
	Config Config
}

// NewInferrer returns an Inferrer with a logger defaulted the way the rest
// of this module defaults one.
func NewInferrer(search SearchRunner, cfg Config) *Inferrer {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if cfg.Epsilon == 0 {
		cfg.Epsilon = 0.1
	}
	return &Inferrer{Search: search, Config: cfg}
}

// Infer implements the PartitioningInferrer decorator's infer method: it
// expects exps to already contain a singleton experiment per instruction
// and pair experiments for every distinct pair (the output of
// GenerateSingletonAndPairs), separates singletons from the rest,
// computes equivalence classes and representatives, restricts exps to
// just the representatives, invokes the search, and generalizes the
// mapping back onto the original architecture.
func (inf *Inferrer) Infer(ctx context.Context, exps *model.ExperimentList) (*model.Mapping3, error) {
	oldArch := exps.Arch

	singletons := model.NewExperimentList(oldArch)
	pairAndUp := model.NewExperimentList(oldArch)
	for _, e := range exps.Exps {
		if len(e.ISeq) == 1 {
			singletons.InsertExp(e)
		} else {
			pairAndUp.InsertExp(e)
		}
	}

	buckets, insnToRep, stats := partition.Partition(pairAndUp, singletons, inf.Config.Epsilon)
	reps, _ := partition.Representatives(buckets)

	restricted := partition.Restrict(exps, reps)

	inf.Config.Log.WithFields(logrus.Fields{
		"component":            "orchestrator",
		"insns":                len(reps),
		"old_insns":            len(oldArch.Insns),
		"exps":                 len(restricted.Exps),
		"old_exps":             len(exps.Exps),
		"differing_length_exp": stats.NumDifferingLengthExps,
		"distinguishing_exps":  stats.NumDistinguishingExps,
	}).Info("restricted experiment set for search")

	mapping, err := inf.Search.Run(ctx, restricted)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: inference failed: %w", err)
	}

	return partition.Generalize(oldArch, mapping, insnToRep), nil
}
