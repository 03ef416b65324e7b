// Package throughput implements the bottleneck-algorithm throughput
// simulator (§4.E): given a port mapping and an instruction sequence, it
// computes the steady-state cycles-per-iteration the sequence would take
// on the modeled machine.
package throughput

import (
	"math/rand"
	"time"

	"github.com/sarchlab/pite/model"
)

// Processor evaluates instruction sequences against a port mapping,
// returning a result dict compatible with model.Result's Extra fields
// (§4.E, mirroring the measurement service's run_experiment contract so
// callers can treat a simulated and a measured result uniformly).
type Processor interface {
	Architecture() *model.Architecture
	Description() string

	// Cycles returns the modeled steady-state cycle count for iseq.
	Cycles(iseq []*model.Instruction) float64

	// Execute evaluates iseq and returns a result map with at least a
	// "cycles" float64 entry.
	Execute(iseq []*model.Instruction) map[string]any
}

// EvalList evaluates every experiment in el in list order and records the
// result as each experiment's primary Result (§5 "Ordering": experiments
// within a single ExperimentList are measured in list order).
func EvalList(p Processor, el *model.ExperimentList) {
	for _, e := range el.Exps {
		res := p.Execute(e.ISeq)
		cycles, _ := res["cycles"].(float64)
		e.Result = &model.Result{Cycles: &cycles, Extra: withoutCycles(res)}
	}
}

func withoutCycles(res map[string]any) map[string]any {
	out := make(map[string]any, len(res))
	for k, v := range res {
		if k != "cycles" && k != "error_cause" {
			out[k] = v
		}
	}
	return out
}

// Delayed wraps a Processor so every Execute/Cycles call sleeps for a fixed
// delay first, for simulating a slow remote backend in tests and demos
// (§12 "Processor decorator wrappers").
type Delayed struct {
	Processor
	Delay time.Duration
}

// NewDelayed wraps p with the given per-call delay.
func NewDelayed(p Processor, delay time.Duration) *Delayed {
	return &Delayed{Processor: p, Delay: delay}
}

func (d *Delayed) Description() string {
	return "delayed processor wrapping (" + d.Processor.Description() + ") with a delay of " + d.Delay.String()
}

func (d *Delayed) Cycles(iseq []*model.Instruction) float64 {
	time.Sleep(d.Delay)
	return d.Processor.Cycles(iseq)
}

func (d *Delayed) Execute(iseq []*model.Instruction) map[string]any {
	time.Sleep(d.Delay)
	return d.Processor.Execute(iseq)
}

// Jittered wraps a Processor so every reported cycle count is perturbed by
// a uniform random offset in [-Jitter, +Jitter] (§12).
type Jittered struct {
	Processor
	Jitter float64
	Rand   *rand.Rand
}

// NewJittered wraps p, perturbing its cycle counts by up to ±jitter using
// rng (pass a seeded *rand.Rand for reproducible jitter).
func NewJittered(p Processor, jitter float64, rng *rand.Rand) *Jittered {
	return &Jittered{Processor: p, Jitter: jitter, Rand: rng}
}

func (j *Jittered) Description() string {
	return "jittered processor wrapping (" + j.Processor.Description() + ")"
}

func (j *Jittered) offset() float64 {
	return (j.Rand.Float64()*2 - 1) * j.Jitter
}

func (j *Jittered) Cycles(iseq []*model.Instruction) float64 {
	return j.Processor.Cycles(iseq) + j.offset()
}

func (j *Jittered) Execute(iseq []*model.Instruction) map[string]any {
	res := j.Processor.Execute(iseq)
	if c, ok := res["cycles"].(float64); ok {
		res["cycles"] = c + j.offset()
	}
	return res
}
