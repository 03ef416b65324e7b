package bench

import (
	"context"
	"fmt"
	"math"

	"github.com/sarchlab/pite/isa"
	"github.com/sarchlab/pite/model"
)

// calibDynamicInsns is the fixed large dynamic instruction count used while
// timing the num_total_dynamic_insns probe (§4.D "fixed large dynamic
// count (10^9)").
const calibDynamicInsns = 1_000_000_000

// coarseLengths is the initial sweep of candidate loop-body lengths;
// fineWindow narrows around the coarse winner at a finer step.
var coarseLengths = []int{1, 2, 4, 8, 16, 32, 64, 128, 256, 512, 1024}

const fineStep = 4

// Calibrator runs the §4.D initial calibration recipe against a live
// toolchain: it measures wall time directly rather than going through
// Driver.RunExperiment, since calibration needs benchtime, not a
// frequency-validated cycle count.
type Calibrator struct {
	Desc      isa.Descriptor
	Renderer  *Renderer
	Toolchain Toolchain
	Core      int

	// TargetTimeUS is the wall-clock time a single calibration run should
	// take (§4.D "loop_target_time ~= 0.4s").
	TargetTimeUS float64
	// NumSamples is how many repeated measurements are taken per
	// candidate before keeping the minimum.
	NumSamples int
}

// measure renders, compiles and runs iseq once, returning the raw §6
// result dict (benchtime, cycles, meas_freq).
func (c *Calibrator) measure(ctx context.Context, iseq []*model.Instruction, numTestcaseInstances int, numIterations int64) (map[string]any, error) {
	freqPath := sysfsPath(c.Core, "scaling_cur_freq")
	source, err := c.Renderer.Render(iseq, numTestcaseInstances, numIterations, freqPath)
	if err != nil {
		return nil, err
	}
	bin, err := c.Toolchain.Compile(ctx, source, c.Desc.AdditionalCCFlags())
	if err != nil {
		return nil, err
	}
	argv := c.Desc.CreateCommand(bin, c.Core)
	stdout, err := c.Toolchain.Run(ctx, argv)
	if err != nil {
		return nil, err
	}
	return c.Desc.ExtractResult(string(stdout), numTestcaseInstances)
}

// CalibrateTotalDynamicInsns runs each of sampleInsns as a 1-instruction
// experiment at a fixed large dynamic count and picks
// round(TargetTimeUS / min(benchtime) * calibDynamicInsns), taking the
// minimum wall time across samples to reject outliers (§4.D step 1).
func (c *Calibrator) CalibrateTotalDynamicInsns(ctx context.Context, sampleInsns []*model.Instruction) (int64, error) {
	minTime := math.Inf(1)
	for _, insn := range sampleInsns {
		result, err := c.measure(ctx, []*model.Instruction{insn}, 1, calibDynamicInsns)
		if err != nil {
			return 0, fmt.Errorf("bench: calibrating with instruction %q: %w", insn.Name, err)
		}
		benchtime, ok := result["benchtime"].(float64)
		if !ok || benchtime <= 0 {
			return 0, fmt.Errorf("bench: instruction %q produced no usable benchtime", insn.Name)
		}
		if benchtime < minTime {
			minTime = benchtime
		}
	}
	if math.IsInf(minTime, 1) {
		return 0, fmt.Errorf("bench: no sample instructions to calibrate against")
	}
	return int64(math.Round(c.TargetTimeUS / minTime * calibDynamicInsns)), nil
}

// cyclesAtLength evaluates length as a candidate num_insns_per_iteration,
// cycling sampleInsns to fill the loop body, and returns the minimum
// reported cycles/instruction across NumSamples runs.
func (c *Calibrator) cyclesAtLength(ctx context.Context, sampleInsns []*model.Instruction, length int, numTotalDynamicInsns int64) (float64, error) {
	iseq := make([]*model.Instruction, length)
	for i := range iseq {
		iseq[i] = sampleInsns[i%len(sampleInsns)]
	}

	best := math.Inf(1)
	for s := 0; s < c.NumSamples; s++ {
		numIterations := numTotalDynamicInsns / int64(length)
		result, err := c.measure(ctx, iseq, 1, numIterations)
		if err != nil {
			return 0, err
		}
		cycles, ok := result["cycles"].(float64)
		if !ok {
			return 0, fmt.Errorf("bench: candidate length %d produced no usable cycle count", length)
		}
		if cycles < best {
			best = cycles
		}
	}
	return best, nil
}

// CalibrateInsnsPerIteration runs the coarse-then-fine sweep of §4.D step
// 2: evaluate sampleInsns at each candidate length, keep the global
// minimum, then refine in a narrow window around it at a finer step.
func (c *Calibrator) CalibrateInsnsPerIteration(ctx context.Context, sampleInsns []*model.Instruction, numTotalDynamicInsns int64) (int, error) {
	bestLen, bestCycles, err := c.sweep(ctx, sampleInsns, coarseLengths, numTotalDynamicInsns)
	if err != nil {
		return 0, err
	}

	window := fineWindow(bestLen)
	fineLen, fineCycles, err := c.sweep(ctx, sampleInsns, window, numTotalDynamicInsns)
	if err != nil {
		return 0, err
	}
	if fineCycles < bestCycles {
		bestLen = fineLen
	}
	return bestLen, nil
}

func (c *Calibrator) sweep(ctx context.Context, sampleInsns []*model.Instruction, lengths []int, numTotalDynamicInsns int64) (int, float64, error) {
	bestLen := lengths[0]
	bestCycles := math.Inf(1)
	for _, length := range lengths {
		cycles, err := c.cyclesAtLength(ctx, sampleInsns, length, numTotalDynamicInsns)
		if err != nil {
			return 0, 0, err
		}
		if cycles < bestCycles {
			bestCycles = cycles
			bestLen = length
		}
	}
	return bestLen, bestCycles, nil
}

// fineWindow returns a narrow band of lengths around center at fineStep
// granularity, clamped to stay positive.
func fineWindow(center int) []int {
	lo := center - 4*fineStep
	if lo < 1 {
		lo = 1
	}
	hi := center + 4*fineStep
	var res []int
	for l := lo; l <= hi; l += fineStep {
		res = append(res, l)
	}
	return res
}

// Calibrate runs both steps of §4.D's initial calibration and returns the
// resulting Calibration, ready to Save.
func (c *Calibrator) Calibrate(ctx context.Context, sampleInsns []*model.Instruction) (*Calibration, error) {
	totalDynamicInsns, err := c.CalibrateTotalDynamicInsns(ctx, sampleInsns)
	if err != nil {
		return nil, err
	}
	insnsPerIteration, err := c.CalibrateInsnsPerIteration(ctx, sampleInsns, totalDynamicInsns)
	if err != nil {
		return nil, err
	}
	return &Calibration{
		NumTotalDynamicInsns: totalDynamicInsns,
		NumInsnsPerIteration: insnsPerIteration,
	}, nil
}
