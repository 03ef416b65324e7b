package bench

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/pite/isa"
	"github.com/sarchlab/pite/model"
)

// RunRequest overrides Driver's defaults for a single measurement, mirroring
// run_experiment's optional fields (§4.H).
type RunRequest struct {
	ISeq                 []*model.Instruction
	Repetitions          int
	NumInsnsPerIteration int
	NumTotalDynamicInsns int64
	TargetTimeUS         float64
	MaxUncertainty       float64
}

// Driver ties a rendered source, a toolchain, and a calibration together
// to execute §4.D's per-experiment measurement recipe.
type Driver struct {
	Desc      isa.Descriptor
	Renderer  *Renderer
	Toolchain Toolchain
	Calib     *Calibration
	Settings  Settings
	Log       *logrus.Logger
}

// NewDriver returns a Driver that logs through logrus's standard logger.
func NewDriver(desc isa.Descriptor, renderer *Renderer, toolchain Toolchain, calib *Calibration, settings Settings) *Driver {
	return &Driver{
		Desc:      desc,
		Renderer:  renderer,
		Toolchain: toolchain,
		Calib:     calib,
		Settings:  settings,
		Log:       logrus.StandardLogger(),
	}
}

type repetitionResult struct {
	cycles      float64
	uncertainty float64
	valid       bool
}

// RunExperiment executes req and returns the §6 result dict: at least
// "cycles" (nil on failure) and, on failure, "error_cause".
func (d *Driver) RunExperiment(ctx context.Context, req RunRequest) map[string]any {
	L := len(req.ISeq)
	if L == 0 {
		return errorResult("empty instruction sequence")
	}

	numInsnsPerIteration := req.NumInsnsPerIteration
	if numInsnsPerIteration == 0 {
		numInsnsPerIteration = d.Calib.NumInsnsPerIteration
	}
	numTotalDynamicInsns := req.NumTotalDynamicInsns
	if numTotalDynamicInsns == 0 {
		numTotalDynamicInsns = d.Calib.NumTotalDynamicInsns
	}
	repetitions := req.Repetitions
	if repetitions == 0 {
		repetitions = d.Settings.Repetitions
	}
	maxUncertainty := req.MaxUncertainty
	if maxUncertainty == 0 {
		maxUncertainty = d.Settings.MaxUncertainty
	}

	numTestcaseInstances := ceilDiv(numInsnsPerIteration, L)

	if req.TargetTimeUS != 0 && !d.Desc.IsSimulated() {
		scaled, err := d.scaleToTargetTime(ctx, req.ISeq, numTestcaseInstances, numTotalDynamicInsns, req.TargetTimeUS)
		if err != nil {
			d.Log.WithError(err).Warn("bench: target-time calibration failed, keeping the configured dynamic instruction count")
		} else {
			numTotalDynamicInsns = scaled
		}
	}

	numIterations := numTotalDynamicInsns / int64(L*numTestcaseInstances)

	freqPath := sysfsPath(d.Settings.Core, "scaling_cur_freq")

	source, err := d.Renderer.Render(req.ISeq, numTestcaseInstances, numIterations, freqPath)
	if err != nil {
		d.Log.WithError(err).Error("bench: rendering benchmark source failed")
		return errorResult("compilation failed")
	}

	bin, err := d.Toolchain.Compile(ctx, source, d.Desc.AdditionalCCFlags())
	if err != nil {
		d.Log.WithError(err).Warn("bench: compilation failed")
		return errorResult("compilation failed")
	}

	argv := d.Desc.CreateCommand(bin, d.Settings.Core)

	reps := make([]repetitionResult, 0, repetitions)
	for i := 0; i < repetitions; i++ {
		rep, cause, err := d.runOnce(ctx, argv, numTestcaseInstances, maxUncertainty)
		if err != nil {
			d.Log.WithError(err).Error("bench: repetition aborted")
			return errorResult(cause)
		}
		reps = append(reps, *rep)
	}

	return d.summarize(reps, repetitions)
}

// scaleToTargetTime renders, compiles and runs a short calibration
// experiment at numTotalDynamicInsns/20, then scales numTotalDynamicInsns
// by the ratio of targetTimeUS to the observed benchtime (§12
// "target_time_us auto-scaling", mirroring processor_benchmarking.py's
// run_experiment scaling step).
func (d *Driver) scaleToTargetTime(ctx context.Context, iseq []*model.Instruction, numTestcaseInstances int, numTotalDynamicInsns int64, targetTimeUS float64) (int64, error) {
	calibInsns := numTotalDynamicInsns / 20
	if calibInsns < 1 {
		calibInsns = 1
	}
	numIterations := calibInsns / int64(len(iseq)*numTestcaseInstances)
	if numIterations < 1 {
		numIterations = 1
	}

	freqPath := sysfsPath(d.Settings.Core, "scaling_cur_freq")
	source, err := d.Renderer.Render(iseq, numTestcaseInstances, numIterations, freqPath)
	if err != nil {
		return 0, err
	}
	bin, err := d.Toolchain.Compile(ctx, source, d.Desc.AdditionalCCFlags())
	if err != nil {
		return 0, err
	}
	argv := d.Desc.CreateCommand(bin, d.Settings.Core)
	stdout, err := d.Toolchain.Run(ctx, argv)
	if err != nil {
		return 0, err
	}
	result, err := d.Desc.ExtractResult(string(stdout), numTestcaseInstances)
	if err != nil {
		return 0, err
	}
	benchtime, ok := result["benchtime"].(float64)
	if !ok || benchtime <= 0 {
		return 0, fmt.Errorf("bench: target-time calibration produced no usable benchtime")
	}
	return int64(math.Round(targetTimeUS / benchtime * float64(calibInsns))), nil
}

// runOnce runs the compiled benchmark once. A non-nil error here is one of
// §4.D's hard failure causes (execution failed / throughput missing) and
// short-circuits the whole experiment rather than just this repetition,
// since a broken binary or an unparsable tool is not a flaky-frequency
// problem a repeat would fix.
func (d *Driver) runOnce(ctx context.Context, argv []string, numTestcaseInstances int, maxUncertainty float64) (*repetitionResult, string, error) {
	var tpBefore, tpAfter int64
	var err error
	if !d.Desc.IsSimulated() {
		tpBefore, err = ReadScalingFreq(d.Settings.Core)
		if err != nil {
			return nil, "execution failed", err
		}
	}

	stdout, err := d.Toolchain.Run(ctx, argv)
	if err != nil {
		return nil, "execution failed", err
	}

	if !d.Desc.IsSimulated() {
		tpAfter, err = ReadScalingFreq(d.Settings.Core)
		if err != nil {
			return nil, "execution failed", err
		}
	}

	cause := fmt.Sprintf("throughput missing in %s output", d.Desc.Name())

	result, err := d.Desc.ExtractResult(string(stdout), numTestcaseInstances)
	if err != nil {
		return nil, cause, err
	}
	cycles, ok := result["cycles"].(float64)
	if !ok {
		return nil, cause, fmt.Errorf("%s", cause)
	}

	uncertainty := 0.0
	if !d.Desc.IsSimulated() {
		uncertainty = frequencyUncertainty(tpBefore, tpAfter)
	}

	return &repetitionResult{
		cycles:      cycles,
		uncertainty: uncertainty,
		valid:       uncertainty < maxUncertainty,
	}, "", nil
}

// frequencyUncertainty computes tp_uncertainty = 2*|before-after|/(before+after)
// (§4.D "Frequency stability check"). before+after == 0 means the scaling
// frequency could not be read meaningfully on either side of the run, which
// §9's degenerate-case resolution treats as invalid rather than perfectly
// stable.
func frequencyUncertainty(before, after int64) float64 {
	if before+after == 0 {
		return math.Inf(1)
	}
	diff := before - after
	if diff < 0 {
		diff = -diff
	}
	return 2 * float64(diff) / float64(before+after)
}

// summarize applies §4.D's median-of-valid-reps rule: strictly more than
// half of R repetitions must be valid, or the experiment fails. With an
// even number of valid repetitions the lower of the two middle values is
// reported.
func (d *Driver) summarize(reps []repetitionResult, total int) map[string]any {
	var valid []repetitionResult
	for _, r := range reps {
		if r.valid {
			valid = append(valid, r)
		}
	}
	if len(valid) <= total/2 {
		return errorResult("frequency too unreliable for measurements, try more repetitions")
	}

	sort.Slice(valid, func(i, j int) bool { return valid[i].cycles < valid[j].cycles })
	median := valid[(len(valid)-1)/2].cycles

	maxUncertainty := 0.0
	for _, r := range valid {
		if r.uncertainty > maxUncertainty {
			maxUncertainty = r.uncertainty
		}
	}

	return map[string]any{
		"cycles":         median,
		"tp_uncertainty": maxUncertainty,
	}
}

func errorResult(cause string) map[string]any {
	return map[string]any{"cycles": nil, "error_cause": cause}
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
