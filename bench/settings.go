// Package bench implements the microbenchmark driver of §4.D: it renders a
// C program embedding a register-allocated instruction sequence, compiles
// and executes it pinned to a core at a pinned frequency, and turns the
// result into a cycles/instruction measurement with a frequency-stability
// check.
package bench

// Settings carries the per-machine defaults every experiment measurement
// falls back to when a request does not override them (§4.H
// run_experiment's optional fields).
type Settings struct {
	// Core is the CPU core benchmarks are pinned to.
	Core int

	// TargetTimeUS is the wall-clock time (microseconds) a calibration run
	// aims for, used to pick NumTotalDynamicInsns (§4.D, "loop_target_time
	// ~= 0.4s" i.e. 400000us).
	TargetTimeUS float64

	// MaxUncertainty is the largest tp_uncertainty a repetition may report
	// and still be counted valid.
	MaxUncertainty float64

	// Repetitions is how many times an experiment is executed so the
	// frequency-stability check has a population to take the median of.
	Repetitions int

	// NumSamples is how many repeated measurements calibration takes per
	// candidate before keeping the minimum, to reject outliers.
	NumSamples int
}

// DefaultSettings returns the defaults the original measurement recipe
// uses absent any override.
func DefaultSettings(core int) Settings {
	return Settings{
		Core:           core,
		TargetTimeUS:   400000,
		MaxUncertainty: 0.02,
		Repetitions:    5,
		NumSamples:     5,
	}
}
