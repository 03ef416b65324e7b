package orchestrator

import (
	"fmt"
	"io"
	"time"

	"github.com/google/pprof/profile"
)

// StageProfiler accumulates wall-time spent in named pipeline stages
// (compile, execute, measure, search, partition) across an inference run,
// distinct from the microbenchmark cycle counts themselves — this is how
// the *tool* spends its own time, exported as a pprof profile so it can
// be inspected with the standard `go tool pprof` flame graph.
type StageProfiler struct {
	samples map[string]time.Duration
	counts  map[string]int64
}

// NewStageProfiler returns an empty profiler.
func NewStageProfiler() *StageProfiler {
	return &StageProfiler{
		samples: make(map[string]time.Duration),
		counts:  make(map[string]int64),
	}
}

// Track runs fn, attributing its wall-clock duration to stage.
func (p *StageProfiler) Track(stage string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.samples[stage] += time.Since(start)
	p.counts[stage]++
	return err
}

// Write renders the accumulated stage timings as a pprof profile (one
// sample per stage, value = cumulative nanoseconds and call count) to w.
func (p *StageProfiler) Write(w io.Writer) error {
	prof := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "count", Unit: "count"},
			{Type: "wall_time", Unit: "nanoseconds"},
		},
		PeriodType: &profile.ValueType{Type: "wall_time", Unit: "nanoseconds"},
		Period:     1,
	}

	locID := uint64(1)
	funcID := uint64(1)
	for stage, dur := range p.samples {
		fn := &profile.Function{
			ID:   funcID,
			Name: stage,
		}
		loc := &profile.Location{
			ID:   locID,
			Line: []profile.Line{{Function: fn}},
		}
		prof.Function = append(prof.Function, fn)
		prof.Location = append(prof.Location, loc)
		prof.Sample = append(prof.Sample, &profile.Sample{
			Location: []*profile.Location{loc},
			Value:    []int64{p.counts[stage], dur.Nanoseconds()},
		})
		locID++
		funcID++
	}

	if err := prof.CheckValid(); err != nil {
		return fmt.Errorf("orchestrator: self-profile is not valid: %w", err)
	}
	return prof.Write(w)
}
