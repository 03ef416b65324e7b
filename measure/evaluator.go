package measure

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/sarchlab/pite/bench"
	"github.com/sarchlab/pite/isa"
	"github.com/sarchlab/pite/model"
)

// RunExperimentRequest is the decoded form of a run_experiment call
// (§4.H); optional fields are nil when the caller left them for the
// driver's defaults.
type RunExperimentRequest struct {
	Insns                []string `json:"iseq"`
	Repetitions          *int     `json:"repetitions,omitempty"`
	NumInsnsPerIteration *int     `json:"num_insns_per_iteration,omitempty"`
	NumTotalDynamicInsns *int64   `json:"num_total_dynamic_insns,omitempty"`
	TargetTimeUS         *float64 `json:"target_time_us,omitempty"`
	MaxUncertainty       *float64 `json:"max_uncertainty,omitempty"`
}

// GenCodeRequest is the decoded form of a gen_code call.
type GenCodeRequest struct {
	Insns                []string `json:"iseq"`
	NumInsnsPerIteration *int     `json:"num_insns_per_iteration,omitempty"`
}

// Evaluator is the low-level contract a benchmarking backend implements to
// be exposed by the RPC server (§4.H), mirroring the abstract evaluator the
// original measurement service delegates every request to.
type Evaluator interface {
	GetInsns() []string
	GetNumPorts() int
	GetDescription() string
	RunExperiment(ctx context.Context, req RunExperimentRequest) map[string]any
	GenCode(ctx context.Context, req GenCodeRequest) (string, int, error)
}

// DriverEvaluator adapts a bench.Driver, its Renderer and the measured
// architecture into an Evaluator, the composition a real server process
// wires together (§4.D + §4.H meeting point).
type DriverEvaluator struct {
	Arch     *model.Architecture
	Desc     isa.Descriptor
	Renderer *bench.Renderer
	Driver   *bench.Driver
	NumPorts int

	mu sync.Mutex
}

// GetInsns returns the architecture's instruction names in sorted order.
func (d *DriverEvaluator) GetInsns() []string {
	insns := d.Arch.InsnList()
	names := make([]string, len(insns))
	for i, insn := range insns {
		names[i] = insn.Name
	}
	return names
}

// GetNumPorts returns the configured port count.
func (d *DriverEvaluator) GetNumPorts() int {
	return d.NumPorts
}

// GetDescription returns a human-readable backend description.
func (d *DriverEvaluator) GetDescription() string {
	return fmt.Sprintf("pite (%s) processor", d.Desc.Name())
}

// resolveISeq looks up each requested instruction name against the
// architecture, failing fast on an unknown identifier the way the
// original RemoteEvaluator's dict lookup does.
func (d *DriverEvaluator) resolveISeq(names []string) ([]*model.Instruction, error) {
	iseq := make([]*model.Instruction, len(names))
	for i, name := range names {
		insn, ok := d.Arch.Insns[name]
		if !ok {
			return nil, fmt.Errorf("measure: unknown instruction %q", name)
		}
		iseq[i] = insn
	}
	return iseq, nil
}

// RunExperiment resolves the request's instruction names and delegates to
// the driver, applying request overrides over the driver's configured
// defaults (§4.D run parameters). Calls are serialized, so only one
// experiment runs on the pinned core at a time.
func (d *DriverEvaluator) RunExperiment(ctx context.Context, req RunExperimentRequest) map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()

	iseq, err := d.resolveISeq(req.Insns)
	if err != nil {
		return map[string]any{"cycles": nil, "error_cause": err.Error()}
	}

	driverReq := bench.RunRequest{
		ISeq:                 iseq,
		Repetitions:          d.Driver.Settings.Repetitions,
		NumInsnsPerIteration: d.Driver.Calib.NumInsnsPerIteration,
		NumTotalDynamicInsns: d.Driver.Calib.NumTotalDynamicInsns,
		MaxUncertainty:       d.Driver.Settings.MaxUncertainty,
	}
	if req.Repetitions != nil {
		driverReq.Repetitions = *req.Repetitions
	}
	if req.NumInsnsPerIteration != nil {
		driverReq.NumInsnsPerIteration = *req.NumInsnsPerIteration
	}
	if req.NumTotalDynamicInsns != nil {
		driverReq.NumTotalDynamicInsns = *req.NumTotalDynamicInsns
	}
	if req.TargetTimeUS != nil {
		driverReq.TargetTimeUS = *req.TargetTimeUS
	}
	if req.MaxUncertainty != nil {
		driverReq.MaxUncertainty = *req.MaxUncertainty
	}

	return d.Driver.RunExperiment(ctx, driverReq)
}

// GenCode renders the loop body for an instruction sequence without
// compiling or running it (§12 "gen_code / dry-run rendering").
func (d *DriverEvaluator) GenCode(ctx context.Context, req GenCodeRequest) (string, int, error) {
	iseq, err := d.resolveISeq(req.Insns)
	if err != nil {
		return "", 0, err
	}

	numInsnsPerIteration := d.Driver.Calib.NumInsnsPerIteration
	if req.NumInsnsPerIteration != nil {
		numInsnsPerIteration = *req.NumInsnsPerIteration
	}
	numTestcaseInstances := int(math.Ceil(float64(numInsnsPerIteration) / float64(len(iseq))))
	if numTestcaseInstances < 1 {
		numTestcaseInstances = 1
	}

	body, err := d.Renderer.RenderBody(iseq, numTestcaseInstances)
	if err != nil {
		return "", 0, err
	}
	return body, numTestcaseInstances, nil
}
