package model

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"sort"
)

// Result is the dictionary a run_experiment outcome carries (§4.D, §6).
// Cycles is nil when the experiment did not produce a number; ErrorCause
// then explains why. Extra carries backend-specific fields (benchtime,
// meas_freq, tp_uncertainty, freq_before, ...) that round-trip through JSON
// without the model needing to know their names.
type Result struct {
	Cycles     *float64       `json:"cycles"`
	ErrorCause string         `json:"error_cause,omitempty"`
	Extra      map[string]any `json:"-"`
}

// MarshalJSON flattens Extra alongside Cycles/ErrorCause.
func (r Result) MarshalJSON() ([]byte, error) {
	out := map[string]any{}
	for k, v := range r.Extra {
		out[k] = v
	}
	out["cycles"] = r.Cycles
	if r.ErrorCause != "" {
		out["error_cause"] = r.ErrorCause
	}
	return json.Marshal(out)
}

// UnmarshalJSON splits Cycles/ErrorCause out of the flat dictionary and
// keeps the rest in Extra.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Extra = map[string]any{}
	for k, v := range raw {
		switch k {
		case "cycles":
			if v == nil {
				r.Cycles = nil
			} else if f, ok := v.(float64); ok {
				r.Cycles = &f
			}
		case "error_cause":
			if s, ok := v.(string); ok {
				r.ErrorCause = s
			}
		default:
			r.Extra[k] = v
		}
	}
	return nil
}

// OtherResult is one entry of an Experiment's alternative-result list,
// tagged by an identifier (e.g. a processor or mapping name).
type OtherResult struct {
	ID     string  `json:"id"`
	Result Result  `json:"result"`
}

// Experiment is an architecture, an ordered instruction sequence, a
// primary Result, and any number of identifier-tagged alternative results.
// The RID is assigned by the owning ExperimentList and never set directly.
type Experiment struct {
	Arch         *Architecture
	ISeq         []*Instruction
	Result       *Result
	OtherResults []OtherResult
	RID          int
}

// DistinctInsns returns the set of distinct instructions in ISeq, in
// first-occurrence order.
func (e *Experiment) DistinctInsns() []*Instruction {
	seen := make(map[*Instruction]bool)
	res := make([]*Instruction, 0, len(e.ISeq))
	for _, i := range e.ISeq {
		if !seen[i] {
			seen[i] = true
			res = append(res, i)
		}
	}
	return res
}

// NumOccurrences counts how often insn appears in ISeq.
func (e *Experiment) NumOccurrences(insn *Instruction) int {
	n := 0
	for _, i := range e.ISeq {
		if i == insn {
			n++
		}
	}
	return n
}

// Cycles returns the primary result's cycle count, or an error if the
// experiment has no result yet or the result has no finite cycle count.
func (e *Experiment) Cycles() (float64, error) {
	if e.Result == nil {
		return 0, fmt.Errorf("model: experiment %d has no result", e.RID)
	}
	if e.Result.Cycles == nil {
		cause := e.Result.ErrorCause
		if cause == "" {
			cause = "unknown"
		}
		return 0, fmt.Errorf("model: experiment %d has no cycle count: %s", e.RID, cause)
	}
	return *e.Result.Cycles, nil
}

// AddOtherResult appends an alternative result, unless an entry already
// carries the same id — results persisted under a given identifier are
// never silently overwritten (§3 Invariants).
func (e *Experiment) AddOtherResult(id string, result Result) error {
	for _, o := range e.OtherResults {
		if o.ID == id {
			return fmt.Errorf("model: experiment %d already has a result tagged %q", e.RID, id)
		}
	}
	e.OtherResults = append(e.OtherResults, OtherResult{ID: id, Result: result})
	return nil
}

type experimentJSON struct {
	Kind         string           `json:"kind"`
	ISeq         []string         `json:"iseq"`
	Result       *Result          `json:"result"`
	OtherResults []OtherResult    `json:"other_results,omitempty"`
}

// ToJSONDict returns this Experiment's JSON-serializable form.
func (e *Experiment) ToJSONDict() map[string]any {
	names := make([]string, len(e.ISeq))
	for i, insn := range e.ISeq {
		names[i] = insn.Name
	}
	res := map[string]any{
		"kind":   "Experiment",
		"iseq":   names,
		"result": e.Result,
	}
	if len(e.OtherResults) > 0 {
		res["other_results"] = e.OtherResults
	}
	return res
}

func (e *Experiment) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.ToJSONDict())
}

// FromJSONDict populates ISeq/Result/OtherResults from a decoded dict,
// resolving instruction names against e.Arch.
func (e *Experiment) FromJSONDict(raw experimentJSON) error {
	if raw.Kind != "Experiment" {
		return fmt.Errorf("model: expected kind \"Experiment\", got %q", raw.Kind)
	}
	iseq := make([]*Instruction, len(raw.ISeq))
	for i, name := range raw.ISeq {
		insn, ok := e.Arch.Insns[normalizeInsnName(name)]
		if !ok {
			return fmt.Errorf("model: experiment references unknown instruction %q", name)
		}
		iseq[i] = insn
	}
	e.ISeq = iseq
	e.Result = raw.Result
	e.OtherResults = raw.OtherResults
	return nil
}

// ExperimentList is an Architecture plus an ordered list of Experiments
// with a monotonic id counter. Once Modifiable is false (e.g. a split
// view) inserts and mutation are refused.
type ExperimentList struct {
	Arch         *Architecture
	Exps         []*Experiment
	NextID       int
	Modifiable   bool
}

// NewExperimentList returns an empty, modifiable ExperimentList over arch.
func NewExperimentList(arch *Architecture) *ExperimentList {
	return &ExperimentList{Arch: arch, Modifiable: true}
}

func (el *ExperimentList) checkModifiable() {
	if !el.Modifiable {
		panic("model: attempted to modify an immutable ExperimentList view")
	}
}

// InsertExp assigns e.RID and appends it.
func (el *ExperimentList) InsertExp(e *Experiment) {
	el.checkModifiable()
	e.RID = el.NextID
	el.NextID++
	el.Exps = append(el.Exps, e)
}

// CreateExp builds and inserts a new Experiment over the given instruction
// sequence.
func (el *ExperimentList) CreateExp(iseq []*Instruction) *Experiment {
	el.checkModifiable()
	e := &Experiment{Arch: el.Arch, ISeq: iseq}
	el.InsertExp(e)
	return e
}

// SplitRandomly returns two immutable views of el, split randomly so the
// first view holds round(len(Exps)*ratio) experiments and the second holds
// the rest — used to carve train/evaluation partitions (§3 "Immutability
// flag supports split views").
func (el *ExperimentList) SplitRandomly(ratio float64, rng *rand.Rand) (*ExperimentList, *ExperimentList) {
	all := make([]*Experiment, len(el.Exps))
	copy(all, el.Exps)
	rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })

	inA := int(float64(len(all))*ratio + 0.5)

	a := &ExperimentList{Arch: el.Arch}
	a.Exps = append(a.Exps, all[:inA]...)
	a.Modifiable = false

	b := &ExperimentList{Arch: el.Arch}
	b.Exps = append(b.Exps, all[inA:]...)
	b.Modifiable = false

	return a, b
}

type experimentListJSON struct {
	Kind string           `json:"kind"`
	Arch archJSON         `json:"arch"`
	Exps []json.RawMessage `json:"exps"`
}

// ToJSONDict returns this ExperimentList's JSON-serializable form.
func (el *ExperimentList) ToJSONDict() map[string]any {
	exps := make([]map[string]any, len(el.Exps))
	for i, e := range el.Exps {
		exps[i] = e.ToJSONDict()
	}
	return map[string]any{
		"kind": "ExperimentList",
		"arch": el.Arch.ToJSONDict(),
		"exps": exps,
	}
}

func (el *ExperimentList) MarshalJSON() ([]byte, error) {
	return json.Marshal(el.ToJSONDict())
}

// UnmarshalJSON decodes an ExperimentList. If el.Arch is already set, the
// embedded architecture is verified to match rather than replacing it
// (§4.F "Verification").
func (el *ExperimentList) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind string          `json:"kind"`
		Arch map[string]any  `json:"arch"`
		Exps []experimentJSON `json:"exps"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind != "ExperimentList" {
		return fmt.Errorf("model: expected kind \"ExperimentList\", got %q", raw.Kind)
	}

	el.checkModifiable()

	if el.Arch == nil {
		el.Arch = NewArchitecture()
		archBytes, err := json.Marshal(raw.Arch)
		if err != nil {
			return err
		}
		if err := el.Arch.UnmarshalJSON(archBytes); err != nil {
			return err
		}
	} else if err := el.Arch.VerifyJSONDict(raw.Arch); err != nil {
		return err
	}

	for _, rawExp := range raw.Exps {
		e := &Experiment{Arch: el.Arch}
		if err := e.FromJSONDict(rawExp); err != nil {
			return err
		}
		el.InsertExp(e)
	}
	return nil
}

// SortedByLength returns a copy of exps sorted by ascending instruction
// sequence length, used when pairing corresponding experiments during
// equivalence-class partitioning (§4.G Stage 2).
func SortedByLength(exps []*Experiment) []*Experiment {
	res := make([]*Experiment, len(exps))
	copy(res, exps)
	sort.SliceStable(res, func(i, j int) bool { return len(res[i].ISeq) < len(res[j].ISeq) })
	return res
}
