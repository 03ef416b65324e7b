package orchestrator

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/partition"
)

// WriteEquivalenceClasses renders a table of partition buckets, one row
// per bucket, listing its representative and the other instructions it
// absorbed.
func WriteEquivalenceClasses(w io.Writer, buckets [][]*model.Instruction) {
	reps, _ := partition.Representatives(buckets)
	repSet := make(map[*model.Instruction]bool, len(reps))
	for _, r := range reps {
		repSet[r] = true
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Equivalence Classes")
	t.AppendHeader(table.Row{"Representative", "Size", "Members"})

	for _, bucket := range buckets {
		var rep *model.Instruction
		members := ""
		for i, insn := range bucket {
			if repSet[insn] {
				rep = insn
			}
			if i > 0 {
				members += ", "
			}
			members += insn.Name
		}
		t.AppendRow(table.Row{rep.Name, len(bucket), members})
	}

	t.Render()
}

// WriteExperimentBatch renders a table of an experiment list, one row per
// experiment, naming its instruction sequence and measured cycle count
// (or its error cause, if the measurement failed).
func WriteExperimentBatch(w io.Writer, elist *model.ExperimentList) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Experiment Batch")
	t.AppendHeader(table.Row{"#", "Instructions", "Cycles", "Error"})

	for i, e := range elist.Exps {
		names := ""
		for j, insn := range e.ISeq {
			if j > 0 {
				names += " "
			}
			names += insn.Name
		}

		cycles, err := e.Cycles()
		cyclesCell := fmt.Sprintf("%.3f", cycles)
		errCell := ""
		if err != nil {
			cyclesCell = "-"
			errCell = err.Error()
		}

		t.AppendRow(table.Row{i, names, cyclesCell, errCell})
	}

	t.Render()
}

// WriteMappingDiff renders a table comparing two mappings of the same
// architecture side by side, one row per instruction, useful for
// inspecting how a new search run's result diverges from a prior one.
func WriteMappingDiff(w io.Writer, arch *model.Architecture, before, after *model.Mapping3) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Mapping Diff")
	t.AppendHeader(table.Row{"Instruction", "Before", "After", "Changed"})

	for _, insn := range arch.InsnList() {
		beforeStr := uopsString(before.Get(insn))
		afterStr := uopsString(after.Get(insn))
		changed := "no"
		if beforeStr != afterStr {
			changed = "yes"
		}
		t.AppendRow(table.Row{insn.Name, beforeStr, afterStr, changed})
	}

	t.Render()
}

func uopsString(uops []model.PortSet) string {
	res := ""
	for i, u := range uops {
		if i > 0 {
			res += " | "
		}
		res += u.Key()
	}
	if res == "" {
		res = "-"
	}
	return res
}
