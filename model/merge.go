package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// sameResult reports whether two Results would serialize identically.
// Cycles is a pointer and Extra is a map, so this compares by JSON
// encoding rather than field-by-field equality.
func sameResult(a, b *Result) bool {
	aj, aerr := json.Marshal(a)
	bj, berr := json.Marshal(b)
	if aerr != nil || berr != nil {
		return false
	}
	return bytes.Equal(aj, bj)
}

// sameISeq reports whether two instruction sequences are identical,
// element for element.
func sameISeq(a, b []*Instruction) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// MergeResults folds the results carried by src into dst: each of src's
// experiments is matched against dst's by identical instruction sequence
// (position is not assumed to line up, since src may be a re-ordered or
// filtered view), and its primary Result and OtherResults are folded into
// the match.
//
// Re-measuring an experiment whose primary Result differs from what dst
// already holds is a hard error — a primary result is the thing downstream
// consumers treat as ground truth, and silently replacing it would make
// the pipeline's results non-reproducible. Merging in an identical primary
// Result is a no-op, so merging an experiment list into itself changes
// nothing (§8 "merging an experiment-list file into itself changes
// nothing"). A tagged OtherResult under an id dst already holds for that
// experiment is dropped, not overwritten, and reported back so the caller
// can tell merging happened without losing data (§3 Invariants, §4.F
// "Merge semantics").
func MergeResults(dst, src *ExperimentList) (droppedOtherResults int, err error) {
	if !dst.Modifiable {
		return 0, fmt.Errorf("model: cannot merge into an immutable ExperimentList view")
	}

	byISeq := make(map[string]*Experiment, len(dst.Exps))
	keyOf := func(iseq []*Instruction) string {
		k := ""
		for _, insn := range iseq {
			k += insn.Name + "\x00"
		}
		return k
	}
	for _, e := range dst.Exps {
		byISeq[keyOf(e.ISeq)] = e
	}

	for _, se := range src.Exps {
		de, ok := byISeq[keyOf(se.ISeq)]
		if !ok {
			return droppedOtherResults, fmt.Errorf("model: merge source has an experiment not present in destination: %v", se.ISeq)
		}
		if !sameISeq(de.ISeq, se.ISeq) {
			return droppedOtherResults, fmt.Errorf("model: internal error: instruction sequence key collision")
		}

		if se.Result != nil {
			if de.Result != nil && !sameResult(de.Result, se.Result) {
				return droppedOtherResults, fmt.Errorf(
					"model: merge would overwrite existing primary result for experiment %d", de.RID)
			}
			de.Result = se.Result
		}

		for _, or := range se.OtherResults {
			if addErr := de.AddOtherResult(or.ID, or.Result); addErr != nil {
				droppedOtherResults++
			}
		}
	}

	return droppedOtherResults, nil
}
