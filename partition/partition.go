// Package partition groups instructions into equivalence classes to cut
// the number of experiments the inference orchestrator must fit (§4.G).
// Two instructions land in the same class when no experiment in the
// supplied pool can tell them apart within epsilon; only one
// representative per class is then carried into the search.
package partition

import (
	"sort"

	"github.com/sarchlab/pite/model"
)

// Epsilon-equal compares a and b the scale-invariant way (§4.G): the
// absolute difference must be at most epsilon times the average of the
// two rather than a fixed threshold, so the same epsilon applies whether
// cycle counts are small or large.
func equals(a, b, epsilon float64) bool {
	return 2*absFloat(a-b) <= epsilon*(a+b)
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// unionFind is a small disjoint-set structure over *model.Instruction,
// used to merge instructions stage by stage as equivalences are found.
type unionFind struct {
	parent map[*model.Instruction]*model.Instruction
}

func newUnionFind(insns []*model.Instruction) *unionFind {
	uf := &unionFind{parent: make(map[*model.Instruction]*model.Instruction, len(insns))}
	for _, i := range insns {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i *model.Instruction) *model.Instruction {
	root := i
	for uf.parent[root] != root {
		root = uf.parent[root]
	}
	for uf.parent[i] != root {
		i, uf.parent[i] = uf.parent[i], root
	}
	return root
}

func (uf *unionFind) union(a, b *model.Instruction) {
	ra, rb := uf.find(a), uf.find(b)
	if ra != rb {
		uf.parent[ra] = rb
	}
}

// buckets groups insns by their union-find root, each bucket sorted by
// name so representative selection (§4.G "Representative") is stable.
func (uf *unionFind) buckets(insns []*model.Instruction) [][]*model.Instruction {
	byRoot := map[*model.Instruction][]*model.Instruction{}
	for _, i := range insns {
		root := uf.find(i)
		byRoot[root] = append(byRoot[root], i)
	}
	res := make([][]*model.Instruction, 0, len(byRoot))
	for _, b := range byRoot {
		sort.Slice(b, func(i, j int) bool { return b[i].Name < b[j].Name })
		res = append(res, b)
	}
	sort.Slice(res, func(i, j int) bool { return res[i][0].Name < res[j][0].Name })
	return res
}

// Stats reports the counters the Python reference collects during
// partitioning, surfaced for diagnostics rather than control flow.
type Stats struct {
	NumDifferingLengthExps int
	NumDistinguishingExps  int
}

// Partition runs both stages of §4.G over elist's instructions. singletons
// must hold exactly one 1-instruction experiment per instruction; elist
// holds the 2-instruction pair experiments used for Stage 2. It panics if
// an instruction has no singleton result, mirroring the Python reference's
// assertion that every instruction was measured.
func Partition(elist, singletons *model.ExperimentList, epsilon float64) ([][]*model.Instruction, map[*model.Instruction]*model.Instruction, Stats) {
	insns := elist.Arch.InsnList()

	singletonCycles := map[*model.Instruction]float64{}
	for _, e := range singletons.Exps {
		if len(e.ISeq) != 1 {
			panic("partition: singleton experiment list contains a non-singleton experiment")
		}
		cycles, err := e.Cycles()
		if err != nil {
			panic("partition: singleton experiment has no usable result: " + err.Error())
		}
		singletonCycles[e.ISeq[0]] = cycles
	}

	stage1 := newUnionFind(insns)
	for i := 0; i < len(insns); i++ {
		for j := i + 1; j < len(insns); j++ {
			a, aok := singletonCycles[insns[i]]
			b, bok := singletonCycles[insns[j]]
			if !aok || !bok {
				panic("partition: missing singleton result for an instruction")
			}
			if equals(a, b, epsilon) {
				stage1.union(insns[i], insns[j])
			}
		}
	}
	stage1Buckets := stage1.buckets(insns)

	pairExps := pairIndex(elist)

	var stats Stats
	stage2 := newUnionFind(insns)
	for _, bucket := range stage1Buckets {
		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				if distinguishable(bucket[i], bucket[j], insns, pairExps, epsilon, &stats) {
					continue
				}
				stage2.union(bucket[i], bucket[j])
			}
		}
	}

	finalBuckets := stage2.buckets(insns)
	insnToBucket := map[*model.Instruction]*model.Instruction{}
	for _, b := range finalBuckets {
		root := b[0]
		for _, i := range b {
			insnToBucket[i] = root
		}
	}
	return finalBuckets, insnToBucket, stats
}

// pairIndex maps each instruction to, for every other instruction it was
// paired with, the list of experiments containing exactly that pair.
func pairIndex(elist *model.ExperimentList) map[*model.Instruction]map[*model.Instruction][]*model.Experiment {
	idx := map[*model.Instruction]map[*model.Instruction][]*model.Experiment{}
	for _, e := range elist.Exps {
		distinct := e.DistinctInsns()
		if len(distinct) != 2 {
			continue
		}
		i, j := distinct[0], distinct[1]
		if idx[i] == nil {
			idx[i] = map[*model.Instruction][]*model.Experiment{}
		}
		if idx[j] == nil {
			idx[j] = map[*model.Instruction][]*model.Experiment{}
		}
		idx[i][j] = append(idx[i][j], e)
		idx[j][i] = append(idx[j][i], e)
	}
	return idx
}

// distinguishable reports whether i1 and i2 can be told apart by any
// third instruction's paired experiments (§4.G Stage 2). Corresponding
// experiments are matched by ascending length; a length mismatch or a
// cycle-count mismatch beyond epsilon marks the pair distinguishable.
func distinguishable(i1, i2 *model.Instruction, insns []*model.Instruction, pairExps map[*model.Instruction]map[*model.Instruction][]*model.Experiment, epsilon float64, stats *Stats) bool {
	for _, i := range insns {
		if i == i1 || i == i2 {
			continue
		}
		exps1 := model.SortedByLength(pairExps[i1][i])
		exps2 := model.SortedByLength(pairExps[i2][i])
		n := len(exps1)
		if len(exps2) < n {
			n = len(exps2)
		}
		for k := 0; k < n; k++ {
			e1, e2 := exps1[k], exps2[k]
			if len(e1.ISeq) != len(e2.ISeq) {
				stats.NumDifferingLengthExps++
				return true
			}
			c1, err1 := e1.Cycles()
			c2, err2 := e2.Cycles()
			if err1 != nil || err2 != nil {
				stats.NumDistinguishingExps++
				return true
			}
			if !equals(c1, c2, epsilon) {
				stats.NumDistinguishingExps++
				return true
			}
		}
	}
	return false
}

// Representatives picks the lexicographically smallest instruction name
// from each bucket (§4.G "Representative") and returns both the ordered
// representative list and the full instruction-to-representative map.
func Representatives(buckets [][]*model.Instruction) ([]*model.Instruction, map[*model.Instruction]*model.Instruction) {
	reps := make([]*model.Instruction, 0, len(buckets))
	insnToRep := map[*model.Instruction]*model.Instruction{}
	for _, bucket := range buckets {
		sorted := make([]*model.Instruction, len(bucket))
		copy(sorted, bucket)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })
		rep := sorted[0]
		reps = append(reps, rep)
		for _, i := range bucket {
			insnToRep[i] = rep
		}
	}
	sort.Slice(reps, func(i, j int) bool { return reps[i].Name < reps[j].Name })
	return reps, insnToRep
}

// Restrict drops every experiment that references an instruction outside
// whitelist and returns a new, modifiable ExperimentList over an
// architecture restricted to whitelist (§4.G "Restrict"). Results carry
// over unchanged.
func Restrict(elist *model.ExperimentList, whitelist []*model.Instruction) *model.ExperimentList {
	keep := map[*model.Instruction]bool{}
	names := make([]string, len(whitelist))
	for i, insn := range whitelist {
		keep[insn] = true
		names[i] = insn.Name
	}

	newArch := model.NewArchitecture()
	for _, name := range names {
		newArch.AddInsn(name)
	}
	for _, p := range elist.Arch.PortList() {
		newArch.AddPort(p.Name)
	}

	newList := model.NewExperimentList(newArch)
	for _, e := range elist.Exps {
		ok := true
		iseq := make([]*model.Instruction, len(e.ISeq))
		for i, insn := range e.ISeq {
			if !keep[insn] {
				ok = false
				break
			}
			iseq[i] = newArch.Insns[insn.Name]
		}
		if !ok {
			continue
		}
		newExp := newList.CreateExp(iseq)
		newExp.Result = e.Result
		newExp.OtherResults = e.OtherResults
	}
	return newList
}

// Generalize assigns every instruction of fullArch the uop list of its
// representative in mapping (§4.G "Generalize"), shallow-cloning each
// PortSet slice so later mutation of one instruction's uops never leaks
// into another's.
func Generalize(fullArch *model.Architecture, mapping *model.Mapping3, insnToRep map[*model.Instruction]*model.Instruction) *model.Mapping3 {
	out := model.NewMapping3(fullArch)
	for _, insn := range fullArch.InsnList() {
		rep, ok := insnToRep[insn]
		if !ok {
			panic("partition: no representative recorded for instruction " + insn.Name)
		}
		uops := mapping.Get(rep)
		clone := make([]model.PortSet, len(uops))
		copy(clone, uops)
		out.Set(insn, clone)
	}
	return out
}
