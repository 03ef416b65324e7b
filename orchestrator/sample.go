// Package orchestrator drives the inference pipeline of §4.I: generating
// experiments (singleton+pairs or uniformly sampled mixes), partitioning
// and restricting them (§4.G), invoking the external search subprocess,
// and generalizing its result back to the full instruction set.
package orchestrator

import (
	"math/big"
	"math/rand"
	"sort"

	"github.com/sarchlab/pite/model"
)

// binomial returns C(n, k) as an exact big.Int, matching the Python
// reference's use of math.factorial for pattern-instantiation counts,
// which overflow int64 quickly for realistic instruction-set sizes.
func binomial(n, k int) *big.Int {
	if k < 0 || k > n {
		return big.NewInt(0)
	}
	res := big.NewInt(1)
	for i := 0; i < k; i++ {
		res.Mul(res, big.NewInt(int64(n-i)))
		res.Div(res, big.NewInt(int64(i+1)))
	}
	return res
}

func factorial(n int) *big.Int {
	res := big.NewInt(1)
	for i := 2; i <= n; i++ {
		res.Mul(res, big.NewInt(int64(i)))
	}
	return res
}

// pattern is a canonical placeholder shape for a sequence of the given
// length (e.g. (0,0,1,1,1) for two instructions, one appearing twice and
// one three times), together with the number of distinct instruction
// sequences that instantiate it out of a pool of num instructions.
type pattern struct {
	shape []int
	count *big.Int
}

// computePatterns enumerates every canonical occurrence pattern for a
// sequence of length l and the number of ways each can be instantiated
// from num distinct instructions (§4.I "weighted by the number of
// distinct patterns... and their instantiation counts"). Ported from
// compute_patterns in the Python reference: start from the canonical
// partition of l into occurrence-group sizes, then count instantiations
// as a k-permutation of num divided by the symmetry of equally-sized
// groups.
func computePatterns(num, l int) []pattern {
	shapes := canonicalShapes(l)
	res := make([]pattern, 0, len(shapes))
	for _, shape := range shapes {
		numDistinct := distinctCount(shape)
		kperm := new(big.Int).Mul(binomial(num, numDistinct), factorial(numDistinct))

		groupSizes := map[int]int{}
		occurrences := map[int]int{}
		for _, v := range shape {
			occurrences[v]++
		}
		for _, v := range occurrences {
			groupSizes[v]++
		}

		divisor := big.NewInt(1)
		for groupSize, freq := range groupSizes {
			divisor.Mul(divisor, factorial(freq))
			_ = groupSize
		}

		n := new(big.Int).Div(kperm, divisor)
		res = append(res, pattern{shape: shape, count: n})
	}
	return res
}

// canonicalShapes enumerates every way to partition l positions into
// non-empty occurrence groups sorted by ascending size, each group
// assigned the next placeholder index — the canonical multiset shapes
// compute_patterns deduplicates permutations down to.
func canonicalShapes(l int) [][]int {
	var res [][]int
	var build func(remaining, minGroup int, sizes []int)
	build = func(remaining, minGroup int, sizes []int) {
		if remaining == 0 {
			res = append(res, expandSizes(sizes))
			return
		}
		for size := minGroup; size <= remaining; size++ {
			build(remaining-size, size, append(sizes, size))
		}
	}
	build(l, 1, nil)
	return res
}

func expandSizes(sizes []int) []int {
	shape := make([]int, 0)
	for idx, size := range sizes {
		for i := 0; i < size; i++ {
			shape = append(shape, idx)
		}
	}
	return shape
}

func distinctCount(shape []int) int {
	seen := map[int]bool{}
	for _, v := range shape {
		seen[v] = true
	}
	return len(seen)
}

// instantiatePattern fills a pattern's placeholders with instructions
// drawn without replacement from seq, uniformly at random.
func instantiatePattern(rng *rand.Rand, seq []*model.Instruction, shape []int) []*model.Instruction {
	distinct := distinctCount(shape)
	perm := rng.Perm(len(seq))[:distinct]
	chosen := make([]*model.Instruction, distinct)
	for i, idx := range perm {
		chosen[i] = seq[idx]
	}
	res := make([]*model.Instruction, len(shape))
	for i, placeholder := range shape {
		res[i] = chosen[placeholder]
	}
	return res
}

// sampleMulticomb samples uniformly from the set of all length-l multisets
// of seq, weighted by each pattern's instantiation count so that patterns
// with more ways to instantiate them are proportionally more likely
// (§4.I; ported from sample_multicomb).
func sampleMulticomb(rng *rand.Rand, seq []*model.Instruction, l int) []*model.Instruction {
	patterns := computePatterns(len(seq), l)

	total := new(big.Float)
	weights := make([]*big.Float, len(patterns))
	for i, p := range patterns {
		w := new(big.Float).SetInt(p.count)
		weights[i] = w
		total.Add(total, w)
	}

	draw := rng.Float64()
	target := new(big.Float).Mul(big.NewFloat(draw), total)
	cum := new(big.Float)
	chosen := patterns[len(patterns)-1]
	for i, w := range weights {
		cum.Add(cum, w)
		if cum.Cmp(target) >= 0 {
			chosen = patterns[i]
			break
		}
	}

	insns := instantiatePattern(rng, seq, chosen.shape)
	sort.Slice(insns, func(i, j int) bool { return insns[i].Name < insns[j].Name })
	return insns
}

// lengthProbability is the probability that a uniformly sampled experiment
// in [minl, maxl) has exactly length l, proportional to the number of
// distinct length-l multisets (§4.I "weighted ... to avoid oversampling
// short experiments").
func lengthProbability(numInsns, l, minl, maxl int) float64 {
	weights := make([]*big.Int, 0, maxl-minl)
	var target *big.Int
	for i := minl; i < maxl; i++ {
		n := numMulticomb(numInsns, i)
		weights = append(weights, n)
		if i == l {
			target = n
		}
	}
	total := new(big.Int)
	for _, w := range weights {
		total.Add(total, w)
	}
	if total.Sign() == 0 {
		return 0
	}
	tf, _ := new(big.Float).SetInt(target).Float64()
	totalF, _ := new(big.Float).SetInt(total).Float64()
	return tf / totalF
}

// numMulticomb is the number of length-l multisets drawable from num
// distinct elements, C(num+l-1, num-1).
func numMulticomb(num, l int) *big.Int {
	return binomial(num+l-1, num-1)
}

// sampleMulticombRange picks a length in [minl, maxl) weighted by
// lengthProbability, then samples a multiset of that length.
func sampleMulticombRange(rng *rand.Rand, seq []*model.Instruction, minl, maxl int) []*model.Instruction {
	if maxl-minl <= 1 {
		return sampleMulticomb(rng, seq, minl)
	}

	weights := make([]float64, maxl-minl)
	total := 0.0
	for i := minl; i < maxl; i++ {
		w := lengthProbability(len(seq), i, minl, maxl)
		weights[i-minl] = w
		total += w
	}

	draw := rng.Float64() * total
	cum := 0.0
	length := maxl - 1
	for i, w := range weights {
		cum += w
		if draw <= cum {
			length = minl + i
			break
		}
	}
	return sampleMulticomb(rng, seq, length)
}

// multisetKey canonicalizes a sorted instruction sequence into a string
// key, used to deduplicate samples the way the Python reference's `set()`
// of sorted tuples does.
func multisetKey(iseq []*model.Instruction) string {
	key := ""
	for i, insn := range iseq {
		if i > 0 {
			key += ","
		}
		key += insn.Name
	}
	return key
}

// SampleExperiments draws num distinct, uniformly-sampled instruction
// multisets of length in [minl, maxl) from insns (§4.I "Uniformly sampled
// mixes"). If maxl<=2 (only singletons can be drawn) and there are fewer
// instructions than num, num is capped at len(insns) since there cannot be
// more distinct singleton multisets than instructions.
func SampleExperiments(rng *rand.Rand, insns []*model.Instruction, minl, maxl, num int) [][]*model.Instruction {
	if maxl <= 2 && len(insns) < num {
		num = len(insns)
	}

	seen := map[string]bool{}
	var res [][]*model.Instruction
	for len(res) < num {
		iseq := sampleMulticombRange(rng, insns, minl, maxl)
		key := multisetKey(iseq)
		if seen[key] {
			continue
		}
		seen[key] = true
		res = append(res, iseq)
	}
	return res
}

// GenerateEvalSet builds an ExperimentList of num uniformly sampled
// experiments with length in [minl, maxl) (§12 "Evaluation/step generation
// modes", --eval).
func GenerateEvalSet(rng *rand.Rand, arch *model.Architecture, minl, maxl, num int) *model.ExperimentList {
	el := model.NewExperimentList(arch)
	for _, iseq := range SampleExperiments(rng, arch.InsnList(), minl, maxl, num) {
		el.CreateExp(iseq)
	}
	return el
}

// GenerateLengthSweep builds one ExperimentList per length in [minl, maxl),
// each with num uniformly sampled experiments of that exact length (§12
// "Evaluation/step generation modes", --step).
func GenerateLengthSweep(rng *rand.Rand, arch *model.Architecture, minl, maxl, num int) map[int]*model.ExperimentList {
	res := make(map[int]*model.ExperimentList, maxl-minl)
	for length := minl; length < maxl; length++ {
		res[length] = GenerateEvalSet(rng, arch, length, length+1, num)
	}
	return res
}

// GenerateSingletonAndPairs builds the default §4.I recipe: one singleton
// experiment per instruction, then one plain pair experiment per distinct
// pair, plus a second, length-balanced pair experiment whenever the pair's
// singleton cycle counts differ (§4.I "balanced so that equivalent
// singletons yield equal pair lengths"). singletonCycles must already hold
// a measured cycle count per instruction.
func GenerateSingletonAndPairs(arch *model.Architecture, singletonCycles map[*model.Instruction]float64) (singletons, pairs *model.ExperimentList) {
	insns := arch.InsnList()

	singletons = model.NewExperimentList(arch)
	for _, insn := range insns {
		singletons.CreateExp([]*model.Instruction{insn})
	}

	pairs = model.NewExperimentList(arch)
	for i := 0; i < len(insns); i++ {
		for j := i + 1; j < len(insns); j++ {
			a, b := insns[i], insns[j]
			pairs.CreateExp([]*model.Instruction{a, b})

			ta, tb := singletonCycles[a], singletonCycles[b]
			slow, fast := a, b
			ts, tf := ta, tb
			if tf > ts {
				slow, fast = b, a
				ts, tf = tb, ta
			}
			if tf == 0 {
				continue
			}
			factor := ceilDiv(ts, tf)
			if factor <= 1 {
				continue
			}
			iseq := make([]*model.Instruction, 0, 1+factor)
			iseq = append(iseq, slow)
			for k := 0; k < factor; k++ {
				iseq = append(iseq, fast)
			}
			pairs.CreateExp(iseq)
		}
	}
	return singletons, pairs
}

func ceilDiv(a, b float64) int {
	q := a / b
	r := int(q)
	if q > float64(r) {
		r++
	}
	return r
}
