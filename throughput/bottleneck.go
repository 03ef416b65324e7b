package throughput

import (
	"fmt"
	"math/big"

	"github.com/sarchlab/pite/model"
)

// BottleneckProcessor computes the steady-state cycle count of an
// instruction sequence from a port mapping using the closed-form dual of
// the bottleneck LP (§4.E): for every nonempty subset q of ports, the load
// it would bear if it were the sole bottleneck is the total weight of every
// uop whose port set is contained in q, divided by |q|; the answer is the
// heaviest such load over all q. The search is exhaustive over 2^|ports|
// subsets, which is the model's own complexity bound — real machines have
// few enough ports (single digits) for this to be instant.
type BottleneckProcessor struct {
	arch     *model.Architecture
	port2idx map[string]int
	maxUop   uint64

	mapping2 *model.Mapping2
	mapping3 *model.Mapping3
}

// NewBottleneckProcessor builds a processor from a Mapping2 assignment
// (one port set per instruction).
func NewBottleneckProcessor(m *model.Mapping2) *BottleneckProcessor {
	p := newBottleneckBase(m.Arch)
	p.mapping2 = m
	return p
}

// NewBottleneckProcessorFromMapping3 builds a processor from a Mapping3
// assignment (one port set per uop, possibly several uops per instruction).
func NewBottleneckProcessorFromMapping3(m *model.Mapping3) *BottleneckProcessor {
	p := newBottleneckBase(m.Arch)
	p.mapping3 = m
	return p
}

func newBottleneckBase(arch *model.Architecture) *BottleneckProcessor {
	p := &BottleneckProcessor{arch: arch, port2idx: make(map[string]int)}
	ports := arch.PortList()
	for i, port := range ports {
		p.port2idx[port.Name] = i
	}
	all := make(model.PortSet, len(ports))
	for i, port := range ports {
		all[i] = port.Name
	}
	p.maxUop = p.uop2bv(all)
	return p
}

// uop2bv encodes a port set as a bitvector, one bit per port index.
func (p *BottleneckProcessor) uop2bv(ports model.PortSet) uint64 {
	var bv uint64
	for _, name := range ports {
		idx, ok := p.port2idx[name]
		if !ok {
			panic(fmt.Sprintf("throughput: port %q is not part of this architecture", name))
		}
		bv |= 1 << uint(idx)
	}
	return bv
}

func popcount(n uint64) int {
	count := 0
	for n != 0 {
		count += int(n & 1)
		n >>= 1
	}
	return count
}

// Architecture returns the architecture this processor was built against.
func (p *BottleneckProcessor) Architecture() *model.Architecture { return p.arch }

// Description identifies the backend, matching the "bottleneck" name the
// original tool's class_for_name factory dispatches on.
func (p *BottleneckProcessor) Description() string { return "bottleneck" }

// weights builds the bitvector -> occurrence-count table that
// cyclesForWeights consumes, from whichever mapping this processor was
// constructed with.
func (p *BottleneckProcessor) weights(iseq []*model.Instruction) map[uint64]int {
	weights := make(map[uint64]int)
	for _, insn := range iseq {
		switch {
		case p.mapping3 != nil:
			for _, uop := range p.mapping3.Get(insn) {
				weights[p.uop2bv(uop)]++
			}
		case p.mapping2 != nil:
			weights[p.uop2bv(p.mapping2.Get(insn))]++
		default:
			panic("throughput: processor has neither a Mapping2 nor a Mapping3 assignment")
		}
	}
	return weights
}

// Cycles returns the modeled cycle count for iseq.
func (p *BottleneckProcessor) Cycles(iseq []*model.Instruction) float64 {
	return p.cyclesForWeights(p.weights(iseq))
}

// cyclesForWeights runs the exhaustive bottleneck search. Arithmetic is
// carried out in exact rationals (big.Rat) for every candidate subset, and
// only the final maximum is converted to float64, so the comparison of
// candidate loads against one another is never subject to floating-point
// rounding (§4.E "Computation is rational (exact) then converted to a
// floating-point cycle count").
func (p *BottleneckProcessor) cyclesForWeights(weights map[uint64]int) float64 {
	best := new(big.Rat)
	for q := uint64(1); q <= p.maxUop; q++ {
		sum := 0
		for u, w := range weights {
			if (^q)&u == 0 {
				sum += w
			}
		}
		if sum == 0 {
			continue
		}
		load := big.NewRat(int64(sum), int64(popcount(q)))
		if load.Cmp(best) > 0 {
			best = load
		}
	}
	f, _ := best.Float64()
	return f
}

// Execute evaluates iseq and reports its cycle count alongside the backend
// name, mirroring the measurement service's run_experiment result shape so
// callers can treat a simulated and a measured experiment the same way.
func (p *BottleneckProcessor) Execute(iseq []*model.Instruction) map[string]any {
	return map[string]any{
		"cycles":  p.Cycles(iseq),
		"backend": p.Description(),
	}
}
