// Package regalloc assigns concrete operands to the placeholders of a
// sequence of form.Instance instructions, spreading writes and reads far
// enough apart in the loop window to avoid manufacturing data dependencies
// the instruction under test does not actually have (§4.C).
package regalloc

import (
	"fmt"

	"github.com/sarchlab/pite/form"
	"github.com/sarchlab/pite/isa"
)

const (
	immediateValue  = 44
	stepMemOffset   = 64
	maxMemOffset    = 4032
)

// Allocator holds the rotating per-category write/read indices and the
// memory-offset cursor for one benchmark's worth of allocation. It is not
// safe for concurrent use and is meant to be created fresh per experiment.
type Allocator struct {
	desc isa.Descriptor

	writeIndices map[isa.RegisterCategory]int
	readIndices  map[isa.RegisterCategory]int
	nextMemOffset int
}

// New returns an Allocator targeting desc's register file.
func New(desc isa.Descriptor) *Allocator {
	return &Allocator{
		desc:          desc,
		writeIndices:  make(map[isa.RegisterCategory]int),
		readIndices:   make(map[isa.RegisterCategory]int),
		nextMemOffset: stepMemOffset,
	}
}

// nextMemoryOffset returns the next memory offset, stepping by
// stepMemOffset and wrapping back to stepMemOffset once maxMemOffset is
// exceeded (§4.C "MIMM").
func (a *Allocator) nextMemoryOffset() int {
	res := a.nextMemOffset
	if a.nextMemOffset >= maxMemOffset {
		a.nextMemOffset = stepMemOffset
	} else {
		a.nextMemOffset += stepMemOffset
	}
	return res
}

// register returns the next register name in cat at the given width,
// advancing and rotating the write or read index as directed.
func (a *Allocator) register(cat isa.RegisterCategory, width int, write bool) string {
	indices := a.readIndices
	if write {
		indices = a.writeIndices
	}
	rf := a.desc.RegisterFile()
	size := rf.CategorySize(cat)
	if size == 0 {
		panic(fmt.Sprintf("regalloc: unknown or empty register category %q", cat))
	}
	idx := indices[cat]
	group := rf.GroupAt(cat, idx)
	indices[cat] = (idx + 1) % size
	return group.NameAtWidth(width)
}

// resetReadIndices points every category's read index at its current
// write index, so the next read in the upcoming instruction prefers the
// register furthest from being freshly written (§4.C step 2).
func (a *Allocator) resetReadIndices() {
	for cat, idx := range a.writeIndices {
		a.readIndices[cat] = idx
	}
}

// Allocate assigns concrete operands to every placeholder of every
// instance in iseq, in two passes per instance: writing placeholders
// first (advancing the write index), then every other placeholder
// (resetting the read index to the post-write index beforehand). It
// panics on a placeholder the allocator cannot resolve — a REG placeholder
// for an unknown category, or any kind the allocator has no branch for —
// since that is a structural bug in the instruction-form file, not a
// recoverable runtime condition (§4.C "Failure modes").
func (a *Allocator) Allocate(iseq []*form.Instance) {
	for _, insn := range iseq {
		var writing, other []form.Placeholder
		for _, ph := range insn.Placeholders {
			if ph.Kind == form.KindReg && ph.Writing {
				writing = append(writing, ph)
			} else {
				other = append(other, ph)
			}
		}

		for _, ph := range writing {
			reg := a.register(isa.RegisterCategory(ph.Category), ph.Width, true)
			insn.Assign(ph.Index, reg)
		}

		a.resetReadIndices()

		for _, ph := range other {
			var replacement string
			switch ph.Kind {
			case form.KindImm:
				replacement = a.desc.AsImm(immediateValue)
			case form.KindMImm:
				replacement = fmt.Sprintf("%d", a.nextMemoryOffset())
			case form.KindMem:
				replacement = a.desc.RegisterFile().MemoryBase(ph.Width)
			case form.KindDiv:
				replacement = a.desc.RegisterFile().DivRegister(ph.Width)
			case form.KindReg:
				if ph.Writing {
					panic(fmt.Sprintf("regalloc: placeholder %q marked writing reached the read-only pass", ph.Raw))
				}
				replacement = a.register(isa.RegisterCategory(ph.Category), ph.Width, false)
			default:
				panic(fmt.Sprintf("regalloc: no allocation rule for placeholder kind %q", ph.Kind))
			}
			insn.Assign(ph.Index, replacement)
		}
	}
}
