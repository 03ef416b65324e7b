// Package isa describes the ISA-specific parts of the benchmark driver: the
// register file each ISA exposes for allocation, and the descriptor that
// renders a benchmark's C program frame and clobber-initialization code.
package isa

import "fmt"

// RegisterCategory names a class of registers in a RegisterFile. The
// allocator (package regalloc) keys its rotating write/read indices by
// category.
type RegisterCategory string

const (
	// CategoryGeneral is general-purpose integer registers.
	CategoryGeneral RegisterCategory = "G"
	// CategoryVector is vector/floating-point registers.
	CategoryVector RegisterCategory = "V"
	// CategoryMem is the single reserved memory-base register.
	CategoryMem RegisterCategory = "MEM"
	// CategoryDiv is the single reserved non-zero divisor register.
	CategoryDiv RegisterCategory = "DIV"
)

// RegisterGroup is one physical register, named per width, plus its
// clobber-list spelling (Repr empty for reserved registers that never
// appear in the clobber list).
type RegisterGroup struct {
	Widths map[int]string
	Repr   string
}

// NameAtWidth returns the textual register name at the given bit width. It
// panics if the register has no name at that width — a form referencing an
// unsupported width for its category is a structural bug in the
// instruction-form file (§4.C "Failure modes").
func (g RegisterGroup) NameAtWidth(width int) string {
	name, ok := g.Widths[width]
	if !ok {
		panic(fmt.Sprintf("isa: register has no name at width %d", width))
	}
	return name
}

// RegisterFile enumerates, per category, the ordered list of register
// groups available for allocation, plus the reserved memory-base and
// divisor registers (§4.A).
type RegisterFile struct {
	Categories map[RegisterCategory][]RegisterGroup
}

// CategorySize returns how many register groups exist in the given
// category.
func (rf *RegisterFile) CategorySize(cat RegisterCategory) int {
	return len(rf.Categories[cat])
}

// GroupAt returns the register group at the given index within a category,
// or panics if the category is empty or unknown — a deviation the
// allocator must never tolerate silently.
func (rf *RegisterFile) GroupAt(cat RegisterCategory, idx int) RegisterGroup {
	groups := rf.Categories[cat]
	if len(groups) == 0 {
		panic(fmt.Sprintf("isa: unknown or empty register category %q", cat))
	}
	return groups[idx%len(groups)]
}

// MemoryBase returns the name of the reserved memory-base register at the
// given bit width.
func (rf *RegisterFile) MemoryBase(width int) string {
	return rf.GroupAt(CategoryMem, 0).NameAtWidth(width)
}

// DivRegister returns the name of the reserved non-zero divisor register at
// the given bit width.
func (rf *RegisterFile) DivRegister(width int) string {
	return rf.GroupAt(CategoryDiv, 0).NameAtWidth(width)
}

// ClobberList returns, in category-then-index order, the Repr of every
// register group whose Repr is non-empty — the list the driver feeds into
// the generated asm block's clobber set.
func (rf *RegisterFile) ClobberList() []string {
	var res []string
	for _, cat := range []RegisterCategory{CategoryGeneral, CategoryVector, CategoryMem, CategoryDiv} {
		for _, g := range rf.Categories[cat] {
			if g.Repr != "" {
				res = append(res, g.Repr)
			}
		}
	}
	return res
}
