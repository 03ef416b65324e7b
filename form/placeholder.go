// Package form parses instruction-form templates: C-string literals
// carrying `((KIND:...))` operand placeholders, and instantiates them once
// the register allocator (package regalloc) has assigned concrete operands
// (§4.B).
package form

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind identifies what a Placeholder stands for.
type Kind string

const (
	KindImm  Kind = "IMM"
	KindMImm Kind = "MIMM"
	KindMem  Kind = "MEM"
	KindDiv  Kind = "DIV"
	KindReg  Kind = "REG"
)

// Placeholder is one `((...))` occurrence in an instruction form, parsed
// into its kind and (for REG) read/write direction, category and width
// (§4.B "Parsing rules").
type Placeholder struct {
	// Index is the 0-based ordinal of this placeholder in textual order.
	Index int
	// Raw is the placeholder body exactly as it appeared between the
	// delimiters, e.g. "REG:RW:G:64".
	Raw string

	Kind Kind

	// Reading/Writing apply only to KindReg.
	Reading bool
	Writing bool
	// Category applies only to KindReg, e.g. "G", "V".
	Category string

	// Width is the operand width in bits.
	Width int
}

// ParsePlaceholder parses one placeholder body (the text between `((` and
// `))`, not including the delimiters) at the given ordinal index.
//
// Deviations from the grammar — wrong element count, an unknown kind, an
// REG direction string with neither R nor W, or a non-numeric width — are
// reported as an error rather than silently tolerated, per §4.B "On any
// deviation, the parser must fail with a clearly identifiable error."
func ParsePlaceholder(index int, raw string) (Placeholder, error) {
	elems := strings.Split(raw, ":")
	if len(elems) == 0 || elems[0] == "" {
		return Placeholder{}, fmt.Errorf("form: empty placeholder at index %d", index)
	}

	p := Placeholder{Index: index, Raw: raw}

	switch Kind(elems[0]) {
	case KindImm:
		p.Kind = KindImm
		if len(elems) != 2 {
			return Placeholder{}, fmt.Errorf("form: placeholder %q: IMM wants exactly 2 elements, got %d", raw, len(elems))
		}
	case KindMImm:
		p.Kind = KindMImm
		if len(elems) != 2 {
			return Placeholder{}, fmt.Errorf("form: placeholder %q: MIMM wants exactly 2 elements, got %d", raw, len(elems))
		}
	case KindMem:
		p.Kind = KindMem
		if len(elems) != 2 {
			return Placeholder{}, fmt.Errorf("form: placeholder %q: MEM wants exactly 2 elements, got %d", raw, len(elems))
		}
	case KindDiv:
		p.Kind = KindDiv
		if len(elems) != 2 {
			return Placeholder{}, fmt.Errorf("form: placeholder %q: DIV wants exactly 2 elements, got %d", raw, len(elems))
		}
	case KindReg:
		p.Kind = KindReg
		if len(elems) != 4 {
			return Placeholder{}, fmt.Errorf("form: placeholder %q: REG wants exactly 4 elements, got %d", raw, len(elems))
		}
		dir := elems[1]
		if dir == "" || len(dir) > 2 || !isSubsetOfRW(dir) {
			return Placeholder{}, fmt.Errorf("form: placeholder %q: REG direction must be a non-empty subset of {R,W}, got %q", raw, dir)
		}
		p.Reading = strings.Contains(dir, "R")
		p.Writing = strings.Contains(dir, "W")
		p.Category = elems[2]
	default:
		return Placeholder{}, fmt.Errorf("form: invalid placeholder kind %q in %q", elems[0], raw)
	}

	widthStr := elems[len(elems)-1]
	width, err := strconv.Atoi(widthStr)
	if err != nil {
		return Placeholder{}, fmt.Errorf("form: placeholder %q: width %q is not numeric", raw, widthStr)
	}
	p.Width = width

	return p, nil
}

func isSubsetOfRW(dir string) bool {
	for _, r := range dir {
		if r != 'R' && r != 'W' {
			return false
		}
	}
	return true
}
