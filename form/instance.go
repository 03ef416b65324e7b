package form

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\(\(([A-Za-z0-9_:]+)\)\)`)

// Instance is one instantiation of an instruction-form template: the
// template text, its parsed placeholders in textual order, and the
// operand text assigned to each by the allocator.
type Instance struct {
	Template     string
	Placeholders []Placeholder
	operands     map[int]string
}

// Parse scans template for `((...))` placeholders and parses each one.
// Returns an error — naming the offending placeholder — on the first
// placeholder that fails to parse (§4.B).
func Parse(template string) (*Instance, error) {
	matches := placeholderPattern.FindAllStringSubmatch(template, -1)
	placeholders := make([]Placeholder, len(matches))
	for i, m := range matches {
		p, err := ParsePlaceholder(i, m[1])
		if err != nil {
			return nil, fmt.Errorf("form: template %q: %w", template, err)
		}
		placeholders[i] = p
	}
	return &Instance{
		Template:     template,
		Placeholders: placeholders,
		operands:     make(map[int]string, len(placeholders)),
	}, nil
}

// Assign sets the operand text for the placeholder at the given index. It
// panics if no such placeholder exists — the allocator is expected to
// assign every placeholder the parser reported, never an out-of-range
// index.
func (in *Instance) Assign(index int, operand string) {
	if index < 0 || index >= len(in.Placeholders) {
		panic(fmt.Sprintf("form: assign to out-of-range placeholder index %d", index))
	}
	in.operands[index] = operand
}

// Render replaces each placeholder, left to right, with its assigned
// operand. It panics if any placeholder was never assigned — a partially
// allocated instance reaching render time is an allocator bug, not a
// recoverable condition.
func (in *Instance) Render() string {
	idx := 0
	return placeholderPattern.ReplaceAllStringFunc(in.Template, func(string) string {
		op, ok := in.operands[idx]
		if !ok {
			panic(fmt.Sprintf("form: placeholder %d was never assigned an operand", idx))
		}
		idx++
		return op
	})
}

// Code renders the instance and wraps it as one line of an inline-asm
// string literal, matching the original program frame's per-instruction
// code fragment (§4.D "loop_body = instr.get_code() joined").
func (in *Instance) Code() string {
	return strings.Repeat(" ", 8) + fmt.Sprintf("%q", in.Render()+"\n")
}
