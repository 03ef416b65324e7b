// Package model holds the shared data currency of the toolchain:
// architectures, instructions, ports, experiments, experiment lists and
// port mappings, together with their JSON serialization contract.
package model

import (
	"sort"
	"strconv"
	"strings"
)

// Port is an opaque execution unit identifier. Equality, hashing and
// ordering are all by name.
type Port struct {
	Name string
}

// Instruction is an opaque instruction identifier. Equality, hashing and
// ordering are all by name.
type Instruction struct {
	Name string
}

// normalizeInsnName replaces whitespace in an instruction name with
// underscores so names survive the textual export formats unambiguously.
func normalizeInsnName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "\t", "_")
	return name
}

// Architecture maps instruction names to Instructions and port names to
// Ports. The instruction- and port-name sets are unique within an
// Architecture. An optional restriction narrows InsnList to a subset of
// instructions without mutating the underlying maps.
type Architecture struct {
	Name  string
	Insns map[string]*Instruction
	Ports map[string]*Port

	restriction map[string]bool
}

// NewArchitecture returns an empty, unrestricted Architecture.
func NewArchitecture() *Architecture {
	return &Architecture{
		Insns: make(map[string]*Instruction),
		Ports: make(map[string]*Port),
	}
}

// AddInsn registers a new instruction and returns it. It panics if the
// (normalized) name is already registered, mirroring the teacher's
// fail-fast builder style for invariant violations.
func (a *Architecture) AddInsn(name string) *Instruction {
	normalized := normalizeInsnName(name)
	if _, exists := a.Insns[normalized]; exists {
		panic("instruction already registered: " + normalized)
	}
	insn := &Instruction{Name: normalized}
	a.Insns[normalized] = insn
	return insn
}

// AddInsns registers several instructions in order.
func (a *Architecture) AddInsns(names []string) {
	for _, n := range names {
		a.AddInsn(n)
	}
}

// AddPort registers a new port and returns it.
func (a *Architecture) AddPort(name string) *Port {
	if _, exists := a.Ports[name]; exists {
		panic("port already registered: " + name)
	}
	port := &Port{Name: name}
	a.Ports[name] = port
	return port
}

// AddPorts registers several ports in order.
func (a *Architecture) AddPorts(names []string) {
	for _, n := range names {
		a.AddPort(n)
	}
}

// AddNumberOfPorts registers ports named "0".."num-1".
func (a *Architecture) AddNumberOfPorts(num int) {
	names := make([]string, num)
	for i := range names {
		names[i] = strconv.Itoa(i)
	}
	a.AddPorts(names)
}

// RestrictInsns scopes InsnList to the given subset of instruction names
// until UnrestrictInsns is called. The names must already exist in the
// architecture.
func (a *Architecture) RestrictInsns(names []string) {
	restriction := make(map[string]bool, len(names))
	for _, n := range names {
		if _, ok := a.Insns[n]; !ok {
			panic("restriction references unknown instruction: " + n)
		}
		restriction[n] = true
	}
	a.restriction = restriction
}

// UnrestrictInsns clears a prior restriction.
func (a *Architecture) UnrestrictInsns() {
	a.restriction = nil
}

// InsnList returns the (possibly restricted) instructions sorted by name.
func (a *Architecture) InsnList() []*Instruction {
	res := make([]*Instruction, 0, len(a.Insns))
	for name, insn := range a.Insns {
		if a.restriction != nil && !a.restriction[name] {
			continue
		}
		res = append(res, insn)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}

// PortList returns the ports sorted by name.
func (a *Architecture) PortList() []*Port {
	res := make([]*Port, 0, len(a.Ports))
	for _, p := range a.Ports {
		res = append(res, p)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Name < res[j].Name })
	return res
}
