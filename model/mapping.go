package model

import (
	"encoding/json"
	"fmt"
	"sort"
)

// PortSet is an immutable set of ports, represented canonically as a
// sorted slice of port names so two PortSets built differently still
// compare and hash alike.
type PortSet []string

// NewPortSet builds a canonicalized PortSet from arbitrary port names.
func NewPortSet(names ...string) PortSet {
	dedup := map[string]bool{}
	for _, n := range names {
		dedup[n] = true
	}
	res := make(PortSet, 0, len(dedup))
	for n := range dedup {
		res = append(res, n)
	}
	sort.Strings(res)
	return res
}

// Key returns a canonical string usable as a map key.
func (ps PortSet) Key() string {
	res := ""
	for i, n := range ps {
		if i > 0 {
			res += ","
		}
		res += n
	}
	return res
}

// Contains reports whether p is a member of ps.
func (ps PortSet) Contains(p string) bool {
	for _, n := range ps {
		if n == p {
			return true
		}
	}
	return false
}

// Mapping2 maps each instruction to the set of ports any one of its uops
// may issue on — the coarse mapping used directly by the bottleneck
// algorithm (§3, §4.E).
type Mapping2 struct {
	Arch *Architecture
	M    map[*Instruction]PortSet
}

// NewMapping2 returns an empty Mapping2 over arch.
func NewMapping2(arch *Architecture) *Mapping2 {
	return &Mapping2{Arch: arch, M: make(map[*Instruction]PortSet)}
}

// Set assigns insn's port set.
func (m *Mapping2) Set(insn *Instruction, ports PortSet) {
	m.M[insn] = ports
}

// Get returns insn's port set, or nil if unmapped.
func (m *Mapping2) Get(insn *Instruction) PortSet {
	return m.M[insn]
}

// FromMapping3 collapses a Mapping3 into a Mapping2 by unioning each
// instruction's per-uop port sets (§3).
func FromMapping3(m3 *Mapping3) *Mapping2 {
	m2 := NewMapping2(m3.Arch)
	for insn, uops := range m3.M {
		union := map[string]bool{}
		for _, uop := range uops {
			for _, p := range uop {
				union[p] = true
			}
		}
		names := make([]string, 0, len(union))
		for p := range union {
			names = append(names, p)
		}
		m2.Set(insn, NewPortSet(names...))
	}
	return m2
}

type mapping2JSON struct {
	Kind string              `json:"kind"`
	Arch archJSON            `json:"arch"`
	M    map[string][]string `json:"assignment"`
}

// ToJSONDict returns this Mapping2's JSON-serializable form.
func (m *Mapping2) ToJSONDict() map[string]any {
	out := map[string][]string{}
	for insn, ports := range m.M {
		out[insn.Name] = []string(ports)
	}
	return map[string]any{
		"kind":       "Mapping2",
		"arch":       m.Arch.ToJSONDict(),
		"assignment": out,
	}
}

func (m *Mapping2) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToJSONDict())
}

// UnmarshalJSON decodes a Mapping2, resolving instruction names against
// m.Arch which must already be populated.
func (m *Mapping2) UnmarshalJSON(data []byte) error {
	var raw mapping2JSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind != "Mapping2" {
		return fmt.Errorf("model: expected kind \"Mapping2\", got %q", raw.Kind)
	}
	if m.Arch == nil {
		return fmt.Errorf("model: Mapping2.UnmarshalJSON requires Arch to be set first")
	}
	if err := m.Arch.VerifyJSONDict(raw.Arch.toMap()); err != nil {
		return err
	}
	m.M = make(map[*Instruction]PortSet, len(raw.M))
	for name, ports := range raw.M {
		insn, ok := m.Arch.Insns[normalizeInsnName(name)]
		if !ok {
			return fmt.Errorf("model: mapping references unknown instruction %q", name)
		}
		m.M[insn] = NewPortSet(ports...)
	}
	return nil
}

func (a archJSON) toMap() map[string]any {
	res := map[string]any{
		"kind":  a.Kind,
		"insns": toAnySlice(a.Insns),
		"ports": toAnySlice(a.Ports),
	}
	if a.Name != "" {
		res["name"] = a.Name
	}
	return res
}

func toAnySlice(ss []string) []any {
	res := make([]any, len(ss))
	for i, s := range ss {
		res[i] = s
	}
	return res
}

// Mapping3 maps each instruction to an ordered list of uops, each uop
// itself a PortSet of the ports it may issue on (§3).
// It is the fine-grained mapping a bottleneck-algorithm fit or an
// evolutionary search produces; Mapping2 is derived from it by union.
type Mapping3 struct {
	Arch *Architecture
	M    map[*Instruction][]PortSet
}

// NewMapping3 returns an empty Mapping3 over arch.
func NewMapping3(arch *Architecture) *Mapping3 {
	return &Mapping3{Arch: arch, M: make(map[*Instruction][]PortSet)}
}

// Set assigns insn's uop list.
func (m *Mapping3) Set(insn *Instruction, uops []PortSet) {
	m.M[insn] = uops
}

// Get returns insn's uop list, or nil if unmapped.
func (m *Mapping3) Get(insn *Instruction) []PortSet {
	return m.M[insn]
}

// NumUops returns the number of uops mapped for insn.
func (m *Mapping3) NumUops(insn *Instruction) int {
	return len(m.M[insn])
}

type mapping3JSON struct {
	Kind string                `json:"kind"`
	Arch archJSON              `json:"arch"`
	M    map[string][][]string `json:"assignment"`
}

// ToJSONDict returns this Mapping3's JSON-serializable form.
func (m *Mapping3) ToJSONDict() map[string]any {
	out := map[string][][]string{}
	for insn, uops := range m.M {
		rows := make([][]string, len(uops))
		for i, u := range uops {
			rows[i] = []string(u)
		}
		out[insn.Name] = rows
	}
	return map[string]any{
		"kind":       "Mapping3",
		"arch":       m.Arch.ToJSONDict(),
		"assignment": out,
	}
}

func (m *Mapping3) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.ToJSONDict())
}

// UnmarshalJSON decodes a Mapping3, resolving instruction names against
// m.Arch which must already be populated.
func (m *Mapping3) UnmarshalJSON(data []byte) error {
	var raw mapping3JSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind != "Mapping3" {
		return fmt.Errorf("model: expected kind \"Mapping3\", got %q", raw.Kind)
	}
	if m.Arch == nil {
		return fmt.Errorf("model: Mapping3.UnmarshalJSON requires Arch to be set first")
	}
	if err := m.Arch.VerifyJSONDict(raw.Arch.toMap()); err != nil {
		return err
	}
	m.M = make(map[*Instruction][]PortSet, len(raw.M))
	for name, rows := range raw.M {
		insn, ok := m.Arch.Insns[normalizeInsnName(name)]
		if !ok {
			return fmt.Errorf("model: mapping references unknown instruction %q", name)
		}
		uops := make([]PortSet, len(rows))
		for i, r := range rows {
			uops[i] = NewPortSet(r...)
		}
		m.M[insn] = uops
	}
	return nil
}
