package model

import (
	"encoding/json"
	"fmt"
)

// archJSON is the wire shape for an Architecture: {kind, insns, ports, name?}.
type archJSON struct {
	Kind  string   `json:"kind"`
	Insns []string `json:"insns"`
	Ports []string `json:"ports"`
	Name  string   `json:"name,omitempty"`
}

// ToJSONDict returns the Architecture's JSON-serializable form.
func (a *Architecture) ToJSONDict() map[string]any {
	insns := a.InsnList()
	ports := a.PortList()
	insnNames := make([]string, len(insns))
	for i, x := range insns {
		insnNames[i] = x.Name
	}
	portNames := make([]string, len(ports))
	for i, x := range ports {
		portNames[i] = x.Name
	}
	res := map[string]any{
		"kind":  "Architecture",
		"insns": insnNames,
		"ports": portNames,
	}
	if a.Name != "" {
		res["name"] = a.Name
	}
	return res
}

// MarshalJSON implements json.Marshaler.
func (a *Architecture) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.ToJSONDict())
}

// UnmarshalJSON implements json.Unmarshaler. Instructions/ports not yet
// known to the architecture are added; this allows loading an Architecture
// standalone, or layering one experiment list's architecture onto another.
func (a *Architecture) UnmarshalJSON(data []byte) error {
	var raw archJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw.Kind != "Architecture" {
		return fmt.Errorf("model: expected kind \"Architecture\", got %q", raw.Kind)
	}
	if a.Insns == nil {
		a.Insns = make(map[string]*Instruction)
	}
	if a.Ports == nil {
		a.Ports = make(map[string]*Port)
	}
	for _, name := range raw.Insns {
		if _, ok := a.Insns[name]; !ok {
			a.AddInsn(name)
		}
	}
	for _, name := range raw.Ports {
		if _, ok := a.Ports[name]; !ok {
			a.AddPort(name)
		}
	}
	a.Name = raw.Name
	return nil
}

// VerifyJSONDict asserts that decoding the given Architecture JSON against
// this Architecture would describe the identical instruction and port name
// sets (§4.F "Verification"). It is used when an externally supplied
// architecture is expected to match one already held locally, e.g. when an
// ExperimentList or Mapping is loaded against a caller-provided
// Architecture.
func (a *Architecture) VerifyJSONDict(raw map[string]any) error {
	asNames := func(v any) []string {
		if s, ok := v.([]string); ok {
			return s
		}
		list, _ := v.([]any)
		res := make([]string, len(list))
		for i, x := range list {
			res[i] = x.(string)
		}
		return res
	}
	rawInsns := asNames(raw["insns"])
	rawPorts := asNames(raw["ports"])

	curr := map[string]bool{}
	for name := range a.Insns {
		if a.restriction != nil && !a.restriction[name] {
			continue
		}
		curr[name] = true
	}
	other := map[string]bool{}
	for _, v := range rawInsns {
		other[v] = true
	}
	if !sameStringSet(curr, other) {
		return fmt.Errorf("model: architecture instruction sets differ: have %v, got %v", setKeys(curr), setKeys(other))
	}

	currPorts := map[string]bool{}
	for name := range a.Ports {
		currPorts[name] = true
	}
	otherPorts := map[string]bool{}
	for _, v := range rawPorts {
		otherPorts[v] = true
	}
	if !sameStringSet(currPorts, otherPorts) {
		return fmt.Errorf("model: architecture port sets differ: have %v, got %v", setKeys(currPorts), setKeys(otherPorts))
	}

	if name, ok := raw["name"].(string); ok && a.Name != "" && name != "" && a.Name != name {
		return fmt.Errorf("model: architecture name mismatch: have %q, got %q", a.Name, name)
	}
	return nil
}

func sameStringSet(a, b map[string]bool) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if !b[k] {
			return false
		}
	}
	return true
}

func setKeys(m map[string]bool) []string {
	res := make([]string, 0, len(m))
	for k := range m {
		res = append(res, k)
	}
	return res
}
