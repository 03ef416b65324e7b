package isa

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sarchlab/pite/model"
)

// FormSet is the on-disk, YAML-encoded description of an instruction set:
// the ports available for mapping, and one placeholder template per
// instruction (§4.B). It is the config-layer counterpart to the
// hard-coded register files in x86_64.go/aarch64.go — the instruction
// list itself varies per measurement campaign, so it is data, not code.
type FormSet struct {
	Ports        []string          `yaml:"ports"`
	Instructions map[string]string `yaml:"instructions"`
}

// LoadFormSet reads and parses a FormSet from path.
func LoadFormSet(path string) (*FormSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("isa: reading form set %q: %w", path, err)
	}
	var fs FormSet
	if err := yaml.Unmarshal(data, &fs); err != nil {
		return nil, fmt.Errorf("isa: parsing form set %q: %w", path, err)
	}
	if len(fs.Ports) == 0 {
		return nil, fmt.Errorf("isa: form set %q declares no ports", path)
	}
	if len(fs.Instructions) == 0 {
		return nil, fmt.Errorf("isa: form set %q declares no instructions", path)
	}
	return &fs, nil
}

// Architecture builds a model.Architecture from the form set's ports and
// instruction names.
func (fs *FormSet) Architecture() *model.Architecture {
	arch := model.NewArchitecture()
	arch.AddPorts(fs.Ports)
	for name := range fs.Instructions {
		arch.AddInsn(name)
	}
	return arch
}

// Forms returns the instruction-name-to-template map, in the exact shape
// bench.Renderer expects.
func (fs *FormSet) Forms() map[string]string {
	out := make(map[string]string, len(fs.Instructions))
	for name, tmpl := range fs.Instructions {
		out[name] = tmpl
	}
	return out
}
