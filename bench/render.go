package bench

import (
	"fmt"
	"strings"

	"github.com/sarchlab/pite/form"
	"github.com/sarchlab/pite/isa"
	"github.com/sarchlab/pite/model"
	"github.com/sarchlab/pite/regalloc"
)

// Renderer renders a complete C source for a benchmark iteration, given an
// ISA descriptor and the instruction-form templates of every instruction
// that descriptor's architecture knows about.
type Renderer struct {
	Desc  isa.Descriptor
	Forms map[string]string // instruction name -> ((...)) template
}

// RenderBody instantiates iseq numTestcaseInstances times, allocates
// registers across the whole repeated sequence in one pass (§4.D "the loop
// body is num_testcase_instances copies of the sequence"), and returns the
// rendered assembly lines concatenated in order. Render uses this for the
// loop body it embeds in a full C frame; gen_code (§12) uses it directly to
// report the body without compiling anything.
func (r *Renderer) RenderBody(iseq []*model.Instruction, numTestcaseInstances int) (string, error) {
	if numTestcaseInstances <= 0 {
		return "", fmt.Errorf("bench: numTestcaseInstances must be positive, got %d", numTestcaseInstances)
	}

	body := make([]*form.Instance, 0, len(iseq)*numTestcaseInstances)
	for rep := 0; rep < numTestcaseInstances; rep++ {
		for _, insn := range iseq {
			tmpl, ok := r.Forms[insn.Name]
			if !ok {
				return "", fmt.Errorf("bench: no instruction form registered for %q", insn.Name)
			}
			inst, err := form.Parse(tmpl)
			if err != nil {
				return "", err
			}
			body = append(body, inst)
		}
	}

	regalloc.New(r.Desc).Allocate(body)

	var loopBody strings.Builder
	for _, inst := range body {
		loopBody.WriteString(inst.Code())
	}
	return loopBody.String(), nil
}

// Render produces the full C source for iseq, replicated numTestcaseInstances
// times per loop body, looping numIterations times, reading the pinned
// core's current scaling frequency from freqPath.
func (r *Renderer) Render(iseq []*model.Instruction, numTestcaseInstances int, numIterations int64, freqPath string) (string, error) {
	loopBody, err := r.RenderBody(iseq, numTestcaseInstances)
	if err != nil {
		return "", err
	}

	rf := r.Desc.RegisterFile()
	clobbers := rf.ClobberList()

	var initCode strings.Builder
	for _, repr := range clobbers {
		initCode.WriteString(r.Desc.InitCodeForRegister(repr))
	}

	var usedRegs strings.Builder
	for _, repr := range clobbers {
		fmt.Fprintf(&usedRegs, ", %q", repr)
	}

	frame := r.Desc.ProgramFrame()
	frame = replaceAll(frame, map[string]string{
		"{num_iterations}":             fmt.Sprintf("%d", numIterations),
		"{num_instances_per_iteration}": fmt.Sprintf("%d", numTestcaseInstances),
		"{frequency}":                  "0",
		"{membasereg}":                 rf.MemoryBase(64),
		"{div_reg}":                    rf.DivRegister(64),
		"{freq_path}":                  freqPath,
		"{init_code}":                  initCode.String(),
		"{loop_body}":                  loopBody,
		"{used_regs}":                  usedRegs.String(),
		"{lower16bit}":                 fmt.Sprintf("%d", numIterations&0xFFFF),
		"{upper16bit}":                 fmt.Sprintf("%d", (numIterations>>16)&0xFFFF),
	})

	return frame, nil
}

func replaceAll(s string, holes map[string]string) string {
	for hole, value := range holes {
		s = strings.ReplaceAll(s, hole, value)
	}
	return s
}
