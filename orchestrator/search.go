package orchestrator

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/xid"

	"github.com/sarchlab/pite/model"
)

// SearchRunner invokes the external evolutionary-search binary on a
// restricted experiment list and returns the Mapping3 it infers (§4.I,
// §6 "search subprocess"). Implementations must not mutate elist.
type SearchRunner interface {
	Run(ctx context.Context, elist *model.ExperimentList) (*model.Mapping3, error)
}

// SearchConfig names the external binary and its genetic-algorithm config
// file, mirroring EvoAlgoWrapper's constructor arguments.
type SearchConfig struct {
	BinPath    string
	ConfigPath string
	JournalDir string
}

// SubprocessSearchRunner drives the external search binary the way
// EvoAlgoWrapper does: singleton experiments are written to a temp file
// referenced by -e, the full (restricted) experiment list is piped to
// stdin in the same textual block format, and the binary's stdout is
// parsed as a Mapping3 JSON document.
type SubprocessSearchRunner struct {
	Config SearchConfig
}

// Run implements SearchRunner.
func (r *SubprocessSearchRunner) Run(ctx context.Context, elist *model.ExperimentList) (*model.Mapping3, error) {
	singletons := model.NewExperimentList(elist.Arch)
	for _, e := range elist.Exps {
		if len(e.ISeq) == 1 {
			singletons.InsertExp(e)
		}
	}

	singletonFile, err := os.CreateTemp("", "pite-singleton-*.exps")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: creating singleton export file: %w", err)
	}
	defer os.Remove(singletonFile.Name())
	if _, err := singletonFile.WriteString(exportExperimentList(singletons)); err != nil {
		singletonFile.Close()
		return nil, fmt.Errorf("orchestrator: writing singleton export file: %w", err)
	}
	if err := singletonFile.Close(); err != nil {
		return nil, fmt.Errorf("orchestrator: closing singleton export file: %w", err)
	}

	journalDir := r.Config.JournalDir
	if journalDir == "" {
		journalDir = os.TempDir()
	}
	journalPath := fmt.Sprintf("%s/pite-search-%s.log", journalDir, xid.New().String())

	argv := []string{
		fmt.Sprintf("-c%s", r.Config.ConfigPath),
		"-i",
		"-j",
		"-n1",
		fmt.Sprintf("-x%s", journalPath),
		fmt.Sprintf("-q%d", len(elist.Arch.Ports)),
		fmt.Sprintf("-e%s", singletonFile.Name()),
	}

	cmd := exec.CommandContext(ctx, r.Config.BinPath, argv...)
	cmd.Stdin = bytes.NewBufferString(exportExperimentList(elist))

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("orchestrator: search binary failed: %w (stderr: %s)", err, stderr.String())
	}

	mapping := model.NewMapping3(elist.Arch)
	if err := mapping.UnmarshalJSON(stdout.Bytes()); err != nil {
		return nil, fmt.Errorf("orchestrator: parsing search binary output: %w", err)
	}
	return mapping, nil
}

// exportExperimentList renders elist in the textual block format the
// search binary reads from stdin (and from the -e singleton file),
// mirroring export_explist: an architecture header naming every
// instruction and the port count, followed by one experiment block per
// experiment naming its instruction sequence and measured cycle count.
func exportExperimentList(elist *model.ExperimentList) string {
	const indent = "    "
	var b bytes.Buffer

	b.WriteString("architecture:\n")
	b.WriteString(indent + "instructions:\n")
	for _, insn := range elist.Arch.InsnList() {
		fmt.Fprintf(&b, "%s%s%s\n", indent, indent, insn.Name)
	}
	fmt.Fprintf(&b, "%sports: %d\n\n", indent, len(elist.Arch.Ports))

	for _, e := range elist.Exps {
		cycles, err := e.Cycles()
		if err != nil {
			continue
		}
		b.WriteString("experiment:\n")
		b.WriteString(indent + "instructions:\n")
		for _, insn := range e.ISeq {
			fmt.Fprintf(&b, "%s%s%s\n", indent, indent, insn.Name)
		}
		fmt.Fprintf(&b, "%scycles: %v\n\n", indent, cycles)
	}

	return b.String()
}
