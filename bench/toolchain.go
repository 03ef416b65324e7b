package bench

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"github.com/rs/xid"
)

// Toolchain compiles and executes a rendered benchmark source, the
// subprocess boundary §4.D and §5 describe ("Compilation and execution of
// generated C code is specified as a contract, not a toolchain"). Tests
// substitute a mock to exercise the driver without a real compiler.
type Toolchain interface {
	// Compile writes src to a temp file and builds it with the given extra
	// compiler flags, returning the resulting binary's path.
	Compile(ctx context.Context, src string, ccFlags []string) (binPath string, err error)

	// Run executes argv[0] with argv[1:] as arguments (already including
	// any core-pinning wrapper such as taskset) and returns its stdout.
	Run(ctx context.Context, argv []string) (stdout []byte, err error)
}

// GCCToolchain is the default Toolchain, invoking the system "gcc" and
// running the resulting binary directly.
type GCCToolchain struct {
	// TempDir roots the per-compile scratch directories; defaults to
	// os.TempDir() when empty.
	TempDir string
}

// Compile renders src to "<tmp>/pite_<id>/bench.c", compiles it with gcc,
// and returns the binary path. A compiler failure is reported verbatim in
// the error so the driver can classify it as "compilation failed" (§4.D).
func (t *GCCToolchain) Compile(ctx context.Context, src string, ccFlags []string) (string, error) {
	root := t.TempDir
	if root == "" {
		root = os.TempDir()
	}
	dir := filepath.Join(root, "pite_"+xid.New().String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("bench: creating scratch dir: %w", err)
	}

	srcPath := filepath.Join(dir, "bench.c")
	if err := os.WriteFile(srcPath, []byte(src), 0o644); err != nil {
		return "", fmt.Errorf("bench: writing source: %w", err)
	}

	binPath := filepath.Join(dir, "bench")
	args := append([]string{srcPath, "-O2", "-o", binPath}, ccFlags...)

	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "gcc", args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("bench: compilation failed: %w: %s", err, stderr.String())
	}
	return binPath, nil
}

// Run executes argv and returns its stdout.
func (t *GCCToolchain) Run(ctx context.Context, argv []string) ([]byte, error) {
	if len(argv) == 0 {
		return nil, fmt.Errorf("bench: empty command")
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("bench: execution failed: %w: %s", err, stderr.String())
	}
	return stdout.Bytes(), nil
}
