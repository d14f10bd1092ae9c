// Package build invokes the external configure/build tool that realizes a
// sketch into a native executable, parses its structured marker stream to
// discover the generated build directory and binary, and concatenates its
// output into a build log shared by configure, build, and rebuild passes.
//
// Grounded on the teacher's external-process-invocation idiom as used by
// runtimeexec.DockerExecutor in the animus-go pack repo (CommandContext,
// CombinedOutput-style merged capture, structured error wrapping),
// adapted to a line-scanned marker protocol instead of JSON output.
package build

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/errcode"
	"github.com/smce-go/runner/internal/metrics"
)

// markerPrefix identifies a structured line on the configure tool's merged
// output, per spec.md §6.2.
const markerPrefix = `-- SMCE: "`

// Artifacts are the two filesystem paths BuildDriver produces: the
// generated build directory (owned, removed on drop by the runner) and
// the produced executable.
type Artifacts struct {
	SketchDir string
	SketchBin string
}

// Driver invokes the external build tool and owns the shared build log.
type Driver struct {
	mu  sync.Mutex // guards log; shared by configure-pass and rebuild
	log strings.Builder

	execCtx config.ExecutionContext
	logger  *zap.Logger
	metrics *metrics.Registry
}

// NewDriver constructs a Driver against the given execution context. reg
// may be nil; its SetBuildLogBytes gauge is then a no-op, matching
// BoardRunner's own nil-safe metrics.Registry usage.
func NewDriver(execCtx config.ExecutionContext, reg *metrics.Registry, logger *zap.Logger) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Driver{execCtx: execCtx, metrics: reg, logger: logger}
}

// BuildLog returns a copy of the accumulated build log.
func (d *Driver) BuildLog() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return []byte(d.log.String())
}

// ResetLog clears the build log, used by the runner on reset.
func (d *Driver) ResetLog() {
	d.mu.Lock()
	d.log.Reset()
	d.mu.Unlock()
	if d.metrics != nil {
		d.metrics.SetBuildLogBytes(0)
	}
}

// Configure invokes the external build-configure tool with the full
// argument set and returns the two paths discovered from its marker
// stream.
func (d *Driver) Configure(ctx context.Context, sketchID uint64, fqbn, sketchSrc string, sketchCfg config.SketchConfig) (Artifacts, error) {
	lists := assembleLibraryLists(sketchCfg)
	args := []string{
		"--resource-dir", d.execCtx.ResourceDir,
		"--fqbn", fqbn,
		"--sketch-id", strconv.FormatUint(sketchID, 10),
		"--sketch-src", sketchSrc,
		"--preproc-remote", lists.preprocRemote,
		"--complink-remote", lists.complinkRemote,
		"--complink-local", lists.complinkLocal,
		"--complink-patch", lists.complinkPatch,
	}
	return d.runConfigurePass(ctx, args)
}

// reconfigureArgs is the reduced argument set used by Rebuild: it omits
// the four library lists, recomputing only the paths, while preserving
// sketch identity (spec.md §4.4 "Rebuild").
func (d *Driver) reconfigureArgs(sketchID uint64, fqbn, sketchSrc string) []string {
	return []string{
		"--resource-dir", d.execCtx.ResourceDir,
		"--fqbn", fqbn,
		"--sketch-id", strconv.FormatUint(sketchID, 10),
		"--sketch-src", sketchSrc,
	}
}

func (d *Driver) runConfigurePass(ctx context.Context, args []string) (Artifacts, error) {
	markers, err := d.invoke(ctx, args)
	if err != nil {
		return Artifacts{}, errcode.New("build.Configure", errcode.ConfigureFailed, "configure tool failed", err)
	}
	if len(markers) < 2 {
		return Artifacts{}, errcode.New("build.Configure", errcode.ConfigureFailed,
			fmt.Sprintf("expected 2 markers, got %d", len(markers)), nil)
	}
	if len(markers) > 2 {
		return Artifacts{}, errcode.New("build.Configure", errcode.ConfigureFailed,
			fmt.Sprintf("protocol error: %d markers emitted, expected exactly 2", len(markers)), nil)
	}
	return Artifacts{SketchDir: markers[0], SketchBin: markers[1]}, nil
}

// Build invokes the configure tool's build mode against an already
// configured sketch directory, and verifies the expected binary exists.
func (d *Driver) Build(ctx context.Context, artifacts Artifacts) error {
	buildDir := filepath.Join(artifacts.SketchDir, "build")
	_, err := d.invoke(ctx, []string{"--build", buildDir})
	if err != nil {
		return errcode.New("build.Build", errcode.BuildFailed, "build tool failed", err)
	}
	if _, statErr := os.Stat(artifacts.SketchBin); statErr != nil {
		return errcode.New("build.Build", errcode.BuildFailed, "expected binary missing: "+artifacts.SketchBin, statErr)
	}
	return nil
}

// Rebuild re-runs the configure pass with a reduced argument set (fqbn
// and sketch source re-passed, library lists omitted) followed by a
// build pass, preserving sketch identity. Callers (BoardRunner) are
// responsible for refusing this while running or suspended.
func (d *Driver) Rebuild(ctx context.Context, sketchID uint64, fqbn, sketchSrc string) (Artifacts, error) {
	artifacts, err := d.runConfigurePass(ctx, d.reconfigureArgs(sketchID, fqbn, sketchSrc))
	if err != nil {
		return Artifacts{}, err
	}
	if err := d.Build(ctx, artifacts); err != nil {
		return Artifacts{}, err
	}
	return artifacts, nil
}

// invoke runs the configure tool with args, merging its stdout and stderr
// into a single scanned stream. Marker lines are parsed and returned in
// order; every other line is appended verbatim with a trailing newline to
// the shared build log.
func (d *Driver) invoke(ctx context.Context, args []string) ([]string, error) {
	tool := d.execCtx.ConfigureTool
	if tool == "" {
		tool = "cmake"
	}

	cmd := exec.CommandContext(ctx, tool, args...)

	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	var markers []string
	scanDone := make(chan struct{})
	go func() {
		defer close(scanDone)
		scanner := bufio.NewScanner(pr)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			if payload, ok := parseMarker(line); ok {
				markers = append(markers, payload)
				continue
			}
			d.mu.Lock()
			d.log.WriteString(line)
			d.log.WriteByte('\n')
			n := d.log.Len()
			d.mu.Unlock()
			if d.metrics != nil {
				d.metrics.SetBuildLogBytes(n)
			}
		}
	}()

	runErr := cmd.Run()
	_ = pw.Close()
	<-scanDone

	if runErr != nil {
		d.logger.Warn("external build tool exited non-zero",
			zap.String("tool", tool), zap.Strings("args", args), zap.Error(runErr))
		return markers, runErr
	}
	return markers, nil
}

// parseMarker extracts the double-quoted payload of a "-- SMCE: " line.
func parseMarker(line string) (string, bool) {
	if !strings.HasPrefix(line, markerPrefix) {
		return "", false
	}
	rest := line[len(markerPrefix):]
	end := strings.IndexByte(rest, '"')
	if end < 0 {
		return "", false
	}
	return rest[:end], true
}
