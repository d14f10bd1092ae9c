package runner

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smce-go/runner/internal/build"
	"github.com/smce-go/runner/internal/config"
)

// TestMain intercepts re-exec'd copies of this test binary used as stand-in
// "sketch" executables: Start() spawns os.Args[0] itself, and this branch
// decides what that spawned copy does before the real test suite ever
// runs, mirroring the exec-helper-process technique used throughout
// Go's own os/exec test suite.
func TestMain(m *testing.M) {
	if os.Getenv("GO_WANT_HELPER_PROCESS") == "1" {
		switch os.Getenv("RUNNER_TEST_HELPER_BEHAVIOR") {
		case "exit42":
			os.Exit(42)
		case "sleep":
			time.Sleep(10 * time.Second)
			os.Exit(0)
		default:
			os.Exit(0)
		}
		return
	}
	os.Exit(m.Run())
}

func newConfiguredRunner(t *testing.T) *BoardRunner {
	t.Helper()
	r := New(config.ExecutionContext{}, nil, nil, zap.NewNop())
	require.True(t, r.Configure("arduino:avr:uno", config.BoardConfig{PinIDs: []config.PinID{1}}))
	return r
}

// fakeDriver stands in for *build.Driver in tests so Rebuild never shells
// out to a real configure tool; it just reports the artifacts already
// installed by markBuilt.
type fakeDriver struct {
	artifacts build.Artifacts
	rebuilds  int
}

func (f *fakeDriver) Configure(context.Context, uint64, string, string, config.SketchConfig) (build.Artifacts, error) {
	return f.artifacts, nil
}
func (f *fakeDriver) Build(context.Context, build.Artifacts) error { return nil }
func (f *fakeDriver) Rebuild(context.Context, uint64, string, string) (build.Artifacts, error) {
	f.rebuilds++
	return f.artifacts, nil
}
func (f *fakeDriver) BuildLog() []byte { return nil }
func (f *fakeDriver) ResetLog()        {}

// markBuilt fakes a successful Build pass by installing os.Args[0] (this
// test binary) as the sketch executable, without invoking the real
// BuildDriver (which would need an actual cmake-like tool on PATH).
func markBuilt(t *testing.T, r *BoardRunner, behavior string) {
	t.Helper()
	t.Setenv("GO_WANT_HELPER_PROCESS", "1")
	t.Setenv("RUNNER_TEST_HELPER_BEHAVIOR", behavior)

	artifacts := build.Artifacts{SketchDir: t.TempDir(), SketchBin: os.Args[0]}

	r.mu.Lock()
	r.artifacts = artifacts
	r.sketchSrc = t.TempDir()
	r.mu.Unlock()
	r.driver = &fakeDriver{artifacts: artifacts}
	r.status.Store(int32(StatusBuilt))
}

// S4 (state gate): new runner -> reset true/clean; start false/clean;
// configure->true, build(faked)->true already, start->true, suspend->true,
// resume->true, terminate->true, status=stopped.
func TestScenarioS4StateGate(t *testing.T) {
	r := New(config.ExecutionContext{}, nil, nil, zap.NewNop())

	assert.True(t, r.Reset())
	assert.Equal(t, StatusClean, r.Status())

	assert.False(t, r.Start())
	assert.Equal(t, StatusClean, r.Status())

	assert.True(t, r.Configure("arduino:avr:uno", config.BoardConfig{}))
	markBuilt(t, r, "sleep")

	assert.True(t, r.Start())
	assert.Equal(t, StatusRunning, r.Status())

	assert.True(t, r.Suspend())
	assert.Equal(t, StatusSuspended, r.Status())

	assert.True(t, r.Resume())
	assert.Equal(t, StatusRunning, r.Status())

	assert.True(t, r.Terminate())
	assert.Equal(t, StatusStopped, r.Status())
}

// S5 (child crash): a sketch binary that exits with code 42 -> after
// start, tick eventually observes exit, transitions to stopped, and
// invokes the exit callback with argument 42 exactly once.
func TestScenarioS5ChildCrash(t *testing.T) {
	var notified []int
	r := New(config.ExecutionContext{}, func(code int) { notified = append(notified, code) }, nil, zap.NewNop())

	require.True(t, r.Configure("arduino:avr:uno", config.BoardConfig{}))
	markBuilt(t, r, "exit42")

	require.True(t, r.Start())

	deadline := time.Now().Add(5 * time.Second)
	for r.Status() != StatusStopped && time.Now().Before(deadline) {
		r.Tick()
		time.Sleep(10 * time.Millisecond)
	}

	assert.Equal(t, StatusStopped, r.Status())
	require.Len(t, notified, 1)
	assert.Equal(t, 42, notified[0])

	// Invariant 6: further ticks are a no-op, callback not invoked again.
	r.Tick()
	r.Tick()
	assert.Len(t, notified, 1)
}

// S6 (rebuild gate): after successful build, rebuild returns true; after
// start, rebuild returns false; after terminate, rebuild returns true.
func TestScenarioS6RebuildGate(t *testing.T) {
	r := newConfiguredRunner(t)
	markBuilt(t, r, "sleep")
	fd := r.driver.(*fakeDriver)

	assert.True(t, r.Rebuild(context.Background()))
	assert.Equal(t, 1, fd.rebuilds)

	require.True(t, r.Start())
	assert.False(t, r.Rebuild(context.Background()))
	assert.Equal(t, 1, fd.rebuilds, "rebuild must not run while the child is up")

	require.True(t, r.Terminate())
	assert.True(t, r.Rebuild(context.Background()))
	assert.Equal(t, 2, fd.rebuilds)
	assert.Equal(t, StatusBuilt, r.Status(), "a successful rebuild sets status to built regardless of the status it ran from")
}

// Terminate on an already-reaped child: Process.Kill returns an error once
// the process has exited, and terminate must then restore the prior status
// and report failure rather than forcing stopped, matching the original's
// `return !ec`.
func TestTerminateFailureRestoresPriorStatus(t *testing.T) {
	r := newConfiguredRunner(t)
	markBuilt(t, r, "default")
	require.True(t, r.Start())

	r.mu.Lock()
	child := r.child
	r.mu.Unlock()
	child.wg.Wait() // blocks until the helper process has exited and been reaped

	assert.False(t, r.Terminate())
	assert.Equal(t, StatusRunning, r.Status())
}

// Invariant 3: reachable transitions match §4.5 exactly; disallowed ones
// are no-ops.
func TestDisallowedTransitionsAreNoOps(t *testing.T) {
	r := New(config.ExecutionContext{}, nil, nil, zap.NewNop())

	assert.False(t, r.Suspend())
	assert.False(t, r.Resume())
	assert.False(t, r.Terminate())
	assert.Equal(t, StatusClean, r.Status())
}

// Invariant 5: after reset, sketch_dir/sketch_bin/build_log/runtime_log
// are all empty and status is clean.
func TestResetClearsEverything(t *testing.T) {
	r := newConfiguredRunner(t)
	markBuilt(t, r, "exit42")
	require.True(t, r.Start())

	deadline := time.Now().Add(5 * time.Second)
	for r.Status() != StatusStopped && time.Now().Before(deadline) {
		r.Tick()
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, StatusStopped, r.Status())

	require.True(t, r.Reset())
	assert.Equal(t, StatusClean, r.Status())
	assert.Empty(t, r.SketchDir())
	assert.Empty(t, r.SketchBin())
	assert.Empty(t, r.BuildLog())
	assert.Empty(t, r.RuntimeLog())
}

// View returns an invalid view while clean and a valid one once configured.
func TestViewInvalidWhenCleanValidWhenConfigured(t *testing.T) {
	r := New(config.ExecutionContext{}, nil, nil, zap.NewNop())
	assert.False(t, r.View().Valid())

	require.True(t, r.Configure("arduino:avr:uno", config.BoardConfig{PinIDs: []config.PinID{3}}))
	assert.True(t, r.View().Valid())
}
