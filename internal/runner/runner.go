// Package runner implements BoardRunner (C5), the public state machine
// that sequences configure -> build -> start -> (suspend <-> resume) ->
// terminate, and owns the child process plus its log-drain thread.
//
// Grounded on the teacher's Kernel lifecycle (kernel/lifecycle.go):
// an atomic int32 status with CompareAndSwap-gated transitions, a
// context/cancel/WaitGroup trio for owned background work, and a
// mandatory join at shutdown. The child-process spawn/drain/suspend
// machinery has no teacher analogue (the teacher never shells out to a
// long-lived child) and is built fresh in that idiom, using
// os/exec.CommandContext the way internal/build's Driver does.
package runner

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/smce-go/runner/internal/board"
	"github.com/smce-go/runner/internal/build"
	"github.com/smce-go/runner/internal/config"
	"github.com/smce-go/runner/internal/errcode"
	"github.com/smce-go/runner/internal/metrics"
	"github.com/smce-go/runner/internal/sbd"
	"github.com/smce-go/runner/internal/view"
)

// segnameEnv is the environment variable through which the spawned child
// discovers its shm segment name, per spec.md §6.1.
const segnameEnv = "SEGNAME"

// ExitNotifyFunc is invoked at most once per run with the child's exit
// code: when Tick observes that the child has exited, or when Terminate
// has killed the child and joined its goroutines, whichever comes first.
type ExitNotifyFunc func(exitCode int)

// buildDriver is the subset of *build.Driver's surface BoardRunner
// depends on, narrowed to an interface so tests can substitute a fake
// that never shells out to a real configure tool.
type buildDriver interface {
	Configure(ctx context.Context, sketchID uint64, fqbn, sketchSrc string, sketchCfg config.SketchConfig) (build.Artifacts, error)
	Build(ctx context.Context, artifacts build.Artifacts) error
	Rebuild(ctx context.Context, sketchID uint64, fqbn, sketchSrc string) (build.Artifacts, error)
	BuildLog() []byte
	ResetLog()
}

// childSession tracks one spawned child process: its handle, the
// goroutines draining stderr and reaping its exit, and the exit-notify
// latch for this run.
type childSession struct {
	cmd     *exec.Cmd
	wg      sync.WaitGroup
	done    chan struct{}
	drained chan struct{} // closed once drainStderr has seen EOF

	exitCode   int
	notifyOnce sync.Once
}

// BoardRunner is the host-side orchestrator of one sketch lifecycle.
type BoardRunner struct {
	status atomic.Int32

	driver  buildDriver
	metrics *metrics.Registry
	logger  *zap.Logger
	onExit  ExitNotifyFunc

	mu        sync.Mutex
	shared    *sbd.SharedBoardData
	fqbn      string
	boardCfg  config.BoardConfig
	sketchSrc string
	artifacts build.Artifacts

	child *childSession

	runtimeLogMu sync.Mutex
	runtimeLog   bytes.Buffer
}

// New constructs a BoardRunner against execCtx. reg and logger may be
// nil; onExit may be nil if the embedder does not care about exit codes.
func New(execCtx config.ExecutionContext, onExit ExitNotifyFunc, reg *metrics.Registry, logger *zap.Logger) *BoardRunner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &BoardRunner{
		driver:  build.NewDriver(execCtx, reg, logger.Named("build")),
		metrics: reg,
		logger:  logger.Named("runner"),
		onExit:  onExit,
	}
	r.setStatus(StatusClean)
	return r
}

func (r *BoardRunner) setStatus(s RunnerStatus) {
	r.status.Store(int32(s))
	if r.metrics != nil {
		r.metrics.SetStatus(s.String(), allStatusNames)
	}
}

// transition atomically moves status from one of allowedFrom to to,
// returning false (a no-op) if the current status is not in
// allowedFrom — the silent state-machine guard failure per spec.md §7.
func (r *BoardRunner) transition(op string, allowedFrom []RunnerStatus, to RunnerStatus) bool {
	for {
		cur := RunnerStatus(r.status.Load())
		ok := false
		for _, a := range allowedFrom {
			if a == cur {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
		if r.status.CompareAndSwap(int32(cur), int32(to)) {
			if r.metrics != nil {
				r.metrics.SetStatus(to.String(), allStatusNames)
				r.metrics.ObserveTransition(op, to.String())
			}
			return true
		}
	}
}

// Status returns the current RunnerStatus.
func (r *BoardRunner) Status() RunnerStatus { return RunnerStatus(r.status.Load()) }

// Configure materializes the shared board data for conf under fqbn. Valid
// from clean or configured (a reconfigure discards the prior region).
func (r *BoardRunner) Configure(fqbn string, boardCfg config.BoardConfig) bool {
	if !r.transition("configure", []RunnerStatus{StatusClean, StatusConfigured}, StatusConfigured) {
		return false
	}

	r.mu.Lock()
	prior := r.shared
	r.mu.Unlock()
	if prior != nil {
		_ = prior.Reset()
	}

	shared, err := sbd.Configure(fqbn, boardCfg)
	if err != nil {
		r.logger.Error("configure failed", zap.Error(err), zap.String("code", string(errcode.Of(err))))
		r.setStatus(StatusClean)
		return false
	}

	r.mu.Lock()
	r.shared = shared
	r.fqbn = fqbn
	r.boardCfg = boardCfg
	r.sketchSrc = ""
	r.artifacts = build.Artifacts{}
	r.mu.Unlock()
	return true
}

// Build invokes the BuildDriver's configure and build passes for
// sketchSrc/sketchCfg. Valid only from configured; reverts to configured
// on failure, moves to built on success.
func (r *BoardRunner) Build(ctx context.Context, sketchSrc string, sketchCfg config.SketchConfig) bool {
	if !r.transition("build", []RunnerStatus{StatusConfigured}, StatusBuilt) {
		return false
	}

	r.mu.Lock()
	shared := r.shared
	fqbn := r.fqbn
	r.mu.Unlock()

	artifacts, err := r.driver.Configure(ctx, shared.SketchID(), fqbn, sketchSrc, sketchCfg)
	if err != nil {
		r.logger.Error("build failed", zap.Error(err), zap.String("code", string(errcode.Of(err))))
		r.setStatus(StatusConfigured)
		return false
	}

	// The sketch source path is recorded once the configure pass itself
	// succeeds, independent of whether the build pass below does, since
	// Rebuild only needs a configured source location to re-target.
	r.mu.Lock()
	r.sketchSrc = sketchSrc
	r.mu.Unlock()

	if err := r.driver.Build(ctx, artifacts); err != nil {
		r.logger.Error("build failed", zap.Error(err), zap.String("code", string(errcode.Of(err))))
		r.setStatus(StatusConfigured)
		return false
	}

	r.mu.Lock()
	r.artifacts = artifacts
	r.mu.Unlock()
	return true
}

// Rebuild re-provisions the shared board data (preserving sketch
// identity) and re-runs the configure and build passes with a reduced
// argument set. Forbidden while running or suspended; requires a prior
// successful configure pass (a recorded sketch source). On success it
// sets status to built, mirroring the original's do_build() placement;
// on failure status is left unchanged.
func (r *BoardRunner) Rebuild(ctx context.Context) bool {
	cur := RunnerStatus(r.status.Load())
	if cur == StatusRunning || cur == StatusSuspended {
		return false
	}

	r.mu.Lock()
	shared := r.shared
	fqbn := r.fqbn
	boardCfg := r.boardCfg
	sketchSrc := r.sketchSrc
	r.mu.Unlock()
	if shared == nil || sketchSrc == "" {
		return false
	}

	if err := shared.Reconfigure(boardCfg); err != nil {
		r.logger.Error("rebuild: board data reconfigure failed", zap.Error(err), zap.String("code", string(errcode.Of(err))))
		return false
	}

	artifacts, err := r.driver.Rebuild(ctx, shared.SketchID(), fqbn, sketchSrc)
	if err != nil {
		r.logger.Error("rebuild failed", zap.Error(err), zap.String("code", string(errcode.Of(err))))
		return false
	}

	r.mu.Lock()
	r.artifacts = artifacts
	r.mu.Unlock()
	r.setStatus(StatusBuilt)
	return true
}

// Start spawns the built executable with SEGNAME set to the shm region
// name, discards its stdout, and drains its stderr into the runtime log.
// Valid only from built.
func (r *BoardRunner) Start() bool {
	if !r.transition("start", []RunnerStatus{StatusBuilt}, StatusRunning) {
		return false
	}

	r.mu.Lock()
	segname := r.shared.Name()
	bin := r.artifacts.SketchBin
	r.mu.Unlock()

	cmd := exec.Command(bin)
	cmd.Env = append(os.Environ(), segnameEnv+"="+segname)

	stderr, err := cmd.StderrPipe()
	if err != nil {
		r.logger.Error("stderr pipe failed", zap.Error(err))
		r.setStatus(StatusBuilt)
		return false
	}
	if err := cmd.Start(); err != nil {
		r.logger.Error("spawn failed", zap.Error(err), zap.String("code", string(errcode.SpawnFailed)))
		r.setStatus(StatusBuilt)
		return false
	}

	session := &childSession{cmd: cmd, done: make(chan struct{}), drained: make(chan struct{})}
	session.wg.Add(2)
	go r.drainStderr(session, stderr)
	go r.reapChild(session)

	r.mu.Lock()
	r.child = session
	r.mu.Unlock()
	return true
}

// drainStderr reads the child's stderr one byte at a time (to detect EOF
// promptly), then reads up to 4096 further bytes in one more Read call.
// That second call is an ordinary blocking read: it waits until at least
// one more byte arrives or the stream ends, rather than returning at once
// when nothing further is buffered.
func (r *BoardRunner) drainStderr(s *childSession, stderr io.ReadCloser) {
	defer s.wg.Done()
	defer close(s.drained)
	defer func() { _ = stderr.Close() }()

	one := make([]byte, 1)
	bulk := make([]byte, 4096)
	for {
		n, err := stderr.Read(one)
		if n > 0 {
			r.appendRuntimeLog(one[:n])
			if m, _ := stderr.Read(bulk); m > 0 {
				r.appendRuntimeLog(bulk[:m])
			}
		}
		if err != nil {
			return
		}
	}
}

// reapChild waits for drainStderr to observe EOF on stderr before calling
// cmd.Wait() — per the os/exec docs, "it is thus incorrect to call Wait
// before all reads from the pipe have completed", since Wait closes the
// pipe out from under an in-flight Read and can truncate trailing runtime
// log bytes the child wrote just before exiting. Once drained, it records
// the exit code and closes done so Tick can observe it without blocking.
func (r *BoardRunner) reapChild(s *childSession) {
	defer s.wg.Done()
	<-s.drained
	err := s.cmd.Wait()
	s.exitCode = exitCodeOf(err)
	close(s.done)
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func (r *BoardRunner) appendRuntimeLog(b []byte) {
	r.runtimeLogMu.Lock()
	r.runtimeLog.Write(b)
	n := r.runtimeLog.Len()
	r.runtimeLogMu.Unlock()
	if r.metrics != nil {
		r.metrics.SetRuntimeLogBytes(n)
	}
}

// Suspend stops the child without killing it (SIGSTOP on POSIX,
// NtSuspendProcess on Windows). Valid only from running.
func (r *BoardRunner) Suspend() bool {
	r.mu.Lock()
	child := r.child
	r.mu.Unlock()
	if child == nil {
		return false
	}

	if !r.transition("suspend", []RunnerStatus{StatusRunning}, StatusSuspended) {
		return false
	}
	if err := suspendProcess(child.cmd.Process.Pid); err != nil {
		r.logger.Warn("suspend primitive failed", zap.Error(err))
		r.setStatus(StatusRunning)
		return false
	}
	return true
}

// Resume continues a suspended child. Valid only from suspended.
func (r *BoardRunner) Resume() bool {
	r.mu.Lock()
	child := r.child
	r.mu.Unlock()
	if child == nil {
		return false
	}

	if !r.transition("resume", []RunnerStatus{StatusSuspended}, StatusRunning) {
		return false
	}
	if err := resumeProcess(child.cmd.Process.Pid); err != nil {
		r.logger.Warn("resume primitive failed", zap.Error(err))
		r.setStatus(StatusSuspended)
		return false
	}
	return true
}

// Tick is a non-blocking poll: if running or suspended and the child has
// exited, it transitions to stopped and invokes the exit-notify callback
// exactly once. A no-op in any other status.
func (r *BoardRunner) Tick() {
	cur := RunnerStatus(r.status.Load())
	if cur != StatusRunning && cur != StatusSuspended {
		return
	}

	r.mu.Lock()
	child := r.child
	r.mu.Unlock()
	if child == nil {
		return
	}

	select {
	case <-child.done:
		if r.status.CompareAndSwap(int32(cur), int32(StatusStopped)) {
			if r.metrics != nil {
				r.metrics.SetStatus(StatusStopped.String(), allStatusNames)
				r.metrics.ObserveTransition("tick", StatusStopped.String())
			}
		}
		child.notifyOnce.Do(func() {
			if r.onExit != nil {
				r.onExit(child.exitCode)
			}
		})
	default:
	}
}

// Terminate sends a hard kill to the child and joins its goroutines,
// transitioning to stopped iff the kill syscall succeeded — matching the
// original's `return !ec`. On kill failure the prior status (running or
// suspended) is restored and false is returned.
func (r *BoardRunner) Terminate() bool {
	from := RunnerStatus(r.status.Load())
	if !r.transition("terminate", []RunnerStatus{StatusRunning, StatusSuspended}, StatusStopped) {
		return false
	}

	r.mu.Lock()
	child := r.child
	r.mu.Unlock()

	if child == nil {
		return true
	}

	if err := child.cmd.Process.Kill(); err != nil {
		r.logger.Warn("terminate: kill failed", zap.Error(err))
		r.setStatus(from)
		return false
	}

	child.wg.Wait()
	child.notifyOnce.Do(func() {
		if r.onExit != nil {
			r.onExit(child.exitCode)
		}
	})
	return true
}

// Stop is an alias for Terminate, per spec.md §6.5 (the cooperative stop
// handshake described in §9 is not implemented).
func (r *BoardRunner) Stop() bool { return r.Terminate() }

// Reset discards all runner state and returns to clean. Forbidden while
// running or suspended — terminate first.
func (r *BoardRunner) Reset() bool {
	if !r.transition("reset", []RunnerStatus{StatusClean, StatusConfigured, StatusBuilt, StatusStopped}, StatusClean) {
		return false
	}

	r.mu.Lock()
	shared := r.shared
	artifacts := r.artifacts
	r.shared = nil
	r.fqbn = ""
	r.boardCfg = config.BoardConfig{}
	r.sketchSrc = ""
	r.artifacts = build.Artifacts{}
	r.child = nil
	r.mu.Unlock()

	if shared != nil {
		_ = shared.Reset()
	}
	if artifacts.SketchDir != "" {
		_ = os.RemoveAll(artifacts.SketchDir)
	}
	r.driver.ResetLog()
	r.runtimeLogMu.Lock()
	r.runtimeLog.Reset()
	r.runtimeLogMu.Unlock()
	return true
}

// View returns a BoardView over the live BoardData root, or an invalid
// view if the runner is clean or stopped.
func (r *BoardRunner) View() view.BoardView {
	cur := RunnerStatus(r.status.Load())
	if cur == StatusClean || cur == StatusStopped {
		return view.Of(nil)
	}
	r.mu.Lock()
	shared := r.shared
	r.mu.Unlock()
	if shared == nil {
		return view.Of(nil)
	}
	return view.Of(shared.BoardData())
}

// BuildLog returns the accumulated build log.
func (r *BoardRunner) BuildLog() []byte { return r.driver.BuildLog() }

// RuntimeLog returns the accumulated child runtime (stderr) log.
func (r *BoardRunner) RuntimeLog() []byte {
	r.runtimeLogMu.Lock()
	defer r.runtimeLogMu.Unlock()
	out := make([]byte, r.runtimeLog.Len())
	copy(out, r.runtimeLog.Bytes())
	return out
}

// SketchDir and SketchBin expose the current build artifacts, empty
// strings when unbuilt or reset.
func (r *BoardRunner) SketchDir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifacts.SketchDir
}

func (r *BoardRunner) SketchBin() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.artifacts.SketchBin
}

// FQBN returns the fully-qualified board name recorded at Configure.
func (r *BoardRunner) FQBN() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.fqbn
}

// BoardData exposes the raw root for callers that need it directly
// (BoardView normally suffices for embedders).
func (r *BoardRunner) BoardData() *board.BoardData {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shared == nil {
		return nil
	}
	return r.shared.BoardData()
}

// Close terminates an in-flight child unconditionally, joins its
// goroutines, and recursively removes the generated sketch directory,
// swallowing filesystem errors, per spec.md §4.5 "Destruction".
func (r *BoardRunner) Close() error {
	cur := RunnerStatus(r.status.Load())
	if cur == StatusRunning || cur == StatusSuspended {
		r.status.Store(int32(StatusStopped))
		r.mu.Lock()
		child := r.child
		r.mu.Unlock()
		if child != nil {
			if err := child.cmd.Process.Kill(); err != nil {
				r.logger.Warn("close: kill failed", zap.Error(err))
			}
			child.wg.Wait()
		}
	}

	r.mu.Lock()
	dir := r.artifacts.SketchDir
	shared := r.shared
	r.mu.Unlock()

	if dir != "" {
		_ = os.RemoveAll(dir)
	}
	if shared != nil {
		_ = shared.Reset()
	}
	return nil
}

// SketchID returns the sketch id of the currently configured region, or
// 0 if the runner is clean.
func (r *BoardRunner) SketchID() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.shared == nil {
		return 0
	}
	return r.shared.SketchID()
}
