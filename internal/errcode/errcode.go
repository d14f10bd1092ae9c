// Package errcode defines the stable error-kind taxonomy used across the
// runner: which failures are caller bugs signalled by a plain false, and
// which are runtime faults that still carry a Code for logging/metrics.
package errcode

import "fmt"

// Code is a stable, comparable error identifier. It implements error so it
// can be returned, wrapped, or compared directly with errors.Is.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes, one per kind in the error taxonomy.
const (
	// StateRejected marks a state-machine guard violation. Per policy this
	// never escapes as an error value — operations return false instead —
	// but the code still exists so logging/metrics can tag which guard fired.
	StateRejected Code = "state_rejected"

	ConfigureFailed    Code = "configure_failed"
	BuildFailed        Code = "build_failed"
	ShmFull            Code = "shm_full"
	ShmGone            Code = "shm_gone"
	SpawnFailed        Code = "spawn_failed"
	ChildCrashed       Code = "child_crashed"
	SuspendUnsupported Code = "suspend_unsupported"
	SuspendFailed      Code = "suspend_failed"
	PathEncoding       Code = "path_encoding"
)

// E wraps a Code with operation context and an optional cause.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %s: %v", e.Op, e.C, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s: %s", e.Op, e.C, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.C, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.C)
	}
}

func (e *E) Unwrap() error { return e.Err }

func (e *E) Code() Code { return e.C }

// New builds an *E for op/code with an optional wrapped cause.
func New(op string, code Code, msg string, cause error) *E {
	return &E{C: code, Op: op, Msg: msg, Err: cause}
}

type coder interface{ Code() Code }

// Of extracts a Code from an error, defaulting to the zero Code ("") when
// err is nil and to ChildCrashed-less generic "error" otherwise unknown.
func Of(err error) Code {
	if err == nil {
		return ""
	}
	if c, ok := err.(Code); ok {
		return c
	}
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return "error"
}
