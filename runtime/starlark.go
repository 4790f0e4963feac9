// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package runtime executes validated tools: scripts in a constrained
// Starlark interpreter, queries against a read-only database handle.
// Nothing here validates; callers hand in content the gate has already
// accepted.
package runtime

import (
	"context"
	"errors"
	"fmt"

	starjson "go.starlark.net/lib/json"
	starmath "go.starlark.net/lib/math"
	startime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"
)

var (
	// ErrNoEntryPoint means the script defines no callable named execute.
	ErrNoEntryPoint = errors.New("script defines no execute function")

	// ErrEvalFailed wraps a runtime failure inside the script.
	ErrEvalFailed = errors.New("script evaluation failed")
)

// entryPoint is the global every script tool must define.
const entryPoint = "execute"

// loadable is the closed set of modules a script may load. Everything else
// fails at load time regardless of policy, so the runtime stays safe even
// if a permissive snapshot let an unknown module through.
var loadable = map[string]starlark.StringDict{
	"json.star": {"json": starjson.Module},
	"time.star": {"time": startime.Module},
	"math.star": {"math": starmath.Module},
}

// Runtime compiles and runs script tools. Safe for concurrent use; each
// run gets its own thread.
type Runtime struct {
	opts     *syntax.FileOptions
	maxSteps uint64
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithMaxSteps bounds the interpreter step count per call. Zero means
// unbounded.
func WithMaxSteps(n uint64) RuntimeOption {
	return func(r *Runtime) {
		r.maxSteps = n
	}
}

// NewRuntime creates a script runtime.
func NewRuntime(opts ...RuntimeOption) *Runtime {
	r := &Runtime{
		opts: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Program is compiled script source, reusable across calls.
type Program struct {
	name string
	prog *starlark.Program
}

// Compile parses and compiles source without running it.
func (r *Runtime) Compile(name string, src []byte) (*Program, error) {
	_, prog, err := starlark.SourceProgramOptions(r.opts, name, src, func(string) bool { return false })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvalFailed, err)
	}
	return &Program{name: name, prog: prog}, nil
}

// Run initializes the program and calls its execute function with args.
// Context cancellation cancels the interpreter mid-run.
func (r *Runtime) Run(ctx context.Context, prog *Program, args map[string]interface{}) (interface{}, error) {
	thread := &starlark.Thread{
		Name: prog.name,
		Load: restrictedLoad,
	}
	if r.maxSteps > 0 {
		thread.SetMaxExecutionSteps(r.maxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	globals, err := prog.prog.Init(thread, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvalFailed, err)
	}

	fn, ok := globals[entryPoint].(starlark.Callable)
	if !ok {
		return nil, ErrNoEntryPoint
	}

	out, err := starlark.Call(thread, fn, starlark.Tuple{toStarlark(args)}, nil)
	if err != nil {
		var evalErr *starlark.EvalError
		if errors.As(err, &evalErr) {
			return nil, fmt.Errorf("%w: %s", ErrEvalFailed, evalErr.Backtrace())
		}
		return nil, fmt.Errorf("%w: %v", ErrEvalFailed, err)
	}
	return fromStarlark(out)
}

// RunScript compiles and runs in one step. This is the registry's script
// runner hook.
func (r *Runtime) RunScript(ctx context.Context, name string, src []byte, args map[string]interface{}) (interface{}, error) {
	prog, err := r.Compile(name, src)
	if err != nil {
		return nil, err
	}
	return r.Run(ctx, prog, args)
}

func restrictedLoad(_ *starlark.Thread, module string) (starlark.StringDict, error) {
	if dict, ok := loadable[module]; ok {
		return dict, nil
	}
	return nil, fmt.Errorf("module %q is not available", module)
}
