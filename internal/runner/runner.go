// Package runner executes already-validated task scripts inside a
// capability-restricted Starlark namespace. Each call builds a fresh
// namespace from policy, captures everything the script prints, invokes the
// run(params) entry point, and reports the outcome as a single structured
// result. The runner performs no policy re-checking; its restricted
// namespace is an independent second layer of defense, not a substitute
// for validation.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	starlarkjson "go.starlark.net/lib/json"
	starlarkmath "go.starlark.net/lib/math"
	starlarktime "go.starlark.net/lib/time"
	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/policy"
)

const scriptName = "task.star"

// modules maps root import names to the Starlark modules this runtime
// serves through load().
var modules = map[string]*starlarkstruct.Module{
	"math": starlarkmath.Module,
	"json": starlarkjson.Module,
	"time": starlarktime.Module,
}

// Options configure optional hardening around a call. The zero value is the
// core contract: no step budget, unbounded run time.
type Options struct {
	// MaxSteps aborts the script after this many computation steps.
	// 0 means unlimited.
	MaxSteps uint64
}

// EntryPointError reports a script that loaded without error but left no
// callable run in its namespace. Behind the validation gate this means the
// validator and runner disagree about the script, an internal-consistency
// failure rather than a user error.
type EntryPointError struct{}

func (e *EntryPointError) Error() string {
	return "script did not define a callable run(params) entry point"
}

// Execute evaluates source in a fresh restricted namespace and invokes
// run(params). Script-authored failures, including the full backtrace, come
// back inside the result; panics from the host runtime are deliberately not
// recovered. Partial stdout is preserved on every exit path.
func Execute(ctx context.Context, source string, params map[string]any, pol *policy.Policy, opts Options) model.Result {
	var stdout, stderr bytes.Buffer

	paramsVal, err := ToStarlark(params)
	if err != nil {
		return model.Failure(fmt.Sprintf("invalid params: %v", err), "", "")
	}

	thread := &starlark.Thread{
		Name: "taskgate",
		Print: func(_ *starlark.Thread, msg string) {
			stdout.WriteString(msg)
			stdout.WriteByte('\n')
		},
		Load: loadFunc(pol),
	}
	if opts.MaxSteps > 0 {
		thread.SetMaxExecutionSteps(opts.MaxSteps)
	}
	if ctx != nil && ctx.Done() != nil {
		stop := context.AfterFunc(ctx, func() {
			thread.Cancel("context cancelled")
		})
		defer stop()
	}

	predeclared := buildNamespace(pol, paramsVal)

	// Evaluating the file binds run into the namespace; it does not call it.
	globals, err := starlark.ExecFileOptions(model.SyntaxOptions(), thread, scriptName, source, predeclared)
	if err != nil {
		return model.Failure(errorText(err), stdout.String(), stderr.String())
	}

	fn, ok := globals["run"].(starlark.Callable)
	if !ok {
		epErr := &EntryPointError{}
		return model.Failure(epErr.Error(), stdout.String(), stderr.String())
	}

	ret, err := starlark.Call(thread, fn, starlark.Tuple{paramsVal}, nil)
	if err != nil {
		return model.Failure(errorText(err), stdout.String(), stderr.String())
	}

	data, err := FromStarlark(ret)
	if err != nil {
		return model.Failure(fmt.Sprintf("unserializable return value: %v", err), stdout.String(), stderr.String())
	}

	return model.Result{
		Success: true,
		Data:    data,
		Stdout:  stdout.String(),
		Stderr:  stderr.String(),
	}
}

// buildNamespace returns the predeclared environment for one call: every
// universe builtin not named in allowed_primitives is shadowed by a stub
// that fails when called, and params is bound to the caller's payload.
// Nothing in the namespace reaches the host's filesystem, process, or
// network facilities.
func buildNamespace(pol *policy.Policy, params starlark.Value) starlark.StringDict {
	ns := make(starlark.StringDict, len(starlark.Universe)+1)
	for name, val := range starlark.Universe {
		// Value constants (None, True, False) are data, not capabilities.
		if _, callable := val.(starlark.Callable); !callable {
			continue
		}
		if !pol.PrimitiveAllowed(name) {
			ns[name] = disabled(name)
		}
	}
	ns["params"] = params
	return ns
}

func disabled(name string) *starlark.Builtin {
	return starlark.NewBuiltin(name, func(_ *starlark.Thread, b *starlark.Builtin, _ starlark.Tuple, _ []starlark.Tuple) (starlark.Value, error) {
		return nil, fmt.Errorf("%s is not available in the sandbox", b.Name())
	})
}

// loadFunc serves load() statements from the whitelisted module registry.
// The validator already rejects non-whitelisted loads; checking again here
// keeps the namespace restriction independent of validation.
func loadFunc(pol *policy.Policy) func(*starlark.Thread, string) (starlark.StringDict, error) {
	return func(_ *starlark.Thread, label string) (starlark.StringDict, error) {
		root := policy.ModuleRoot(label)
		if !pol.ImportAllowed(root) {
			return nil, fmt.Errorf("module %q is not allowed", root)
		}
		mod, ok := modules[root]
		if !ok {
			return nil, fmt.Errorf("module %q is not provided by this runtime", root)
		}
		return starlark.StringDict{root: mod}, nil
	}
}

// errorText formats a script failure, preferring the full backtrace when
// the interpreter provides one.
func errorText(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}
