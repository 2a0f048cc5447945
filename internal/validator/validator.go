// Package validator statically checks task scripts against policy before
// any execution happens. It parses the source into a syntax tree and runs
// two passes: a structural pass over the top-level statements (the script
// must be zero or more whitelisted load() statements followed by exactly
// one def run(params)) and a deep pass over every node for blacklisted
// calls. The validator never executes the script and never returns an
// error; every problem becomes a violation in the report.
package validator

import (
	"fmt"

	"go.starlark.net/syntax"

	"github.com/taskgate/taskgate/internal/model"
	"github.com/taskgate/taskgate/internal/policy"
)

// scriptName is the filename attached to parse positions in messages.
const scriptName = "task.star"

// Validate evaluates source against pol and returns an itemized report.
// Pure and deterministic: same source and policy, same report. A syntax
// error short-circuits with a single violation; every other check runs to
// completion so the report lists all detectable violations at once.
func Validate(source string, pol *policy.Policy) model.Report {
	f, err := model.SyntaxOptions().Parse(scriptName, source, 0)
	if err != nil {
		return model.Report{Violations: []model.Violation{{
			Kind:    model.KindSyntaxError,
			Message: fmt.Sprintf("syntax error: %v", err),
		}}}
	}

	var violations []model.Violation
	add := func(kind model.ViolationKind, format string, args ...any) {
		violations = append(violations, model.Violation{
			Kind:    kind,
			Message: fmt.Sprintf(format, args...),
		})
	}

	// Structural pass: whitelist of shape, not blacklist of statement.
	hasRun := false
	for _, stmt := range f.Stmts {
		switch st := stmt.(type) {
		case *syntax.LoadStmt:
			root := policy.ModuleRoot(moduleLabel(st))
			if !pol.ImportAllowed(root) {
				add(model.KindForbiddenImport,
					"forbidden import %q: allowed modules are %s", root, pol.AllowedImportList())
			}
		case *syntax.DefStmt:
			if st.Name.Name != "run" {
				add(model.KindStructural,
					"forbidden top-level function %q: only run(params) is permitted", st.Name.Name)
				continue
			}
			hasRun = true
			if !hasSingleParamsArg(st) {
				add(model.KindStructural,
					"entry point run must accept exactly one parameter named params")
			}
		default:
			add(model.KindStructural,
				"forbidden top-level %s: a script is load() statements followed by def run(params)",
				stmtKind(stmt))
		}
	}
	if !hasRun {
		add(model.KindMissingEntryPoint, "missing required entry point: def run(params)")
	}

	// Deep pass: forbidden operations can hide inside run's body, nested
	// functions, comprehensions, or default argument expressions, so walk
	// the whole tree, not just the top level.
	syntax.Walk(f, func(n syntax.Node) bool {
		call, ok := n.(*syntax.CallExpr)
		if !ok {
			return true
		}
		switch fn := call.Fn.(type) {
		case *syntax.Ident:
			if pol.CallForbidden(fn.Name) {
				add(model.KindForbiddenCall, "forbidden function call %q", fn.Name)
			}
		case *syntax.DotExpr:
			if pol.AttributeForbidden(fn.Name.Name) {
				add(model.KindForbiddenAttribute, "forbidden attribute call %q", fn.Name.Name)
			}
		}
		return true
	})

	return model.Report{
		Valid:      len(violations) == 0,
		Violations: violations,
	}
}

// moduleLabel extracts the quoted module string from a load statement.
func moduleLabel(st *syntax.LoadStmt) string {
	if s, ok := st.Module.Value.(string); ok {
		return s
	}
	return ""
}

// hasSingleParamsArg reports whether a def takes exactly one plain
// positional parameter named params. Defaults, *args, and **kwargs all
// fail the check.
func hasSingleParamsArg(def *syntax.DefStmt) bool {
	if len(def.Params) != 1 {
		return false
	}
	id, ok := def.Params[0].(*syntax.Ident)
	return ok && id.Name == "params"
}

// stmtKind names a statement type for violation messages.
func stmtKind(stmt syntax.Stmt) string {
	switch stmt.(type) {
	case *syntax.AssignStmt:
		return "assignment"
	case *syntax.ExprStmt:
		return "expression statement"
	case *syntax.IfStmt:
		return "if statement"
	case *syntax.ForStmt:
		return "for loop"
	case *syntax.WhileStmt:
		return "while loop"
	case *syntax.ReturnStmt:
		return "return statement"
	case *syntax.BranchStmt:
		return "branch statement"
	default:
		return fmt.Sprintf("statement (%T)", stmt)
	}
}
