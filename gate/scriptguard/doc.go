// Package scriptguard validates plugin script structure before anything is
// compiled or run.
//
// A script passes the structure check when every top-level statement is one
// of: a load statement (module reference), a function definition (the unit
// that carries capabilities), or a single leading string literal acting as
// the script's docstring. Anything else at the top level is rejected with
// the offending statement kind in the error.
//
// The validator also walks the whole tree, nested scopes included, and
// collects every capability the script asks for: loaded modules, bare
// function calls, and attribute calls with their receiver. The collected
// set feeds the policy engine; a script is accepted only when both the
// structure check and the policy evaluation pass.
//
// # Usage
//
//	v := scriptguard.NewValidator()
//	report, err := v.Validate("plugin.star", src, snap)
//	if err != nil {
//		// structurally invalid, or a capability was blocked
//	}
//	_ = report.Capabilities
package scriptguard
