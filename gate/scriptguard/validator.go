package scriptguard

import (
	"fmt"
	"strings"

	"go.starlark.net/syntax"

	"axonflow/toolgate/gate/policy"
)

// Validator checks script structure and extracts capabilities. It is
// stateless and safe for concurrent use.
type Validator struct {
	opts *syntax.FileOptions
}

// NewValidator returns a validator. Parsing is deliberately permissive:
// the structure check, not the grammar, decides what is allowed, so a
// top-level if statement reports "invalid top-level statement" rather than
// a parse error.
func NewValidator() *Validator {
	return &Validator{
		opts: &syntax.FileOptions{
			Set:             true,
			While:           true,
			TopLevelControl: true,
			GlobalReassign:  true,
			Recursion:       true,
		},
	}
}

// Report is the outcome of a successful validation.
type Report struct {
	// Capabilities is every capability the script asks for, in first-use
	// order, deduplicated.
	Capabilities []policy.Capability

	// Docstring is the leading string literal, if the script has one.
	Docstring string
}

// Validate parses src, checks its top-level structure, collects its
// capabilities, and evaluates them against the snapshot. A nil error means
// the script is structurally valid and every capability is permitted.
func (v *Validator) Validate(name string, src []byte, snap policy.Snapshot) (*Report, error) {
	file, err := v.opts.Parse(name, src, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedScript, err)
	}

	report := &Report{}
	for i, stmt := range file.Stmts {
		switch s := stmt.(type) {
		case *syntax.LoadStmt, *syntax.DefStmt:
			// allowed anywhere at the top level
		case *syntax.ExprStmt:
			if i == 0 {
				if lit, ok := s.X.(*syntax.Literal); ok && lit.Token == syntax.STRING {
					report.Docstring, _ = lit.Value.(string)
					continue
				}
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidTopLevelNode, stmtKind(stmt))
		default:
			return nil, fmt.Errorf("%w: %s", ErrInvalidTopLevelNode, stmtKind(stmt))
		}
	}

	report.Capabilities = collectCapabilities(file)
	if err := snap.EvaluateAll(report.Capabilities); err != nil {
		return nil, err
	}
	return report, nil
}

// collectCapabilities walks the whole tree, function bodies included, and
// records module loads, bare function calls, and attribute accesses.
// Attribute accesses count whether or not they sit in call position:
// aliasing a method (f = os.system) still references the capability.
func collectCapabilities(file *syntax.File) []policy.Capability {
	var caps []policy.Capability
	seen := make(map[string]bool)

	add := func(c policy.Capability) {
		key := string(c.Category) + "|" + c.Pattern()
		if seen[key] {
			return
		}
		seen[key] = true
		caps = append(caps, c)
	}

	syntax.Walk(file, func(n syntax.Node) bool {
		switch node := n.(type) {
		case *syntax.LoadStmt:
			add(policy.Capability{
				Category: policy.CategoryModule,
				Module:   node.ModuleName(),
			})
		case *syntax.CallExpr:
			if fn, ok := node.Fn.(*syntax.Ident); ok {
				add(policy.Capability{
					Category: policy.CategoryFunction,
					Symbol:   fn.Name,
				})
			}
		case *syntax.DotExpr:
			if recv, ok := dottedName(node.X); ok {
				add(policy.Capability{
					Category: policy.CategoryAttribute,
					Module:   recv,
					Symbol:   node.Name.Name,
				})
			}
		}
		return true
	})
	return caps
}

// dottedName flattens a receiver expression into a dotted name. Only chains
// of identifiers and attribute accesses flatten; a computed receiver has no
// stable name for a pattern to match.
func dottedName(e syntax.Expr) (string, bool) {
	switch x := e.(type) {
	case *syntax.Ident:
		return x.Name, true
	case *syntax.DotExpr:
		base, ok := dottedName(x.X)
		if !ok {
			return "", false
		}
		return base + "." + x.Name.Name, true
	case *syntax.ParenExpr:
		return dottedName(x.X)
	}
	return "", false
}

// stmtKind names a statement type for error messages.
func stmtKind(stmt syntax.Stmt) string {
	switch stmt.(type) {
	case *syntax.AssignStmt:
		return "assignment"
	case *syntax.BranchStmt:
		return "branch statement"
	case *syntax.DefStmt:
		return "function definition"
	case *syntax.ExprStmt:
		return "expression statement"
	case *syntax.ForStmt:
		return "for loop"
	case *syntax.WhileStmt:
		return "while loop"
	case *syntax.IfStmt:
		return "if statement"
	case *syntax.LoadStmt:
		return "load statement"
	case *syntax.ReturnStmt:
		return "return statement"
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", stmt), "*syntax.")
}
