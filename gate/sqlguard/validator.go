package sqlguard

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator decides whether query text is a single, read-only statement.
// It holds no mutable state and is safe for concurrent use; each call is a
// pure function of the input text.
type Validator struct {
	chain *Chain // nil means textual fallback mode
}

// Option configures a Validator.
type Option func(*Validator)

// WithChain replaces the default parser chain. Tests use this to target a
// single tier.
func WithChain(chain *Chain) Option {
	return func(v *Validator) {
		v.chain = chain
	}
}

// WithoutParser puts the validator in textual fallback mode: no structural
// parser runs, and decisions come from the strictly more conservative
// normalize-and-scan path.
func WithoutParser() Option {
	return func(v *Validator) {
		v.chain = nil
	}
}

// NewValidator creates a validator using the default parser chain.
func NewValidator(opts ...Option) *Validator {
	v := &Validator{chain: DefaultChain()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Result reports how an accepted query was validated.
type Result struct {
	// Tier is the parser tier that produced the decision.
	Tier Tier

	// Kind is the classified statement kind (always KindSelect on accept).
	Kind Kind
}

// Validate runs both mandatory checks: exactly one non-empty statement,
// and that statement read-only with no forbidden operation anywhere in its
// flattened token stream. A nil error means the query is accepted.
func (v *Validator) Validate(query string) (*Result, error) {
	if v.chain == nil {
		if err := v.validateFallback(query); err != nil {
			return nil, err
		}
		return &Result{Tier: TierNone, Kind: KindSelect}, nil
	}

	stmts, tier, err := v.chain.Parse(query)
	if err != nil {
		return nil, err
	}

	stmt, err := singleStatement(stmts)
	if err != nil {
		return nil, err
	}
	if err := readOnly(stmt); err != nil {
		return nil, err
	}

	return &Result{Tier: tier, Kind: stmt.Kind}, nil
}

// singleStatement rejects unless exactly one statement is non-empty.
// Runs first: it is the cheaper check and the one statement it isolates
// feeds the read-only check.
func singleStatement(stmts []ParsedStatement) (*ParsedStatement, error) {
	var found *ParsedStatement
	count := 0
	for i := range stmts {
		if stmts[i].IsEmpty() {
			continue
		}
		count++
		if found == nil {
			found = &stmts[i]
		}
	}

	switch {
	case count == 0:
		return nil, ErrEmptyInput
	case count > 1:
		return nil, fmt.Errorf("%w: found %d statements", ErrMultipleStatements, count)
	}
	return found, nil
}

// readOnly rejects unless the statement's kind is a read and no token in
// its flattened stream names a forbidden operation. The token scan covers
// nested subqueries, CTE bodies, and parenthesized expressions, because the
// lexer flattens them all into one stream; a write hidden in a subquery
// cannot slip past an outer-clause-only check.
func readOnly(stmt *ParsedStatement) error {
	if stmt.Kind != KindSelect {
		return fmt.Errorf("%w: found %s statement", ErrNotReadOnly, stmt.Kind)
	}

	for _, t := range stmt.Tokens {
		if t.Class != TokenKeyword && t.Class != TokenName {
			continue
		}
		if IsForbiddenOperation(t.Value) {
			return fmt.Errorf("%w: %q", ErrForbiddenKeyword, strings.ToUpper(t.Value))
		}
	}
	return nil
}

// Textual fallback path. Strictly more conservative than the structural
// path: over-rejecting is acceptable here, under-rejecting is not.

var (
	fallbackLineComment  = regexp.MustCompile(`--[^\n]*`)
	fallbackBlockComment = regexp.MustCompile(`(?s)/\*.*?\*/`)
	fallbackWordBoundary = regexp.MustCompile(`\b(INSERT|UPDATE|DELETE|DROP|ALTER|CREATE|TRUNCATE|REPLACE|GRANT|REVOKE|EXEC|EXECUTE|INTO|MERGE|CALL|COMMIT|ROLLBACK)\b`)
)

// validateFallback strips comments, uppercases, and applies the two checks
// textually: the remaining text must be a single statement starting with
// SELECT, and no forbidden keyword may appear at a token boundary. String
// literals are not excluded here, so a literal containing "DELETE" is
// over-rejected by design.
func (v *Validator) validateFallback(query string) error {
	stripped := fallbackLineComment.ReplaceAllString(query, " ")
	stripped = fallbackBlockComment.ReplaceAllString(stripped, " ")
	normalized := strings.ToUpper(strings.TrimSpace(stripped))

	if normalized == "" {
		return ErrEmptyInput
	}

	count := 0
	for _, piece := range strings.Split(normalized, ";") {
		if strings.TrimSpace(piece) != "" {
			count++
		}
	}
	if count > 1 {
		return fmt.Errorf("%w: found %d statements", ErrMultipleStatements, count)
	}

	if !strings.HasPrefix(normalized, "SELECT") {
		return fmt.Errorf("%w: query must start with SELECT", ErrNotReadOnly)
	}
	if m := fallbackWordBoundary.FindString(normalized); m != "" {
		return fmt.Errorf("%w: %q", ErrForbiddenKeyword, m)
	}
	return nil
}
