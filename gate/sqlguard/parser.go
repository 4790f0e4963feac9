package sqlguard

import "fmt"

// Tier identifies which parsing strategy produced a result. Tiers are tried
// from most to least precise; tests can construct a chain from a single
// tier to target its behavior in isolation.
type Tier string

const (
	// TierAST is full-grammar AST parsing.
	TierAST Tier = "ast"

	// TierToken is lexical tokenization with leading-keyword classification.
	TierToken Tier = "token"

	// TierNone means no structural parser ran; the validator used its
	// textual fallback path.
	TierNone Tier = "none"
)

// Parser turns raw query text into a sequence of classified statements,
// order preserved. Implementations are pure: no side effects, no state
// carried between calls. A parser that cannot parse the text returns an
// error, which the chain treats as "try the next tier" and the validator
// ultimately treats as "reject", never as "skip validation".
type Parser interface {
	Parse(text string) ([]ParsedStatement, error)
	Tier() Tier
}

// Chain evaluates parsers in fixed precedence order and reports which tier
// answered. A stricter tier must never be more permissive than a weaker one
// for the same construct class; the shared lexer guarantees this for the
// token stream, and the kind tables agree by construction.
type Chain struct {
	parsers []Parser
}

// NewChain builds a chain from the given parsers, most precise first.
func NewChain(parsers ...Parser) *Chain {
	return &Chain{parsers: parsers}
}

// DefaultChain returns the standard precedence order: AST, then token.
func DefaultChain() *Chain {
	return NewChain(NewASTParser(), NewTokenParser())
}

// Parse runs the chain. It returns the statements from the first parser
// that succeeds, together with its tier. If every tier fails, the last
// error is surfaced wrapped in ErrParseFailure.
func (c *Chain) Parse(text string) ([]ParsedStatement, Tier, error) {
	var lastErr error
	for _, p := range c.parsers {
		stmts, err := p.Parse(text)
		if err != nil {
			lastErr = err
			continue
		}
		return stmts, p.Tier(), nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("no parser configured")
	}
	return nil, TierNone, fmt.Errorf("%w: %v", ErrParseFailure, lastErr)
}

// TokenParser classifies statements from their leading keyword. It cannot
// fully validate grammar, but the forbidden-operation scan over its token
// stream makes it no more permissive than the AST tier for any construct
// that matters to the safety decision.
type TokenParser struct{}

// NewTokenParser returns the lexical tier.
func NewTokenParser() *TokenParser {
	return &TokenParser{}
}

// Tier returns TierToken.
func (p *TokenParser) Tier() Tier {
	return TierToken
}

// Parse lexes the text and splits it into statements at top-level
// semicolons. Each non-empty statement's kind comes from its first
// significant token.
func (p *TokenParser) Parse(text string) ([]ParsedStatement, error) {
	tokens, err := lexSQL(text)
	if err != nil {
		return nil, err
	}

	var stmts []ParsedStatement
	for _, piece := range splitStatements(tokens) {
		stmt := ParsedStatement{
			Kind:   KindUnknown,
			Tokens: piece,
			Text:   statementText(text, piece),
		}
		if first, ok := firstSignificant(piece); ok {
			if k, ok := kindByKeyword[upper(first.Value)]; ok && first.Class == TokenKeyword {
				stmt.Kind = k
			}
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}
