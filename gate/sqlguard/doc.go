// Package sqlguard decides whether caller-supplied query text is safe to
// hand to a query engine: exactly one statement, read-only, with no write
// or administrative operation hidden anywhere in the statement tree.
//
// The package never pattern-matches raw substrings to make an accept
// decision. Query text is parsed into classified statements by a chain of
// parsers tried in fixed precedence order:
//   - TierAST: full-grammar SQL parsing (CTE-free dialects, subqueries,
//     set operations) via github.com/xwb1989/sqlparser
//   - TierToken: a comment- and string-aware lexical tokenizer that
//     classifies the leading keyword
//   - TierNone: a purely textual fallback inside the validator, used only
//     when no structural parser is configured
//
// A stricter tier is never more permissive than a weaker one: the forbidden
// keyword scan always runs over the flattened token stream produced by the
// shared lexer, so a write operation nested in a subquery is rejected no
// matter which tier classified the statement.
//
// # Usage
//
//	v := sqlguard.NewValidator()
//	res, err := v.Validate(`SELECT id, name FROM users WHERE org = $1`)
//	if err != nil {
//	    // err wraps one of the sentinel errors in errors.go
//	}
//	log.Printf("accepted via %s tier", res.Tier)
//
// Validation is a pure function of the query text. Validators hold no
// mutable state and are safe for concurrent use.
package sqlguard
