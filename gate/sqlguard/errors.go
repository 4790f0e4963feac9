package sqlguard

import "errors"

// Every rejection wraps one of these sentinels, so callers can branch with
// errors.Is while the message carries the human-readable detail. Rejections
// are decisions, not exceptional conditions: the validator always returns,
// never panics, and never partially accepts.
var (
	// ErrEmptyInput is returned when the query contains no statement
	// beyond whitespace and comments.
	ErrEmptyInput = errors.New("query is empty")

	// ErrMultipleStatements is returned when more than one non-empty
	// statement is present. Statement chaining is the classic injection
	// vector; comments and trailing semicolons do not count as statements.
	ErrMultipleStatements = errors.New("multiple statements are not allowed")

	// ErrNotReadOnly is returned when the single statement's kind is not a
	// read. The message names the kind that was found.
	ErrNotReadOnly = errors.New("only read-only SELECT statements are allowed")

	// ErrForbiddenKeyword is returned when a forbidden operation keyword
	// appears anywhere in the flattened token stream, nested constructs
	// included. The message names the keyword.
	ErrForbiddenKeyword = errors.New("query contains a forbidden operation")

	// ErrParseFailure is returned when no parser tier could make sense of
	// the input. Malformed input is rejected, never assumed safe.
	ErrParseFailure = errors.New("query could not be parsed")
)
