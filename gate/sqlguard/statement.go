package sqlguard

import "strings"

// Kind classifies the top-level operation a SQL statement performs.
type Kind string

const (
	KindSelect   Kind = "select"
	KindInsert   Kind = "insert"
	KindReplace  Kind = "replace"
	KindUpdate   Kind = "update"
	KindDelete   Kind = "delete"
	KindCreate   Kind = "create"
	KindDrop     Kind = "drop"
	KindAlter    Kind = "alter"
	KindTruncate Kind = "truncate"
	KindMerge    Kind = "merge"
	KindGrant    Kind = "grant"
	KindRevoke   Kind = "revoke"
	KindExec     Kind = "exec"
	KindCall     Kind = "call"
	KindBegin    Kind = "begin"
	KindCommit   Kind = "commit"
	KindRollback Kind = "rollback"
	KindSet      Kind = "set"
	KindShow     Kind = "show"
	KindUnknown  Kind = "unknown"
)

// String returns the lowercase keyword form of the kind.
func (k Kind) String() string {
	return string(k)
}

// TokenClass classifies a lexical token.
type TokenClass int

const (
	// TokenKeyword is a reserved SQL word (SELECT, FROM, DROP, ...).
	TokenKeyword TokenClass = iota

	// TokenName is an identifier: a table, column, or function name,
	// including quoted identifiers ("name", `name`).
	TokenName

	// TokenNumber is a numeric literal.
	TokenNumber

	// TokenString is a single-quoted string literal. String contents are
	// data and never participate in keyword checks.
	TokenString

	// TokenPunct is an operator or punctuation character.
	TokenPunct

	// TokenComment is a line (--) or block (/* */) comment. Comments are
	// carried in the stream so emptiness checks can see them, but they
	// never satisfy a keyword check.
	TokenComment
)

// Token is one element of a statement's flattened token stream.
type Token struct {
	Class TokenClass
	Value string

	// Pos and End are byte offsets into the original query text.
	Pos int
	End int
}

// ParsedStatement is the intermediate representation produced by a parser
// tier and consumed by the validator. It is constructed per validation call
// and discarded after the decision.
type ParsedStatement struct {
	// Kind is the classified top-level operation.
	Kind Kind

	// Tokens is the flattened token stream of the statement, comments
	// included, in source order. Nested constructs (subqueries, CTEs,
	// parenthesized expressions) are flattened into the same stream.
	Tokens []Token

	// Text is the statement's slice of the original query text.
	Text string
}

// IsEmpty reports whether the statement contributes no tokens beyond
// comments. A trailing semicolon or a comment-only fragment parses into an
// empty statement and must not count toward the single-statement check.
func (s *ParsedStatement) IsEmpty() bool {
	for _, t := range s.Tokens {
		if t.Class != TokenComment {
			return false
		}
	}
	return true
}

// forbiddenOps is the set of operation keywords that must never appear as a
// keyword or identifier token anywhere in an accepted statement, nested
// constructs included. Keys are uppercase.
var forbiddenOps = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"REPLACE":  true,
	"GRANT":    true,
	"REVOKE":   true,
	"EXEC":     true,
	"EXECUTE":  true,
	"INTO":     true, // SELECT INTO creates a table on several engines
	"MERGE":    true,
	"CALL":     true,
	"COMMIT":   true,
	"ROLLBACK": true,
}

// IsForbiddenOperation reports whether word names a forbidden operation.
// The comparison is case-insensitive.
func IsForbiddenOperation(word string) bool {
	return forbiddenOps[strings.ToUpper(word)]
}

// kindByKeyword maps a statement's leading keyword to its kind. Used by the
// token tier; the AST tier derives the kind from the parsed statement type
// and agrees with this table for everything it can parse.
var kindByKeyword = map[string]Kind{
	"SELECT":   KindSelect,
	"WITH":     KindSelect, // a write behind a CTE is caught by the token scan
	"INSERT":   KindInsert,
	"REPLACE":  KindReplace,
	"UPDATE":   KindUpdate,
	"DELETE":   KindDelete,
	"CREATE":   KindCreate,
	"DROP":     KindDrop,
	"ALTER":    KindAlter,
	"TRUNCATE": KindTruncate,
	"MERGE":    KindMerge,
	"GRANT":    KindGrant,
	"REVOKE":   KindRevoke,
	"EXEC":     KindExec,
	"EXECUTE":  KindExec,
	"CALL":     KindCall,
	"BEGIN":    KindBegin,
	"START":    KindBegin,
	"COMMIT":   KindCommit,
	"ROLLBACK": KindRollback,
	"SET":      KindSet,
	"SHOW":     KindShow,
}
