package sqlguard

import (
	"fmt"
	"strings"
)

// sqlKeywords is the set of reserved words the lexer classifies as
// TokenKeyword. Words not in this set lex as TokenName. The set only needs
// to cover classification for safety decisions, not the full SQL grammar.
var sqlKeywords = map[string]bool{
	"SELECT": true, "FROM": true, "WHERE": true, "AND": true, "OR": true,
	"NOT": true, "IN": true, "AS": true, "ON": true, "JOIN": true,
	"INNER": true, "LEFT": true, "RIGHT": true, "OUTER": true, "FULL": true,
	"CROSS": true, "GROUP": true, "BY": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "UNION": true, "INTERSECT": true,
	"EXCEPT": true, "ALL": true, "DISTINCT": true, "WITH": true,
	"VALUES": true, "INTO": true, "TABLE": true, "DATABASE": true,
	"VIEW": true, "INDEX": true, "LIKE": true, "IS": true, "NULL": true,
	"BETWEEN": true, "CASE": true, "WHEN": true, "THEN": true, "ELSE": true,
	"END": true, "EXISTS": true, "ASC": true, "DESC": true, "USING": true,
	"BEGIN": true, "START": true, "TRANSACTION": true, "TO": true,
	"INSERT": true, "UPDATE": true, "DELETE": true, "DROP": true,
	"ALTER": true, "CREATE": true, "TRUNCATE": true, "REPLACE": true,
	"GRANT": true, "REVOKE": true, "EXEC": true, "EXECUTE": true,
	"MERGE": true, "CALL": true, "COMMIT": true, "ROLLBACK": true,
	"SET": true, "SHOW": true,
}

// lexSQL splits query text into classified tokens. It is the shared
// substrate of every parser tier: statement boundaries, comment exclusion,
// and the forbidden-operation scan all run over its output. An unterminated
// string or block comment is a lex error, which callers surface as a parse
// failure, never as "assume safe".
func lexSQL(text string) ([]Token, error) {
	var tokens []Token
	i := 0
	n := len(text)

	for i < n {
		c := text[i]

		switch {
		// Whitespace contributes nothing.
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++

		// Line comment: -- to end of line.
		case c == '-' && i+1 < n && text[i+1] == '-':
			start := i
			for i < n && text[i] != '\n' {
				i++
			}
			tokens = append(tokens, Token{TokenComment, text[start:i], start, i})

		// Block comment: /* ... */, possibly multi-line.
		case c == '/' && i+1 < n && text[i+1] == '*':
			start := i
			i += 2
			for {
				if i+1 >= n {
					return nil, fmt.Errorf("unterminated block comment at offset %d", start)
				}
				if text[i] == '*' && text[i+1] == '/' {
					i += 2
					break
				}
				i++
			}
			tokens = append(tokens, Token{TokenComment, text[start:i], start, i})

		// Single-quoted string literal. '' escapes a quote; a backslash
		// escapes the next character (MySQL behavior, conservative for
		// dialects where it does not).
		case c == '\'':
			start := i
			i++
			for {
				if i >= n {
					return nil, fmt.Errorf("unterminated string literal at offset %d", start)
				}
				if text[i] == '\\' && i+1 < n {
					i += 2
					continue
				}
				if text[i] == '\'' {
					if i+1 < n && text[i+1] == '\'' {
						i += 2
						continue
					}
					i++
					break
				}
				i++
			}
			tokens = append(tokens, Token{TokenString, text[start:i], start, i})

		// Quoted identifiers lex as names so the forbidden-operation scan
		// still sees them. "" and `` escape the closing quote.
		case c == '"' || c == '`':
			quote := c
			start := i
			i++
			inner := strings.Builder{}
			for {
				if i >= n {
					return nil, fmt.Errorf("unterminated quoted identifier at offset %d", start)
				}
				if text[i] == quote {
					if i+1 < n && text[i+1] == quote {
						inner.WriteByte(quote)
						i += 2
						continue
					}
					i++
					break
				}
				inner.WriteByte(text[i])
				i++
			}
			tokens = append(tokens, Token{TokenName, inner.String(), start, i})

		// Numeric literal.
		case c >= '0' && c <= '9':
			start := i
			for i < n && (isDigit(text[i]) || text[i] == '.' || text[i] == 'e' ||
				text[i] == 'E' || text[i] == 'x' || isHexLetter(text[i])) {
				i++
			}
			tokens = append(tokens, Token{TokenNumber, text[start:i], start, i})

		// Identifier or keyword.
		case isIdentStart(c):
			start := i
			for i < n && isIdentPart(text[i]) {
				i++
			}
			word := text[start:i]
			class := TokenName
			if sqlKeywords[strings.ToUpper(word)] {
				class = TokenKeyword
			}
			tokens = append(tokens, Token{class, word, start, i})

		// Everything else is punctuation, one byte at a time. Statement
		// splitting only cares about ';'.
		default:
			tokens = append(tokens, Token{TokenPunct, string(c), i, i + 1})
			i++
		}
	}

	return tokens, nil
}

// splitStatements cuts a token stream at top-level semicolons. The lexer
// never emits a ';' from inside a string or comment, so every semicolon
// token is a genuine statement boundary. Empty trailing pieces are kept;
// the validator filters them via IsEmpty.
func splitStatements(tokens []Token) [][]Token {
	var pieces [][]Token
	var current []Token

	for _, t := range tokens {
		if t.Class == TokenPunct && t.Value == ";" {
			pieces = append(pieces, current)
			current = nil
			continue
		}
		current = append(current, t)
	}
	pieces = append(pieces, current)
	return pieces
}

// statementText returns the slice of the original text covered by piece,
// or "" for an empty piece.
func statementText(text string, piece []Token) string {
	if len(piece) == 0 {
		return ""
	}
	return text[piece[0].Pos:piece[len(piece)-1].End]
}

// firstSignificant returns the first non-comment token of a piece.
func firstSignificant(piece []Token) (Token, bool) {
	for _, t := range piece {
		if t.Class != TokenComment {
			return t, true
		}
	}
	return Token{}, false
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isHexLetter(c byte) bool  { return (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F') }
func isIdentStart(c byte) bool { return c == '_' || c == '$' || c == '@' || isLetter(c) }
func isIdentPart(c byte) bool  { return isIdentStart(c) || isDigit(c) || c == '#' }

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= 0x80
}
