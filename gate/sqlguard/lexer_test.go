package sqlguard

import "testing"

func tokenValues(tokens []Token) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Value)
	}
	return out
}

func TestLexSQLClassification(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []TokenClass
	}{
		{
			"keywords and names",
			"SELECT id FROM users",
			[]TokenClass{TokenKeyword, TokenName, TokenKeyword, TokenName},
		},
		{
			"string literal is one token",
			"SELECT 'a b; c'",
			[]TokenClass{TokenKeyword, TokenString},
		},
		{
			"numbers",
			"SELECT 1, 2.5, 0x1f",
			[]TokenClass{TokenKeyword, TokenNumber, TokenPunct, TokenNumber, TokenPunct, TokenNumber},
		},
		{
			"line comment",
			"SELECT 1 -- trailing",
			[]TokenClass{TokenKeyword, TokenNumber, TokenComment},
		},
		{
			"block comment",
			"/* leading */ SELECT 1",
			[]TokenClass{TokenComment, TokenKeyword, TokenNumber},
		},
		{
			"quoted identifier is a name",
			`SELECT "delete" FROM t`,
			[]TokenClass{TokenKeyword, TokenName, TokenKeyword, TokenName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens, err := lexSQL(tt.input)
			if err != nil {
				t.Fatalf("lexSQL(%q): %v", tt.input, err)
			}
			if len(tokens) != len(tt.want) {
				t.Fatalf("got %d tokens %v, want %d", len(tokens), tokenValues(tokens), len(tt.want))
			}
			for i, cls := range tt.want {
				if tokens[i].Class != cls {
					t.Errorf("token %d (%q): class = %d, want %d", i, tokens[i].Value, tokens[i].Class, cls)
				}
			}
		})
	}
}

func TestLexSQLQuotedIdentifierKeepsInnerValue(t *testing.T) {
	// A forbidden word hidden behind identifier quoting must still be
	// visible to the token scan.
	tokens, err := lexSQL("SELECT `drop` FROM t")
	if err != nil {
		t.Fatalf("lexSQL: %v", err)
	}
	if tokens[1].Class != TokenName || tokens[1].Value != "drop" {
		t.Errorf("token 1 = {%d %q}, want name %q", tokens[1].Class, tokens[1].Value, "drop")
	}
}

func TestLexSQLEscapedQuotes(t *testing.T) {
	tokens, err := lexSQL("SELECT 'it''s fine'")
	if err != nil {
		t.Fatalf("lexSQL: %v", err)
	}
	if len(tokens) != 2 || tokens[1].Class != TokenString {
		t.Fatalf("got tokens %v, want keyword + one string", tokenValues(tokens))
	}
}

func TestLexSQLErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"unterminated string", "SELECT 'oops"},
		{"unterminated block comment", "SELECT 1 /* oops"},
		{"unterminated quoted identifier", `SELECT "oops`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := lexSQL(tt.input); err == nil {
				t.Errorf("lexSQL(%q) = nil error, want lex error", tt.input)
			}
		})
	}
}

func TestSplitStatements(t *testing.T) {
	tokens, err := lexSQL("SELECT 1; SELECT 2;")
	if err != nil {
		t.Fatalf("lexSQL: %v", err)
	}
	pieces := splitStatements(tokens)
	nonEmpty := 0
	for _, piece := range pieces {
		s := ParsedStatement{Tokens: piece}
		if !s.IsEmpty() {
			nonEmpty++
		}
	}
	if nonEmpty != 2 {
		t.Errorf("non-empty statements = %d, want 2", nonEmpty)
	}
}

func TestSplitStatementsSemicolonInString(t *testing.T) {
	tokens, err := lexSQL("SELECT 'a;b' FROM t")
	if err != nil {
		t.Fatalf("lexSQL: %v", err)
	}
	pieces := splitStatements(tokens)
	nonEmpty := 0
	for _, piece := range pieces {
		s := ParsedStatement{Tokens: piece}
		if !s.IsEmpty() {
			nonEmpty++
		}
	}
	if nonEmpty != 1 {
		t.Errorf("non-empty statements = %d, want 1", nonEmpty)
	}
}
