package sqlguard

import (
	"fmt"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// ASTParser is the most precise tier. It parses each statement with a full
// SQL grammar, so subqueries, set operations, and expression nesting are
// classified structurally rather than guessed from the leading keyword.
// Statement splitting and the token stream come from the shared lexer, so
// the validator's forbidden-operation scan behaves identically across tiers.
type ASTParser struct{}

// NewASTParser returns the AST tier.
func NewASTParser() *ASTParser {
	return &ASTParser{}
}

// Tier returns TierAST.
func (p *ASTParser) Tier() Tier {
	return TierAST
}

// Parse lexes and splits the text, then runs the grammar over every
// non-empty statement. Any piece the grammar rejects fails the whole parse,
// handing the input to the next tier in the chain.
func (p *ASTParser) Parse(text string) ([]ParsedStatement, error) {
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
		if !stmt.IsEmpty() {
			node, err := sqlparser.Parse(stmt.Text)
			if err != nil {
				return nil, fmt.Errorf("statement %d: %v", len(stmts)+1, err)
			}
			stmt.Kind = classifyAST(node)
		}
		stmts = append(stmts, stmt)
	}
	return stmts, nil
}

// classifyAST maps a parsed statement node to its kind.
func classifyAST(node sqlparser.Statement) Kind {
	switch stmt := node.(type) {
	case sqlparser.SelectStatement:
		// Select, Union, and parenthesized selects are all read statements.
		return KindSelect
	case *sqlparser.Insert:
		if stmt.Action == sqlparser.ReplaceStr {
			return KindReplace
		}
		return KindInsert
	case *sqlparser.Update:
		return KindUpdate
	case *sqlparser.Delete:
		return KindDelete
	case *sqlparser.DDL:
		switch stmt.Action {
		case sqlparser.CreateStr:
			return KindCreate
		case sqlparser.AlterStr, sqlparser.RenameStr:
			return KindAlter
		case sqlparser.DropStr:
			return KindDrop
		case sqlparser.TruncateStr:
			return KindTruncate
		}
		return KindUnknown
	case *sqlparser.Set:
		return KindSet
	case *sqlparser.Show:
		return KindShow
	case *sqlparser.Begin:
		return KindBegin
	case *sqlparser.Commit:
		return KindCommit
	case *sqlparser.Rollback:
		return KindRollback
	}
	return KindUnknown
}

func upper(s string) string {
	return strings.ToUpper(s)
}
