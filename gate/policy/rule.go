package policy

import "fmt"

// RuleType says whether a rule grants or blocks the capabilities it matches.
type RuleType string

const (
	RuleAllow RuleType = "allow"
	RuleDeny  RuleType = "deny"
)

// Category partitions capabilities. Rules only ever match capabilities in
// their own category.
type Category string

const (
	// CategoryModule covers module imports.
	CategoryModule Category = "module"

	// CategoryFunction covers calls to bare named functions.
	CategoryFunction Category = "function"

	// CategoryAttribute covers calls to an attribute of a receiver,
	// matched as "receiver.attribute".
	CategoryAttribute Category = "attribute"
)

// Rule is one configurable policy entry. Pattern is a glob: '*' matches any
// run of characters, '?' matches one. Inactive rules are retained for audit
// but never participate in evaluation.
type Rule struct {
	Type        RuleType `json:"type"`
	Category    Category `json:"category"`
	Pattern     string   `json:"pattern"`
	Active      bool     `json:"active"`
	Description string   `json:"description,omitempty"`
}

// Capability is a single thing a script asks permission for. Module carries
// the module or receiver name; Symbol carries the function or attribute
// name. Exactly which fields are set depends on the category.
type Capability struct {
	Category Category

	// Module is the imported module for CategoryModule, or the receiver
	// for CategoryAttribute. Empty for CategoryFunction.
	Module string

	// Symbol is the function name for CategoryFunction, or the attribute
	// name for CategoryAttribute. Empty for CategoryModule.
	Symbol string
}

// Pattern renders the capability in the form rules match against:
// the module name, the function name, or "receiver.attribute".
func (c Capability) Pattern() string {
	switch c.Category {
	case CategoryModule:
		return c.Module
	case CategoryFunction:
		return c.Symbol
	case CategoryAttribute:
		return c.Module + "." + c.Symbol
	}
	return ""
}

// String is the human-readable form used in errors and audit records.
func (c Capability) String() string {
	return fmt.Sprintf("%s %s", c.Category, c.Pattern())
}
