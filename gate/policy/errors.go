package policy

import "errors"

var (
	// ErrForbiddenModule means a module import matched a deny pattern.
	ErrForbiddenModule = errors.New("module import blocked")

	// ErrForbiddenFunction means a function call matched a deny pattern.
	ErrForbiddenFunction = errors.New("function call blocked")

	// ErrForbiddenAttributeCall means an attribute call matched a deny
	// pattern.
	ErrForbiddenAttributeCall = errors.New("attribute call blocked")
)

// denySentinel maps a category to its rejection sentinel.
func denySentinel(cat Category) error {
	switch cat {
	case CategoryModule:
		return ErrForbiddenModule
	case CategoryFunction:
		return ErrForbiddenFunction
	case CategoryAttribute:
		return ErrForbiddenAttributeCall
	}
	return ErrForbiddenFunction
}
