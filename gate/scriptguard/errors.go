package scriptguard

import "errors"

var (
	// ErrMalformedScript means the source does not parse at all.
	ErrMalformedScript = errors.New("script does not parse")

	// ErrInvalidTopLevelNode means the script parsed but has a top-level
	// statement outside the allowed set (load, def, leading docstring).
	ErrInvalidTopLevelNode = errors.New("invalid top-level statement")
)
