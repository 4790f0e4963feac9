package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"sort"
	"strings"
)

// Snapshot is an immutable, evaluable view of the capability policy:
// the configured rules merged over the built-in deny list. A snapshot
// never changes after construction, so one fingerprint identifies one
// policy decision surface.
type Snapshot struct {
	disabled bool

	// active rules grouped by category, deny before allow within each
	// category so precedence is a linear scan
	denies map[Category][]Rule
	allows map[Category][]Rule

	fingerprint string
}

// NewSnapshot builds a snapshot from configured rules. Inactive rules are
// dropped here and never consulted again. An empty rule list is a valid
// policy: the built-in deny list still applies.
func NewSnapshot(rules []Rule) Snapshot {
	s := Snapshot{
		denies: make(map[Category][]Rule),
		allows: make(map[Category][]Rule),
	}
	canonical := make([]string, 0, len(rules))
	for _, r := range rules {
		if !r.Active {
			continue
		}
		switch r.Type {
		case RuleDeny:
			s.denies[r.Category] = append(s.denies[r.Category], r)
		case RuleAllow:
			s.allows[r.Category] = append(s.allows[r.Category], r)
		default:
			continue
		}
		canonical = append(canonical, fmt.Sprintf("%s|%s|%s", r.Type, r.Category, r.Pattern))
	}

	// Fingerprint is order-independent: two rule lists with the same
	// active content hash identically.
	sort.Strings(canonical)
	sum := sha256.Sum256([]byte(strings.Join(canonical, "\n")))
	s.fingerprint = hex.EncodeToString(sum[:])
	return s
}

// Disabled returns the sentinel snapshot that accepts every capability.
// Disabling policy is an explicit operator decision; it is never inferred
// from an empty rule list.
func Disabled() Snapshot {
	return Snapshot{disabled: true, fingerprint: "disabled"}
}

// Enabled reports whether the snapshot enforces anything.
func (s Snapshot) Enabled() bool {
	return !s.disabled
}

// Fingerprint identifies the snapshot's decision surface. Decision caches
// key on it together with the content hash, so a policy change invalidates
// cached verdicts without touching the cache.
func (s Snapshot) Fingerprint() string {
	return s.fingerprint
}

// Evaluate decides one capability. A nil error means the capability is
// permitted under this snapshot.
func (s Snapshot) Evaluate(cap Capability) error {
	if s.disabled {
		return nil
	}

	target := cap.Pattern()

	for _, r := range s.denies[cap.Category] {
		if matchPattern(r.Pattern, target) {
			return fmt.Errorf("%w: %q matches deny rule %q", denySentinel(cap.Category), target, r.Pattern)
		}
	}
	for _, r := range s.allows[cap.Category] {
		if matchPattern(r.Pattern, target) {
			return nil
		}
	}
	for _, pat := range builtinDenies[cap.Category] {
		if matchPattern(pat, target) {
			return fmt.Errorf("%w: %q matches built-in deny %q", denySentinel(cap.Category), target, pat)
		}
	}
	return nil
}

// EvaluateAll decides a batch of capabilities and returns the first
// rejection, the common shape for validating a whole script.
func (s Snapshot) EvaluateAll(caps []Capability) error {
	for _, c := range caps {
		if err := s.Evaluate(c); err != nil {
			return err
		}
	}
	return nil
}

// matchPattern matches a glob pattern against a capability target. Targets
// never contain '/', so path.Match semantics give plain '*' and '?' globs.
// A malformed pattern falls back to exact comparison rather than matching
// nothing silently.
func matchPattern(pattern, target string) bool {
	ok, err := path.Match(pattern, target)
	if err != nil {
		return pattern == target
	}
	return ok
}
