// Package policy evaluates script capabilities against configurable
// allow/deny rules layered over a built-in deny list.
//
// A capability is something a script asks for: importing a module, calling
// a named function, or calling an attribute on a receiver. Rules match
// capabilities by glob pattern within a category, and categories are
// independent: a rule for the module "os" says nothing about a function or
// attribute named "os".
//
// Precedence, most to least binding:
//
//  1. an active explicit deny rule
//  2. an active explicit allow rule
//  3. the built-in default deny list
//  4. accept
//
// An explicit allow therefore re-enables a capability the built-in list
// would deny, but never overrides an explicit deny.
//
// # Usage
//
//	snap := policy.NewSnapshot(rules)
//	err := snap.Evaluate(policy.Capability{
//		Category: policy.CategoryModule,
//		Module:   "subprocess",
//	})
//	if err != nil {
//		// the capability is blocked; err names the matching pattern
//	}
//
// Snapshots are immutable values. Build one per request (or per cached
// policy version) and share it freely across goroutines.
package policy
