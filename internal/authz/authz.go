// Package authz implements the authorization decision engine. Requirements
// are declared at two scopes, a coarse resource-wide rule and a fine
// per-operation rule, merged once when the route table is built.
package authz

import (
	"credvault.org/internal/apperr"
)

// Set is a declared collection of role or permission names. The zero value
// means "never declared", which is distinct from an explicitly empty set:
// undeclared metadata is a deployment defect, not an open door.
type Set struct {
	Declared bool
	Values   []string
}

// SetOf declares a set. SetOf() with no arguments declares the explicit
// empty set.
func SetOf(values ...string) Set {
	return Set{Declared: true, Values: values}
}

func (s Set) union(other Set) Set {
	merged := Set{Declared: true}
	seen := make(map[string]struct{}, len(s.Values)+len(other.Values))
	for _, v := range append(append([]string{}, s.Values...), other.Values...) {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		merged.Values = append(merged.Values, v)
	}
	return merged
}

func (s Set) contains(v string) bool {
	for _, x := range s.Values {
		if x == v {
			return true
		}
	}
	return false
}

// Rule declares what a caller needs. Public admits unconditionally and
// exempts the rule from declaration checks.
type Rule struct {
	Public      bool
	Roles       Set
	Permissions Set
}

// Public is the rule for operations that allow unauthenticated access.
func Public() Rule { return Rule{Public: true} }

// Require declares both sets in one step.
func Require(roles Set, permissions Set) Rule {
	return Rule{Roles: roles, Permissions: permissions}
}

// Merge combines the coarse and fine rules for one operation. Role sets and
// permission sets merge by union. If either scope left roles or permissions
// entirely undeclared the merge fails: silence is a defect, not "no
// restriction".
func Merge(coarse, fine Rule) (Rule, error) {
	if fine.Public {
		return Rule{Public: true}, nil
	}
	if !coarse.Roles.Declared || !fine.Roles.Declared ||
		!coarse.Permissions.Declared || !fine.Permissions.Declared {
		return Rule{}, apperr.Configuration("authorization metadata is not fully declared")
	}
	return Rule{
		Roles:       coarse.Roles.union(fine.Roles),
		Permissions: coarse.Permissions.union(fine.Permissions),
	}, nil
}

// Authorize admits or rejects a caller against a merged rule. Role and
// permission checks are independent AND-conditions; an empty merged rule
// admits any authenticated caller. There is no implicit admin bypass.
func (r Rule) Authorize(role string, permissions []string) error {
	if r.Public {
		return nil
	}
	if !r.Roles.Declared || !r.Permissions.Declared {
		return apperr.Configuration("authorization metadata is not fully declared")
	}
	if len(r.Roles.Values) == 0 && len(r.Permissions.Values) == 0 {
		return nil
	}
	if !r.Roles.contains(role) {
		return apperr.Forbidden("User does not have required role")
	}
	held := make(map[string]struct{}, len(permissions))
	for _, p := range permissions {
		held[p] = struct{}{}
	}
	for _, need := range r.Permissions.Values {
		if _, ok := held[need]; !ok {
			return apperr.Forbidden("User does not have required permissions")
		}
	}
	return nil
}
