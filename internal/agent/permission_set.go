package agent

import "strings"

// PermissionSet is an ordered set of permission strings: duplicates are
// removed on insert, insertion order is preserved for display and audit.
// Matching never depends on the order.
type PermissionSet []string

// NewPermissionSet builds a set from the given grants, lower-casing and
// deduplicating while keeping first-seen order.
func NewPermissionSet(perms []string) PermissionSet {
	var out PermissionSet
	for _, p := range perms {
		out = out.Insert(p)
	}
	return out
}

// Insert returns the set with perm added, unless an equivalent grant is
// already present.
func (s PermissionSet) Insert(perm string) PermissionSet {
	perm = strings.ToLower(strings.TrimSpace(perm))
	if perm == "" {
		return s
	}
	if s.Contains(perm) {
		return s
	}
	return append(s, perm)
}

// Contains reports whether an equal grant is already in the set.
func (s PermissionSet) Contains(perm string) bool {
	for _, existing := range s {
		if strings.EqualFold(existing, perm) {
			return true
		}
	}
	return false
}

// Strings returns the grants in insertion order.
func (s PermissionSet) Strings() []string {
	return append([]string(nil), s...)
}

// Clone returns an independent copy.
func (s PermissionSet) Clone() PermissionSet {
	if s == nil {
		return nil
	}
	return append(PermissionSet(nil), s...)
}
