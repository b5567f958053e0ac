package permission

import (
	"sort"
	"strings"
)

const (
	// AllPermission grants every permission. It is assigned to the super-admin role.
	AllPermission = "*:*:*"
	// AdminRoleKey is the role key whose members always resolve to [AllPermission].
	AdminRoleKey = "admin"

	wildcardSegment = "*"
	separator       = ":"
)

// Set is an immutable set of permission strings.
type Set struct {
	items map[string]struct{}
}

// NewSet builds a set from perms, dropping blanks and duplicates.
func NewSet(perms ...string) Set {
	items := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		items[p] = struct{}{}
	}
	return Set{items: items}
}

// Len returns the number of distinct permissions.
func (s Set) Len() int {
	return len(s.items)
}

// List returns the permissions in sorted order.
func (s Set) List() []string {
	out := make([]string, 0, len(s.items))
	for p := range s.items {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Contains reports exact membership, without wildcard expansion.
func (s Set) Contains(perm string) bool {
	_, ok := s.items[perm]
	return ok
}

// Has reports whether the set grants perm. Stored entries may use "*" for any
// segment; a shorter entry ending in "*" covers every deeper permission.
func (s Set) Has(perm string) bool {
	perm = strings.TrimSpace(perm)
	if perm == "" {
		return false
	}
	if s.Contains(AllPermission) || s.Contains(perm) {
		return true
	}
	want := strings.Split(perm, separator)
	for granted := range s.items {
		if Match(strings.Split(granted, separator), want) {
			return true
		}
	}
	return false
}

// HasAny reports whether any of perms is granted.
func (s Set) HasAny(perms ...string) bool {
	for _, p := range perms {
		if s.Has(p) {
			return true
		}
	}
	return false
}

// Match compares a granted pattern against a requested permission, both split
// into segments.
func Match(granted, want []string) bool {
	for i, seg := range granted {
		if i >= len(want) {
			return false
		}
		if seg == wildcardSegment {
			if i == len(granted)-1 {
				return true
			}
			continue
		}
		if seg != want[i] {
			return false
		}
	}
	return len(granted) == len(want)
}
