package access

import "strings"

// PrivilegedSet is the configured, immutable list of administrator ids.
// It is safe for concurrent readers.
type PrivilegedSet struct {
	ordered []string
	members map[string]struct{}
}

// NewPrivilegedSet builds a set from ids, dropping blanks and duplicates
// while keeping the first-seen order.
func NewPrivilegedSet(ids []string) PrivilegedSet {
	set := PrivilegedSet{members: make(map[string]struct{}, len(ids))}
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, dup := set.members[id]; dup {
			continue
		}
		set.members[id] = struct{}{}
		set.ordered = append(set.ordered, id)
	}
	return set
}

// Contains reports whether id is privileged. Empty ids never are.
func (s PrivilegedSet) Contains(id string) bool {
	if id == "" {
		return false
	}
	_, ok := s.members[id]
	return ok
}

// First returns the first configured id.
func (s PrivilegedSet) First() (string, bool) {
	if len(s.ordered) == 0 {
		return "", false
	}
	return s.ordered[0], true
}

// Len returns the number of ids.
func (s PrivilegedSet) Len() int { return len(s.ordered) }

// IDs returns a copy of the configured ids in order.
func (s PrivilegedSet) IDs() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}
