package bus

import (
	"sort"
	"sync"
)

// Table is the local side table of group membership keyed by (group, subscriber id).
type Table struct {
	mu     sync.RWMutex
	groups map[string]map[string]Subscriber
}

// NewTable creates an empty membership table.
func NewTable() *Table {
	return &Table{groups: make(map[string]map[string]Subscriber)}
}

// Add inserts sub into group. Returns true if newly added.
func (t *Table) Add(group string, sub Subscriber) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.groups[group]
	if !ok {
		members = make(map[string]Subscriber)
		t.groups[group] = members
	}
	if _, exists := members[sub.ID()]; exists {
		return false
	}
	members[sub.ID()] = sub
	return true
}

// Discard removes sub from group. Returns true if removed.
func (t *Table) Discard(group string, sub Subscriber) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.groups[group]
	if !ok {
		return false
	}
	if _, exists := members[sub.ID()]; !exists {
		return false
	}
	delete(members, sub.ID())
	if len(members) == 0 {
		delete(t.groups, group)
	}
	return true
}

// Contains reports whether the subscriber id is a member of group.
func (t *Table) Contains(group, id string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	_, ok := t.groups[group][id]
	return ok
}

// Members lists subscriber ids of group in sorted order.
func (t *Table) Members(group string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]string, 0, len(t.groups[group]))
	for id := range t.groups[group] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Recipients returns the union of the groups' members without exclude,
// each subscriber once.
func (t *Table) Recipients(groups []string, exclude string) []Subscriber {
	t.mu.RLock()
	defer t.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []Subscriber
	for _, group := range groups {
		for id, sub := range t.groups[group] {
			if id == exclude {
				continue
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, sub)
		}
	}
	return out
}
