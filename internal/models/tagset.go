package models

import "strings"

// TagSet is an ordered set of tags. Membership is case-insensitive but the
// casing of the first insertion is preserved.
type TagSet []string

// Add inserts tags that are not already present. Empty and
// whitespace-only tags are ignored. Returns true if the set changed.
func (t *TagSet) Add(tags ...string) bool {
	changed := false
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" || t.Contains(tag) {
			continue
		}
		*t = append(*t, tag)
		changed = true
	}
	return changed
}

// Contains reports whether tag is in the set, ignoring case.
func (t TagSet) Contains(tag string) bool {
	for _, existing := range t {
		if strings.EqualFold(existing, tag) {
			return true
		}
	}
	return false
}
