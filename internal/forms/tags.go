package forms

import "strings"

// TagSet is an ordered set of free-text tags.
type TagSet struct {
	tags []string
}

func NewTagSet(tags ...string) *TagSet {
	s := &TagSet{}
	for _, t := range tags {
		s.Add(t)
	}
	return s
}

// Add trims tag and appends it. Blank input and duplicates are ignored.
func (s *TagSet) Add(tag string) bool {
	tag = sanitizeInput(tag)
	if tag == "" || s.Contains(tag) {
		return false
	}
	s.tags = append(s.tags, tag)
	return true
}

// Remove deletes an exact match; absent tags are a no-op.
func (s *TagSet) Remove(tag string) bool {
	for i, t := range s.tags {
		if t == tag {
			s.tags = append(s.tags[:i], s.tags[i+1:]...)
			return true
		}
	}
	return false
}

func (s *TagSet) Contains(tag string) bool {
	for _, t := range s.tags {
		if t == tag {
			return true
		}
	}
	return false
}

// Tags returns a copy, never nil.
func (s *TagSet) Tags() []string {
	return append(make([]string, 0, len(s.tags)), s.tags...)
}

func (s *TagSet) Len() int {
	return len(s.tags)
}

func (s *TagSet) Clear() {
	s.tags = nil
}

func (s *TagSet) String() string {
	return strings.Join(s.tags, ", ")
}

// sanitizeInput drops control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
