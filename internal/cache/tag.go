package cache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Tag labels cached data so mutations can invalidate it. An empty ID is the
// general tag of its type.
type Tag struct {
	Type string
	ID   string
}

// T builds a tag; T("Expense") is general, T("Expense", id) is specific.
func T(typ string, id ...string) Tag {
	t := Tag{Type: typ}
	if len(id) > 0 {
		t.ID = id[0]
	}
	return t
}

func (t Tag) String() string {
	if t.ID == "" {
		return t.Type
	}
	return t.Type + ":" + t.ID
}

// ParseTag is the inverse of String.
func ParseTag(s string) (Tag, error) {
	typ, id, _ := strings.Cut(strings.TrimSpace(s), ":")
	if typ == "" {
		return Tag{}, fmt.Errorf("invalid tag %q", s)
	}
	return Tag{Type: typ, ID: id}, nil
}

// Hits reports whether invalidating t affects data provided under p.
// A general tag hits every tag of its type; a specific tag hits the same id
// and the general tag, so list queries refresh on single-item changes.
func (t Tag) Hits(p Tag) bool {
	if t.Type != p.Type {
		return false
	}
	return t.ID == "" || p.ID == "" || t.ID == p.ID
}

func hitsAny(invalidated, provided []Tag) bool {
	for _, t := range invalidated {
		for _, p := range provided {
			if t.Hits(p) {
				return true
			}
		}
	}
	return false
}

// TagStrings renders tags for logs and bus messages.
func TagStrings(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// Key builds the cache key of an endpoint call. Arguments are serialized as
// JSON and re-encoded through a generic value, which sorts object keys, so
// equal argument sets always give equal keys.
func Key(endpoint string, args any) string {
	if args == nil {
		return endpoint
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return endpoint + "(" + fmt.Sprint(args) + ")"
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return endpoint + "(" + string(raw) + ")"
	}
	canonical, err := json.Marshal(generic)
	if err != nil {
		return endpoint + "(" + string(raw) + ")"
	}
	return endpoint + "(" + string(canonical) + ")"
}

// endpointOf is the endpoint part of a key built by Key.
func endpointOf(key string) string {
	if i := strings.IndexByte(key, '('); i >= 0 {
		return key[:i]
	}
	return key
}
