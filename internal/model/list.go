package model

import (
	"encoding/json"
	"slices"
	"strings"
)

// List is a tag or synonym list. Scrapers hand these over as a quoted
// comma-joined string (`"blue", "green"`); the store keeps them as arrays.
type List []string

// ParseList splits the legacy quoted form. Empty entries are dropped.
func ParseList(s string) List {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out List
	for _, part := range strings.Split(s, ",") {
		v := strings.Trim(strings.Trim(strings.TrimSpace(part), `"`), "'")
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// FormatList renders l in the legacy quoted form.
func FormatList(l List) string {
	if len(l) == 0 {
		return ""
	}
	quoted := make([]string, len(l))
	for i, v := range l {
		quoted[i] = `"` + v + `"`
	}
	return strings.Join(quoted, ", ")
}

// Without returns a copy of l minus the given values.
func (l List) Without(drop ...string) List {
	out := make(List, 0, len(l))
	for _, v := range l {
		if v == "" || slices.Contains(drop, v) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// Equal treats nil and empty lists as equal.
func (l List) Equal(o List) bool { return slices.Equal(l, o) }

// Clone returns an independent copy.
func (l List) Clone() List { return slices.Clone(l) }

// MarshalJSON always writes an array.
func (l List) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal([]string(l))
}

// UnmarshalJSON accepts an array or the legacy quoted string.
func (l *List) UnmarshalJSON(b []byte) error {
	var s string
	if len(b) > 0 && b[0] == '"' {
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*l = ParseList(s)
		return nil
	}
	var arr []string
	if err := json.Unmarshal(b, &arr); err != nil {
		return err
	}
	*l = arr
	return nil
}
