package section

import "reflect"

// Patch is a shallow merge applied to a section. A nil value removes the key.
// "id" and "type" are ignored; "visible" must be a bool.
type Patch map[string]any

// 以下所有操作都返回新的切片，不会修改入参，
// 调用方可以通过 Same 做引用比较判断是否发生变化。

// Add appends s to sections. s gets a fresh id when it has none or when its id
// is already used on the page.
func Add(sections []Section, s Section) []Section {
	if s.ID == "" || indexOf(sections, s.ID) >= 0 {
		s.ID = NewID()
	}
	s.Fields = copyFields(s.Fields)

	out := make([]Section, 0, len(sections)+1)
	out = append(out, sections...)
	return append(out, s)
}

// Update merges patch into the section with the given id. An unknown id, an
// empty patch or a patch that changes nothing returns sections unchanged. A
// non-bool "visible" is ignored.
func Update(sections []Section, id string, patch Patch) []Section {
	idx := indexOf(sections, id)
	if idx < 0 || len(patch) == 0 {
		return sections
	}

	current := sections[idx]
	updated := current
	updated.Fields = copyFields(current.Fields)
	changed := false
	for key, value := range patch {
		switch key {
		case keyID, keyType:
			continue
		case keyVisible:
			if visible, ok := value.(bool); ok && visible != current.Visible {
				updated.Visible = visible
				changed = true
			}
			continue
		}
		old, exists := current.Fields[key]
		if value == nil {
			if exists {
				delete(updated.Fields, key)
				changed = true
			}
			continue
		}
		if !exists || !reflect.DeepEqual(old, value) {
			updated.Fields[key] = value
			changed = true
		}
	}
	if !changed {
		return sections
	}

	out := clone(sections)
	out[idx] = updated
	return out
}

// Remove drops the section with the given id. Unknown ids are a no-op.
func Remove(sections []Section, id string) []Section {
	idx := indexOf(sections, id)
	if idx < 0 {
		return sections
	}
	out := make([]Section, 0, len(sections)-1)
	out = append(out, sections[:idx]...)
	return append(out, sections[idx+1:]...)
}

// Reorder moves the section at from to position to. Out of range indexes are a no-op.
func Reorder(sections []Section, from, to int) []Section {
	n := len(sections)
	if from < 0 || from >= n || to < 0 || to >= n || from == to {
		return sections
	}

	moving := sections[from]
	out := make([]Section, 0, n)
	out = append(out, sections[:from]...)
	out = append(out, sections[from+1:]...)

	out = append(out, Section{})
	copy(out[to+1:], out[to:])
	out[to] = moving
	return out
}

// Same reports whether a and b share the same backing array and length.
func Same(a, b []Section) bool {
	if len(a) != len(b) {
		return false
	}
	if len(a) == 0 {
		return (a == nil) == (b == nil)
	}
	return &a[0] == &b[0]
}

// EnsureIDs fills in missing ids. Sections keep their order.
func EnsureIDs(sections []Section) []Section {
	missing := false
	for _, s := range sections {
		if s.ID == "" {
			missing = true
			break
		}
	}
	if !missing {
		return sections
	}

	out := clone(sections)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = NewID()
		}
	}
	return out
}

// DuplicateIDs returns ids used by more than one section.
func DuplicateIDs(sections []Section) []string {
	seen := make(map[string]int, len(sections))
	var dups []string
	for _, s := range sections {
		if s.ID == "" {
			continue
		}
		seen[s.ID]++
		if seen[s.ID] == 2 {
			dups = append(dups, s.ID)
		}
	}
	return dups
}

func indexOf(sections []Section, id string) int {
	if id == "" {
		return -1
	}
	for i, s := range sections {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func clone(sections []Section) []Section {
	out := make([]Section, len(sections))
	copy(out, sections)
	return out
}
