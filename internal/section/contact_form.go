package section

import (
	"errors"
	"fmt"
)

var (
	ErrNotContactForm = errors.New("section is not a contact form")
	ErrProtectedField = errors.New("contact form field is protected")
	ErrFieldNotFound  = errors.New("contact form field not found")
	ErrFieldExists    = errors.New("contact form field already exists")
)

// protectedFields 是联系表单中不可删除、不可改名、type/required 不可修改的字段。
var protectedFields = map[string]struct{}{
	"name":    {},
	"email":   {},
	"message": {},
}

// IsProtectedField reports whether name is one of the essential contact form fields.
func IsProtectedField(name string) bool {
	_, ok := protectedFields[name]
	return ok
}

// EssentialFields returns the default definitions of the protected fields.
func EssentialFields() []FormField {
	return []FormField{
		{Name: "name", Label: "Name", Type: "text", Required: true},
		{Name: "email", Label: "Email", Type: "email", Required: true},
		{Name: "message", Label: "Message", Type: "textarea", Required: true},
	}
}

// AddFormField appends field to a contact form section.
func AddFormField(s Section, field FormField) (Section, error) {
	fields, err := formFields(s)
	if err != nil {
		return s, err
	}
	if err := field.Validate(); err != nil {
		return s, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if fieldIndex(fields, field.Name) >= 0 {
		return s, fmt.Errorf("%w: %s", ErrFieldExists, field.Name)
	}

	var entry map[string]any
	if err := remarshal(field, &entry); err != nil {
		return s, err
	}
	next := make([]any, 0, len(fields)+1)
	for _, f := range fields {
		next = append(next, f)
	}
	next = append(next, entry)
	return s.With("fields", next), nil
}

// UpdateFormField merges patch into the named field. For protected fields the
// name, type and required keys are dropped from the patch.
func UpdateFormField(s Section, name string, patch Patch) (Section, error) {
	fields, err := formFields(s)
	if err != nil {
		return s, err
	}
	idx := fieldIndex(fields, name)
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}

	protected := IsProtectedField(name)
	updated := make(map[string]any, len(fields[idx])+len(patch))
	for key, value := range fields[idx] {
		updated[key] = value
	}
	for key, value := range patch {
		if protected && (key == "name" || key == "type" || key == "required") {
			continue
		}
		if key == "name" {
			renamed, _ := value.(string)
			if renamed == "" {
				continue
			}
			if renamed != name && fieldIndex(fields, renamed) >= 0 {
				return s, fmt.Errorf("%w: %s", ErrFieldExists, renamed)
			}
			if IsProtectedField(renamed) {
				return s, fmt.Errorf("%w: %s", ErrProtectedField, renamed)
			}
		}
		if value == nil {
			delete(updated, key)
			continue
		}
		updated[key] = value
	}

	next := make([]any, len(fields))
	for i, f := range fields {
		next[i] = f
	}
	next[idx] = updated
	return s.With("fields", next), nil
}

// RemoveFormField drops the named field. Protected fields are refused.
func RemoveFormField(s Section, name string) (Section, error) {
	if IsProtectedField(name) {
		return s, fmt.Errorf("%w: %s", ErrProtectedField, name)
	}
	fields, err := formFields(s)
	if err != nil {
		return s, err
	}
	idx := fieldIndex(fields, name)
	if idx < 0 {
		return s, fmt.Errorf("%w: %s", ErrFieldNotFound, name)
	}

	next := make([]any, 0, len(fields)-1)
	for i, f := range fields {
		if i != idx {
			next = append(next, f)
		}
	}
	return s.With("fields", next), nil
}

func formFields(s Section) ([]map[string]any, error) {
	if s.Type != TypeContactForm {
		return nil, ErrNotContactForm
	}
	raw, ok := s.Get("fields")
	if !ok || raw == nil {
		return nil, nil
	}
	var fields []map[string]any
	if err := remarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("%w: fields: %v", ErrInvalid, err)
	}
	return fields, nil
}

func fieldIndex(fields []map[string]any, name string) int {
	for i, f := range fields {
		if n, _ := f["name"].(string); n == name {
			return i
		}
	}
	return -1
}
