package section

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	// ErrUnknownType 表示 type 不在组件目录中。
	ErrUnknownType = errors.New("unknown section type")
	// ErrInvalid 是所有 section 校验失败的公共哨兵错误。
	ErrInvalid = errors.New("section is invalid")
)

// Error describes why a section failed validation. Issues is keyed by field
// path the same way ozzo-validation keys struct errors.
type Error struct {
	ID     string
	Type   Type
	Issues validation.Errors
}

func (e *Error) Error() string {
	keys := make([]string, 0, len(e.Issues))
	for key := range e.Issues {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", key, e.Issues[key]))
	}
	label := string(e.Type)
	if label == "" {
		label = "section"
	}
	return fmt.Sprintf("%s %s invalid: %s", label, e.ID, strings.Join(parts, "; "))
}

func (e *Error) Unwrap() error {
	if _, unknown := e.Issues["type"]; unknown && !e.Type.Known() {
		return ErrUnknownType
	}
	return ErrInvalid
}

// Parse validates a decoded JSON object and returns it as a Section.
func Parse(raw map[string]any) (Section, error) {
	s, err := FromMap(raw)
	if err != nil {
		var shape validation.Errors
		if errors.As(err, &shape) {
			return Section{}, &Error{Issues: shape}
		}
		return Section{}, &Error{Issues: validation.Errors{"": err}}
	}
	if err := Validate(s); err != nil {
		return Section{}, err
	}
	return s, nil
}

// Validate checks the tag and the variant fields of s. Fields that are not part
// of the variant are left alone.
func Validate(s Section) error {
	if !s.Type.Known() {
		return &Error{
			ID:     s.ID,
			Type:   s.Type,
			Issues: validation.Errors{"type": fmt.Errorf("must be one of %s", typeList())},
		}
	}

	issues := validation.Errors{}
	for _, key := range requiredKeys(s.Type) {
		if value, ok := s.Fields[key]; !ok || value == nil {
			issues[key] = validation.ErrRequired
		}
	}
	if len(issues) > 0 {
		return &Error{ID: s.ID, Type: s.Type, Issues: issues}
	}

	variant, err := Decode(s)
	if err != nil {
		return &Error{ID: s.ID, Type: s.Type, Issues: decodeIssues(err)}
	}

	if err := variant.Validate(); err != nil {
		var fieldErrs validation.Errors
		if errors.As(err, &fieldErrs) {
			return &Error{ID: s.ID, Type: s.Type, Issues: fieldErrs}
		}
		return &Error{ID: s.ID, Type: s.Type, Issues: validation.Errors{"": err}}
	}
	return nil
}

func decodeIssues(err error) validation.Errors {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return validation.Errors{typeErr.Field: fmt.Errorf("must be %s", typeErr.Type)}
	}
	return validation.Errors{"": err}
}

func remarshal(src any, dst any) error {
	data, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}

func typeList() string {
	names := make([]string, 0, len(catalogue))
	for _, t := range catalogue {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
