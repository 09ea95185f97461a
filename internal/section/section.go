package section

import (
	"encoding/json"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

// Type is the discriminator tag of a section.
type Type string

const (
	TypeHero        Type = "hero"
	TypeSlider      Type = "slider"
	TypeGallery     Type = "gallery"
	TypeContactForm Type = "contact-form"
	TypeFooter      Type = "footer"
	TypeMedia       Type = "media"
	TypeText        Type = "text"
)

var catalogue = []Type{
	TypeHero,
	TypeSlider,
	TypeGallery,
	TypeContactForm,
	TypeFooter,
	TypeMedia,
	TypeText,
}

// Types returns the known section tags in catalogue order.
func Types() []Type {
	out := make([]Type, len(catalogue))
	copy(out, catalogue)
	return out
}

// Known reports whether t is part of the catalogue.
func (t Type) Known() bool {
	for _, candidate := range catalogue {
		if t == candidate {
			return true
		}
	}
	return false
}

const (
	keyID      = "id"
	keyType    = "type"
	keyVisible = "visible"
)

// Section 是页面中的一个内容块。ID、Type、Visible 为公共字段，
// 其余字段（包括未知字段）原样保存在 Fields 中。
type Section struct {
	ID      string
	Type    Type
	Visible bool
	Fields  map[string]any
}

// New builds a visible section with a fresh id.
func New(t Type, fields map[string]any) Section {
	return Section{
		ID:      NewID(),
		Type:    t,
		Visible: true,
		Fields:  copyFields(fields),
	}
}

// NewID returns a fresh section identifier.
func NewID() string {
	return uuid.NewString()
}

// Get returns the raw variant field stored under key.
func (s Section) Get(key string) (any, bool) {
	if s.Fields == nil {
		return nil, false
	}
	value, ok := s.Fields[key]
	return value, ok
}

// String returns the variant field under key when it is a string.
func (s Section) String(key string) string {
	value, _ := s.Get(key)
	str, _ := value.(string)
	return str
}

// With returns a copy of s with key set to value.
func (s Section) With(key string, value any) Section {
	out := s
	out.Fields = copyFields(s.Fields)
	out.Fields[key] = value
	return out
}

// MarshalJSON flattens the section into a single object.
func (s Section) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Fields)+3)
	for key, value := range s.Fields {
		out[key] = value
	}
	out[keyID] = s.ID
	out[keyType] = string(s.Type)
	out[keyVisible] = s.Visible
	return json.Marshal(out)
}

// UnmarshalJSON reads a flat section object. visible defaults to true.
func (s *Section) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("section must be an object")
	}
	parsed, err := FromMap(raw)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// FromMap splits a decoded JSON object into the common fields and the variant
// fields. Wrongly typed common fields are reported as validation.Errors keyed by
// field name.
func FromMap(raw map[string]any) (Section, error) {
	out := Section{Visible: true, Fields: make(map[string]any, len(raw))}
	issues := validation.Errors{}
	for key, value := range raw {
		switch key {
		case keyID:
			if value == nil {
				continue
			}
			id, ok := value.(string)
			if !ok {
				issues[keyID] = errors.New("must be a string")
				continue
			}
			out.ID = id
		case keyType:
			tag, ok := value.(string)
			if !ok {
				issues[keyType] = errors.New("must be a string")
				continue
			}
			out.Type = Type(tag)
		case keyVisible:
			if value == nil {
				continue
			}
			visible, ok := value.(bool)
			if !ok {
				issues[keyVisible] = errors.New("must be a boolean")
				continue
			}
			out.Visible = visible
		default:
			out.Fields[key] = value
		}
	}
	if len(issues) > 0 {
		return Section{}, issues
	}
	return out, nil
}

func copyFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for key, value := range fields {
		if key == keyID || key == keyType || key == keyVisible {
			continue
		}
		out[key] = value
	}
	return out
}
