package section

import (
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Variant is the typed view of a section's variant-specific fields.
type Variant interface {
	SectionType() Type
	Validate() error
}

var (
	mediaTypes     = []any{"image", "video"}
	alignments     = []any{"left", "center", "right"}
	formFieldTypes = []any{
		"text", "email", "tel", "number", "textarea", "select", "checkbox", "date",
	}
	textFormats = []any{"plain", "markdown", "html"}
)

// Hero is a full-width banner with optional background media.
type Hero struct {
	Title           string  `json:"title"`
	Subtitle        string  `json:"subtitle,omitempty"`
	Description     string  `json:"description,omitempty"`
	BackgroundMedia string  `json:"backgroundMedia,omitempty"`
	MediaType       string  `json:"mediaType,omitempty"`
	Width           int     `json:"width,omitempty"`
	Height          int     `json:"height,omitempty"`
	Overlay         bool    `json:"overlay,omitempty"`
	TextToSpeech    bool    `json:"textToSpeech,omitempty"`
	SpeechLanguage  string  `json:"speechLanguage,omitempty"`
	SpeechRate      float64 `json:"speechRate,omitempty"`
}

func (Hero) SectionType() Type { return TypeHero }

func (h Hero) Validate() error {
	return validation.ValidateStruct(&h,
		validation.Field(&h.Title, validation.Length(0, 200)),
		validation.Field(&h.MediaType, validation.In(mediaTypes...)),
		validation.Field(&h.Width, validation.Min(0)),
		validation.Field(&h.Height, validation.Min(0)),
		validation.Field(&h.SpeechRate, validation.Min(0.0), validation.Max(4.0)),
	)
}

// CallToAction is an optional button attached to a slide.
type CallToAction struct {
	Label string `json:"label"`
	URL   string `json:"url"`
}

func (c CallToAction) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Label, validation.Required),
		validation.Field(&c.URL, validation.Required),
	)
}

// Slide is one frame of a slider.
type Slide struct {
	Media     string        `json:"media"`
	MediaType string        `json:"mediaType,omitempty"`
	Title     string        `json:"title,omitempty"`
	Caption   string        `json:"caption,omitempty"`
	CTA       *CallToAction `json:"cta,omitempty"`
}

func (s Slide) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Media, validation.Required),
		validation.Field(&s.MediaType, validation.In(mediaTypes...)),
		validation.Field(&s.CTA),
	)
}

// Slider is an ordered carousel of slides.
type Slider struct {
	Slides   []Slide `json:"slides"`
	Autoplay bool    `json:"autoplay,omitempty"`
	Interval int     `json:"interval,omitempty"`
}

func (Slider) SectionType() Type { return TypeSlider }

func (s Slider) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Slides),
		validation.Field(&s.Interval, validation.Min(0)),
	)
}

// GalleryItem is one media entry of a gallery.
type GalleryItem struct {
	Src       string `json:"src"`
	Alt       string `json:"alt,omitempty"`
	Caption   string `json:"caption,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

func (g GalleryItem) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Src, validation.Required),
		validation.Field(&g.MediaType, validation.In(mediaTypes...)),
	)
}

// Gallery is a grid of media items.
type Gallery struct {
	Title   string        `json:"title,omitempty"`
	Items   []GalleryItem `json:"items"`
	Columns int           `json:"columns,omitempty"`
}

func (Gallery) SectionType() Type { return TypeGallery }

func (g Gallery) Validate() error {
	return validation.ValidateStruct(&g,
		validation.Field(&g.Items),
		validation.Field(&g.Columns, validation.Min(0), validation.Max(12)),
	)
}

// FormField is one input of a contact form.
type FormField struct {
	Name        string   `json:"name"`
	Label       string   `json:"label,omitempty"`
	Type        string   `json:"type"`
	Required    bool     `json:"required"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []string `json:"options,omitempty"`
}

func (f FormField) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Name, validation.Required),
		validation.Field(&f.Type, validation.Required, validation.In(formFieldTypes...)),
	)
}

// ContactForm collects visitor messages.
type ContactForm struct {
	Title       string      `json:"title,omitempty"`
	Description string      `json:"description,omitempty"`
	SubmitLabel string      `json:"submitLabel,omitempty"`
	Fields      []FormField `json:"fields"`
}

func (ContactForm) SectionType() Type { return TypeContactForm }

func (c ContactForm) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Fields, validation.By(uniqueFieldNames)),
	)
}

func uniqueFieldNames(value any) error {
	fields, _ := value.([]FormField)
	seen := make(map[string]struct{}, len(fields))
	for _, field := range fields {
		if field.Name == "" {
			continue
		}
		if _, dup := seen[field.Name]; dup {
			return fmt.Errorf("duplicate field name %q", field.Name)
		}
		seen[field.Name] = struct{}{}
	}
	return nil
}

// FooterColumn is a titled block of rich content.
type FooterColumn struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

func (f FooterColumn) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Title, validation.Required),
	)
}

// Footer closes the page.
type Footer struct {
	Columns   []FooterColumn `json:"columns"`
	Copyright string         `json:"copyright,omitempty"`
}

func (Footer) SectionType() Type { return TypeFooter }

func (f Footer) Validate() error {
	return validation.ValidateStruct(&f,
		validation.Field(&f.Columns),
	)
}

// Media is a single image or video with simple layout options.
type Media struct {
	Src       string `json:"src"`
	Alt       string `json:"alt,omitempty"`
	Caption   string `json:"caption,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
	Padding   string `json:"padding,omitempty"`
	Alignment string `json:"alignment,omitempty"`
}

func (Media) SectionType() Type { return TypeMedia }

func (m Media) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.MediaType, validation.In(mediaTypes...)),
		validation.Field(&m.Alignment, validation.In(alignments...)),
	)
}

// Text is a block of plain, markdown or html content.
type Text struct {
	Title     string `json:"title,omitempty"`
	Content   string `json:"content"`
	Format    string `json:"format,omitempty"`
	Padding   string `json:"padding,omitempty"`
	Alignment string `json:"alignment,omitempty"`
}

func (Text) SectionType() Type { return TypeText }

func (t Text) Validate() error {
	return validation.ValidateStruct(&t,
		validation.Field(&t.Format, validation.In(textFormats...)),
		validation.Field(&t.Alignment, validation.In(alignments...)),
	)
}

// requiredKeys lists the variant fields that must be present for each tag.
func requiredKeys(t Type) []string {
	switch t {
	case TypeHero:
		return []string{"title"}
	case TypeSlider:
		return []string{"slides"}
	case TypeGallery:
		return []string{"items"}
	case TypeContactForm:
		return []string{"fields"}
	case TypeFooter:
		return []string{"columns"}
	case TypeMedia:
		return []string{"src"}
	case TypeText:
		return []string{"content"}
	}
	return nil
}

// zero returns an empty typed variant for t.
func zero(t Type) (Variant, error) {
	switch t {
	case TypeHero:
		return &Hero{}, nil
	case TypeSlider:
		return &Slider{}, nil
	case TypeGallery:
		return &Gallery{}, nil
	case TypeContactForm:
		return &ContactForm{}, nil
	case TypeFooter:
		return &Footer{}, nil
	case TypeMedia:
		return &Media{}, nil
	case TypeText:
		return &Text{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
}

// Decode returns the typed variant of s. Unknown extra fields are ignored here
// but remain on s.
func Decode(s Section) (Variant, error) {
	target, err := zero(s.Type)
	if err != nil {
		return nil, err
	}
	if err := remarshal(s.Fields, target); err != nil {
		return nil, err
	}
	return target, nil
}

// References lists the media references used by s, in display order.
func References(s Section) []string {
	variant, err := Decode(s)
	if err != nil {
		return nil
	}

	var refs []string
	add := func(ref string) {
		if ref != "" {
			refs = append(refs, ref)
		}
	}

	switch v := variant.(type) {
	case *Hero:
		add(v.BackgroundMedia)
	case *Slider:
		for _, slide := range v.Slides {
			add(slide.Media)
		}
	case *Gallery:
		for _, item := range v.Items {
			add(item.Src)
		}
	case *Media:
		add(v.Src)
	case *ContactForm, *Footer, *Text:
	}
	return refs
}
