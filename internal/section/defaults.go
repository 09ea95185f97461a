package section

// Default returns a new section of type t carrying the minimal fields that pass
// Validate, ready to be edited.
func Default(t Type) Section {
	switch t {
	case TypeHero:
		return New(t, map[string]any{
			"title":       "",
			"description": "",
			"mediaType":   "image",
		})
	case TypeSlider:
		return New(t, map[string]any{"slides": []any{}})
	case TypeGallery:
		return New(t, map[string]any{"items": []any{}})
	case TypeContactForm:
		fields := make([]any, 0, 3)
		for _, f := range EssentialFields() {
			var entry map[string]any
			if err := remarshal(f, &entry); err == nil {
				fields = append(fields, entry)
			}
		}
		return New(t, map[string]any{
			"title":       "Contact",
			"submitLabel": "Send",
			"fields":      fields,
		})
	case TypeFooter:
		return New(t, map[string]any{"columns": []any{}})
	case TypeMedia:
		return New(t, map[string]any{"src": "", "alt": "", "alignment": "center"})
	case TypeText:
		return New(t, map[string]any{"content": "", "format": "plain"})
	}
	return New(t, nil)
}
