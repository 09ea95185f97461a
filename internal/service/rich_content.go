package service

import (
	"encoding/json"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sitebuilder/internal/section"
)

// richContentPolicy 与前台文章渲染使用相同的 UGC 白名单。
var richContentPolicy = bluemonday.UGCPolicy()

// sanitizeSections strips unsafe markup from footer columns and html text
// sections. Sections without rich content are returned untouched.
func sanitizeSections(sections []section.Section) []section.Section {
	out := sections
	for _, s := range sections {
		var patch section.Patch
		switch s.Type {
		case section.TypeFooter:
			if columns, changed := sanitizeColumns(s); changed {
				patch = section.Patch{"columns": columns}
			}
		case section.TypeText:
			if s.String("format") != "html" {
				continue
			}
			content := s.String("content")
			if clean := richContentPolicy.Sanitize(content); clean != content {
				patch = section.Patch{"content": clean}
			}
		}
		if patch != nil {
			out = section.Update(out, s.ID, patch)
		}
	}
	return out
}

func sanitizeColumns(s section.Section) ([]any, bool) {
	raw, ok := s.Get("columns")
	if !ok || raw == nil {
		return nil, false
	}

	data, err := json.Marshal(raw)
	if err != nil {
		return nil, false
	}
	var columns []map[string]any
	if err := json.Unmarshal(data, &columns); err != nil {
		return nil, false
	}

	changed := false
	out := make([]any, len(columns))
	for i, column := range columns {
		if content, ok := column["content"].(string); ok {
			if clean := richContentPolicy.Sanitize(content); clean != content {
				column["content"] = clean
				changed = true
			}
		}
		out[i] = column
	}
	return out, changed
}
