package handler

import (
	"bytes"
	"fmt"
	htmlstd "html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/sitebuilder/internal/media"
	"github.com/sitebuilder/internal/section"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	markdownEngine = goldmark.New(
		goldmark.WithExtensions(extension.GFM, extension.Linkify, extension.Table),
		goldmark.WithRendererOptions(html.WithHardWraps(), html.WithXHTML(), html.WithUnsafe()),
	)
	contentSanitizer = buildContentSanitizer()
)

// buildContentSanitizer 在 UGC 白名单基础上放行受信任平台的视频播放器 iframe。
func buildContentSanitizer() *bluemonday.Policy {
	policy := bluemonday.UGCPolicy()
	policy.AllowElements("iframe")
	policy.AllowAttrs("class", "data-video-platform", "data-video-aspect").OnElements("div")
	policy.AllowAttrs("src").Matching(media.EmbedSrcPattern).OnElements("iframe")
	policy.AllowAttrs("title", "allow", "allowfullscreen", "frameborder", "loading", "referrerpolicy", "sandbox").OnElements("iframe")
	return policy
}

// renderMarkdown converts markdown to sanitized HTML. Lines holding nothing but
// a supported video link become an embedded player.
func renderMarkdown(content string) (string, error) {
	var buf bytes.Buffer
	if err := markdownEngine.Convert([]byte(applyVideoEmbeds(content)), &buf); err != nil {
		return "", err
	}
	return contentSanitizer.Sanitize(buf.String()), nil
}

func applyVideoEmbeds(markdown string) string {
	if strings.TrimSpace(markdown) == "" {
		return markdown
	}

	lines := strings.Split(markdown, "\n")
	fence := ""
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if marker := fenceMarker(trimmed); marker != "" {
			switch {
			case fence == "":
				fence = marker
			case strings.HasPrefix(trimmed, fence):
				fence = ""
			}
			continue
		}
		if fence != "" || trimmed == "" || strings.HasPrefix(line, "    ") || strings.HasPrefix(line, "\t") {
			continue
		}
		if strings.ContainsAny(trimmed, " \t") {
			continue
		}
		if embed, ok := media.ParseVideoEmbed(trimmed); ok {
			lines[i] = videoEmbedHTML(embed)
		}
	}
	return strings.Join(lines, "\n")
}

func fenceMarker(line string) string {
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(line, marker) {
			return marker
		}
	}
	return ""
}

// videoEmbedSandbox keeps the player from navigating the top-level page.
const videoEmbedSandbox = "allow-scripts allow-same-origin allow-presentation"

func videoEmbedHTML(embed media.VideoEmbed) string {
	return fmt.Sprintf(
		`<div class="video-embed" data-video-platform="%s" data-video-aspect="%s">`+
			`<iframe src="%s" title="视频播放器" loading="lazy" allow="encrypted-media; picture-in-picture" allowfullscreen frameborder="0" referrerpolicy="strict-origin-when-cross-origin" sandbox="%s"></iframe>`+
			`</div>`,
		htmlstd.EscapeString(embed.Platform),
		htmlstd.EscapeString(embed.Aspect),
		htmlstd.EscapeString(embed.EmbedURL),
		videoEmbedSandbox,
	)
}

// renderSections returns the HTML of every markdown text section keyed by
// section id. Sections that fail to render are skipped.
func renderSections(sections []section.Section) map[string]string {
	out := make(map[string]string)
	for _, s := range sections {
		if s.Type != section.TypeText || s.String("format") != "markdown" {
			continue
		}
		rendered, err := renderMarkdown(s.String("content"))
		if err != nil {
			continue
		}
		out[s.ID] = rendered
	}
	return out
}

// resolveMedia maps every media reference used by sections to a renderable URL.
// Video links on known platforms resolve to their player URL.
func resolveMedia(resolver media.Resolver, sections []section.Section) map[string]string {
	out := make(map[string]string)
	for _, s := range sections {
		for _, ref := range section.References(s) {
			if _, done := out[ref]; done {
				continue
			}
			if embed, ok := media.ParseVideoEmbed(ref); ok {
				out[ref] = embed.EmbedURL
				continue
			}
			resolved, err := resolver.ResolveURL(ref, media.Options{})
			if err != nil {
				continue
			}
			out[ref] = resolved
		}
	}
	return out
}
