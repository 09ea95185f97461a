package media

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Options are formatting hints passed through to the CDN.
type Options struct {
	Width        int
	Height       int
	CropMode     string
	ResourceType string
}

// Resolver turns a media reference into a renderable URL.
type Resolver interface {
	ResolveURL(reference string, opts Options) (string, error)
}

// IsURL reports whether reference is already fully qualified.
func IsURL(reference string) bool {
	lower := strings.ToLower(strings.TrimSpace(reference))
	return strings.HasPrefix(lower, "http://") ||
		strings.HasPrefix(lower, "https://") ||
		strings.HasPrefix(lower, "//")
}

// CDNResolver 负责把存储 key 拼接为 CDN 地址，完整 URL 原样返回。
// 变换参数以 "w_,h_,c_" 的形式透传，不做解析。
type CDNResolver struct {
	baseURL string
}

// NewCDNResolver builds a resolver rooted at baseURL, e.g.
// "https://res.example.com/demo" or a local upload path such as "/uploads".
func NewCDNResolver(baseURL string) *CDNResolver {
	return &CDNResolver{baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/")}
}

// ResolveURL implements Resolver.
func (r *CDNResolver) ResolveURL(reference string, opts Options) (string, error) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", fmt.Errorf("media reference is empty")
	}
	if IsURL(ref) {
		return ref, nil
	}

	key := strings.TrimLeft(ref, "/")
	for _, segment := range strings.Split(key, "/") {
		if segment == ".." {
			return "", fmt.Errorf("media reference %q is not a storage key", reference)
		}
	}

	parts := make([]string, 0, 4)
	if r.baseURL != "" {
		parts = append(parts, r.baseURL)
	}
	if opts.ResourceType != "" {
		parts = append(parts, url.PathEscape(opts.ResourceType))
	}
	if transform := transformation(opts); transform != "" {
		parts = append(parts, transform)
	}
	parts = append(parts, escapeKey(key))

	joined := strings.Join(parts, "/")
	if r.baseURL == "" {
		joined = "/" + joined
	}
	return joined, nil
}

func transformation(opts Options) string {
	var params []string
	if opts.Width > 0 {
		params = append(params, fmt.Sprintf("w_%d", opts.Width))
	}
	if opts.Height > 0 {
		params = append(params, fmt.Sprintf("h_%d", opts.Height))
	}
	if mode := strings.TrimSpace(opts.CropMode); mode != "" {
		params = append(params, "c_"+url.PathEscape(mode))
	}
	return strings.Join(params, ",")
}

func escapeKey(key string) string {
	segments := strings.Split(key, "/")
	for i, segment := range segments {
		segments[i] = url.PathEscape(segment)
	}
	return path.Join(segments...)
}

// NewStorageKey returns a unique storage key for an uploaded file name, keeping
// its extension.
func NewStorageKey(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	return fmt.Sprintf("%s-%s%s", time.Now().Format("20060102"), uuid.New().String(), ext)
}

// ResourceTypeFor guesses the CDN resource type from a content type.
func ResourceTypeFor(contentType string) string {
	switch {
	case strings.HasPrefix(contentType, "video/"):
		return "video"
	case strings.HasPrefix(contentType, "image/"):
		return "image"
	}
	return ""
}
