package slug

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	separatorPattern = regexp.MustCompile(`[\p{Z}\s_]+`)
	invalidPattern   = regexp.MustCompile(`[^a-z0-9-]+`)
	hyphenRuns       = regexp.MustCompile(`-{2,}`)
	validPattern     = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// FallbackPrefix 用于标题无法生成任何合法字符时的兜底 slug 前缀。
const FallbackPrefix = "page"

// Normalize 将标题转换为 URL 安全的基础 slug，可能返回空字符串。
func Normalize(title string) string {
	value := strings.ToLower(title)
	value = separatorPattern.ReplaceAllString(value, "-")
	value = invalidPattern.ReplaceAllString(value, "")
	value = hyphenRuns.ReplaceAllString(value, "-")
	return strings.Trim(value, "-")
}

// IsValid reports whether value is a well-formed slug.
func IsValid(value string) bool {
	return validPattern.MatchString(value)
}

// Generate derives a slug from title that is not contained in existing.
// Titles that normalise to nothing get an opaque "page-xxxxxxxx" identifier.
func Generate(title string, existing map[string]struct{}) string {
	base := Normalize(title)
	if base == "" {
		base = opaque()
	}

	candidate := base
	for n := 2; ; n++ {
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
		candidate = WithSuffix(base, n)
	}
}

// WithSuffix appends the numeric collision suffix used by Generate.
func WithSuffix(base string, n int) string {
	if n < 2 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, n)
}

func opaque() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return FallbackPrefix + "-" + id[:8]
}
