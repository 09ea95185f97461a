package media

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

const (
	AspectLandscape = "16:9"
	AspectPortrait  = "9:16"
)

// EmbedSrcPattern matches the player URLs produced by ParseVideoEmbed. HTML
// sanitizers use it to allow exactly these iframe sources.
var EmbedSrcPattern = regexp.MustCompile(
	`^https://(?:www\.)?(?:youtube\.com/embed/|youtube-nocookie\.com/embed/|player\.bilibili\.com/player\.html(?:\?|$)|www\.iesdouyin\.com/share/video/)`,
)

var youtubeTimePattern = regexp.MustCompile(`(?i)(\d+)(h|m|s)`)

// VideoEmbed 描述一个可嵌入的视频播放器地址。
type VideoEmbed struct {
	Platform string
	Source   string
	EmbedURL string
	Aspect   string
}

// ParseVideoEmbed recognises YouTube, Bilibili and Douyin page links and
// returns the matching player URL. Scheme-less links such as "youtu.be/x" are
// accepted.
func ParseVideoEmbed(reference string) (VideoEmbed, bool) {
	raw := strings.Trim(strings.TrimSpace(reference), "<>")
	if raw == "" {
		return VideoEmbed{}, false
	}
	if !IsURL(raw) && looksLikeVideoHost(raw) {
		raw = "https://" + raw
	}

	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return VideoEmbed{}, false
	}
	host := strings.ToLower(parsed.Hostname())

	var embed VideoEmbed
	var ok bool
	switch {
	case host == "youtu.be" || hostWithin(host, "youtube.com"):
		embed, ok = youtubeEmbed(parsed, host)
	case hostWithin(host, "bilibili.com"):
		embed, ok = bilibiliEmbed(parsed)
	case hostWithin(host, "douyin.com") || hostWithin(host, "iesdouyin.com"):
		embed, ok = douyinEmbed(parsed)
	}
	if !ok {
		return VideoEmbed{}, false
	}
	embed.Source = raw
	return embed, true
}

func looksLikeVideoHost(raw string) bool {
	lower := strings.ToLower(raw)
	for _, prefix := range []string{"youtu.be/", "youtube.com/", "www.youtube.com/", "bilibili.com/", "www.bilibili.com/", "douyin.com/", "www.douyin.com/", "www.iesdouyin.com/"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func youtubeEmbed(u *url.URL, host string) (VideoEmbed, bool) {
	var id string
	path := strings.Trim(u.Path, "/")
	if host == "youtu.be" {
		id = path
	} else {
		switch {
		case path == "watch":
			id = u.Query().Get("v")
		case strings.HasPrefix(path, "shorts/"):
			id = strings.TrimPrefix(path, "shorts/")
		case strings.HasPrefix(path, "embed/"):
			id = strings.TrimPrefix(path, "embed/")
		case strings.HasPrefix(path, "live/"):
			id = strings.TrimPrefix(path, "live/")
		}
	}
	id, _, _ = strings.Cut(id, "/")
	if id == "" {
		return VideoEmbed{}, false
	}

	values := url.Values{}
	values.Set("rel", "0")
	values.Set("playsinline", "1")
	start := u.Query().Get("start")
	if start == "" {
		start = u.Query().Get("t")
	}
	if seconds := youtubeSeconds(start); seconds > 0 {
		values.Set("start", strconv.Itoa(seconds))
	}

	return VideoEmbed{
		Platform: "youtube",
		EmbedURL: fmt.Sprintf("https://www.youtube.com/embed/%s?%s", url.PathEscape(id), values.Encode()),
		Aspect:   AspectLandscape,
	}, true
}

// youtubeSeconds parses "90" or "1h2m3s" style offsets.
func youtubeSeconds(value string) int {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if n, err := strconv.Atoi(value); err == nil {
		return max(n, 0)
	}

	total := 0
	for _, match := range youtubeTimePattern.FindAllStringSubmatch(value, -1) {
		n, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		switch strings.ToLower(match[2]) {
		case "h":
			total += n * 3600
		case "m":
			total += n * 60
		case "s":
			total += n
		}
	}
	return total
}

func bilibiliEmbed(u *url.URL) (VideoEmbed, bool) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) < 2 || segments[0] != "video" || segments[1] == "" {
		return VideoEmbed{}, false
	}

	id := segments[1]
	values := url.Values{}
	switch lower := strings.ToLower(id); {
	case strings.HasPrefix(lower, "bv"):
		values.Set("bvid", id)
	case strings.HasPrefix(lower, "av"):
		values.Set("aid", strings.TrimPrefix(lower, "av"))
	default:
		return VideoEmbed{}, false
	}
	page := 1
	if p, err := strconv.Atoi(u.Query().Get("p")); err == nil && p > 0 {
		page = p
	}
	values.Set("page", strconv.Itoa(page))
	values.Set("autoplay", "0")

	return VideoEmbed{
		Platform: "bilibili",
		EmbedURL: "https://player.bilibili.com/player.html?" + values.Encode(),
		Aspect:   AspectLandscape,
	}, true
}

func douyinEmbed(u *url.URL) (VideoEmbed, bool) {
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	id := ""
	for i, segment := range segments {
		if segment == "video" && i+1 < len(segments) {
			id = segments[i+1]
			break
		}
	}
	if id == "" {
		id = u.Query().Get("modal_id")
	}
	if id == "" {
		return VideoEmbed{}, false
	}

	return VideoEmbed{
		Platform: "douyin",
		EmbedURL: "https://www.iesdouyin.com/share/video/" + url.PathEscape(id),
		Aspect:   AspectPortrait,
	}, true
}

func hostWithin(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
