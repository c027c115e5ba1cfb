package rules

import (
	"strings"
	"unicode/utf8"
)

const (
	instagramMaxCaption      = 2200
	instagramMaxHashtags     = 30
	instagramMaxCarousel     = 10
	instagramReelMaxDuration = 900
	instagramReelMaxPixels   = 1920
)

var instagramMimeTypes = map[string]struct{}{
	"image/jpeg":      {},
	"image/png":       {},
	"video/mp4":       {},
	"video/quicktime": {},
}

type instagramEngine struct{}

func NewInstagramEngine() Engine {
	return &instagramEngine{}
}

func (e *instagramEngine) Platform() string      { return PlatformInstagram }
func (e *instagramEngine) SupportsThreads() bool { return false }

func (e *instagramEngine) Validate(content string, media []Media) (*Result, error) {
	if n := utf8.RuneCountInString(content); n > instagramMaxCaption {
		return nil, violation(PlatformInstagram, "caption_length",
			"caption is %d characters, the maximum is %d", n, instagramMaxCaption)
	}
	if n := countHashtags(content); n > instagramMaxHashtags {
		return nil, violation(PlatformInstagram, "hashtag_count",
			"caption has %d hashtags, the maximum is %d", n, instagramMaxHashtags)
	}
	if len(media) == 0 {
		return nil, violation(PlatformInstagram, "media_required", "at least one media item is required")
	}

	var videos int
	for _, m := range media {
		if _, ok := instagramMimeTypes[m.MimeType]; !ok {
			return nil, violation(PlatformInstagram, "media_type", "unsupported media type %s", m.MimeType)
		}
		if strings.HasPrefix(m.MimeType, "video/") {
			videos++
		}
	}

	// A single video is published as a reel; everything else goes through
	// the feed/carousel path.
	if len(media) == 1 && videos == 1 {
		v := media[0]
		if v.DurationSeconds > instagramReelMaxDuration {
			return nil, violation(PlatformInstagram, "video_duration",
				"video is %.0fs, the maximum is %ds", v.DurationSeconds, instagramReelMaxDuration)
		}
		if v.Width > instagramReelMaxPixels || v.Height > instagramReelMaxPixels {
			return nil, violation(PlatformInstagram, "video_dimensions",
				"video %dx%d exceeds the %d pixel limit per dimension", v.Width, v.Height, instagramReelMaxPixels)
		}
	} else if len(media) > instagramMaxCarousel {
		return nil, violation(PlatformInstagram, "media_count",
			"%d media items attached, the carousel maximum is %d", len(media), instagramMaxCarousel)
	}

	return &Result{Content: content}, nil
}

func (e *instagramEngine) ValidateChunk(content string, media []Media) error {
	return violation(PlatformInstagram, "threads", "platform does not support threads")
}

func countHashtags(content string) int {
	n := 0
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, "#") && len(field) > 1 {
			n++
		}
	}
	return n
}
