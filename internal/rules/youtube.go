package rules

import (
	"strings"
	"unicode/utf8"
)

const youtubeMaxDescription = 5000

type youtubeEngine struct{}

func NewYoutubeEngine() Engine {
	return &youtubeEngine{}
}

func (e *youtubeEngine) Platform() string      { return PlatformYoutube }
func (e *youtubeEngine) SupportsThreads() bool { return false }

func (e *youtubeEngine) Validate(content string, media []Media) (*Result, error) {
	if n := utf8.RuneCountInString(content); n > youtubeMaxDescription {
		return nil, violation(PlatformYoutube, "description_length",
			"description is %d characters, the maximum is %d", n, youtubeMaxDescription)
	}

	var videos int
	for _, m := range media {
		if !strings.HasPrefix(m.MimeType, "video/") {
			return nil, violation(PlatformYoutube, "media_type", "unsupported media type %s", m.MimeType)
		}
		videos++
	}
	if videos != 1 {
		return nil, violation(PlatformYoutube, "video_required", "exactly one video is required, got %d", videos)
	}

	return &Result{Content: content}, nil
}

func (e *youtubeEngine) ValidateChunk(content string, media []Media) error {
	return violation(PlatformYoutube, "threads", "platform does not support threads")
}
