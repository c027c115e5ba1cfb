package rules

import (
	"strings"
	"unicode/utf8"
)

const (
	facebookMaxChars          = 63206
	facebookMaxMedia          = 10
	facebookStoryMaxDuration  = 90
	facebookStoryMaxDimension = 1920
)

type facebookEngine struct{}

func NewFacebookEngine() Engine {
	return &facebookEngine{}
}

func (e *facebookEngine) Platform() string      { return PlatformFacebook }
func (e *facebookEngine) SupportsThreads() bool { return false }

func (e *facebookEngine) Validate(content string, media []Media) (*Result, error) {
	if strings.TrimSpace(content) == "" && len(media) == 0 {
		return nil, violation(PlatformFacebook, "content", "post has no content and no media")
	}
	if n := utf8.RuneCountInString(content); n > facebookMaxChars {
		return nil, violation(PlatformFacebook, "length",
			"content is %d characters, the maximum is %d", n, facebookMaxChars)
	}
	if len(media) > facebookMaxMedia {
		return nil, violation(PlatformFacebook, "media_count",
			"%d media items attached, the maximum is %d", len(media), facebookMaxMedia)
	}

	var videos int
	for _, m := range media {
		if !strings.HasPrefix(m.MimeType, "image/") && !strings.HasPrefix(m.MimeType, "video/") {
			return nil, violation(PlatformFacebook, "media_type", "unsupported media type %s", m.MimeType)
		}
		if strings.HasPrefix(m.MimeType, "video/") {
			videos++
		}
	}

	// A lone vertical video is treated as the short-form mode with the
	// tighter story/reel bounds.
	if len(media) == 1 && videos == 1 && media[0].Height > media[0].Width {
		v := media[0]
		if v.DurationSeconds > facebookStoryMaxDuration {
			return nil, violation(PlatformFacebook, "video_duration",
				"video is %.0fs, the short-form maximum is %ds", v.DurationSeconds, facebookStoryMaxDuration)
		}
		if v.Width > facebookStoryMaxDimension || v.Height > facebookStoryMaxDimension {
			return nil, violation(PlatformFacebook, "video_dimensions",
				"video %dx%d exceeds the %d pixel limit per dimension", v.Width, v.Height, facebookStoryMaxDimension)
		}
	}

	return &Result{Content: content}, nil
}

func (e *facebookEngine) ValidateChunk(content string, media []Media) error {
	return violation(PlatformFacebook, "threads", "platform does not support threads")
}
