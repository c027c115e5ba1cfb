package rules

import (
	"strings"
	"unicode/utf8"
)

const (
	linkedinMaxChars     = 3000
	linkedinMaxImages    = 9
	linkedinMaxVideos    = 1
	linkedinMaxDimension = 6012
)

type linkedinEngine struct{}

func NewLinkedinEngine() Engine {
	return &linkedinEngine{}
}

func (e *linkedinEngine) Platform() string      { return PlatformLinkedin }
func (e *linkedinEngine) SupportsThreads() bool { return false }

func (e *linkedinEngine) Validate(content string, media []Media) (*Result, error) {
	if strings.TrimSpace(content) == "" && len(media) == 0 {
		return nil, violation(PlatformLinkedin, "content", "post has no content and no media")
	}
	if n := utf8.RuneCountInString(content); n > linkedinMaxChars {
		return nil, violation(PlatformLinkedin, "length",
			"content is %d characters, the maximum is %d", n, linkedinMaxChars)
	}

	var documents, images, videos int
	for _, m := range media {
		switch {
		case m.MimeType == "application/pdf":
			documents++
		case strings.HasPrefix(m.MimeType, "image/"):
			images++
			if m.Width > linkedinMaxDimension || m.Height > linkedinMaxDimension {
				return nil, violation(PlatformLinkedin, "image_dimensions",
					"image %dx%d exceeds the %d pixel limit per dimension", m.Width, m.Height, linkedinMaxDimension)
			}
		case strings.HasPrefix(m.MimeType, "video/"):
			videos++
		default:
			return nil, violation(PlatformLinkedin, "media_type", "unsupported media type %s", m.MimeType)
		}
	}

	// A document post is exclusive: a single PDF, nothing else beside it.
	if documents > 0 {
		if documents > 1 {
			return nil, violation(PlatformLinkedin, "document_count", "only one document is allowed per post")
		}
		if images > 0 || videos > 0 {
			return nil, violation(PlatformLinkedin, "media_mix", "cannot mix document with images/video")
		}
	}
	if videos > linkedinMaxVideos {
		return nil, violation(PlatformLinkedin, "video_count", "only one video is allowed per post")
	}
	if images > linkedinMaxImages {
		return nil, violation(PlatformLinkedin, "image_count",
			"%d images attached, the maximum is %d", images, linkedinMaxImages)
	}

	return &Result{Content: content}, nil
}

func (e *linkedinEngine) ValidateChunk(content string, media []Media) error {
	return violation(PlatformLinkedin, "threads", "platform does not support threads")
}
