package rules

import (
	"strings"

	"github.com/calvora/postpilot/internal/models"
)

const (
	twitterHardLimit     = 280
	twitterSafeLimit     = 260
	twitterMaxThreadSize = 25
	twitterMaxMedia      = 4
)

type twitterEngine struct{}

func NewTwitterEngine() Engine {
	return &twitterEngine{}
}

func (e *twitterEngine) Platform() string      { return PlatformTwitter }
func (e *twitterEngine) SupportsThreads() bool { return true }

func (e *twitterEngine) Validate(content string, media []Media) (*Result, error) {
	if strings.TrimSpace(content) == "" && len(media) == 0 {
		return nil, violation(PlatformTwitter, "content", "post has no content and no media")
	}

	if err := e.checkMedia(media); err != nil {
		return nil, err
	}

	// The safe limit is the split trigger; the hard limit is what every
	// produced chunk is held to.
	if WeightedLength(content) <= twitterSafeLimit {
		return &Result{Content: content}, nil
	}

	chunks, err := autoSplit(PlatformTwitter, content, twitterSafeLimit, twitterHardLimit, twitterMaxThreadSize)
	if err != nil {
		return nil, err
	}

	result := &Result{Content: chunks[0]}
	for _, c := range chunks[1:] {
		result.Thread = append(result.Thread, models.ThreadChunk{Content: c})
	}
	return result, nil
}

func (e *twitterEngine) ValidateChunk(content string, media []Media) error {
	if strings.TrimSpace(content) == "" {
		return violation(PlatformTwitter, "content", "thread item has no content")
	}
	if WeightedLength(content) > twitterHardLimit {
		return violation(PlatformTwitter, "length",
			"thread item weighted length %d exceeds the %d limit", WeightedLength(content), twitterHardLimit)
	}
	return e.checkMedia(media)
}

// Media attaches only to the first chunk of a thread; the ceiling below
// applies there and to every explicit thread item.
func (e *twitterEngine) checkMedia(media []Media) error {
	if len(media) > twitterMaxMedia {
		return violation(PlatformTwitter, "media_count",
			"%d media items attached, the maximum is %d", len(media), twitterMaxMedia)
	}
	for _, m := range media {
		if !strings.HasPrefix(m.MimeType, "image/") && !strings.HasPrefix(m.MimeType, "video/") {
			return violation(PlatformTwitter, "media_type", "unsupported media type %s", m.MimeType)
		}
	}
	return nil
}
