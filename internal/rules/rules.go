package rules

import (
	"fmt"

	"github.com/calvora/postpilot/internal/models"
)

const (
	PlatformTwitter   = "twitter"
	PlatformLinkedin  = "linkedin"
	PlatformInstagram = "instagram"
	PlatformFacebook  = "facebook"
	PlatformYoutube   = "youtube"
)

// Media is the descriptor the engine validates against. Descriptors are
// resolved by the media service before the engine runs; the engine itself
// performs no I/O.
type Media struct {
	ID              int64
	URL             string
	MimeType        string
	Width           int
	Height          int
	DurationSeconds float64
	SizeBytes       int64
}

// Result is the outcome of a successful validation pass. Thread is
// non-empty only when the content had to be auto-split; the chunks are
// published in order as replies to Content.
type Result struct {
	Content string
	Thread  []models.ThreadChunk
}

// Engine validates and transforms raw content for one platform. All
// implementations are deterministic and side-effect free.
type Engine interface {
	Platform() string
	SupportsThreads() bool
	Validate(content string, media []Media) (*Result, error)
	// ValidateChunk checks a single author-specified thread item.
	ValidateChunk(content string, media []Media) error
}

// ValidationError names the specific violated constraint. The engine
// never silently truncates content; it either passes, splits, or fails
// with one of these.
type ValidationError struct {
	Platform   string
	Constraint string
	Message    string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Platform, e.Constraint, e.Message)
}

func violation(platform, constraint, format string, args ...interface{}) *ValidationError {
	return &ValidationError{
		Platform:   platform,
		Constraint: constraint,
		Message:    fmt.Sprintf(format, args...),
	}
}

// Registry binds each platform of the closed set to its engine, built
// once at startup and passed by reference. An unknown platform is a
// construction-time concern: ForPlatform is the only lookup and returns
// an error rather than panicking.
type Registry struct {
	engines map[string]Engine
}

func NewRegistry() *Registry {
	engines := map[string]Engine{}
	for _, e := range []Engine{
		NewTwitterEngine(),
		NewLinkedinEngine(),
		NewInstagramEngine(),
		NewFacebookEngine(),
		NewYoutubeEngine(),
	} {
		engines[e.Platform()] = e
	}
	return &Registry{engines: engines}
}

func (r *Registry) ForPlatform(platform string) (Engine, error) {
	e, ok := r.engines[platform]
	if !ok {
		return nil, fmt.Errorf("no content rules for platform %q", platform)
	}
	return e, nil
}
