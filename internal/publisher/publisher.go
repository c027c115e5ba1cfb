package publisher

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/ratelimit"
)

// Credentials are decrypted immediately before a publish call and never
// held longer than the call they serve. AccessSecret is set only for
// platforms that require a secondary secret alongside the token.
type Credentials struct {
	AccessToken  string
	AccessSecret string
}

type Media struct {
	URL      string
	MimeType string
}

type Request struct {
	Content string
	Title   string
	Media   []Media
	// InReplyTo carries the platform id of the immediately preceding
	// thread chunk when replaying a chain.
	InReplyTo string
}

type Result struct {
	PlatformPostID string
	URL            string
}

// Publisher is the uniform publish contract, one implementation per
// platform. Implementations handle their own call timeouts and must
// return an error for every failure, including rate limiting.
type Publisher interface {
	Platform() string
	Publish(ctx context.Context, creds Credentials, req *Request) (*Result, error)
}

// RateLimitError marks a platform rate-limit response. It is recorded on
// the destination like any other publish failure and left to the queue's
// standard retry policy; it is never retried synchronously.
type RateLimitError struct {
	Platform   string
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%s: rate limited, retry after %s", e.Platform, e.RetryAfter)
	}
	return fmt.Sprintf("%s: rate limited", e.Platform)
}

// Registry is the closed set of platform publishers, built once at
// startup and injected where needed. Each platform gets a client-side
// pacer so bursts of destinations on one platform do not trip its limits
// immediately.
type Registry struct {
	publishers map[string]Publisher
	limiters   map[string]ratelimit.Limiter
}

func NewRegistry(publishers ...Publisher) (*Registry, error) {
	r := &Registry{
		publishers: make(map[string]Publisher, len(publishers)),
		limiters:   make(map[string]ratelimit.Limiter, len(publishers)),
	}
	for _, p := range publishers {
		if _, exists := r.publishers[p.Platform()]; exists {
			return nil, fmt.Errorf("duplicate publisher for platform %q", p.Platform())
		}
		r.publishers[p.Platform()] = p
		r.limiters[p.Platform()] = ratelimit.New(1)
	}
	return r, nil
}

func (r *Registry) Publish(ctx context.Context, platform string, creds Credentials, req *Request) (*Result, error) {
	p, ok := r.publishers[platform]
	if !ok {
		return nil, fmt.Errorf("no publisher registered for platform %q", platform)
	}
	r.limiters[platform].Take()
	return p.Publish(ctx, creds, req)
}
