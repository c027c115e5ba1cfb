package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const facebookGraphURL = "https://graph.facebook.com/v21.0"

type facebookPublisher struct {
	client *http.Client
}

func NewFacebookPublisher() Publisher {
	return &facebookPublisher{
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *facebookPublisher) Platform() string { return "facebook" }

// Publish posts to a page feed. AccessSecret carries the page id; the
// token is a page access token.
func (p *facebookPublisher) Publish(ctx context.Context, creds Credentials, req *Request) (*Result, error) {
	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	params.Set("message", req.Content)

	endpoint := fmt.Sprintf("%s/%s/feed", facebookGraphURL, creds.AccessSecret)

	if len(req.Media) == 1 && strings.HasPrefix(req.Media[0].MimeType, "video/") {
		endpoint = fmt.Sprintf("%s/%s/videos", facebookGraphURL, creds.AccessSecret)
		params.Set("file_url", req.Media[0].URL)
		params.Del("message")
		params.Set("description", req.Content)
	} else if len(req.Media) > 0 {
		var attached []string
		for _, m := range req.Media {
			photoID, err := p.uploadPhoto(ctx, creds, m)
			if err != nil {
				return nil, err
			}
			attached = append(attached, photoID)
		}
		for i, id := range attached {
			params.Set(fmt.Sprintf("attached_media[%d]", i), fmt.Sprintf(`{"media_fbid":"%s"}`, id))
		}
	}

	id, err := p.graphPost(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}

	return &Result{
		PlatformPostID: id,
		URL:            "https://www.facebook.com/" + id,
	}, nil
}

// uploadPhoto stages a photo without publishing it so it can be attached
// to the feed post.
func (p *facebookPublisher) uploadPhoto(ctx context.Context, creds Credentials, media Media) (string, error) {
	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	params.Set("url", media.URL)
	params.Set("published", "false")

	return p.graphPost(ctx, fmt.Sprintf("%s/%s/photos", facebookGraphURL, creds.AccessSecret), params)
}

func (p *facebookPublisher) graphPost(ctx context.Context, endpoint string, params url.Values) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if err := checkResponse("facebook", resp); err != nil {
		return "", err
	}

	var result struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("failed to decode graph response: %w", err)
	}
	if result.PostID != "" {
		return result.PostID, nil
	}
	if result.ID == "" {
		return "", fmt.Errorf("facebook returned no id")
	}
	return result.ID, nil
}
