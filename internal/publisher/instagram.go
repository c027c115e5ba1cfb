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

const instagramGraphURL = "https://graph.instagram.com/v21.0"

type instagramPublisher struct {
	client *http.Client
}

func NewInstagramPublisher() Publisher {
	return &instagramPublisher{
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *instagramPublisher) Platform() string { return "instagram" }

// Publish runs the graph API container protocol: create a media
// container per item, wait for processing, then publish. AccessSecret
// carries the instagram user id.
func (p *instagramPublisher) Publish(ctx context.Context, creds Credentials, req *Request) (*Result, error) {
	if len(req.Media) == 0 {
		return nil, fmt.Errorf("instagram requires at least one media item")
	}

	var containerID string
	var err error

	if len(req.Media) == 1 {
		containerID, err = p.createContainer(ctx, creds, req.Media[0], req.Content, "")
	} else {
		var children []string
		for _, m := range req.Media {
			child, cerr := p.createContainer(ctx, creds, m, "", "true")
			if cerr != nil {
				return nil, cerr
			}
			children = append(children, child)
		}
		containerID, err = p.createCarousel(ctx, creds, req.Content, children)
	}
	if err != nil {
		return nil, err
	}

	if err := p.waitForContainer(ctx, creds, containerID); err != nil {
		return nil, err
	}

	return p.publishContainer(ctx, creds, containerID)
}

func (p *instagramPublisher) createContainer(ctx context.Context, creds Credentials, media Media, caption, isCarouselItem string) (string, error) {
	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	if caption != "" {
		params.Set("caption", caption)
	}
	if isCarouselItem != "" {
		params.Set("is_carousel_item", isCarouselItem)
	}
	if strings.HasPrefix(media.MimeType, "video/") {
		params.Set("media_type", "REELS")
		params.Set("video_url", media.URL)
	} else {
		params.Set("image_url", media.URL)
	}

	return p.graphPost(ctx, fmt.Sprintf("%s/%s/media", instagramGraphURL, creds.AccessSecret), params)
}

func (p *instagramPublisher) createCarousel(ctx context.Context, creds Credentials, caption string, children []string) (string, error) {
	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	params.Set("media_type", "CAROUSEL")
	params.Set("caption", caption)
	params.Set("children", strings.Join(children, ","))

	return p.graphPost(ctx, fmt.Sprintf("%s/%s/media", instagramGraphURL, creds.AccessSecret), params)
}

// waitForContainer polls until the container finishes processing. Video
// containers can take a while; the poll budget stays inside the client
// timeout of a single publish attempt.
func (p *instagramPublisher) waitForContainer(ctx context.Context, creds Credentials, containerID string) error {
	for attempt := 0; attempt < 20; attempt++ {
		reqURL := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", instagramGraphURL, containerID, url.QueryEscape(creds.AccessToken))
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}

		resp, err := p.client.Do(httpReq)
		if err != nil {
			slog.Info(err.Error())
			return err
		}

		if err := checkResponse("instagram", resp); err != nil {
			resp.Body.Close()
			return err
		}

		var status struct {
			StatusCode string `json:"status_code"`
		}
		err = json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()
		if err != nil {
			slog.Info(err.Error())
			return err
		}

		switch status.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR", "EXPIRED":
			return fmt.Errorf("instagram container %s ended in status %s", containerID, status.StatusCode)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(3 * time.Second):
		}
	}
	return fmt.Errorf("instagram container %s did not finish processing in time", containerID)
}

func (p *instagramPublisher) publishContainer(ctx context.Context, creds Credentials, containerID string) (*Result, error) {
	params := url.Values{}
	params.Set("access_token", creds.AccessToken)
	params.Set("creation_id", containerID)

	id, err := p.graphPost(ctx, fmt.Sprintf("%s/%s/media_publish", instagramGraphURL, creds.AccessSecret), params)
	if err != nil {
		return nil, err
	}
	return &Result{PlatformPostID: id}, nil
}

func (p *instagramPublisher) graphPost(ctx context.Context, endpoint string, params url.Values) (string, error) {
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

	if err := checkResponse("instagram", resp); err != nil {
		return "", err
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("failed to decode graph response: %w", err)
	}
	if result.ID == "" {
		return "", fmt.Errorf("instagram returned no id")
	}
	return result.ID, nil
}
