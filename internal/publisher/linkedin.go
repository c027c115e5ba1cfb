package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const linkedinPostURL = "https://api.linkedin.com/rest/posts"

type linkedinPublisher struct {
	client *http.Client
}

func NewLinkedinPublisher() Publisher {
	return &linkedinPublisher{
		client: &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *linkedinPublisher) Platform() string { return "linkedin" }

func (p *linkedinPublisher) Publish(ctx context.Context, creds Credentials, req *Request) (*Result, error) {
	// AccessSecret carries the author URN for this platform.
	body := map[string]interface{}{
		"author":     creds.AccessSecret,
		"commentary": req.Content,
		"visibility": "PUBLIC",
		"distribution": map[string]interface{}{
			"feedDistribution": "MAIN_FEED",
		},
		"lifecycleState": "PUBLISHED",
	}

	if len(req.Media) == 1 {
		asset, err := p.registerUpload(ctx, creds, req.Media[0])
		if err != nil {
			return nil, err
		}
		body["content"] = map[string]interface{}{
			"media": map[string]interface{}{"id": asset},
		}
	} else if len(req.Media) > 1 {
		var items []map[string]interface{}
		for _, m := range req.Media {
			asset, err := p.registerUpload(ctx, creds, m)
			if err != nil {
				return nil, err
			}
			items = append(items, map[string]interface{}{"id": asset})
		}
		body["content"] = map[string]interface{}{
			"multiImage": map[string]interface{}{"images": items},
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, linkedinPostURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	httpReq.Header.Set("LinkedIn-Version", "202401")
	httpReq.Header.Set("X-Restli-Protocol-Version", "2.0.0")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse("linkedin", resp); err != nil {
		return nil, err
	}

	postID := resp.Header.Get("x-restli-id")
	if postID == "" {
		return nil, fmt.Errorf("linkedin returned no post id")
	}

	return &Result{
		PlatformPostID: postID,
		URL:            "https://www.linkedin.com/feed/update/" + postID,
	}, nil
}

const linkedinUploadURL = "https://api.linkedin.com/rest/images?action=initializeUpload"

// registerUpload initializes an upload slot, pushes the bytes to the
// returned URL and hands back the asset URN. Documents and videos go
// through the same multi-step protocol on their respective endpoints.
func (p *linkedinPublisher) registerUpload(ctx context.Context, creds Credentials, media Media) (string, error) {
	endpoint := linkedinUploadURL
	if strings.HasPrefix(media.MimeType, "video/") {
		endpoint = "https://api.linkedin.com/rest/videos?action=initializeUpload"
	} else if media.MimeType == "application/pdf" {
		endpoint = "https://api.linkedin.com/rest/documents?action=initializeUpload"
	}

	initBody, err := json.Marshal(map[string]interface{}{
		"initializeUploadRequest": map[string]interface{}{"owner": creds.AccessSecret},
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(initBody))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	httpReq.Header.Set("LinkedIn-Version", "202401")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	if err := checkResponse("linkedin", resp); err != nil {
		resp.Body.Close()
		return "", err
	}

	var initResult struct {
		Value struct {
			UploadURL string `json:"uploadUrl"`
			Asset     string `json:"image"`
			Video     string `json:"video"`
			Document  string `json:"document"`
		} `json:"value"`
	}
	err = json.NewDecoder(resp.Body).Decode(&initResult)
	resp.Body.Close()
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("failed to decode upload init response: %w", err)
	}

	data, err := fetchMedia(ctx, p.client, media.URL)
	if err != nil {
		return "", err
	}

	uploadReq, err := http.NewRequestWithContext(ctx, http.MethodPut, initResult.Value.UploadURL, bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	uploadReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	uploadResp, err := p.client.Do(uploadReq)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer uploadResp.Body.Close()

	if err := checkResponse("linkedin", uploadResp); err != nil {
		return "", err
	}

	switch {
	case initResult.Value.Asset != "":
		return initResult.Value.Asset, nil
	case initResult.Value.Video != "":
		return initResult.Value.Video, nil
	case initResult.Value.Document != "":
		return initResult.Value.Document, nil
	}
	return "", fmt.Errorf("linkedin upload returned no asset urn")
}
