package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

const twitterPostURL = "https://api.twitter.com/2/tweets"

type twitterPublisher struct {
	client *http.Client
}

func NewTwitterPublisher() Publisher {
	return &twitterPublisher{
		client: &http.Client{Timeout: 60 * time.Second},
	}
}

func (p *twitterPublisher) Platform() string { return "twitter" }

type tweetRequest struct {
	Text  string      `json:"text"`
	Reply *tweetReply `json:"reply,omitempty"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetReply struct {
	InReplyToTweetID string `json:"in_reply_to_tweet_id"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

func (p *twitterPublisher) Publish(ctx context.Context, creds Credentials, req *Request) (*Result, error) {
	body := tweetRequest{Text: req.Content}
	if req.InReplyTo != "" {
		body.Reply = &tweetReply{InReplyToTweetID: req.InReplyTo}
	}
	if len(req.Media) > 0 {
		mediaIDs, err := p.uploadMedia(ctx, creds, req.Media)
		if err != nil {
			return nil, err
		}
		body.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, twitterPostURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if err := checkResponse("twitter", resp); err != nil {
		return nil, err
	}

	var result struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode tweet response: %w", err)
	}
	if result.Data.ID == "" {
		return nil, fmt.Errorf("twitter returned no tweet id")
	}

	return &Result{
		PlatformPostID: result.Data.ID,
		URL:            "https://twitter.com/i/status/" + result.Data.ID,
	}, nil
}

const twitterMediaUploadURL = "https://upload.twitter.com/1.1/media/upload.json"

func (p *twitterPublisher) uploadMedia(ctx context.Context, creds Credentials, media []Media) ([]string, error) {
	ids := make([]string, 0, len(media))
	for _, m := range media {
		data, err := fetchMedia(ctx, p.client, m.URL)
		if err != nil {
			return nil, err
		}

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, twitterMediaUploadURL, bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Content-Type", "application/octet-stream")
		httpReq.Header.Set("Authorization", "Bearer "+creds.AccessToken)

		resp, err := p.client.Do(httpReq)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}

		if err := checkResponse("twitter", resp); err != nil {
			resp.Body.Close()
			return nil, err
		}

		var result struct {
			MediaIDString string `json:"media_id_string"`
		}
		err = json.NewDecoder(resp.Body).Decode(&result)
		resp.Body.Close()
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("failed to decode media upload response: %w", err)
		}
		ids = append(ids, result.MediaIDString)
	}
	return ids, nil
}

// checkResponse converts a non-2xx platform response into an error,
// distinguishing rate limiting.
func checkResponse(platform string, resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if resp.StatusCode == http.StatusTooManyRequests {
		var retryAfter time.Duration
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, err := strconv.Atoi(v); err == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{Platform: platform, RetryAfter: retryAfter}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("%s returned status %d: %s", platform, resp.StatusCode, body)
}

func fetchMedia(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media fetch returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
