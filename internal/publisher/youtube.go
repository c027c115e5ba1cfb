package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

type youtubePublisher struct {
	client *http.Client
}

func NewYoutubePublisher() Publisher {
	return &youtubePublisher{
		client: &http.Client{Timeout: 10 * time.Minute},
	}
}

func (p *youtubePublisher) Platform() string { return "youtube" }

func (p *youtubePublisher) Publish(ctx context.Context, creds Credentials, req *Request) (*Result, error) {
	if len(req.Media) != 1 {
		return nil, fmt.Errorf("youtube requires exactly one video, got %d", len(req.Media))
	}

	token := &oauth2.Token{AccessToken: creds.AccessToken}
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	videoURL := req.Media[0].URL
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, videoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(httpReq)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("video fetch returned status %d", resp.StatusCode)
	}

	video := &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       req.Title,
			Description: req.Content,
			CategoryId:  "22",
		},
		Status: &youtube.VideoStatus{
			PrivacyStatus: "public",
		},
	}

	call := service.Videos.Insert([]string{"snippet", "status"}, video)
	response, err := call.Media(resp.Body).Do()
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}

	return &Result{
		PlatformPostID: response.Id,
		URL:            "https://youtu.be/" + response.Id,
	}, nil
}
