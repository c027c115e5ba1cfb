package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/publisher"
)

const executorConcurrency = 10

func (q *Queue) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := q.Execute(ctx, payload.PostID); err != nil {
		sentry.CaptureException(err)
		return err
	}
	return nil
}

// Execute runs one publishing pass over every destination of the post.
// A returned error means infrastructure failed and the whole task should
// be retried by the queue; per-destination publish failures are recorded
// on their rows and never propagate here.
func (q *Queue) Execute(ctx context.Context, postID int64) error {
	post, err := q.pr.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if post == nil {
		// Deleted between enqueue and execution; drop the task.
		slog.Info("post no longer exists, dropping publish task", "post_id", postID)
		return nil
	}

	destinations, err := q.dr.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}
	if len(destinations) == 0 {
		slog.Info("post has no destinations", "post_id", postID)
		return nil
	}

	assets, err := q.ma.ListByPostID(ctx, postID)
	if err != nil {
		return err
	}
	rootMedia := toPublisherMedia(assets)

	// First recompute flips the master status to publishing while work
	// is outstanding.
	if _, err := q.status.Recompute(ctx, postID); err != nil {
		return err
	}

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, executorConcurrency)

	var mu sync.Mutex
	var systemErrs []error

	for _, dest := range destinations {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(dest *models.PostDestination) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := q.processDestination(ctx, post, dest, rootMedia); err != nil {
				mu.Lock()
				systemErrs = append(systemErrs, err)
				mu.Unlock()
			}
		}(dest)
	}

	wg.Wait()

	if _, err := q.status.Recompute(ctx, postID); err != nil {
		return err
	}

	return errors.Join(systemErrs...)
}

// processDestination drives one destination through its state machine.
// It returns an error only for infrastructure failures; publish failures
// are recorded on the destination row so siblings keep running.
func (q *Queue) processDestination(ctx context.Context, post *models.Post, dest *models.PostDestination, rootMedia []publisher.Media) error {
	claimed, err := q.dr.Claim(ctx, dest.ID)
	if err != nil {
		return err
	}
	if !claimed {
		// Another worker owns it or it is already terminal.
		slog.Debug("destination already claimed", "destination_id", dest.ID)
		return nil
	}

	acc, err := q.ac.GetByID(ctx, dest.AccountID)
	if err != nil {
		if merr := q.dr.MarkFailed(ctx, dest.ID, err.Error()); merr != nil {
			slog.Info(merr.Error())
		}
		return err
	}
	if acc == nil {
		return q.recordFailure(ctx, post, dest, 0, fmt.Errorf("social account %d is no longer connected", dest.AccountID))
	}

	platformPostID, err := q.publishDestination(ctx, post, dest, acc, rootMedia)
	if err != nil {
		var sysErr *systemError
		if errors.As(err, &sysErr) {
			// Best effort: a row left in publishing is unclaimable on
			// retry, so move it to failed before propagating.
			if merr := q.dr.MarkFailed(ctx, dest.ID, sysErr.Error()); merr != nil {
				slog.Info(merr.Error())
			}
			return sysErr.err
		}
		return q.recordFailure(ctx, post, dest, acc.ID, err)
	}

	if err := q.dr.MarkSuccess(ctx, dest.ID, platformPostID); err != nil {
		return err
	}
	q.recordHistory(ctx, post.ID, dest.ID, acc.ID, platformPostID, "")
	return nil
}

// systemError separates infrastructure failures from publish failures
// inside the publish sequence.
type systemError struct {
	err error
}

func (e *systemError) Error() string { return e.err.Error() }

func (q *Queue) publishDestination(ctx context.Context, post *models.Post, dest *models.PostDestination, acc *models.SocialAccount, rootMedia []publisher.Media) (string, error) {
	md, err := dest.DecodeMetadata()
	if err != nil {
		return "", fmt.Errorf("corrupt destination metadata: %w", err)
	}

	content := md.FinalContent
	if content == "" {
		content = post.Content
		if dest.ContentOverride.Valid {
			content = dest.ContentOverride.String
		}
	}

	// Decrypted immediately before use, dropped when this call tree
	// returns.
	creds, err := q.creds.Resolve(ctx, acc)
	if err != nil {
		return "", err
	}

	rootResult, err := q.registry.Publish(ctx, acc.Platform, creds, &publisher.Request{
		Content: content,
		Title:   post.Title,
		Media:   rootMedia,
	})
	if err != nil {
		return "", err
	}
	if rootResult.PlatformPostID == "" {
		return "", fmt.Errorf("%s returned no platform post id", acc.Platform)
	}

	// Persist the root id before replaying the chain so a retry after a
	// mid-chain crash is observable and does not re-publish the root.
	if err := q.dr.SetPlatformPostID(ctx, dest.ID, rootResult.PlatformPostID); err != nil {
		return "", &systemError{err: err}
	}

	if len(md.ThreadChain) > 0 {
		if err := q.replayThreadChain(ctx, dest, acc, creds, md.ThreadChain, rootResult.PlatformPostID); err != nil {
			return "", err
		}
	}

	return rootResult.PlatformPostID, nil
}

// replayThreadChain publishes the chain strictly in order, each chunk as
// a reply to the immediately preceding one. The sequential dependency on
// the previous platform id must never be parallelized. A chunk without a
// returned platform id aborts the chain rather than continuing with a
// broken reply pointer.
func (q *Queue) replayThreadChain(ctx context.Context, dest *models.PostDestination, acc *models.SocialAccount, creds publisher.Credentials, chain []models.ThreadChunk, rootPlatformID string) error {
	previousID := rootPlatformID

	for i, chunk := range chain {
		if !chunk.AppliesTo(dest.AccountID) {
			continue
		}

		chunkMedia, err := q.resolveChunkMedia(ctx, chunk.MediaIDs)
		if err != nil {
			return &systemError{err: err}
		}

		result, err := q.registry.Publish(ctx, acc.Platform, creds, &publisher.Request{
			Content:   chunk.Content,
			Media:     chunkMedia,
			InReplyTo: previousID,
		})
		if err != nil {
			return fmt.Errorf("thread chunk %d: %w", i+1, err)
		}
		if result.PlatformPostID == "" {
			return fmt.Errorf("thread chunk %d returned no platform post id, aborting chain", i+1)
		}

		previousID = result.PlatformPostID
	}
	return nil
}

func (q *Queue) resolveChunkMedia(ctx context.Context, ids []int64) ([]publisher.Media, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	assets, err := q.ma.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	media := make([]publisher.Media, 0, len(ids))
	for _, id := range ids {
		if asset, ok := assets[id]; ok {
			media = append(media, publisher.Media{URL: asset.FileURL, MimeType: asset.MimeType})
		}
	}
	return media, nil
}

func (q *Queue) recordFailure(ctx context.Context, post *models.Post, dest *models.PostDestination, accountID int64, cause error) error {
	var rateLimit *publisher.RateLimitError
	if errors.As(cause, &rateLimit) {
		slog.Warn("destination rate limited", "destination_id", dest.ID, "platform", rateLimit.Platform)
	} else {
		slog.Info("destination publish failed", "destination_id", dest.ID, "error", cause.Error())
	}

	if err := q.dr.MarkFailed(ctx, dest.ID, cause.Error()); err != nil {
		return err
	}
	q.recordHistory(ctx, post.ID, dest.ID, accountID, "", cause.Error())
	return nil
}

func (q *Queue) recordHistory(ctx context.Context, postID, destinationID, accountID int64, platformPostID, errorMessage string) {
	_, err := q.ph.Create(ctx, &models.PostingHistory{
		PostID:         postID,
		DestinationID:  destinationID,
		AccountID:      accountID,
		PlatformPostID: platformPostID,
		ErrorMessage:   errorMessage,
	})
	if err != nil {
		slog.Info("error saving posting history", "post_id", postID, "error", err.Error())
	}
}

func toPublisherMedia(assets []*models.MediaAsset) []publisher.Media {
	media := make([]publisher.Media, 0, len(assets))
	for _, a := range assets {
		media = append(media, publisher.Media{URL: a.FileURL, MimeType: a.MimeType})
	}
	return media
}
