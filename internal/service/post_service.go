package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/repository"
	"github.com/calvora/postpilot/internal/rules"
	"github.com/calvora/postpilot/internal/transfer"
)

// Scheduler is the queue-facing side of the service: one delayed job per
// post, keyed by the post id.
type Scheduler interface {
	Schedule(ctx context.Context, postID int64, runAt time.Time) error
	Cancel(ctx context.Context, postID int64) error
}

type PostService interface {
	Create(ctx context.Context, workspaceID, authorID int64, pc *transfer.PostCreation) (int64, error)
	Update(ctx context.Context, workspaceID, postID int64, pu *transfer.PostUpdate) error
	List(ctx context.Context, workspaceID int64) ([]*models.Post, error)
	Info(ctx context.Context, postID, workspaceID int64) (*models.Post, error)
	Destinations(ctx context.Context, postID, workspaceID int64) ([]*models.PostDestination, error)
	Remove(ctx context.Context, workspaceID, postID int64) error
}

type postService struct {
	db        *sql.DB
	pr        repository.PostRepository
	dr        repository.DestinationRepository
	ac        repository.SocialAccountRepository
	pm        repository.PostMediaRepository
	media     MediaService
	rules     *rules.Registry
	schedule  ScheduleResolver
	scheduler Scheduler
}

func NewPostService(
	db *sql.DB,
	pr repository.PostRepository,
	dr repository.DestinationRepository,
	ac repository.SocialAccountRepository,
	pm repository.PostMediaRepository,
	media MediaService,
	ruleRegistry *rules.Registry,
	schedule ScheduleResolver,
	scheduler Scheduler) PostService {
	return &postService{
		db:        db,
		pr:        pr,
		dr:        dr,
		ac:        ac,
		pm:        pm,
		media:     media,
		rules:     ruleRegistry,
		schedule:  schedule,
		scheduler: scheduler,
	}
}

// destinationPayload is the prepared per-destination row, validated and
// transformed before anything is persisted.
type destinationPayload struct {
	AccountID       int64
	ContentOverride sql.NullString
	Metadata        []byte
}

func (s *postService) Create(ctx context.Context, workspaceID, authorID int64, pc *transfer.PostCreation) (int64, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return 0, err
	}

	resolution, err := s.schedule.Resolve(ctx, workspaceID, pc.ScheduledTime, pc.Timezone, pc.AutoSchedule, pc.RequiresApproval)
	if err != nil {
		return 0, err
	}

	payloads, err := s.preparePayloads(ctx, workspaceID, pc.Content, pc.MediaIDs, pc.Destinations)
	if err != nil {
		return 0, err
	}

	contentType := models.ContentTypePost
	for _, d := range pc.Destinations {
		if len(d.Thread) > 0 {
			contentType = models.ContentTypeThread
			break
		}
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	post := models.Post{
		WorkspaceID:   workspaceID,
		AuthorID:      authorID,
		Content:       pc.Content,
		Title:         pc.Title,
		ContentType:   contentType,
		Status:        resolution.Status,
		ScheduledTime: resolution.ScheduledTime,
		Timezone:      pc.Timezone,
	}

	postID, err := s.pr.Create(ctx, tx, &post)
	if err != nil {
		return 0, fmt.Errorf("error creating post: %w", err)
	}

	for _, p := range payloads {
		destination := models.PostDestination{
			PostID:          postID,
			AccountID:       p.AccountID,
			Status:          models.DestinationStatusScheduled,
			ContentOverride: p.ContentOverride,
			Metadata:        p.Metadata,
		}
		if _, err = s.dr.Create(ctx, tx, &destination); err != nil {
			return 0, fmt.Errorf("error creating destination: %w", err)
		}
	}

	for i, assetID := range pc.MediaIDs {
		postMedia := models.PostMedia{
			PostID:       postID,
			AssetID:      assetID,
			DisplayOrder: i,
		}
		if err = s.pm.Create(ctx, tx, &postMedia); err != nil {
			return 0, fmt.Errorf("error saving post media: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	if resolution.Status == models.PostStatusScheduled && resolution.ScheduledTime.Valid {
		// A lost enqueue is recovered by the due-post sweeper.
		if err := s.scheduler.Schedule(ctx, postID, resolution.ScheduledTime.Time); err != nil {
			slog.Error("failed to enqueue publish job", "post_id", postID, "error", err.Error())
		}
	}

	return postID, nil
}

// preparePayloads turns one authoring request into N validated
// per-destination payloads. Validation errors across destinations are
// aggregated so the caller sees every problem in one response; nothing
// is persisted when any destination fails.
func (s *postService) preparePayloads(ctx context.Context, workspaceID int64, content string, mediaIDs []int64, destinations []transfer.DestinationRequest) ([]destinationPayload, error) {
	accountIDs := make([]int64, 0, len(destinations))
	for _, d := range destinations {
		accountIDs = append(accountIDs, d.AccountID)
	}

	accounts, err := s.ac.GetByIDs(ctx, accountIDs)
	if err != nil {
		return nil, err
	}

	var invalid []string
	for _, id := range accountIDs {
		acc, ok := accounts[id]
		if !ok || acc.WorkspaceID != workspaceID {
			invalid = append(invalid, fmt.Sprintf("%d", id))
		}
	}
	if len(invalid) > 0 {
		return nil, fmt.Errorf("social accounts not found in workspace: %v", invalid)
	}

	// Collect every referenced media id up front, one descriptor fetch
	// for the whole request.
	allMediaIDs := append([]int64{}, mediaIDs...)
	for _, d := range destinations {
		for _, item := range d.Thread {
			allMediaIDs = append(allMediaIDs, item.MediaIDs...)
		}
	}
	descriptors, err := s.media.ResolveDescriptors(ctx, allMediaIDs)
	if err != nil {
		return nil, err
	}

	rootMedia := make([]rules.Media, 0, len(mediaIDs))
	for _, id := range mediaIDs {
		rootMedia = append(rootMedia, descriptors[id])
	}

	var payloads []destinationPayload
	var validationErrs []error

	for _, d := range destinations {
		acc := accounts[d.AccountID]

		engine, err := s.rules.ForPlatform(acc.Platform)
		if err != nil {
			validationErrs = append(validationErrs, err)
			continue
		}

		payload, err := s.prepareDestination(engine, acc, content, rootMedia, descriptors, d)
		if err != nil {
			validationErrs = append(validationErrs, err)
			continue
		}
		payloads = append(payloads, *payload)
	}

	if len(validationErrs) > 0 {
		return nil, errors.Join(validationErrs...)
	}
	return payloads, nil
}

func (s *postService) prepareDestination(engine rules.Engine, acc *models.SocialAccount, content string, rootMedia []rules.Media, descriptors map[int64]rules.Media, d transfer.DestinationRequest) (*destinationPayload, error) {
	payload := &destinationPayload{AccountID: d.AccountID}
	if d.ContentOverride != "" {
		payload.ContentOverride = sql.NullString{String: d.ContentOverride, Valid: true}
	}

	var metadata models.DestinationMetadata

	if len(d.Thread) > 0 {
		if !engine.SupportsThreads() {
			return nil, fmt.Errorf("account %d: platform %s does not support threads", d.AccountID, acc.Platform)
		}
		// An override combined with an explicit thread is ambiguous.
		if d.ContentOverride != "" {
			return nil, fmt.Errorf("account %d: content override cannot be combined with an explicit thread", d.AccountID)
		}

		for i, item := range d.Thread {
			itemMedia := make([]rules.Media, 0, len(item.MediaIDs))
			for _, id := range item.MediaIDs {
				itemMedia = append(itemMedia, descriptors[id])
			}
			if err := engine.ValidateChunk(item.Content, itemMedia); err != nil {
				return nil, fmt.Errorf("account %d thread item %d: %w", d.AccountID, i+1, err)
			}
			metadata.ThreadChain = append(metadata.ThreadChain, models.ThreadChunk{
				Content:    item.Content,
				MediaIDs:   item.MediaIDs,
				AccountIDs: item.AccountIDs,
			})
		}

		result, err := engine.Validate(content, rootMedia)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", d.AccountID, err)
		}
		metadata.FinalContent = result.Content
		metadata.ThreadChain = append(result.Thread, metadata.ThreadChain...)
	} else {
		effective := content
		if d.ContentOverride != "" {
			effective = d.ContentOverride
		}
		result, err := engine.Validate(effective, rootMedia)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", d.AccountID, err)
		}
		metadata.FinalContent = result.Content
		metadata.ThreadChain = result.Thread
	}

	encoded, err := metadata.Encode()
	if err != nil {
		return nil, err
	}
	payload.Metadata = encoded
	return payload, nil
}

func (s *postService) Update(ctx context.Context, workspaceID, postID int64, pu *transfer.PostUpdate) error {
	post, err := s.ownedPost(ctx, postID, workspaceID)
	if err != nil {
		return err
	}
	if !post.Editable() {
		err = fmt.Errorf("post %d can no longer be edited in status %s", postID, post.Status)
		slog.Info(err.Error())
		return err
	}

	resolution, err := s.schedule.Resolve(ctx, workspaceID, pu.ScheduledTime, pu.Timezone, pu.AutoSchedule, pu.RequiresApproval)
	if err != nil {
		return err
	}

	payloads, err := s.preparePayloads(ctx, workspaceID, pu.Content, pu.MediaIDs, pu.Destinations)
	if err != nil {
		return err
	}

	// The whole replacement is one transaction; a failure mid-replace
	// must not leave the post with fewer destinations than it had.
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		} else if err != nil {
			tx.Rollback()
		}
	}()

	if err = s.pr.UpdateContent(ctx, tx, postID, pu.Content, pu.Title, resolution.ScheduledTime, resolution.Status); err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}

	if err = s.dr.RemoveByPostID(ctx, tx, postID); err != nil {
		return err
	}
	for _, p := range payloads {
		destination := models.PostDestination{
			PostID:          postID,
			AccountID:       p.AccountID,
			Status:          models.DestinationStatusScheduled,
			ContentOverride: p.ContentOverride,
			Metadata:        p.Metadata,
		}
		if _, err = s.dr.Create(ctx, tx, &destination); err != nil {
			return fmt.Errorf("error recreating destination: %w", err)
		}
	}

	if err = s.pm.RemoveByPostID(ctx, tx, postID); err != nil {
		return err
	}
	for i, assetID := range pu.MediaIDs {
		postMedia := models.PostMedia{PostID: postID, AssetID: assetID, DisplayOrder: i}
		if err = s.pm.Create(ctx, tx, &postMedia); err != nil {
			return fmt.Errorf("error saving post media: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return s.reconcileJob(ctx, post, resolution)
}

// reconcileJob removes and re-creates the queued job only when the
// effective schedule actually changed; an already consistent job is left
// untouched.
func (s *postService) reconcileJob(ctx context.Context, post *models.Post, resolution *Resolution) error {
	wasScheduled := post.Status == models.PostStatusScheduled && post.ScheduledTime.Valid
	isScheduled := resolution.Status == models.PostStatusScheduled && resolution.ScheduledTime.Valid

	if wasScheduled == isScheduled &&
		(!isScheduled || post.ScheduledTime.Time.Equal(resolution.ScheduledTime.Time)) {
		return nil
	}

	if wasScheduled {
		if err := s.scheduler.Cancel(ctx, post.ID); err != nil {
			slog.Info(err.Error())
		}
	}
	if isScheduled {
		if err := s.scheduler.Schedule(ctx, post.ID, resolution.ScheduledTime.Time); err != nil {
			slog.Error("failed to enqueue publish job", "post_id", post.ID, "error", err.Error())
		}
	}
	return nil
}

func (s *postService) List(ctx context.Context, workspaceID int64) ([]*models.Post, error) {
	posts, err := s.pr.GetByWorkspaceID(ctx, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

func (s *postService) Info(ctx context.Context, postID, workspaceID int64) (*models.Post, error) {
	return s.ownedPost(ctx, postID, workspaceID)
}

func (s *postService) Destinations(ctx context.Context, postID, workspaceID int64) ([]*models.PostDestination, error) {
	if _, err := s.ownedPost(ctx, postID, workspaceID); err != nil {
		return nil, err
	}
	return s.dr.ListByPostID(ctx, postID)
}

func (s *postService) Remove(ctx context.Context, workspaceID, postID int64) error {
	if _, err := s.ownedPost(ctx, postID, workspaceID); err != nil {
		return err
	}

	// The pending job goes first so no worker picks the post up while
	// its rows are being deleted.
	if err := s.scheduler.Cancel(ctx, postID); err != nil {
		slog.Info(err.Error())
	}

	if err := s.dr.RemoveByPostID(ctx, nil, postID); err != nil {
		return err
	}
	if err := s.pm.RemoveByPostID(ctx, nil, postID); err != nil {
		return err
	}
	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post")
	}
	return nil
}

func (s *postService) ownedPost(ctx context.Context, postID, workspaceID int64) (*models.Post, error) {
	if workspaceID == 0 || postID == 0 {
		err := errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByWorkspaceID(ctx, postID, workspaceID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return s.pr.GetByID(ctx, postID)
}
