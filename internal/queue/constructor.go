package queue

import (
	"github.com/calvora/postpilot/internal/publisher"
	"github.com/calvora/postpilot/internal/repository"
	"github.com/calvora/postpilot/internal/service"
)

const TaskTypePublishPost = "publish:post"

type PublishPostPayload struct {
	PostID int64 `json:"post_id"`
}

// Queue is the publishing executor: it consumes queued publish tasks and
// drives each destination's state machine.
type Queue struct {
	pr       repository.PostRepository
	dr       repository.DestinationRepository
	ac       repository.SocialAccountRepository
	ma       repository.MediaAssetRepository
	ph       repository.PostingHistoryRepository
	registry *publisher.Registry
	creds    service.CredentialResolver
	status   service.StatusAggregator
}

func NewQueue(
	pr repository.PostRepository,
	dr repository.DestinationRepository,
	ac repository.SocialAccountRepository,
	ma repository.MediaAssetRepository,
	ph repository.PostingHistoryRepository,
	registry *publisher.Registry,
	creds service.CredentialResolver,
	status service.StatusAggregator) *Queue {
	return &Queue{
		pr:       pr,
		dr:       dr,
		ac:       ac,
		ma:       ma,
		ph:       ph,
		registry: registry,
		creds:    creds,
		status:   status,
	}
}
