package service

import (
	"context"

	"github.com/calvora/postpilot/internal/models"
	"github.com/calvora/postpilot/internal/repository"
)

// StatusAggregator recomputes a post's master status from its
// destination statuses. Idempotent; safe to call after every executor
// pass.
type StatusAggregator interface {
	Recompute(ctx context.Context, postID int64) (string, error)
}

type statusAggregator struct {
	pr repository.PostRepository
	dr repository.DestinationRepository
}

func NewStatusAggregator(pr repository.PostRepository, dr repository.DestinationRepository) StatusAggregator {
	return &statusAggregator{pr: pr, dr: dr}
}

func (a *statusAggregator) Recompute(ctx context.Context, postID int64) (string, error) {
	counts, err := a.dr.CountByStatus(ctx, postID)
	if err != nil {
		return "", err
	}

	status := DeriveStatus(counts)
	if status == "" {
		return "", nil
	}

	if err := a.pr.UpdateStatus(ctx, status, postID); err != nil {
		return "", err
	}
	return status, nil
}

// DeriveStatus maps destination tallies to the master post status.
// Returns "" when there are no destinations to tally.
func DeriveStatus(counts map[string]int) string {
	outstanding := counts[models.DestinationStatusScheduled] + counts[models.DestinationStatusPublishing]
	succeeded := counts[models.DestinationStatusSuccess]
	failed := counts[models.DestinationStatusFailed]

	switch {
	case outstanding > 0:
		return models.PostStatusPublishing
	case succeeded > 0 && failed == 0:
		return models.PostStatusPublished
	case succeeded > 0 && failed > 0:
		return models.PostStatusPartial
	case failed > 0:
		return models.PostStatusFailed
	}
	return ""
}
