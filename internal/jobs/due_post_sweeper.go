package job

import (
	"context"
	"log/slog"
	"time"

	"github.com/calvora/postpilot/internal/repository"
	"github.com/calvora/postpilot/internal/service"
)

const sweepLag = 10 * time.Minute

// DuePostSweeper re-enqueues scheduled posts whose target instant has
// passed but whose queue entry was lost (redis flush, failed enqueue
// after commit). Scheduling is keyed by post id, so sweeping a post that
// still has a live job just replaces it with an immediate one.
type DuePostSweeper struct {
	pr        repository.PostRepository
	scheduler service.Scheduler
}

func NewDuePostSweeper(pr repository.PostRepository, scheduler service.Scheduler) *DuePostSweeper {
	return &DuePostSweeper{pr: pr, scheduler: scheduler}
}

func (s *DuePostSweeper) Sweep() {
	ctx := context.Background()
	now := time.Now()

	// Posts only slightly overdue are likely owned by a live job about
	// to fire; sweep the ones overdue past the lag window.
	posts, err := s.pr.ListDue(ctx, now.Add(-sweepLag))
	if err != nil {
		slog.Info(err.Error())
		return
	}

	for _, post := range posts {
		if err := s.scheduler.Schedule(ctx, post.ID, now); err != nil {
			slog.Info("failed to re-enqueue due post", "post_id", post.ID, "error", err.Error())
		}
	}
}
