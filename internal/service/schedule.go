package service

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/calvora/postpilot/internal/models"
)

// scheduleGraceWindow tolerates clock skew and slow form submissions
// before a target instant counts as "in the past".
const scheduleGraceWindow = 5 * time.Minute

const scheduleTimeLayout = "2006-01-02T15:04"

// ScheduleError blocks post creation synchronously; nothing is persisted
// when resolution fails.
type ScheduleError struct {
	Message string
}

func (e *ScheduleError) Error() string {
	return "schedule: " + e.Message
}

// SlotFinder is the external collaborator that assigns the next free
// auto-schedule slot for a workspace.
type SlotFinder interface {
	NextAvailableSlot(ctx context.Context, workspaceID int64) (time.Time, error)
}

// Resolution is the effective publish instant plus the status the post
// starts its life in.
type Resolution struct {
	ScheduledTime sql.NullTime
	Status        string
}

type ScheduleResolver interface {
	Resolve(ctx context.Context, workspaceID int64, scheduledTime, timezone string, autoSchedule, requiresApproval bool) (*Resolution, error)
}

type scheduleResolver struct {
	slots SlotFinder
	now   func() time.Time
}

func NewScheduleResolver(slots SlotFinder) ScheduleResolver {
	return &scheduleResolver{slots: slots, now: time.Now}
}

func (r *scheduleResolver) Resolve(ctx context.Context, workspaceID int64, scheduledTime, timezone string, autoSchedule, requiresApproval bool) (*Resolution, error) {
	var target sql.NullTime

	switch {
	case autoSchedule:
		slot, err := r.slots.NextAvailableSlot(ctx, workspaceID)
		if err != nil {
			slog.Info(err.Error())
			return nil, fmt.Errorf("finding next available slot: %w", err)
		}
		target = sql.NullTime{Time: slot.UTC(), Valid: true}

	case scheduledTime != "":
		instant, err := parseScheduledTime(scheduledTime, timezone)
		if err != nil {
			return nil, err
		}
		if instant.Before(r.now().Add(-scheduleGraceWindow)) {
			return nil, &ScheduleError{Message: fmt.Sprintf("time %s is scheduled in the past", instant.Format(time.RFC3339))}
		}
		target = sql.NullTime{Time: instant.UTC(), Valid: true}
	}

	status := models.PostStatusDraft
	if target.Valid {
		status = models.PostStatusScheduled
	}
	// Approval overrides the time-based status.
	if requiresApproval {
		status = models.PostStatusPendingApproval
	}

	return &Resolution{ScheduledTime: target, Status: status}, nil
}

// parseScheduledTime accepts an RFC3339 instant (already zoned) or a
// wall-clock value interpreted in the supplied timezone.
func parseScheduledTime(value, timezone string) (time.Time, error) {
	if instant, err := time.Parse(time.RFC3339, value); err == nil {
		return instant, nil
	}

	loc := time.UTC
	if timezone != "" {
		var err error
		loc, err = time.LoadLocation(timezone)
		if err != nil {
			return time.Time{}, &ScheduleError{Message: fmt.Sprintf("unknown timezone %q", timezone)}
		}
	}

	instant, err := time.ParseInLocation(scheduleTimeLayout, value, loc)
	if err != nil {
		return time.Time{}, &ScheduleError{Message: fmt.Sprintf("invalid scheduled time %q", value)}
	}
	return instant, nil
}

// nextHalfHourSlotFinder is the default slot assignment: the next
// half-hour boundary at least ten minutes out.
type nextHalfHourSlotFinder struct {
	now func() time.Time
}

func NewDefaultSlotFinder() SlotFinder {
	return &nextHalfHourSlotFinder{now: time.Now}
}

func (f *nextHalfHourSlotFinder) NextAvailableSlot(ctx context.Context, workspaceID int64) (time.Time, error) {
	t := f.now().Add(10 * time.Minute)
	rounded := t.Truncate(30 * time.Minute)
	if rounded.Before(t) {
		rounded = rounded.Add(30 * time.Minute)
	}
	return rounded, nil
}
