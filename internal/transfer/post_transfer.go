package transfer

// ThreadItem is one author-specified follow-up unit for platforms that
// support threads.
type ThreadItem struct {
	Content    string  `json:"content" validate:"required"`
	MediaIDs   []int64 `json:"media_ids"`
	AccountIDs []int64 `json:"account_ids"`
}

type DestinationRequest struct {
	AccountID       int64        `json:"account_id" validate:"required"`
	ContentOverride string       `json:"content_override"`
	Thread          []ThreadItem `json:"thread" validate:"dive"`
}

type PostCreation struct {
	Content          string               `json:"content"`
	Title            string               `json:"title"`
	MediaIDs         []int64              `json:"media_ids"`
	Destinations     []DestinationRequest `json:"destinations" validate:"required,min=1,dive"`
	ScheduledTime    string               `json:"scheduled_time"`
	Timezone         string               `json:"timezone"`
	AutoSchedule     bool                 `json:"auto_schedule"`
	RequiresApproval bool                 `json:"requires_approval"`
}

// PostUpdate carries the full replacement authoring state; the service
// re-prepares destinations and reconciles the queued job.
type PostUpdate struct {
	Content          string               `json:"content"`
	Title            string               `json:"title"`
	MediaIDs         []int64              `json:"media_ids"`
	Destinations     []DestinationRequest `json:"destinations" validate:"required,min=1,dive"`
	ScheduledTime    string               `json:"scheduled_time"`
	Timezone         string               `json:"timezone"`
	AutoSchedule     bool                 `json:"auto_schedule"`
	RequiresApproval bool                 `json:"requires_approval"`
}
