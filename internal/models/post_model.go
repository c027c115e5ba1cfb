package models

import (
	"database/sql"
	"time"
)

type Post struct {
	ID            int64         `db:"id" json:"id"`
	WorkspaceID   int64         `db:"workspace_id" json:"workspace_id"`
	AuthorID      int64         `db:"author_id" json:"author_id"`
	Content       string        `db:"content" json:"content"`
	Title         string        `db:"title" json:"title"`
	ContentType   string        `db:"content_type" json:"content_type"`
	Status        string        `db:"status" json:"status"`
	ScheduledTime sql.NullTime  `db:"scheduled_time" json:"scheduled_time"`
	Timezone      string        `db:"timezone" json:"timezone"`
	ParentPostID  sql.NullInt64 `db:"parent_post_id" json:"parent_post_id,omitempty"`
	CampaignID    sql.NullInt64 `db:"campaign_id" json:"campaign_id,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

const (
	ContentTypePost   = "post"
	ContentTypeThread = "thread"
)

const (
	PostStatusDraft           = "draft"
	PostStatusPendingApproval = "pending_approval"
	PostStatusScheduled       = "scheduled"
	PostStatusPublishing      = "publishing"
	PostStatusPublished       = "published"
	PostStatusPartial         = "partial"
	PostStatusFailed          = "failed"
)

// Editable reports whether the post may still be changed by the author.
// Once the executor has started work the content is frozen.
func (p *Post) Editable() bool {
	switch p.Status {
	case PostStatusDraft, PostStatusPendingApproval, PostStatusScheduled, PostStatusFailed:
		return true
	}
	return false
}
