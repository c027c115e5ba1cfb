package models

import (
	"database/sql"
	"encoding/json"
	"time"
)

// PostDestination is one (post, social account) publishing unit with its
// own lifecycle, owned by its post.
type PostDestination struct {
	ID              int64          `db:"id" json:"id"`
	PostID          int64          `db:"post_id" json:"post_id"`
	AccountID       int64          `db:"account_id" json:"account_id"`
	Status          string         `db:"status" json:"status"`
	ContentOverride sql.NullString `db:"content_override" json:"content_override,omitempty"`
	Metadata        []byte         `db:"metadata" json:"metadata,omitempty"`
	PlatformPostID  sql.NullString `db:"platform_post_id" json:"platform_post_id,omitempty"`
	ErrorMessage    sql.NullString `db:"error_message" json:"error_message,omitempty"`
	PublishedAt     sql.NullTime   `db:"published_at" json:"published_at,omitempty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

const (
	DestinationStatusScheduled  = "scheduled"
	DestinationStatusPublishing = "publishing"
	DestinationStatusSuccess    = "success"
	DestinationStatusFailed     = "failed"
)

// ThreadChunk is one follow-up unit of a thread chain. AccountIDs, when
// non-empty, restricts the chunk to those destinations.
type ThreadChunk struct {
	Content    string  `json:"content"`
	MediaIDs   []int64 `json:"media_ids,omitempty"`
	AccountIDs []int64 `json:"account_ids,omitempty"`
}

// DestinationMetadata is the opaque structured payload stored on a
// destination row. The thread chain inside it is immutable once written
// and consumed strictly in order during execution.
type DestinationMetadata struct {
	FinalContent string        `json:"final_content,omitempty"`
	ThreadChain  []ThreadChunk `json:"thread_chain,omitempty"`
}

func (d *PostDestination) DecodeMetadata() (*DestinationMetadata, error) {
	var md DestinationMetadata
	if len(d.Metadata) == 0 {
		return &md, nil
	}
	if err := json.Unmarshal(d.Metadata, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

func (md *DestinationMetadata) Encode() ([]byte, error) {
	return json.Marshal(md)
}

// AppliesTo reports whether the chunk's optional account restriction
// admits the given destination account.
func (c *ThreadChunk) AppliesTo(accountID int64) bool {
	if len(c.AccountIDs) == 0 {
		return true
	}
	for _, id := range c.AccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}
