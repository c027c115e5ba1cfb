package models

import "time"

// PostingHistory is an append-only record of every publish attempt.
type PostingHistory struct {
	ID             int64     `db:"id"`
	PostID         int64     `db:"post_id"`
	DestinationID  int64     `db:"destination_id"`
	AccountID      int64     `db:"account_id"`
	PlatformPostID string    `db:"platform_post_id"`
	ErrorMessage   string    `db:"error_message"`
	CreatedAt      time.Time `db:"created_at"`
}
