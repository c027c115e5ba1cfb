package models

import "time"

type MediaAsset struct {
	ID              int64     `db:"id"`
	WorkspaceID     int64     `db:"workspace_id"`
	FileName        string    `db:"file_name"`
	MimeType        string    `db:"mime_type"`
	FileSize        int64     `db:"file_size"`
	FileURL         string    `db:"file_url"`
	ThumbnailURL    string    `db:"thumbnail_url"`
	Width           int       `db:"width"`
	Height          int       `db:"height"`
	DurationSeconds float64   `db:"duration_seconds"`
	CreatedAt       time.Time `db:"created_at"`
}

type PostMedia struct {
	PostID       int64     `db:"post_id"`
	AssetID      int64     `db:"asset_id"`
	DisplayOrder int       `db:"display_order"`
	CreatedAt    time.Time `db:"created_at"`
}
