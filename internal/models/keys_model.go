package models

import "time"

type ApiKey struct {
	ID          int64     `db:"id"`
	WorkspaceID int64     `db:"workspace_id"`
	KeyName     string    `db:"key_name"`
	ApiKey      string    `db:"api_key"`
	CreatedAt   time.Time `db:"created_at"`
}
