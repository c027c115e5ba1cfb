package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/calvora/postpilot/internal/models"
)

type PostRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Post, error)
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error)
	GetByWorkspaceID(ctx context.Context, workspaceID int64) ([]*models.Post, error)
	ListDue(ctx context.Context, cutoff time.Time) ([]*models.Post, error)
	UpdateStatus(ctx context.Context, status string, postID int64) error
	UpdateContent(ctx context.Context, tx *sql.Tx, postID int64, content, title string, scheduledTime sql.NullTime, status string) error
	CheckByWorkspaceID(ctx context.Context, postID, workspaceID int64) (bool, error)
	Remove(ctx context.Context, id int64) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, workspace_id, author_id, content, title, content_type, status, scheduled_time, timezone, parent_post_id, campaign_id, created_at, updated_at`

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	err := row.Scan(&post.ID, &post.WorkspaceID, &post.AuthorID, &post.Content, &post.Title, &post.ContentType,
		&post.Status, &post.ScheduledTime, &post.Timezone, &post.ParentPostID, &post.CampaignID,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) (int64, error) {
	query := `
		INSERT INTO posts (workspace_id, author_id, content, title, content_type, status, scheduled_time, timezone, parent_post_id, campaign_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`

	var id int64
	var err error

	args := []interface{}{post.WorkspaceID, post.AuthorID, post.Content, post.Title, post.ContentType,
		post.Status, post.ScheduledTime, post.Timezone, post.ParentPostID, post.CampaignID}

	if tx != nil {
		err = tx.QueryRowContext(ctx, query, args...).Scan(&id)
	} else {
		err = r.db.QueryRowContext(ctx, query, args...).Scan(&id)
	}
	if err != nil {
		slog.Info(err.Error())
		return 0, err
	}

	return id, nil
}

func (r *postRepository) GetByID(ctx context.Context, id int64) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) GetByWorkspaceID(ctx context.Context, workspaceID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE workspace_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query, workspaceID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// ListDue returns scheduled posts whose target instant has passed. Used
// by the sweeper to re-enqueue work whose queue entry was lost.
func (r *postRepository) ListDue(ctx context.Context, cutoff time.Time) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE status = $1 AND scheduled_time IS NOT NULL AND scheduled_time <= $2`
	rows, err := r.db.QueryContext(ctx, query, models.PostStatusScheduled, cutoff)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var posts []*models.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *postRepository) UpdateStatus(ctx context.Context, status string, postID int64) error {
	query := `UPDATE posts SET status = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), postID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) UpdateContent(ctx context.Context, tx *sql.Tx, postID int64, content, title string, scheduledTime sql.NullTime, status string) error {
	query := `UPDATE posts SET content = $1, title = $2, scheduled_time = $3, status = $4, updated_at = $5 WHERE id = $6`

	var err error
	args := []interface{}{content, title, scheduledTime, status, time.Now(), postID}

	if tx != nil {
		_, err = tx.ExecContext(ctx, query, args...)
	} else {
		_, err = r.db.ExecContext(ctx, query, args...)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByWorkspaceID(ctx context.Context, postID, workspaceID int64) (bool, error) {
	query := `SELECT 1 FROM posts WHERE id = $1 AND workspace_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, postID, workspaceID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}

	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
