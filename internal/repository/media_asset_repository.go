package repository

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/calvora/postpilot/internal/models"
	"github.com/lib/pq"
)

type MediaAssetRepository interface {
	Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error)
	GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.MediaAsset, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.MediaAsset, error)
}

type mediaAssetRepository struct {
	db *sql.DB
}

func NewMediaAssetRepository(db *sql.DB) MediaAssetRepository {
	return &mediaAssetRepository{db: db}
}

const mediaAssetColumns = `id, workspace_id, file_name, mime_type, file_size, file_url, thumbnail_url, width, height, duration_seconds, created_at`

func scanMediaAsset(row interface{ Scan(...interface{}) error }) (*models.MediaAsset, error) {
	var ma models.MediaAsset
	err := row.Scan(&ma.ID, &ma.WorkspaceID, &ma.FileName, &ma.MimeType, &ma.FileSize,
		&ma.FileURL, &ma.ThumbnailURL, &ma.Width, &ma.Height, &ma.DurationSeconds, &ma.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &ma, nil
}

func (r *mediaAssetRepository) Create(ctx context.Context, tx *sql.Tx, ma *models.MediaAsset) (int64, error) {
	query := `
		INSERT INTO media_assets (workspace_id, file_name, mime_type, file_size, file_url, thumbnail_url, width, height, duration_seconds)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`

	var id int64
	var err error

	args := []interface{}{ma.WorkspaceID, ma.FileName, ma.MimeType, ma.FileSize,
		ma.FileURL, ma.ThumbnailURL, ma.Width, ma.Height, ma.DurationSeconds}

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

// GetByIDs fetches every referenced descriptor in a single query so the
// preparer can validate N destinations without N+1 lookups.
func (r *mediaAssetRepository) GetByIDs(ctx context.Context, ids []int64) (map[int64]*models.MediaAsset, error) {
	assets := make(map[int64]*models.MediaAsset, len(ids))
	if len(ids) == 0 {
		return assets, nil
	}

	query := `SELECT ` + mediaAssetColumns + ` FROM media_assets WHERE id = ANY($1)`
	rows, err := r.db.QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		ma, err := scanMediaAsset(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		assets[ma.ID] = ma
	}
	return assets, rows.Err()
}

func (r *mediaAssetRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.MediaAsset, error) {
	query := `
		SELECT m.id, m.workspace_id, m.file_name, m.mime_type, m.file_size, m.file_url, m.thumbnail_url, m.width, m.height, m.duration_seconds, m.created_at
		FROM media_assets m
		JOIN post_media pm ON pm.asset_id = m.id
		WHERE pm.post_id = $1
		ORDER BY pm.display_order
	`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var assets []*models.MediaAsset
	for rows.Next() {
		ma, err := scanMediaAsset(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		assets = append(assets, ma)
	}
	return assets, rows.Err()
}
