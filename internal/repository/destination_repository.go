package repository

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/calvora/postpilot/internal/models"
)

type DestinationRepository interface {
	Create(ctx context.Context, tx *sql.Tx, d *models.PostDestination) (int64, error)
	GetByID(ctx context.Context, id int64) (*models.PostDestination, error)
	ListByPostID(ctx context.Context, postID int64) ([]*models.PostDestination, error)
	Claim(ctx context.Context, id int64) (bool, error)
	MarkSuccess(ctx context.Context, id int64, platformPostID string) error
	MarkFailed(ctx context.Context, id int64, errorMessage string) error
	SetPlatformPostID(ctx context.Context, id int64, platformPostID string) error
	CountByStatus(ctx context.Context, postID int64) (map[string]int, error)
	RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error
}

type destinationRepository struct {
	db *sql.DB
}

func NewDestinationRepository(db *sql.DB) DestinationRepository {
	return &destinationRepository{db: db}
}

const destinationColumns = `id, post_id, account_id, status, content_override, metadata, platform_post_id, error_message, published_at, created_at, updated_at`

func scanDestination(row interface{ Scan(...interface{}) error }) (*models.PostDestination, error) {
	var d models.PostDestination
	err := row.Scan(&d.ID, &d.PostID, &d.AccountID, &d.Status, &d.ContentOverride, &d.Metadata,
		&d.PlatformPostID, &d.ErrorMessage, &d.PublishedAt, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *destinationRepository) Create(ctx context.Context, tx *sql.Tx, d *models.PostDestination) (int64, error) {
	query := `
		INSERT INTO post_destinations (post_id, account_id, status, content_override, metadata)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`

	var id int64
	var err error

	args := []interface{}{d.PostID, d.AccountID, d.Status, d.ContentOverride, d.Metadata}

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

func (r *destinationRepository) GetByID(ctx context.Context, id int64) (*models.PostDestination, error) {
	query := `SELECT ` + destinationColumns + ` FROM post_destinations WHERE id = $1`
	d, err := scanDestination(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		slog.Info(err.Error())
		return nil, err
	}
	return d, nil
}

func (r *destinationRepository) ListByPostID(ctx context.Context, postID int64) ([]*models.PostDestination, error) {
	query := `SELECT ` + destinationColumns + ` FROM post_destinations WHERE post_id = $1 ORDER BY id`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	var destinations []*models.PostDestination
	for rows.Next() {
		d, err := scanDestination(rows)
		if err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		destinations = append(destinations, d)
	}
	return destinations, rows.Err()
}

// Claim conditionally transitions the destination into publishing. The
// WHERE clause on the current status makes this a compare-and-set: under
// concurrent workers exactly one caller sees an affected row and owns the
// destination. Never replace this with a read-then-write pair.
func (r *destinationRepository) Claim(ctx context.Context, id int64) (bool, error) {
	query := `
		UPDATE post_destinations
		SET status = $1, updated_at = $2
		WHERE id = $3 AND status IN ($4, $5)
	`
	res, err := r.db.ExecContext(ctx, query,
		models.DestinationStatusPublishing, time.Now(), id,
		models.DestinationStatusScheduled, models.DestinationStatusFailed)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *destinationRepository) MarkSuccess(ctx context.Context, id int64, platformPostID string) error {
	query := `
		UPDATE post_destinations
		SET status = $1, platform_post_id = $2, error_message = NULL, published_at = $3, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.DestinationStatusSuccess, platformPostID, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *destinationRepository) MarkFailed(ctx context.Context, id int64, errorMessage string) error {
	query := `
		UPDATE post_destinations
		SET status = $1, error_message = $2, updated_at = $3
		WHERE id = $4
	`
	_, err := r.db.ExecContext(ctx, query, models.DestinationStatusFailed, errorMessage, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// SetPlatformPostID records the root chunk's platform id as soon as it is
// known, before the rest of a thread chain is replayed.
func (r *destinationRepository) SetPlatformPostID(ctx context.Context, id int64, platformPostID string) error {
	query := `UPDATE post_destinations SET platform_post_id = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, platformPostID, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *destinationRepository) CountByStatus(ctx context.Context, postID int64) (map[string]int, error) {
	query := `SELECT status, COUNT(*) FROM post_destinations WHERE post_id = $1 GROUP BY status`
	rows, err := r.db.QueryContext(ctx, query, postID)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			slog.Info(err.Error())
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

func (r *destinationRepository) RemoveByPostID(ctx context.Context, tx *sql.Tx, postID int64) error {
	query := `DELETE FROM post_destinations WHERE post_id = $1`

	var err error
	if tx != nil {
		_, err = tx.ExecContext(ctx, query, postID)
	} else {
		_, err = r.db.ExecContext(ctx, query, postID)
	}
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
