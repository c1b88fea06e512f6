package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

type PostRepository interface {
	Create(ctx context.Context, tx *sql.Tx, post *models.Post) error
	GetByID(ctx context.Context, id string) (*models.Post, error)
	ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	UpdateStatus(ctx context.Context, id, status string) error
	SetJobID(ctx context.Context, id, jobID string) error
	TryMarkPublishing(ctx context.Context, id string) (bool, error)
	ClearPublishing(ctx context.Context, id string) error
	CheckByUserID(ctx context.Context, id string, userID int64) (bool, error)
	Remove(ctx context.Context, id string) error
}

type postRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) PostRepository {
	return &postRepository{db: db}
}

const postColumns = `id, user_id, platform, params, caption, schedule_status, scheduled_at, job_id, publishing, created_at, updated_at`

func (r *postRepository) Create(ctx context.Context, tx *sql.Tx, post *models.Post) error {
	params, err := json.Marshal(post.Params)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		INSERT INTO posts (id, user_id, platform, params, caption, schedule_status, scheduled_at, job_id, publishing)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, false)
	`

	args := []interface{}{
		post.ID,
		post.UserID,
		post.Platform,
		params,
		post.Caption,
		post.Scheduling.Status,
		post.Scheduling.ScheduledAt,
		post.JobID,
	}

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

func scanPost(row interface{ Scan(...interface{}) error }) (*models.Post, error) {
	var post models.Post
	var params []byte
	var scheduledAt sql.NullTime
	var jobID sql.NullString

	err := row.Scan(&post.ID, &post.UserID, &post.Platform, &params, &post.Caption,
		&post.Scheduling.Status, &scheduledAt, &jobID, &post.Publishing,
		&post.CreatedAt, &post.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(params, &post.Params); err != nil {
		return nil, err
	}
	if scheduledAt.Valid {
		t := scheduledAt.Time
		post.Scheduling.ScheduledAt = &t
	}
	if jobID.Valid {
		post.JobID = jobID.String
	}

	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id string) (*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		slog.Info(err.Error())
		return nil, err
	}
	return post, nil
}

func (r *postRepository) ListByUserID(ctx context.Context, userID int64) ([]*models.Post, error) {
	query := `SELECT ` + postColumns + ` FROM posts WHERE user_id = $1`
	rows, err := r.db.QueryContext(ctx, query, userID)
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
	if err = rows.Err(); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return posts, nil
}

// Update has full-row replace semantics; the caller supplies the merged post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	params, err := json.Marshal(post.Params)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	query := `
		UPDATE posts
		SET params = $1,
			caption = $2,
			schedule_status = $3,
			scheduled_at = $4,
			job_id = $5,
			updated_at = $6
		WHERE id = $7
	`
	result, err := r.db.ExecContext(ctx, query, params, post.Caption,
		post.Scheduling.Status, post.Scheduling.ScheduledAt, post.JobID, time.Now(), post.ID)
	if err != nil {
		slog.Info(err.Error())
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *postRepository) UpdateStatus(ctx context.Context, id, status string) error {
	query := `
		UPDATE posts
		SET schedule_status = $1,
			updated_at = $2
		WHERE id = $3
	`
	_, err := r.db.ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) SetJobID(ctx context.Context, id, jobID string) error {
	query := `UPDATE posts SET job_id = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, jobID, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

// TryMarkPublishing takes the per-post publish lock. It returns false when
// another publish attempt already holds it.
func (r *postRepository) TryMarkPublishing(ctx context.Context, id string) (bool, error) {
	query := `
		UPDATE posts
		SET publishing = true,
			updated_at = $1
		WHERE id = $2 AND publishing = false
	`
	result, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		slog.Info(err.Error())
		return false, err
	}
	return affected == 1, nil
}

func (r *postRepository) ClearPublishing(ctx context.Context, id string) error {
	query := `UPDATE posts SET publishing = false, updated_at = $1 WHERE id = $2`
	_, err := r.db.ExecContext(ctx, query, time.Now(), id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}

func (r *postRepository) CheckByUserID(ctx context.Context, id string, userID int64) (bool, error) {
	query := `SELECT 1 FROM posts WHERE id = $1 AND user_id = $2`

	var result int
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(&result)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		slog.Info(err.Error())
		return false, err
	}
	return result == 1, nil
}

func (r *postRepository) Remove(ctx context.Context, id string) error {
	query := `DELETE FROM posts WHERE id = $1`
	_, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		slog.Info(err.Error())
		return err
	}
	return nil
}
