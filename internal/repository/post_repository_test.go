package repository

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockPostRepository(t *testing.T) (PostRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostRepository(db), mock
}

func postRows(t *testing.T, post *models.Post) *sqlmock.Rows {
	t.Helper()
	params, err := json.Marshal(post.Params)
	require.NoError(t, err)

	var scheduledAt interface{}
	if post.Scheduling.ScheduledAt != nil {
		scheduledAt = *post.Scheduling.ScheduledAt
	}

	rows := sqlmock.NewRows([]string{
		"id", "user_id", "platform", "params", "caption",
		"schedule_status", "scheduled_at", "job_id", "publishing",
		"created_at", "updated_at",
	})
	rows.AddRow(post.ID, post.UserID, post.Platform, params, post.Caption,
		post.Scheduling.Status, scheduledAt, post.JobID, post.Publishing,
		post.CreatedAt, post.UpdatedAt)
	return rows
}

func TestPostRepositoryGetByIDRoundTripsTags(t *testing.T) {
	repo, mock := newMockPostRepository(t)

	scheduledAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	stored := &models.Post{
		ID:       "p1",
		UserID:   7,
		Platform: models.PlatformInstagram,
		Params: []models.MediaItem{
			{
				FileType: "image/jpeg",
				Kind:     models.MediaKindImage,
				ReadURL:  "https://cdn.example.com/a.jpg",
				TaggedPeople: []models.TaggedPerson{
					{Username: "a", X: 0.3, Y: 0.7},
				},
			},
			{
				FileType: "video/mp4",
				Kind:     models.MediaKindVideo,
				ReadURL:  "https://cdn.example.com/b.mp4",
				TaggedPeople: []models.TaggedPerson{
					{Username: "b"},
				},
			},
		},
		Caption: "round trip",
		Scheduling: models.SchedulingParams{
			Status:      models.PostStatusScheduled,
			ScheduledAt: &scheduledAt,
		},
		JobID:     "job-1",
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + postColumns + ` FROM posts WHERE id = $1`)).
		WithArgs("p1").
		WillReturnRows(postRows(t, stored))

	got, err := repo.GetByID(context.Background(), "p1")
	require.NoError(t, err)

	// tag coordinates must survive the params column untouched
	assert.Equal(t, stored.Params, got.Params)
	assert.Equal(t, 0.3, got.Params[0].TaggedPeople[0].X)
	assert.Equal(t, 0.7, got.Params[0].TaggedPeople[0].Y)
	assert.Equal(t, "job-1", got.JobID)
	require.NotNil(t, got.Scheduling.ScheduledAt)
	assert.True(t, got.Scheduling.ScheduledAt.Equal(scheduledAt))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMockPostRepository(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT ` + postColumns + ` FROM posts WHERE id = $1`)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryTryMarkPublishing(t *testing.T) {
	repo, mock := newMockPostRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts`)).
		WithArgs(sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	locked, err := repo.TryMarkPublishing(context.Background(), "p1")
	require.NoError(t, err)
	assert.True(t, locked)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts`)).
		WithArgs(sqlmock.AnyArg(), "p1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	locked, err = repo.TryMarkPublishing(context.Background(), "p1")
	require.NoError(t, err)
	assert.False(t, locked, "held lock is not re-acquired")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryUpdateNotFound(t *testing.T) {
	repo, mock := newMockPostRepository(t)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE posts`)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.Post{ID: "missing"})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepositoryCreate(t *testing.T) {
	repo, mock := newMockPostRepository(t)

	post := &models.Post{
		ID:       "p1",
		UserID:   7,
		Platform: models.PlatformInstagram,
		Params:   []models.MediaItem{{FileType: "image/png", Kind: models.MediaKindImage, ReadURL: "https://cdn.example.com/a.png"}},
		Caption:  "hello",
		Scheduling: models.SchedulingParams{
			Status: models.PostStatusDraft,
		},
	}
	params, err := json.Marshal(post.Params)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO posts`)).
		WithArgs(post.ID, post.UserID, post.Platform, params, post.Caption,
			post.Scheduling.Status, nil, post.JobID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), nil, post))
	assert.NoError(t, mock.ExpectationsWereMet())
}
