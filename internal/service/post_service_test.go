package service

import (
	"bytes"
	"context"
	"errors"
	"mime/multipart"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/transfer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeaders(t *testing.T, name string, content []byte) []*multipart.FileHeader {
	t.Helper()

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile("files", name)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&buf, w.Boundary()).ReadForm(32 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["files"]
}

func editablePost(scheduledAt time.Time) *models.Post {
	return &models.Post{
		ID:       "p1",
		UserID:   7,
		Platform: models.PlatformInstagram,
		Params: []models.MediaItem{
			{
				FileType:     "image/jpeg",
				Kind:         models.MediaKindImage,
				ReadURL:      "https://cdn.example.com/a.jpg",
				TaggedPeople: []models.TaggedPerson{{Username: "old", X: 0.5, Y: 0.5}},
			},
		},
		Caption: "before",
		Scheduling: models.SchedulingParams{
			Status:      models.PostStatusScheduled,
			ScheduledAt: &scheduledAt,
		},
		JobID: "job-old",
	}
}

func TestUpdatePostRescheduleFailureClearsJobID(t *testing.T) {
	scheduledAt, err := time.Parse(scheduledTimeLayout, "2026-09-01T10:00")
	require.NoError(t, err)

	posts := newPostRepoStub(editablePost(scheduledAt))
	sched := &schedulerStub{scheduleErr: errors.New("queue unavailable")}
	svc := NewPostService(posts, &mediaStoreStub{}, sched)

	pu := &transfer.PostUpdate{
		Caption:       "after",
		ScheduledTime: "2026-09-02T10:00",
		KeptMedia:     []string{"https://cdn.example.com/a.jpg"},
	}

	err = svc.UpdatePost(context.Background(), 7, "p1", pu, nil)
	require.Error(t, err)

	// the cancelled job must not survive in the row
	assert.Equal(t, []string{"job-old"}, sched.cancelled)
	assert.Empty(t, posts.posts["p1"].JobID)

	// and the post stays deletable: no ghost job to cancel
	sched.cancelErr = errors.New("no such job")
	assert.NoError(t, svc.Remove(context.Background(), 7, "p1"))
}

func TestUpdatePostEditsKeptMediaTags(t *testing.T) {
	scheduledAt, err := time.Parse(scheduledTimeLayout, "2026-09-01T10:00")
	require.NoError(t, err)

	posts := newPostRepoStub(editablePost(scheduledAt))
	sched := &schedulerStub{}
	svc := NewPostService(posts, &mediaStoreStub{}, sched)

	pu := &transfer.PostUpdate{
		Caption:       "after",
		ScheduledTime: "2026-09-01T10:00",
		KeptMedia:     []string{"https://cdn.example.com/a.jpg"},
		KeptTags:      `{"https://cdn.example.com/a.jpg":[{"username":"zoe","x":0.1,"y":0.9},{"username":"","x":0.2,"y":0.2}]}`,
	}

	require.NoError(t, svc.UpdatePost(context.Background(), 7, "p1", pu, nil))

	stored := posts.posts["p1"]
	assert.Equal(t, "after", stored.Caption)
	require.Len(t, stored.Params, 1)
	assert.Equal(t, []models.TaggedPerson{{Username: "zoe", X: 0.1, Y: 0.9}}, stored.Params[0].TaggedPeople)

	// unchanged time means the job stays as it is
	assert.Empty(t, sched.cancelled)
	assert.Empty(t, sched.scheduled)
	assert.Equal(t, "job-old", stored.JobID)
}

func TestUpdatePostKeepsStoredTagsWithoutEdits(t *testing.T) {
	scheduledAt, err := time.Parse(scheduledTimeLayout, "2026-09-01T10:00")
	require.NoError(t, err)

	posts := newPostRepoStub(editablePost(scheduledAt))
	svc := NewPostService(posts, &mediaStoreStub{}, &schedulerStub{})

	pu := &transfer.PostUpdate{
		Caption:       "after",
		ScheduledTime: "2026-09-01T10:00",
		KeptMedia:     []string{"https://cdn.example.com/a.jpg"},
	}

	require.NoError(t, svc.UpdatePost(context.Background(), 7, "p1", pu, nil))

	stored := posts.posts["p1"]
	assert.Equal(t, []models.TaggedPerson{{Username: "old", X: 0.5, Y: 0.5}}, stored.Params[0].TaggedPeople)
}

func TestCreatePostRejectsUnknownFileType(t *testing.T) {
	svc := NewPostService(newPostRepoStub(), &mediaStoreStub{}, &schedulerStub{})

	files := fileHeaders(t, "mystery.bin", []byte("definitely not media content"))
	pc := &transfer.PostCreation{
		Caption:       "hello",
		ScheduledTime: "2026-09-01T10:00",
	}

	_, err := svc.CreatePost(context.Background(), 7, pc, files)
	require.Error(t, err)
	assert.Equal(t, "unsupported file type", err.Error())
}
