package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"time"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/types"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
)

const scheduledTimeLayout = "2006-01-02T15:04"

type PostService interface {
	CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (string, error)
	UpdatePost(ctx context.Context, userID int64, postID string, pu *transfer.PostUpdate, files []*multipart.FileHeader) error
	List(ctx context.Context, userID int64) ([]*models.Post, error)
	PostInfo(ctx context.Context, postID string, userID int64) (*models.Post, error)
	Remove(ctx context.Context, userID int64, postID string) error
}

type postService struct {
	pr        repository.PostRepository
	store     MediaStore
	scheduler Scheduler
}

func NewPostService(pr repository.PostRepository, store MediaStore, scheduler Scheduler) PostService {
	return &postService{
		pr:        pr,
		store:     store,
		scheduler: scheduler,
	}
}

// CreatePost stages the uploaded media, persists the post as scheduled and
// registers the job that will publish it.
func (s *postService) CreatePost(ctx context.Context, userID int64, pc *transfer.PostCreation, files []*multipart.FileHeader) (string, error) {
	if pc == nil {
		err := errors.New("post creation data is nil")
		slog.Error(err.Error())
		return "", err
	}
	if len(files) == 0 {
		err := errors.New("no files provided for the post")
		slog.Error(err.Error())
		return "", err
	}

	scheduledTime, err := time.Parse(scheduledTimeLayout, pc.ScheduledTime)
	if err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return "", err
	}

	tags, err := parseTags(pc.Tags, len(files))
	if err != nil {
		slog.Error(err.Error())
		return "", err
	}

	params, err := s.stageMedia(ctx, files, tags)
	if err != nil {
		return "", err
	}

	postID, err := gonanoid.New()
	if err != nil {
		slog.Error(err.Error())
		return "", err
	}

	post := models.Post{
		ID:       postID,
		UserID:   userID,
		Platform: models.PlatformInstagram,
		Params:   params,
		Caption:  pc.Caption,
		Scheduling: models.SchedulingParams{
			Status:      models.PostStatusScheduled,
			ScheduledAt: &scheduledTime,
		},
	}

	if err := s.pr.Create(ctx, nil, &post); err != nil {
		return "", fmt.Errorf("error creating post: %w", err)
	}

	jobID, err := s.scheduler.Schedule(postID, scheduledTime)
	if err != nil {
		return "", fmt.Errorf("error scheduling post: %w", err)
	}
	if err := s.pr.SetJobID(ctx, postID, jobID); err != nil {
		return "", fmt.Errorf("error saving job id: %w", err)
	}

	return postID, nil
}

// UpdatePost rewrites a still-scheduled post: caption, media set and order,
// tags and the scheduled time can all change. When the time changes the
// old job is cancelled and a new one registered.
func (s *postService) UpdatePost(ctx context.Context, userID int64, postID string, pu *transfer.PostUpdate, files []*multipart.FileHeader) error {
	post, err := s.ownedPost(ctx, postID, userID)
	if err != nil {
		return err
	}
	if post.Scheduling.Status != models.PostStatusScheduled {
		err = errors.New("only scheduled posts can be edited")
		slog.Info(err.Error())
		return err
	}

	scheduledTime, err := time.Parse(scheduledTimeLayout, pu.ScheduledTime)
	if err != nil {
		err = fmt.Errorf("invalid scheduled time format: %w", err)
		slog.Error(err.Error())
		return err
	}

	kept := make(map[string]struct{}, len(pu.KeptMedia))
	for _, u := range pu.KeptMedia {
		kept[u] = struct{}{}
	}

	byURL := make(map[string]models.MediaItem, len(post.Params))
	for _, item := range post.Params {
		byURL[item.ReadURL] = item
	}

	keptTags, err := parseKeptTags(pu.KeptTags)
	if err != nil {
		slog.Error(err.Error())
		return err
	}

	// Retained items first, in the order the caller gave, then new uploads.
	params := make([]models.MediaItem, 0, len(pu.KeptMedia)+len(files))
	for _, u := range pu.KeptMedia {
		item, ok := byURL[u]
		if !ok {
			err := fmt.Errorf("media %s does not belong to post %s", u, postID)
			slog.Info(err.Error())
			return err
		}
		if edited, ok := keptTags[u]; ok {
			item.TaggedPeople = models.PruneIncompleteTags(edited)
		}
		params = append(params, item)
	}

	tags, err := parseTags(pu.Tags, len(files))
	if err != nil {
		slog.Error(err.Error())
		return err
	}
	staged, err := s.stageMedia(ctx, files, tags)
	if err != nil {
		return err
	}
	params = append(params, staged...)

	if len(params) == 0 {
		err := errors.New("a post needs at least one media item")
		slog.Info(err.Error())
		return err
	}

	timeChanged := post.Scheduling.ScheduledAt == nil || !post.Scheduling.ScheduledAt.Equal(scheduledTime)
	if timeChanged && post.JobID != "" {
		if err := s.scheduler.Cancel(post.JobID); err != nil {
			return fmt.Errorf("error cancelling scheduled job: %w", err)
		}
		// The job is gone; the row must stop referencing it even if the
		// rest of the edit fails.
		if err := s.pr.SetJobID(ctx, postID, ""); err != nil {
			return fmt.Errorf("error clearing job id: %w", err)
		}
		post.JobID = ""
	}

	post.Params = params
	post.Caption = pu.Caption
	post.Scheduling.ScheduledAt = &scheduledTime

	if timeChanged {
		jobID, err := s.scheduler.Schedule(postID, scheduledTime)
		if err != nil {
			return fmt.Errorf("error rescheduling post: %w", err)
		}
		post.JobID = jobID
	}

	if err := s.pr.Update(ctx, post); err != nil {
		return fmt.Errorf("error updating post: %w", err)
	}

	// Dropped media files go last so a storage hiccup never loses the edit.
	for url, item := range byURL {
		if _, ok := kept[url]; ok {
			continue
		}
		if err := s.store.Delete(ctx, item.ReadURL); err != nil {
			slog.Warn("failed to delete removed media", "url", item.ReadURL, "error", err)
		}
	}

	return nil
}

func (s *postService) PostInfo(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	return s.ownedPost(ctx, postID, userID)
}

func (s *postService) List(ctx context.Context, userID int64) ([]*models.Post, error) {
	posts, err := s.pr.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing posts")
	}
	return posts, nil
}

// Remove is the explicit multi-step delete: cancel the external job (fatal
// on failure, a dangling job would fire against a deleted post), delete
// the stored files, then the row.
func (s *postService) Remove(ctx context.Context, userID int64, postID string) error {
	post, err := s.ownedPost(ctx, postID, userID)
	if err != nil {
		return err
	}

	if post.JobID != "" {
		if err := s.scheduler.Cancel(post.JobID); err != nil {
			return fmt.Errorf("error cancelling scheduled job: %w", err)
		}
	}

	for _, item := range post.Params {
		if err := s.store.Delete(ctx, item.ReadURL); err != nil {
			slog.Warn("failed to delete media file", "url", item.ReadURL, "error", err)
		}
	}

	if err := s.pr.Remove(ctx, postID); err != nil {
		return fmt.Errorf("error removing post")
	}
	return nil
}

func (s *postService) ownedPost(ctx context.Context, postID string, userID int64) (*models.Post, error) {
	var err error

	if userID == 0 {
		err = errors.New("user is not valid")
		slog.Info(err.Error())
		return nil, err
	}
	if postID == "" {
		err = errors.New("post id is not valid")
		slog.Info(err.Error())
		return nil, err
	}

	isValid, err := s.pr.CheckByUserID(ctx, postID, userID)
	if err != nil {
		return nil, err
	}
	if !isValid {
		err = errors.New("post doesn't exist")
		slog.Info(err.Error())
		return nil, err
	}

	return s.pr.GetByID(ctx, postID)
}

var allowedExtensions = map[string]struct{}{
	"mp4": {}, "mov": {}, "jpeg": {}, "png": {}, "jpg": {},
}

// stageMedia sniffs, uploads and describes each file. tags is aligned to
// files by index; incomplete tag entries are pruned before anything is
// persisted.
func (s *postService) stageMedia(ctx context.Context, files []*multipart.FileHeader, tags [][]models.TaggedPerson) ([]models.MediaItem, error) {
	params := make([]models.MediaItem, 0, len(files))

	for i, file := range files {
		fileContent, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("error opening file: %w", err)
		}

		fileBytes, err := io.ReadAll(fileContent)
		fileContent.Close()
		if err != nil {
			return nil, fmt.Errorf("error reading file content: %w", err)
		}

		fileType, err := filetype.Match(fileBytes)
		if err != nil {
			return nil, fmt.Errorf("error detecting file type: %w", err)
		}
		if fileType == types.Unknown {
			return nil, errors.New("unsupported file type")
		}
		if _, ok := allowedExtensions[fileType.Extension]; !ok {
			return nil, fmt.Errorf("file type %s is not allowed", fileType.Extension)
		}

		key, err := gonanoid.New()
		if err != nil {
			return nil, err
		}

		mime := fileType.MIME.Value
		readURL, err := s.store.Upload(ctx, key, fileBytes, mime)
		if err != nil {
			return nil, fmt.Errorf("error uploading file: %w", err)
		}

		item := models.MediaItem{
			FileType: mime,
			Kind:     models.ClassifyMediaKind(mime),
			ReadURL:  readURL,
		}
		if i < len(tags) {
			item.TaggedPeople = models.PruneIncompleteTags(tags[i])
		}
		params = append(params, item)
	}

	return params, nil
}

// parseKeptTags decodes edited tags for retained media, keyed by read URL.
// URLs absent from the map keep their stored tags.
func parseKeptTags(raw string) (map[string][]models.TaggedPerson, error) {
	if raw == "" {
		return nil, nil
	}
	var tags map[string][]models.TaggedPerson
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("invalid kept tags format: %w", err)
	}
	return tags, nil
}

func parseTags(raw string, fileCount int) ([][]models.TaggedPerson, error) {
	if raw == "" {
		return nil, nil
	}
	var tags [][]models.TaggedPerson
	if err := json.Unmarshal([]byte(raw), &tags); err != nil {
		return nil, fmt.Errorf("invalid tags format: %w", err)
	}
	if len(tags) > fileCount {
		return nil, fmt.Errorf("got tags for %d files but only %d were uploaded", len(tags), fileCount)
	}
	return tags, nil
}
