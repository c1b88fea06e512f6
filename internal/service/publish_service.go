package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
)

const (
	pollInitialInterval = 2 * time.Second
	pollMaxInterval     = 30 * time.Second
	pollBudget          = 10 * time.Minute
)

// PublishService turns a post into one published Graph media object.
// Publish covers container creation through media_publish; Cleanup removes
// the staged files afterwards, best-effort.
type PublishService interface {
	Publish(ctx context.Context, post *models.Post, accessToken string) (string, error)
	Cleanup(ctx context.Context, post *models.Post) []CleanupFailure
}

type publishService struct {
	graph GraphClient
	store MediaStore

	initialInterval time.Duration
	maxInterval     time.Duration
	budget          time.Duration
	sleep           func(ctx context.Context, d time.Duration) error
}

func NewPublishService(graph GraphClient, store MediaStore) PublishService {
	return &publishService{
		graph:           graph,
		store:           store,
		initialInterval: pollInitialInterval,
		maxInterval:     pollMaxInterval,
		budget:          pollBudget,
		sleep:           sleepContext,
	}
}

// Publish runs the container pipeline for one post. Child containers are
// created one at a time in params order; a single failure aborts the whole
// post with nothing published. Already-created containers on the provider
// side are not rolled back.
func (s *publishService) Publish(ctx context.Context, post *models.Post, accessToken string) (string, error) {
	if len(post.Params) == 0 {
		return "", &ValidationError{Reason: "post has no media"}
	}

	accountID, err := s.graph.ResolveAccountID(ctx, accessToken)
	if err != nil {
		return "", err
	}

	var containerID string
	if len(post.Params) > 1 {
		children := make([]string, 0, len(post.Params))
		for _, item := range post.Params {
			childID, err := s.graph.CreateContainer(ctx, accountID, accessToken, item, "", true)
			if err != nil {
				return "", err
			}
			children = append(children, childID)
		}

		containerID, err = s.graph.CreateCarouselContainer(ctx, accountID, accessToken, post.Caption, children)
		if err != nil {
			return "", err
		}
	} else {
		containerID, err = s.graph.CreateContainer(ctx, accountID, accessToken, post.Params[0], post.Caption, false)
		if err != nil {
			return "", err
		}
	}

	if post.HasVideo() {
		if err := s.waitForContainer(ctx, containerID, accessToken); err != nil {
			return "", err
		}
	}

	mediaID, err := s.graph.PublishContainer(ctx, accountID, containerID, accessToken)
	if err != nil {
		return "", err
	}
	if mediaID == "" {
		return "", ErrPublishFailed
	}

	return mediaID, nil
}

// waitForContainer polls until the container leaves IN_PROGRESS. The
// interval starts at 2s and doubles up to a cap; the whole wait is bounded
// so a stuck container surfaces as VideoProcessingTimeout instead of
// looping forever.
func (s *publishService) waitForContainer(ctx context.Context, containerID, accessToken string) error {
	interval := s.initialInterval
	started := time.Now()

	for {
		if err := s.sleep(ctx, interval); err != nil {
			return err
		}

		status, err := s.graph.GetContainerStatus(ctx, containerID, accessToken)
		if err != nil {
			return err
		}

		switch status.Code {
		case ContainerStatusInProgress:
			// keep waiting
		case ContainerStatusError, ContainerStatusExpired:
			return &VideoProcessingError{ContainerID: containerID, Code: status.Code, Status: status.Status}
		default:
			return nil
		}

		if time.Since(started) >= s.budget {
			return &VideoProcessingTimeout{ContainerID: containerID, Waited: time.Since(started)}
		}

		interval *= 2
		if interval > s.maxInterval {
			interval = s.maxInterval
		}
	}
}

// Cleanup deletes every staged media object. A single failure never blocks
// the remaining deletions; failures come back as structured results so the
// caller can surface them.
func (s *publishService) Cleanup(ctx context.Context, post *models.Post) []CleanupFailure {
	var failures []CleanupFailure
	for _, item := range post.Params {
		if err := s.store.Delete(ctx, item.ReadURL); err != nil {
			slog.Warn("media cleanup failed", "url", item.ReadURL, "error", err)
			failures = append(failures, CleanupFailure{URL: item.ReadURL, Err: err})
		}
	}
	return failures
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
