package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/pkg/utils"
)

// Scheduler registers an external invocation that will run the scheduled
// publish path for a post at or after the given time, at least once.
type Scheduler interface {
	Schedule(postID string, runAt time.Time) (string, error)
	Cancel(jobID string) error
}

// PublishDriver owns the two publish entry points. It is the only layer
// that decides user-visible failure behavior; everything below it just
// propagates errors.
type PublishDriver struct {
	posts     repository.PostRepository
	accounts  repository.SocialAccountRepository
	publisher PublishService
	graph     GraphClient
	scheduler Scheduler
	secretKey string
}

func NewPublishDriver(
	posts repository.PostRepository,
	accounts repository.SocialAccountRepository,
	publisher PublishService,
	graph GraphClient,
	scheduler Scheduler,
	secretKey string) *PublishDriver {
	return &PublishDriver{
		posts:     posts,
		accounts:  accounts,
		publisher: publisher,
		graph:     graph,
		scheduler: scheduler,
		secretKey: secretKey,
	}
}

// PublishNow is the interactive path. The post may be transient (no row)
// or a persisted one; persisted posts take the publish lock first so a
// racing scheduled run cannot double-publish. Status flips to posted right
// after the publish call, before cleanup.
func (d *PublishDriver) PublishNow(ctx context.Context, userID int64, post *models.Post) (*GraphMedia, error) {
	if post == nil || len(post.Params) == 0 {
		return nil, &ValidationError{Reason: "post has no media"}
	}

	accessToken, err := d.accountToken(ctx, userID)
	if err != nil {
		return nil, err
	}

	persisted := post.ID != ""
	if persisted {
		locked, err := d.posts.TryMarkPublishing(ctx, post.ID)
		if err != nil {
			return nil, err
		}
		if !locked {
			return nil, &ValidationError{Reason: "a publish attempt for this post is already running"}
		}
		defer func() {
			if err := d.posts.ClearPublishing(context.WithoutCancel(ctx), post.ID); err != nil {
				slog.Warn("failed to release publish lock", "post_id", post.ID, "error", err)
			}
		}()
	}

	mediaID, err := d.publisher.Publish(ctx, post, accessToken)
	if err != nil {
		return nil, err
	}

	if persisted {
		if err := d.posts.UpdateStatus(ctx, post.ID, models.PostStatusPosted); err != nil {
			slog.Error("post published but status update failed", "post_id", post.ID, "error", err)
		}
		if post.JobID != "" {
			if err := d.scheduler.Cancel(post.JobID); err != nil {
				slog.Warn("failed to cancel scheduled job after interactive publish", "job_id", post.JobID, "error", err)
			} else if err := d.posts.SetJobID(ctx, post.ID, ""); err != nil {
				slog.Warn("failed to clear job id", "post_id", post.ID, "error", err)
			}
		}
	}

	if failures := d.publisher.Cleanup(ctx, post); len(failures) > 0 {
		slog.Warn("some media files were not cleaned up", "post_id", post.ID, "count", len(failures))
	}

	media, err := d.graph.GetMedia(ctx, mediaID, accessToken)
	if err != nil {
		// The publish succeeded; metadata is a nicety for the success view.
		slog.Warn("failed to fetch published media metadata", "media_id", mediaID, "error", err)
		return &GraphMedia{ID: mediaID}, nil
	}
	return media, nil
}

// PublishScheduled is the cron-invoked path. Any validation mismatch is a
// fatal abort with zero Graph calls; an upstream failure leaves the post
// scheduled for manual retry. Cleanup runs before the status flip.
func (d *PublishDriver) PublishScheduled(ctx context.Context, postID string) error {
	post, err := d.posts.GetByID(ctx, postID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return &ValidationError{Reason: "post not found: " + postID}
		}
		return err
	}

	if post.Scheduling.Status != models.PostStatusScheduled {
		return &ValidationError{Reason: "post is not scheduled, status is " + post.Scheduling.Status}
	}
	if post.Scheduling.ScheduledAt == nil || !sameCalendarDay(*post.Scheduling.ScheduledAt, time.Now()) {
		return &ValidationError{Reason: "post is not scheduled for today"}
	}
	if len(post.Params) == 0 {
		return &ValidationError{Reason: "post has no media"}
	}

	accessToken, err := d.accountToken(ctx, post.UserID)
	if err != nil {
		return err
	}

	locked, err := d.posts.TryMarkPublishing(ctx, post.ID)
	if err != nil {
		return err
	}
	if !locked {
		return &ValidationError{Reason: "a publish attempt for this post is already running"}
	}
	defer func() {
		if err := d.posts.ClearPublishing(context.WithoutCancel(ctx), post.ID); err != nil {
			slog.Warn("failed to release publish lock", "post_id", post.ID, "error", err)
		}
	}()

	if _, err := d.publisher.Publish(ctx, post, accessToken); err != nil {
		return err
	}

	if failures := d.publisher.Cleanup(ctx, post); len(failures) > 0 {
		slog.Warn("some media files were not cleaned up", "post_id", post.ID, "count", len(failures))
	}

	if err := d.posts.UpdateStatus(ctx, post.ID, models.PostStatusPosted); err != nil {
		return err
	}
	if err := d.posts.SetJobID(ctx, post.ID, ""); err != nil {
		slog.Warn("failed to clear job id", "post_id", post.ID, "error", err)
	}

	return nil
}

func (d *PublishDriver) accountToken(ctx context.Context, userID int64) (string, error) {
	return accountAccessToken(ctx, d.accounts, d.secretKey, userID)
}

// accountAccessToken loads the user's connected account and decrypts its
// stored access token.
func accountAccessToken(ctx context.Context, accounts repository.SocialAccountRepository, secretKey string, userID int64) (string, error) {
	account, err := accounts.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", &ValidationError{Reason: "no connected instagram account"}
		}
		return "", err
	}

	accessToken, err := utils.Decrypt(account.AccessToken, []byte(secretKey))
	if err != nil {
		return "", &ValidationError{Reason: "stored credentials could not be decrypted"}
	}
	return accessToken, nil
}

func sameCalendarDay(a, b time.Time) bool {
	ay, am, ad := a.Local().Date()
	by, bm, bd := b.Local().Date()
	return ay == by && am == bm && ad == bd
}
