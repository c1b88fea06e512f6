package queue

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// AsynqScheduler implements the scheduler-trigger contract on asynq: one
// delayed task per scheduled post, cancellable while still pending.
type AsynqScheduler struct {
	client    *asynq.Client
	inspector *asynq.Inspector
}

func NewAsynqScheduler(client *asynq.Client, inspector *asynq.Inspector) *AsynqScheduler {
	return &AsynqScheduler{client: client, inspector: inspector}
}

// Schedule registers the delayed publish invocation and returns the task
// id, which the post row keeps as its job reference.
func (s *AsynqScheduler) Schedule(postID string, runAt time.Time) (string, error) {
	payload, err := json.Marshal(PublishPostPayload{PostID: postID})
	if err != nil {
		return "", err
	}

	delay := time.Until(runAt)
	if delay < 0 {
		delay = 0
	}

	task := asynq.NewTask(TaskTypePublishPost, payload)
	info, err := s.client.Enqueue(task, asynq.ProcessIn(delay))
	if err != nil {
		return "", err
	}

	slog.Info("publish task scheduled", "post_id", postID, "task_id", info.ID, "run_at", runAt)
	return info.ID, nil
}

// Cancel deletes the pending task. A task that already ran or was already
// deleted cannot be cancelled; that surfaces as an error for the caller to
// decide on.
func (s *AsynqScheduler) Cancel(jobID string) error {
	if err := s.inspector.DeleteTask("default", jobID); err != nil {
		return fmt.Errorf("failed to delete scheduled task %s: %w", jobID, err)
	}
	return nil
}
