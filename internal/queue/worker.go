package queue

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
)

// PublishDriver is the scheduled half of the publish driver.
type PublishDriver interface {
	PublishScheduled(ctx context.Context, postID string) error
}

type Worker struct {
	driver PublishDriver
}

func NewWorker(driver PublishDriver) *Worker {
	return &Worker{driver: driver}
}

// HandlePublishPostTask runs one scheduled publish. Failures are logged
// and swallowed: the post stays scheduled for manual retry, and asynq must
// not re-run the pipeline on its own.
func (w *Worker) HandlePublishPostTask(ctx context.Context, task *asynq.Task) error {
	var payload PublishPostPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return err
	}

	if err := w.driver.PublishScheduled(ctx, payload.PostID); err != nil {
		slog.Error("scheduled publish failed", "post_id", payload.PostID, "error", err)
		return nil
	}

	slog.Info("scheduled publish succeeded", "post_id", payload.PostID)
	return nil
}
