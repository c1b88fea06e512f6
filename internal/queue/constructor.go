package queue

const TaskTypePublishPost = "publish:post"

// PublishPostPayload is the task body carried by a scheduled publish job.
type PublishPostPayload struct {
	PostID string `json:"post_id"`
}
