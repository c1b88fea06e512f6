package service

import (
	"errors"
	"fmt"
	"time"
)

// ErrPublishFailed is returned when the provider accepted the publish call
// but did not return a published media id.
var ErrPublishFailed = errors.New("provider returned no published media id")

// UpstreamError carries the provider's status and body for a non-2xx or
// malformed response from the Graph API or object storage.
type UpstreamError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: unexpected response (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// ValidationError is fatal and raised before any external side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// VideoProcessingError means the provider reported a terminal error while
// processing a video container. Publish is never attempted after it.
type VideoProcessingError struct {
	ContainerID string
	Code        string
	Status      string
}

func (e *VideoProcessingError) Error() string {
	return fmt.Sprintf("video container %s failed processing: %s (%s)", e.ContainerID, e.Code, e.Status)
}

// VideoProcessingTimeout means the container never left IN_PROGRESS within
// the polling budget.
type VideoProcessingTimeout struct {
	ContainerID string
	Waited      time.Duration
}

func (e *VideoProcessingTimeout) Error() string {
	return fmt.Sprintf("video container %s still processing after %s", e.ContainerID, e.Waited)
}

// CleanupFailure is one failed best-effort media deletion after a
// successful publish. It never affects the publish outcome.
type CleanupFailure struct {
	URL string
	Err error
}
