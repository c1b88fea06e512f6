package models

import (
	"strings"
	"time"
)

// MediaKind is decided once at ingestion and carried on the item, so the
// publish pipeline never has to re-derive it from the MIME string.
type MediaKind string

const (
	MediaKindImage MediaKind = "image"
	MediaKindVideo MediaKind = "video"
)

var videoMimeTypes = map[string]struct{}{
	"video/mp4":       {},
	"video/mov":       {},
	"video/quicktime": {},
}

func ClassifyMediaKind(filetype string) MediaKind {
	mime := strings.ToLower(filetype)
	if _, ok := videoMimeTypes[mime]; ok {
		return MediaKindVideo
	}
	if strings.HasPrefix(mime, "video/") {
		return MediaKindVideo
	}
	return MediaKindImage
}

// TaggedPerson is a tap position on the rendered media plus a handle.
// X and Y are fractions of the rendered width/height at tag-creation time
// and are passed to the provider unmodified.
type TaggedPerson struct {
	Username string  `json:"username"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
}

type MediaItem struct {
	FileType     string         `json:"filetype"`
	Kind         MediaKind      `json:"kind"`
	ReadURL      string         `json:"read_url"`
	TaggedPeople []TaggedPerson `json:"tagged_people"`
}

// PruneIncompleteTags drops entries whose username was never filled in.
func PruneIncompleteTags(tags []TaggedPerson) []TaggedPerson {
	pruned := make([]TaggedPerson, 0, len(tags))
	for _, t := range tags {
		if t.Username == "" {
			continue
		}
		pruned = append(pruned, t)
	}
	return pruned
}

type SchedulingParams struct {
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

type Post struct {
	ID         string           `db:"id" json:"id"`
	UserID     int64            `db:"user_id" json:"user_id"`
	Platform   string           `db:"platform" json:"platform"`
	Params     []MediaItem      `db:"params" json:"params"`
	Caption    string           `db:"caption" json:"caption"`
	Scheduling SchedulingParams `json:"schedule_params"`
	JobID      string           `db:"job_id" json:"job_id,omitempty"`
	Publishing bool             `db:"publishing" json:"-"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// HasVideo reports whether any item needs asynchronous provider-side processing.
func (p *Post) HasVideo() bool {
	for _, item := range p.Params {
		if item.Kind == MediaKindVideo {
			return true
		}
	}
	return false
}

const (
	PlatformInstagram = "instagram"

	PostStatusDraft     = "draft"
	PostStatusScheduled = "scheduled"
	PostStatusPosted    = "posted"
)
