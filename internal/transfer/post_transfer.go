package transfer

import "github.com/golang-jwt/jwt/v5"

// PostCreation is the multipart form payload for scheduling a post.
// Tags is JSON: one array of tagged people per uploaded file, in file order.
type PostCreation struct {
	Caption       string
	ScheduledTime string
	Tags          string
}

// PostUpdate rewrites a still-scheduled post. KeptMedia lists the read URLs
// of media items to retain, in the new display order; anything absent from
// it is deleted. Tags covers new uploads (one array per file, in file
// order); KeptTags is JSON keyed by read URL and replaces the stored tags
// of retained items.
type PostUpdate struct {
	Caption       string
	ScheduledTime string
	Tags          string
	KeptTags      string
	KeptMedia     []string
}

type CustomClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}
