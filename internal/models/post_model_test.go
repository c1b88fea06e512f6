package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyMediaKind(t *testing.T) {
	tests := []struct {
		filetype string
		want     MediaKind
	}{
		{"video/mp4", MediaKindVideo},
		{"video/mov", MediaKindVideo},
		{"video/quicktime", MediaKindVideo},
		{"video/webm", MediaKindVideo},
		{"VIDEO/MP4", MediaKindVideo},
		{"image/jpeg", MediaKindImage},
		{"image/png", MediaKindImage},
		{"application/octet-stream", MediaKindImage},
		{"", MediaKindImage},
	}

	for _, tt := range tests {
		t.Run(tt.filetype, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyMediaKind(tt.filetype))
		})
	}
}

func TestPruneIncompleteTags(t *testing.T) {
	tags := []TaggedPerson{
		{Username: "alice", X: 0.1, Y: 0.2},
		{Username: "", X: 0.5, Y: 0.5},
		{Username: "bob", X: 0.9, Y: 0.9},
	}

	pruned := PruneIncompleteTags(tags)

	assert.Equal(t, []TaggedPerson{
		{Username: "alice", X: 0.1, Y: 0.2},
		{Username: "bob", X: 0.9, Y: 0.9},
	}, pruned)
}

func TestPruneIncompleteTagsEmpty(t *testing.T) {
	assert.Empty(t, PruneIncompleteTags(nil))
}

func TestHasVideo(t *testing.T) {
	post := &Post{Params: []MediaItem{
		{FileType: "image/jpeg", Kind: MediaKindImage},
		{FileType: "image/png", Kind: MediaKindImage},
	}}
	assert.False(t, post.HasVideo())

	post.Params = append(post.Params, MediaItem{FileType: "video/mp4", Kind: MediaKindVideo})
	assert.True(t, post.HasVideo())
}
