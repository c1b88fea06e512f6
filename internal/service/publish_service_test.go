package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/postpilot/postpilot/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createCall struct {
	item          models.MediaItem
	caption       string
	carouselChild bool
}

type graphStub struct {
	accountID  string
	resolveErr error

	createCalls []createCall
	createIDs   []string
	failCreate  int // 1-based index of the create call that fails, 0 = never

	carouselCaption  string
	carouselChildren []string
	carouselErr      error

	statusSeq   []ContainerStatus
	statusCalls int

	publishID    string
	publishErr   error
	publishCalls int
	publishAfter []string // status codes seen before each publish call
}

func (g *graphStub) ResolveAccountID(ctx context.Context, accessToken string) (string, error) {
	if g.resolveErr != nil {
		return "", g.resolveErr
	}
	if g.accountID == "" {
		return "acct-1", nil
	}
	return g.accountID, nil
}

func (g *graphStub) CreateContainer(ctx context.Context, accountID, accessToken string, item models.MediaItem, caption string, carouselChild bool) (string, error) {
	g.createCalls = append(g.createCalls, createCall{item: item, caption: caption, carouselChild: carouselChild})
	n := len(g.createCalls)
	if g.failCreate == n {
		return "", &UpstreamError{Provider: "instagram", StatusCode: 500, Body: "boom"}
	}
	id := fmt.Sprintf("c%d", n)
	g.createIDs = append(g.createIDs, id)
	return id, nil
}

func (g *graphStub) CreateCarouselContainer(ctx context.Context, accountID, accessToken, caption string, children []string) (string, error) {
	if g.carouselErr != nil {
		return "", g.carouselErr
	}
	g.carouselCaption = caption
	g.carouselChildren = append([]string(nil), children...)
	return "carousel-1", nil
}

func (g *graphStub) GetContainerStatus(ctx context.Context, containerID, accessToken string) (*ContainerStatus, error) {
	if g.statusCalls >= len(g.statusSeq) {
		return &ContainerStatus{Code: ContainerStatusFinished}, nil
	}
	status := g.statusSeq[g.statusCalls]
	g.statusCalls++
	return &status, nil
}

func (g *graphStub) PublishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	g.publishCalls++
	if len(g.statusSeq) > 0 && g.statusCalls > 0 {
		g.publishAfter = append(g.publishAfter, g.statusSeq[g.statusCalls-1].Code)
	}
	if g.publishErr != nil {
		return "", g.publishErr
	}
	return g.publishID, nil
}

func (g *graphStub) GetMedia(ctx context.Context, mediaID, accessToken string) (*GraphMedia, error) {
	return &GraphMedia{ID: mediaID}, nil
}

type mediaStoreStub struct {
	deleted   []string
	failURLs  map[string]error
	uploadURL string
}

func (m *mediaStoreStub) Upload(ctx context.Context, key string, data []byte, filetype string) (string, error) {
	return m.uploadURL + key, nil
}

func (m *mediaStoreStub) Delete(ctx context.Context, readURL string) error {
	if err, ok := m.failURLs[readURL]; ok {
		return err
	}
	m.deleted = append(m.deleted, readURL)
	return nil
}

func newTestPublisher(g *graphStub, m *mediaStoreStub, sleeps *[]time.Duration) *publishService {
	return &publishService{
		graph:           g,
		store:           m,
		initialInterval: pollInitialInterval,
		maxInterval:     pollMaxInterval,
		budget:          pollBudget,
		sleep: func(ctx context.Context, d time.Duration) error {
			if sleeps != nil {
				*sleeps = append(*sleeps, d)
			}
			return nil
		},
	}
}

func imageItem(url string) models.MediaItem {
	return models.MediaItem{FileType: "image/jpeg", Kind: models.MediaKindImage, ReadURL: url}
}

func videoItem(url string) models.MediaItem {
	return models.MediaItem{FileType: "video/mp4", Kind: models.MediaKindVideo, ReadURL: url}
}

func TestPublishSingleImage(t *testing.T) {
	g := &graphStub{publishID: "media-1"}
	m := &mediaStoreStub{}
	svc := newTestPublisher(g, m, nil)

	post := &models.Post{
		ID:      "p1",
		Params:  []models.MediaItem{imageItem("https://cdn.example.com/a.jpg")},
		Caption: "Hello world",
	}

	mediaID, err := svc.Publish(context.Background(), post, "tok")
	require.NoError(t, err)
	assert.Equal(t, "media-1", mediaID)

	require.Len(t, g.createCalls, 1)
	assert.False(t, g.createCalls[0].carouselChild)
	assert.Equal(t, "Hello world", g.createCalls[0].caption)
	assert.Nil(t, g.carouselChildren)
	assert.Equal(t, 1, g.publishCalls)
	assert.Zero(t, g.statusCalls)

	failures := svc.Cleanup(context.Background(), post)
	assert.Empty(t, failures)
	assert.Equal(t, []string{"https://cdn.example.com/a.jpg"}, m.deleted)
}

func TestPublishCarouselPreservesOrder(t *testing.T) {
	g := &graphStub{publishID: "media-1"}
	svc := newTestPublisher(g, &mediaStoreStub{}, nil)

	post := &models.Post{
		ID: "p1",
		Params: []models.MediaItem{
			imageItem("https://cdn.example.com/1.jpg"),
			imageItem("https://cdn.example.com/2.jpg"),
			imageItem("https://cdn.example.com/3.jpg"),
		},
		Caption: "three",
	}

	_, err := svc.Publish(context.Background(), post, "tok")
	require.NoError(t, err)

	require.Len(t, g.createCalls, 3)
	for i, call := range g.createCalls {
		assert.True(t, call.carouselChild, "child %d", i)
		assert.Empty(t, call.caption, "child %d carries no caption", i)
		assert.Equal(t, post.Params[i].ReadURL, call.item.ReadURL, "child order %d", i)
	}
	assert.Equal(t, g.createIDs, g.carouselChildren)
	assert.Equal(t, "three", g.carouselCaption)
	assert.Equal(t, 1, g.publishCalls)
}

func TestPublishChildFailureAbortsWholePost(t *testing.T) {
	g := &graphStub{failCreate: 2}
	svc := newTestPublisher(g, &mediaStoreStub{}, nil)

	post := &models.Post{
		ID: "p1",
		Params: []models.MediaItem{
			imageItem("https://cdn.example.com/1.jpg"),
			imageItem("https://cdn.example.com/2.jpg"),
		},
	}

	_, err := svc.Publish(context.Background(), post, "tok")
	require.Error(t, err)

	var upstream *UpstreamError
	assert.ErrorAs(t, err, &upstream)
	assert.Nil(t, g.carouselChildren, "no carousel after a child failure")
	assert.Zero(t, g.publishCalls, "no publish after a child failure")
}

func TestPublishVideoPollsUntilFinished(t *testing.T) {
	g := &graphStub{
		publishID: "media-1",
		statusSeq: []ContainerStatus{
			{Code: ContainerStatusInProgress},
			{Code: ContainerStatusInProgress},
			{Code: ContainerStatusFinished},
		},
	}
	var sleeps []time.Duration
	svc := newTestPublisher(g, &mediaStoreStub{}, &sleeps)

	post := &models.Post{
		ID:     "p1",
		Params: []models.MediaItem{videoItem("https://cdn.example.com/v.mp4")},
	}

	_, err := svc.Publish(context.Background(), post, "tok")
	require.NoError(t, err)

	assert.Equal(t, 3, g.statusCalls)
	require.Len(t, sleeps, 3)
	for i, d := range sleeps {
		assert.GreaterOrEqual(t, d, 2*time.Second, "poll spacing %d", i)
	}
	assert.Equal(t, 1, g.publishCalls)
	require.Len(t, g.publishAfter, 1)
	assert.NotEqual(t, ContainerStatusInProgress, g.publishAfter[0])
}

func TestPublishVideoProcessingErrorAborts(t *testing.T) {
	g := &graphStub{
		statusSeq: []ContainerStatus{
			{Code: ContainerStatusInProgress},
			{Code: ContainerStatusError, Status: "codec not supported"},
		},
	}
	svc := newTestPublisher(g, &mediaStoreStub{}, nil)

	post := &models.Post{
		ID:     "p1",
		Params: []models.MediaItem{videoItem("https://cdn.example.com/v.mp4")},
	}

	_, err := svc.Publish(context.Background(), post, "tok")
	require.Error(t, err)

	var procErr *VideoProcessingError
	require.ErrorAs(t, err, &procErr)
	assert.Equal(t, ContainerStatusError, procErr.Code)
	assert.Zero(t, g.publishCalls)
}

func TestPublishVideoTimeout(t *testing.T) {
	g := &graphStub{
		statusSeq: []ContainerStatus{
			{Code: ContainerStatusInProgress},
			{Code: ContainerStatusInProgress},
		},
	}
	svc := newTestPublisher(g, &mediaStoreStub{}, nil)
	svc.budget = 0 // first IN_PROGRESS check exhausts the budget

	post := &models.Post{
		ID:     "p1",
		Params: []models.MediaItem{videoItem("https://cdn.example.com/v.mp4")},
	}

	_, err := svc.Publish(context.Background(), post, "tok")
	require.Error(t, err)

	var timeout *VideoProcessingTimeout
	require.ErrorAs(t, err, &timeout)
	assert.Zero(t, g.publishCalls)
}

func TestPublishMissingMediaIDIsFailure(t *testing.T) {
	g := &graphStub{publishID: ""}
	svc := newTestPublisher(g, &mediaStoreStub{}, nil)

	post := &models.Post{
		ID:     "p1",
		Params: []models.MediaItem{imageItem("https://cdn.example.com/a.jpg")},
	}

	_, err := svc.Publish(context.Background(), post, "tok")
	assert.ErrorIs(t, err, ErrPublishFailed)
}

func TestPublishEmptyPostIsValidationError(t *testing.T) {
	g := &graphStub{}
	svc := newTestPublisher(g, &mediaStoreStub{}, nil)

	_, err := svc.Publish(context.Background(), &models.Post{ID: "p1"}, "tok")

	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Empty(t, g.createCalls)
}

func TestCleanupIsBestEffort(t *testing.T) {
	m := &mediaStoreStub{
		failURLs: map[string]error{
			"https://cdn.example.com/1.jpg": errors.New("gone already"),
		},
	}
	svc := newTestPublisher(&graphStub{}, m, nil)

	post := &models.Post{
		ID: "p1",
		Params: []models.MediaItem{
			imageItem("https://cdn.example.com/1.jpg"),
			imageItem("https://cdn.example.com/2.jpg"),
		},
	}

	failures := svc.Cleanup(context.Background(), post)
	require.Len(t, failures, 1)
	assert.Equal(t, "https://cdn.example.com/1.jpg", failures[0].URL)
	assert.Equal(t, []string{"https://cdn.example.com/2.jpg"}, m.deleted)

	// a second pass over already-deleted files stays non-fatal
	delete(m.failURLs, "https://cdn.example.com/1.jpg")
	failures = svc.Cleanup(context.Background(), post)
	assert.Empty(t, failures)
}
