package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/postpilot/postpilot/internal/models"
)

// Container status codes as reported by the Graph API.
const (
	ContainerStatusInProgress = "IN_PROGRESS"
	ContainerStatusFinished   = "FINISHED"
	ContainerStatusError      = "ERROR"
	ContainerStatusExpired    = "EXPIRED"
	ContainerStatusPublished  = "PUBLISHED"
)

// ContainerStatus is the provider's machine state plus its human string.
type ContainerStatus struct {
	Code   string `json:"status_code"`
	Status string `json:"status"`
}

// GraphMedia is published-media metadata returned by the provider.
type GraphMedia struct {
	ID        string `json:"id"`
	Caption   string `json:"caption"`
	MediaType string `json:"media_type"`
	MediaURL  string `json:"media_url"`
	Permalink string `json:"permalink"`
	Timestamp string `json:"timestamp"`
}

// GraphClient wraps the five Instagram Graph operations the publish
// pipeline needs. Implementations attach the access token and parse
// responses; non-2xx or malformed bodies surface as *UpstreamError.
type GraphClient interface {
	ResolveAccountID(ctx context.Context, accessToken string) (string, error)
	CreateContainer(ctx context.Context, accountID, accessToken string, item models.MediaItem, caption string, carouselChild bool) (string, error)
	CreateCarouselContainer(ctx context.Context, accountID, accessToken, caption string, children []string) (string, error)
	GetContainerStatus(ctx context.Context, containerID, accessToken string) (*ContainerStatus, error)
	PublishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error)
	GetMedia(ctx context.Context, mediaID, accessToken string) (*GraphMedia, error)
}

type graphClient struct {
	baseURL string
	http    *http.Client
}

func NewGraphClient(baseURL string, client *http.Client) GraphClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &graphClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    client,
	}
}

func (g *graphClient) ResolveAccountID(ctx context.Context, accessToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/me?fields=id&access_token=%s", g.baseURL, url.QueryEscape(accessToken))

	var result struct {
		ID string `json:"id"`
	}
	if err := g.getJSON(ctx, reqURL, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &UpstreamError{Provider: "instagram", StatusCode: http.StatusOK, Body: "no account id in response"}
	}
	return result.ID, nil
}

func (g *graphClient) CreateContainer(ctx context.Context, accountID, accessToken string, item models.MediaItem, caption string, carouselChild bool) (string, error) {
	payload := map[string]interface{}{
		"access_token": accessToken,
	}

	switch item.Kind {
	case models.MediaKindVideo:
		payload["video_url"] = item.ReadURL
		if carouselChild {
			payload["is_carousel_item"] = true
			payload["user_tags"] = videoUserTags(item.TaggedPeople)
		} else {
			payload["media_type"] = "REELS"
			payload["caption"] = caption
		}
	default:
		payload["image_url"] = item.ReadURL
		payload["user_tags"] = imageUserTags(item.TaggedPeople)
		if carouselChild {
			payload["is_carousel_item"] = true
		} else {
			payload["caption"] = caption
		}
	}

	return g.postMedia(ctx, accountID, payload)
}

func (g *graphClient) CreateCarouselContainer(ctx context.Context, accountID, accessToken, caption string, children []string) (string, error) {
	payload := map[string]interface{}{
		"access_token": accessToken,
		"media_type":   "CAROUSEL",
		"caption":      caption,
		"children":     strings.Join(children, ","),
	}
	return g.postMedia(ctx, accountID, payload)
}

func (g *graphClient) GetContainerStatus(ctx context.Context, containerID, accessToken string) (*ContainerStatus, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=status_code,status&access_token=%s", g.baseURL, containerID, url.QueryEscape(accessToken))

	var status ContainerStatus
	if err := g.getJSON(ctx, reqURL, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// PublishContainer returns the published media id. An empty id in a 2xx
// response is returned as-is; deciding that it means a failed publish is
// the caller's job.
func (g *graphClient) PublishContainer(ctx context.Context, accountID, containerID, accessToken string) (string, error) {
	reqURL := fmt.Sprintf("%s/%s/media_publish", g.baseURL, accountID)
	payload := map[string]interface{}{
		"creation_id":  containerID,
		"access_token": accessToken,
	}

	var result struct {
		ID string `json:"id"`
	}
	if err := g.postJSON(ctx, reqURL, payload, &result); err != nil {
		return "", err
	}
	return result.ID, nil
}

func (g *graphClient) GetMedia(ctx context.Context, mediaID, accessToken string) (*GraphMedia, error) {
	reqURL := fmt.Sprintf("%s/%s?fields=id,caption,media_type,media_url,permalink,timestamp&access_token=%s",
		g.baseURL, mediaID, url.QueryEscape(accessToken))

	var media GraphMedia
	if err := g.getJSON(ctx, reqURL, &media); err != nil {
		return nil, err
	}
	return &media, nil
}

// postMedia issues a container-create call against /{accountID}/media and
// requires an id in the response.
func (g *graphClient) postMedia(ctx context.Context, accountID string, payload map[string]interface{}) (string, error) {
	reqURL := fmt.Sprintf("%s/%s/media", g.baseURL, accountID)

	var result struct {
		ID string `json:"id"`
	}
	if err := g.postJSON(ctx, reqURL, payload, &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &UpstreamError{Provider: "instagram", StatusCode: http.StatusOK, Body: "no container id in response"}
	}
	return result.ID, nil
}

func (g *graphClient) postJSON(ctx context.Context, reqURL string, payload map[string]interface{}, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	return decodeGraphResponse(resp, out)
}

func (g *graphClient) getJSON(ctx context.Context, reqURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}

	resp, err := g.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	return decodeGraphResponse(resp, out)
}

func decodeGraphResponse(resp *http.Response, out interface{}) error {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &UpstreamError{Provider: "instagram", StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return &UpstreamError{Provider: "instagram", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}

// imageUserTags keeps the tap coordinates; they are passed through to the
// provider unmodified.
func imageUserTags(tags []models.TaggedPerson) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tags))
	for _, t := range tags {
		out = append(out, map[string]interface{}{
			"username": t.Username,
			"x":        t.X,
			"y":        t.Y,
		})
	}
	return out
}

// videoUserTags drops coordinates; the provider rejects them on video items.
func videoUserTags(tags []models.TaggedPerson) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(tags))
	for _, t := range tags {
		out = append(out, map[string]interface{}{
			"username": t.Username,
		})
	}
	return out
}
