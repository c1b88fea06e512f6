package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// RetrievalClient talks to the external retrieval/LLM service over HTTP.
// The service owns embeddings and vector storage; this side only sends a
// query and reads documents back.
type RetrievalClient struct {
	baseURL string
	http    *http.Client
}

func NewRetrievalClient(baseURL string, client *http.Client) *RetrievalClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &RetrievalClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    client,
	}
}

func (r *RetrievalClient) Search(ctx context.Context, query string, filters map[string]string) ([]Document, error) {
	payload := map[string]interface{}{
		"query":   query,
		"filters": filters,
	}

	var result struct {
		Documents []Document `json:"documents"`
	}
	if err := r.post(ctx, "/search", payload, &result); err != nil {
		return nil, err
	}
	return result.Documents, nil
}

func (r *RetrievalClient) Complete(ctx context.Context, system, prompt string) (string, error) {
	payload := map[string]interface{}{
		"system": system,
		"prompt": prompt,
	}

	var result struct {
		Completion string `json:"completion"`
	}
	if err := r.post(ctx, "/complete", payload, &result); err != nil {
		return "", err
	}
	return result.Completion, nil
}

func (r *RetrievalClient) post(ctx context.Context, path string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("error marshalling payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request error: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("error reading response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{Provider: "retrieval", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return &UpstreamError{Provider: "retrieval", StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return nil
}
