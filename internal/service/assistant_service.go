package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

// Document is one retrieved chunk of the user's own Instagram or website
// content.
type Document struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Source  string `json:"source"`
}

// Retriever is the retrieval service contract. Vector storage, chunking
// and embeddings live behind it.
type Retriever interface {
	Search(ctx context.Context, query string, filters map[string]string) ([]Document, error)
}

// LLM generates a completion for a system prompt plus user prompt.
type LLM interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// AssistantService answers account questions and drafts captions grounded
// on retrieved content. It only sequences retrieval and generation.
type AssistantService interface {
	Answer(ctx context.Context, userID int64, question string) (string, error)
	DraftCaption(ctx context.Context, userID int64, brief string) (string, error)
}

type assistantService struct {
	retriever Retriever
	llm       LLM
}

func NewAssistantService(retriever Retriever, llm LLM) AssistantService {
	return &assistantService{retriever: retriever, llm: llm}
}

const answerSystemPrompt = "You answer questions about the user's Instagram account and website using only the provided context. If the context does not contain the answer, say so."

const captionSystemPrompt = "You draft Instagram captions in the user's established voice, based on the provided examples of their past content."

func (s *assistantService) Answer(ctx context.Context, userID int64, question string) (string, error) {
	if strings.TrimSpace(question) == "" {
		return "", errors.New("question is empty")
	}

	docs, err := s.retriever.Search(ctx, question, map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	return s.llm.Complete(ctx, answerSystemPrompt, buildPrompt(docs, question))
}

func (s *assistantService) DraftCaption(ctx context.Context, userID int64, brief string) (string, error) {
	if strings.TrimSpace(brief) == "" {
		return "", errors.New("brief is empty")
	}

	docs, err := s.retriever.Search(ctx, brief, map[string]string{
		"user_id": strconv.FormatInt(userID, 10),
		"type":    "caption",
	})
	if err != nil {
		slog.Info(err.Error())
		return "", fmt.Errorf("retrieval failed: %w", err)
	}

	return s.llm.Complete(ctx, captionSystemPrompt, buildPrompt(docs, brief))
}

func buildPrompt(docs []Document, request string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for _, doc := range docs {
		fmt.Fprintf(&b, "- [%s] %s: %s\n", doc.Source, doc.Title, doc.Content)
	}
	b.WriteString("\nRequest: ")
	b.WriteString(request)
	return b.String()
}
