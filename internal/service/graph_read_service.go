package service

import (
	"context"

	"github.com/postpilot/postpilot/internal/repository"
)

// GraphReadService mirrors provider-side reads for the UI: published media
// metadata and the resolved account id. It never writes anything.
type GraphReadService interface {
	MediaInfo(ctx context.Context, userID int64, mediaID string) (*GraphMedia, error)
	AccountID(ctx context.Context, userID int64) (string, error)
}

type graphReadService struct {
	accounts  repository.SocialAccountRepository
	graph     GraphClient
	secretKey string
}

func NewGraphReadService(accounts repository.SocialAccountRepository, graph GraphClient, secretKey string) GraphReadService {
	return &graphReadService{
		accounts:  accounts,
		graph:     graph,
		secretKey: secretKey,
	}
}

func (s *graphReadService) MediaInfo(ctx context.Context, userID int64, mediaID string) (*GraphMedia, error) {
	if mediaID == "" {
		return nil, &ValidationError{Reason: "media id is not valid"}
	}

	accessToken, err := accountAccessToken(ctx, s.accounts, s.secretKey, userID)
	if err != nil {
		return nil, err
	}
	return s.graph.GetMedia(ctx, mediaID, accessToken)
}

func (s *graphReadService) AccountID(ctx context.Context, userID int64) (string, error) {
	accessToken, err := accountAccessToken(ctx, s.accounts, s.secretKey, userID)
	if err != nil {
		return "", err
	}
	return s.graph.ResolveAccountID(ctx, accessToken)
}
