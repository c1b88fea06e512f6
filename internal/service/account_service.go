package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	config "github.com/postpilot/postpilot/configs"
	"github.com/postpilot/postpilot/internal/models"
	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/transfer"
	"github.com/postpilot/postpilot/pkg/utils"
)

// AccountService connects and maintains Instagram accounts: OAuth code
// exchange, sign-in, profile fetch and long-lived token refresh.
type AccountService interface {
	InstagramCallback(ctx context.Context, code string) (int64, error)
	RefreshInstagramToken(ctx context.Context, userID int64, refreshToken string) error
	ListAccounts(ctx context.Context, userID int64) ([]*models.SocialAccount, error)
	RemoveAccount(ctx context.Context, userID, accountID int64) error
}

type accountService struct {
	cfg   config.Config
	users repository.UserRepository
	sa    repository.SocialAccountRepository
}

func NewAccountService(cfg config.Config, users repository.UserRepository, sa repository.SocialAccountRepository) AccountService {
	return &accountService{cfg: cfg, users: users, sa: sa}
}

// InstagramCallback is both sign-in and account connection: the OAuth code
// is exchanged, the user row is upserted by provider id and the account
// tokens stored. Returns the local user id for the session cookie.
func (s *accountService) InstagramCallback(ctx context.Context, code string) (int64, error) {
	if code == "" {
		err := errors.New("authorization code is empty")
		slog.Info(err.Error())
		return 0, err
	}

	token, err := s.exchangeCodeForToken(ctx, code)
	if err != nil {
		return 0, err
	}

	userInfo, err := s.getInstagramUserInfo(ctx, token.AccessToken)
	if err != nil {
		return 0, err
	}

	userID, err := s.upsertUser(ctx, userInfo)
	if err != nil {
		return 0, err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(token.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return 0, err
	}

	accountInfo := &models.SocialAccount{
		UserID:          userID,
		Platform:        models.PlatformInstagram,
		AccountID:       userInfo.UserID,
		AccountName:     userInfo.Name,
		AccountUsername: userInfo.Username,
		ProfilePicture:  userInfo.ProfilePicture,
		AccessToken:     encryptedAccessToken,
		RefreshToken:    encryptedAccessToken,
		TokenExpiresAt:  token.Expiry,
	}

	existing, err := s.sa.GetByUserID(ctx, userID)
	switch {
	case err == nil:
		// Re-authorization of an already connected account: swap tokens.
		return userID, s.sa.SetToken(ctx, userID, existing.AccessToken, accountInfo)
	case errors.Is(err, repository.ErrNotFound):
		_, err = s.sa.Create(ctx, nil, accountInfo)
		return userID, err
	default:
		return 0, err
	}
}

func (s *accountService) upsertUser(ctx context.Context, userInfo *transfer.InstagramUserInfo) (int64, error) {
	user, exists, err := s.users.GetByProviderID(ctx, userInfo.UserID)
	if err != nil {
		return 0, err
	}
	if exists {
		user.Name = userInfo.Name
		user.ProfilePicture = userInfo.ProfilePicture
		if err := s.users.Update(ctx, user); err != nil {
			return 0, err
		}
		return user.ID, nil
	}

	return s.users.Create(ctx, nil, &models.User{
		ProviderID:     userInfo.UserID,
		Name:           userInfo.Name,
		ProfilePicture: userInfo.ProfilePicture,
	})
}

// exchangeCodeForToken trades the authorization code for a short-lived
// token and immediately upgrades it to a long-lived one.
func (s *accountService) exchangeCodeForToken(ctx context.Context, code string) (*oauth2.Token, error) {
	data := url.Values{}
	data.Set("client_id", s.cfg.InstagramClientID)
	data.Set("client_secret", s.cfg.InstagramClientSecret)
	data.Set("grant_type", "authorization_code")
	data.Set("redirect_uri", s.cfg.InstagramRedirectURI)
	data.Set("code", code)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		"https://api.instagram.com/oauth/access_token", strings.NewReader(data.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get short-lived token: %w", err)
	}
	defer resp.Body.Close()

	var shortLived struct {
		AccessToken string `json:"access_token"`
		UserID      int64  `json:"user_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&shortLived); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}

	return s.getLongLivedToken(ctx, shortLived.AccessToken)
}

func (s *accountService) getLongLivedToken(ctx context.Context, shortLivedToken string) (*oauth2.Token, error) {
	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/access_token?grant_type=ig_exchange_token&client_secret=%s&access_token=%s",
		s.cfg.InstagramClientSecret,
		shortLivedToken,
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to get long-lived token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		var igErr transfer.InstagramErrorResponse
		if err := json.Unmarshal(body, &igErr); err == nil && igErr.Error.Message != "" {
			return nil, fmt.Errorf("error response from Instagram: %s (type %s, code %d)",
				igErr.Error.Message, igErr.Error.Type, igErr.Error.Code)
		}
		return nil, fmt.Errorf("error response from Instagram: %s (status code: %d)", body, resp.StatusCode)
	}

	var result struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return nil, fmt.Errorf("failed to decode long-lived token response: %w", err)
	}

	return &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   result.TokenType,
		Expiry:      GetExpiresAt(result.ExpiresIn),
	}, nil
}

func (s *accountService) getInstagramUserInfo(ctx context.Context, accessToken string) (*transfer.InstagramUserInfo, error) {
	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/me?fields=id,username,name,account_type,profile_picture_url&access_token=%s",
		url.QueryEscape(accessToken),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	defer resp.Body.Close()

	var userInfo transfer.InstagramUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		slog.Info(err.Error())
		return nil, err
	}
	return &userInfo, nil
}

func (s *accountService) RefreshInstagramToken(ctx context.Context, userID int64, refreshToken string) error {
	decryptedRefreshToken, err := utils.Decrypt(refreshToken, []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	reqURL := fmt.Sprintf(
		"https://graph.instagram.com/refresh_access_token?grant_type=ig_refresh_token&access_token=%s",
		url.QueryEscape(decryptedRefreshToken),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var result struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return err
	}

	encryptedAccessToken, err := utils.Encrypt([]byte(result.AccessToken), []byte(s.cfg.SecretKey))
	if err != nil {
		return err
	}

	socialAccount := models.SocialAccount{
		AccessToken:    encryptedAccessToken,
		RefreshToken:   encryptedAccessToken,
		TokenExpiresAt: GetExpiresAt(result.ExpiresIn),
	}

	return s.sa.SetToken(ctx, userID, refreshToken, &socialAccount)
}

func (s *accountService) ListAccounts(ctx context.Context, userID int64) ([]*models.SocialAccount, error) {
	return s.sa.ListByUserID(ctx, userID)
}

func (s *accountService) RemoveAccount(ctx context.Context, userID, accountID int64) error {
	exists, err := s.sa.CheckByUserID(ctx, accountID, userID)
	if err != nil {
		return err
	}
	if !exists {
		err = errors.New("account doesn't exist")
		slog.Info(err.Error())
		return err
	}
	return s.sa.Remove(ctx, accountID)
}
