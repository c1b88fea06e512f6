package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/postpilot/postpilot/internal/repository"
	"github.com/postpilot/postpilot/internal/service"
)

// TokenRefreshJob renews provider tokens that are about to expire.
type TokenRefreshJob struct {
	sr repository.SocialAccountRepository
	ac service.AccountService
}

func NewTokenRefreshJob(sr repository.SocialAccountRepository, ac service.AccountService) *TokenRefreshJob {
	return &TokenRefreshJob{
		sr: sr,
		ac: ac,
	}
}

func (c *TokenRefreshJob) RefreshTokens() {
	ctx := context.Background()

	currentTime := time.Now()
	timeIn30Minutes := currentTime.Add(30 * time.Minute)

	accounts, err := c.sr.ListByTimeInterval(ctx, currentTime, timeIn30Minutes)
	if err != nil {
		slog.Info(err.Error())
		return
	}

	var wg sync.WaitGroup

	concurrencyLimit := 10
	semaphore := make(chan struct{}, concurrencyLimit)

	for _, acc := range accounts {
		wg.Add(1)
		semaphore <- struct{}{}

		go func(userID int64, refreshToken string) {
			defer wg.Done()
			defer func() { <-semaphore }()

			if err := c.ac.RefreshInstagramToken(ctx, userID, refreshToken); err != nil {
				slog.Info("unable to refresh Instagram token", "user_id", userID)
			}
		}(acc.UserID, acc.RefreshToken)
	}

	wg.Wait()
}
