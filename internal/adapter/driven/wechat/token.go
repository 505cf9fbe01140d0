package wechat

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/iniwap/AIWriteX/internal/domain/model"
)

// TokenMargin is the minimum remaining lifetime of a token handed to callers.
const TokenMargin = 60 * time.Second

// TokenCache holds the access token of one credential. Reads of a valid token
// only take the read lock; refreshes are coalesced so at most one exchange is
// in flight at a time.
type TokenCache struct {
	mu     sync.RWMutex
	token  model.AccessToken
	group  singleflight.Group
	fetch  func(ctx context.Context) (model.AccessToken, error)
	now    func() time.Time
	margin time.Duration
}

// NewTokenCache creates a cache that obtains tokens from fetch.
func NewTokenCache(fetch func(ctx context.Context) (model.AccessToken, error)) *TokenCache {
	return &TokenCache{
		fetch:  fetch,
		now:    time.Now,
		margin: TokenMargin,
	}
}

// Token returns a cached token with at least the margin of validity left, or
// exchanges credentials for a new one. On failure the previous token is kept
// in the cache but not returned.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if tok, ok := c.current(); ok {
		return tok, nil
	}

	// The shared refresh must not die with whichever caller started it.
	refreshCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan("token", func() (any, error) {
		if tok, ok := c.current(); ok {
			return tok, nil
		}

		fresh, err := c.fetch(refreshCtx)
		if err != nil {
			return "", err
		}

		c.mu.Lock()
		c.token = fresh
		c.mu.Unlock()
		return fresh.Value, nil
	})

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", model.ErrAuth, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	}
}

// Invalidate drops the cached token so the next Token call refreshes it.
func (c *TokenCache) Invalidate() {
	c.mu.Lock()
	c.token = model.AccessToken{}
	c.mu.Unlock()
}

func (c *TokenCache) current() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.token.ValidAt(c.now(), c.margin) {
		return c.token.Value, true
	}
	return "", false
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

// exchangeToken performs the client_credential token exchange.
func (c *Client) exchangeToken(ctx context.Context) (model.AccessToken, error) {
	const op = "get_access_token"

	query := url.Values{
		"grant_type": {"client_credential"},
		"appid":      {c.cred.AppID},
		"secret":     {c.cred.AppSecret},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("token", query), nil)
	if err != nil {
		return model.AccessToken{}, fmt.Errorf("%w: %s: build request: %w", model.ErrAuth, op, err)
	}

	issuedAt := c.tokens.now()
	var resp tokenResponse
	if err := c.roundTrip(req, op, &resp); err != nil {
		c.metrics.IncTokenRefresh(false)
		c.logger.Warn("access token exchange failed", "app_id", c.cred.MaskedAppID(), "error", err)
		return model.AccessToken{}, fmt.Errorf("%w: %w", model.ErrAuth, err)
	}
	if resp.AccessToken == "" {
		c.metrics.IncTokenRefresh(false)
		return model.AccessToken{}, fmt.Errorf("%w: %w", model.ErrAuth, missing(op, "access_token"))
	}

	c.metrics.IncTokenRefresh(true)
	c.logger.Debug("access token refreshed", "app_id", c.cred.MaskedAppID(), "expires_in", resp.ExpiresIn)

	return model.AccessToken{
		Value:     resp.AccessToken,
		ExpiresAt: issuedAt.Add(time.Duration(resp.ExpiresIn) * time.Second),
	}, nil
}
