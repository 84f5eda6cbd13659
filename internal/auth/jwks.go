package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// KeySetOptions tune the cached view of the identity provider's signing keys.
type KeySetOptions struct {
	// Refresh is how often the key set is refetched in the background.
	Refresh time.Duration
	// UnknownKeyInterval bounds refetches triggered by a token naming an unknown kid.
	UnknownKeyInterval time.Duration
	// Timeout caps each fetch of the key set.
	Timeout time.Duration
	Logger  *zap.Logger
}

// NewKeySet fetches the JWKS document at url and keeps it fresh until ctx is
// cancelled. A failing first fetch is logged, not returned, so the service can
// start while the provider is unreachable.
func NewKeySet(ctx context.Context, url string, opts KeySetOptions) (keyfunc.Keyfunc, error) {
	if opts.Refresh <= 0 {
		opts.Refresh = time.Hour
	}
	if opts.UnknownKeyInterval <= 0 {
		opts.UnknownKeyInterval = 30 * time.Second
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	kf, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{url}, keyfunc.Override{
		HTTPTimeout:       opts.Timeout,
		RateLimitWaitMax:  time.Second,
		RefreshInterval:   opts.Refresh,
		RefreshUnknownKID: rate.NewLimiter(rate.Every(opts.UnknownKeyInterval), 1),
		RefreshErrorHandlerFunc: func(u string) func(context.Context, error) {
			return func(_ context.Context, err error) {
				logger.Warn("JWKS refresh failed", zap.String("url", u), zap.Error(err))
			}
		},
	})
	if err != nil {
		return nil, fmt.Errorf("jwks %s: %w", url, err)
	}
	return kf, nil
}
