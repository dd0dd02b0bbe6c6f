package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// RateLimiterConfig tunes request pacing and retry behavior.
type RateLimiterConfig struct {
	RequestsPerMinute int
	Burst             int
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
}

// DefaultRateLimiterConfig is a conservative profile for public APIs.
func DefaultRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		RequestsPerMinute: 60,
		Burst:             5,
		MaxRetries:        3,
		InitialBackoff:    time.Second,
		MaxBackoff:        30 * time.Second,
	}
}

// RateLimitedProvider wraps a Provider with a token-bucket limiter and
// exponential-backoff retries.
type RateLimitedProvider struct {
	inner   Provider
	limiter *rate.Limiter
	cfg     RateLimiterConfig
}

// NewRateLimitedProvider wraps inner with the given pacing config.
func NewRateLimitedProvider(inner Provider, cfg RateLimiterConfig) (*RateLimitedProvider, error) {
	if cfg.RequestsPerMinute <= 0 {
		return nil, fmt.Errorf("llm: requests per minute must be positive")
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	limit := rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	return &RateLimitedProvider{
		inner:   inner,
		limiter: rate.NewLimiter(limit, cfg.Burst),
		cfg:     cfg,
	}, nil
}

func (p *RateLimitedProvider) Name() string         { return p.inner.Name() }
func (p *RateLimitedProvider) DefaultModel() string { return p.inner.DefaultModel() }

// Complete waits for a limiter token, then calls the inner provider,
// retrying failures with exponential backoff up to MaxRetries.
func (p *RateLimitedProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	backoff := p.cfg.InitialBackoff
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("llm: rate limiter wait: %w", err)
		}

		resp, err := p.inner.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if attempt == p.cfg.MaxRetries {
			break
		}
		log.Warn().Err(err).Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("llm: completion failed, retrying")

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		backoff *= 2
		if backoff > p.cfg.MaxBackoff {
			backoff = p.cfg.MaxBackoff
		}
	}
	return nil, fmt.Errorf("llm: completion failed after %d attempts: %w", p.cfg.MaxRetries+1, lastErr)
}
