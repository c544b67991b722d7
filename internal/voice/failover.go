package voice

import (
	"context"
	"fmt"
	"sync/atomic"
)

// NewFailoverSTT builds a recognition engine that prefers primary and switches
// to fallback when a primary session fails to start. Once fallback succeeds it
// stays active until fallback fails; then primary is retried.
func NewFailoverSTT(primary, fallback STTProvider) STTProvider {
	if primary == nil {
		return fallback
	}
	if fallback == nil {
		return primary
	}
	return &failoverSTTProvider{primary: primary, fallback: fallback}
}

type failoverSTTProvider struct {
	fallbackActive atomic.Bool
	primary        STTProvider
	fallback       STTProvider
}

func (p *failoverSTTProvider) StartSession(ctx context.Context, sessionID string, opts RecognitionOptions) (STTSession, <-chan STTEvent, error) {
	if p.fallbackActive.Load() {
		session, events, fbErr := p.fallback.StartSession(ctx, sessionID, opts)
		if fbErr == nil {
			return session, events, nil
		}
		// Fallback failed after being active; try primary again.
		session, events, prErr := p.primary.StartSession(ctx, sessionID, opts)
		if prErr == nil {
			p.fallbackActive.Store(false)
			return session, events, nil
		}
		return nil, nil, fmt.Errorf("stt fallback failed: %v; stt primary failed: %w", fbErr, prErr)
	}

	session, events, prErr := p.primary.StartSession(ctx, sessionID, opts)
	if prErr == nil {
		return session, events, nil
	}

	session, events, fbErr := p.fallback.StartSession(ctx, sessionID, opts)
	if fbErr != nil {
		return nil, nil, fmt.Errorf("stt primary failed: %v; stt fallback failed: %w", prErr, fbErr)
	}
	p.fallbackActive.Store(true)
	return session, events, nil
}

// FallbackActive reports whether sessions are currently served by fallback.
func (p *failoverSTTProvider) FallbackActive() bool { return p.fallbackActive.Load() }
