package ratelimiting

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// OutboundLimiter bounds calls to an upstream API: at most `concurrency`
// in flight, paced at `perSecond` with the given burst. Unlike the per-key
// limiter it blocks instead of rejecting, since outbound work is ours to
// schedule.
type OutboundLimiter struct {
	slots chan struct{}
	pacer *rate.Limiter
}

func NewOutboundLimiter(concurrency int, perSecond float64, burst int) *OutboundLimiter {
	slots := make(chan struct{}, concurrency)
	for i := 0; i < concurrency; i++ {
		slots <- struct{}{}
	}

	return &OutboundLimiter{
		slots: slots,
		pacer: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Do runs the operation once a slot and a token are available, or returns
// the context's error without running it.
func (l *OutboundLimiter) Do(ctx context.Context, operation func() error) error {
	select {
	case <-l.slots:
		defer func() {
			l.slots <- struct{}{}
		}()
	case <-ctx.Done():
		return fmt.Errorf("ratelimiting: waiting for slot: %w", ctx.Err())
	}

	if err := l.pacer.Wait(ctx); err != nil {
		return fmt.Errorf("ratelimiting: waiting for token: %w", err)
	}

	return operation()
}
