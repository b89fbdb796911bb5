package ratelimiter

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/notifyhub/dispatch/internal/domain"
)

// ChannelLimiter throttles outbound deliveries per channel so one hot
// channel cannot starve the provider accounts of the others.
type ChannelLimiter struct {
	limiters map[domain.MessageType]*rate.Limiter
}

// New builds a limiter allowing perSecond sends per channel, with a
// burst of the same size. A non-positive rate disables throttling.
func New(perSecond int) *ChannelLimiter {
	limiters := make(map[domain.MessageType]*rate.Limiter)
	for _, mt := range []domain.MessageType{
		domain.MessageTypeEmail,
		domain.MessageTypeSMS,
		domain.MessageTypePush,
	} {
		if perSecond > 0 {
			limiters[mt] = rate.NewLimiter(rate.Limit(perSecond), perSecond)
		} else {
			limiters[mt] = rate.NewLimiter(rate.Inf, 0)
		}
	}
	return &ChannelLimiter{limiters: limiters}
}

// Wait blocks until the channel has budget or the context is done.
func (l *ChannelLimiter) Wait(ctx context.Context, mt domain.MessageType) error {
	lim, ok := l.limiters[mt]
	if !ok {
		return nil
	}
	return lim.Wait(ctx)
}
