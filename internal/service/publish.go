package service

import (
	"context"

	"github.com/rs/zerolog"

	"securechat/internal/feed"
	"securechat/internal/metrics"
)

// publisher pushes appended records to the live feed. Failures are logged and
// counted; the append they follow has already committed.
type publisher struct {
	broker feed.Broker
}

func (p publisher) publish(ctx context.Context, typ, topic string, payload any) {
	if p.broker == nil {
		return
	}
	logger := zerolog.Ctx(ctx)

	ev, err := feed.NewEvent(typ, topic, payload)
	if err == nil {
		err = p.broker.Publish(context.WithoutCancel(ctx), topic, ev)
	}
	if err != nil {
		metrics.FeedEventsPublished.WithLabelValues(typ, "error").Inc()
		logger.Warn().Err(err).Str("topic", topic).Msg("feed publish failed")
		return
	}
	metrics.FeedEventsPublished.WithLabelValues(typ, "ok").Inc()
}
