package telegram

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// UpdateHandler consumes one incoming update. Implementations must not
// block longer than they can afford to stall the update stream.
type UpdateHandler interface {
	HandleUpdate(ctx context.Context, update Update)
}

// Poller drives the bot in local mode: a getUpdates long-poll loop
// feeding the handler. Updates within a poll batch are handled in
// order.
type Poller struct {
	client  *Client
	handler UpdateHandler
	logger  *slog.Logger

	pollTimeout int
	retryDelay  time.Duration
}

// NewPoller builds a Poller.
func NewPoller(client *Client, handler UpdateHandler, logger *slog.Logger) *Poller {
	return &Poller{
		client:      client,
		handler:     handler,
		logger:      logger,
		pollTimeout: 25,
		retryDelay:  3 * time.Second,
	}
}

// Run polls until ctx is cancelled. A webhook left over from a prior
// server run is detached first, since getUpdates and webhooks are
// mutually exclusive on the Bot API.
func (p *Poller) Run(ctx context.Context) error {
	if err := p.client.DeleteWebhook(ctx); err != nil {
		p.logger.WarnContext(ctx, "delete webhook failed", "error", err)
	}

	var offset int64
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		updates, err := p.client.GetUpdates(ctx, offset, p.pollTimeout)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return ctx.Err()
			}
			p.logger.WarnContext(ctx, "get updates failed", "error", err)
			select {
			case <-time.After(p.retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		for _, update := range updates {
			if update.UpdateID >= offset {
				offset = update.UpdateID + 1
			}
			p.handler.HandleUpdate(ctx, update)
		}
	}
}
