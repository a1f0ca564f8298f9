package alert

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/carscout-ai/carscout/internal/entitlements"
	"github.com/carscout-ai/carscout/internal/messaging"
)

// Notifier is the distinct delivery queue §4.9 calls for: a poll loop,
// separate from the pipeline's stage queue, that scans due AlertMatch
// rows and dispatches notifications subject to the plan's daily cap.
type Notifier struct {
	store        *Store
	entitlements *entitlements.Store
	transport    messaging.Transport
	logger       *slog.Logger
	batchSize    int
}

func NewNotifier(store *Store, ent *entitlements.Store, transport messaging.Transport, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{store: store, entitlements: ent, transport: transport, logger: logger, batchSize: 200}
}

// Run polls for due matches until ctx is canceled.
func (n *Notifier) Run(ctx context.Context, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.tick(ctx); err != nil {
				n.logger.Error("alert notifier tick failed", slog.Any("error", err))
			}
		}
	}
}

func (n *Notifier) tick(ctx context.Context) error {
	now := time.Now().UTC()
	due, err := n.store.DueMatches(ctx, now, n.batchSize)
	if err != nil {
		return err
	}
	for _, m := range due {
		n.deliver(ctx, m, now)
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, m DueMatch, now time.Time) {
	// Re-check alert active and subscription status at delivery time,
	// not match time (§4.9).
	active, err := n.store.ReloadAlertActive(ctx, m.AlertID)
	if err != nil {
		n.logger.Error("reload alert active failed", slog.Any("error", err))
		return
	}
	if !active {
		n.skip(ctx, m.MatchID, "alert no longer active")
		return
	}

	ent, err := n.entitlements.For(ctx, m.UserID)
	if err != nil {
		n.logger.Error("load entitlement view failed", slog.Any("error", err))
		return
	}
	if !ent.Active() {
		n.skip(ctx, m.MatchID, "subscription not active")
		return
	}

	if m.DailyCap > 0 {
		count, err := n.store.CountToday(ctx, m.UserID, now)
		if err != nil {
			n.logger.Error("count today failed", slog.Any("error", err))
			return
		}
		if count >= int64(m.DailyCap) {
			n.skip(ctx, m.MatchID, "daily cap reached")
			return
		}
	}

	recipient := strconv.FormatInt(m.TelegramUserID, 10)
	_, err = n.transport.SendMediaGroup(ctx, recipient, nil, "New match for your saved search.", nil)
	if err != nil {
		n.handleSendError(ctx, m.MatchID, err)
		return
	}

	if _, err := n.store.IncrementToday(ctx, m.UserID, now); err != nil {
		n.logger.Error("increment daily counter failed", slog.Any("error", err))
	}
	if err := n.store.MarkNotified(ctx, m.MatchID, now); err != nil {
		n.logger.Error("mark notified failed", slog.Any("error", err))
	}
}

// skip persists the match as status=skipped so DueMatches (status='pending')
// stops returning it on every subsequent tick.
func (n *Notifier) skip(ctx context.Context, matchID uuid.UUID, reason string) {
	n.logger.Info("alert match skipped", slog.String("match_id", matchID.String()), slog.String("reason", reason))
	if err := n.store.MarkSkipped(ctx, matchID); err != nil {
		n.logger.Error("mark skipped failed", slog.String("match_id", matchID.String()), slog.Any("error", err))
	}
}

// handleSendError marks the match failed on a permanent error (never
// retried, §7) and leaves it pending on a transient one (next tick
// retries it; matched_at stays fixed so the delay/cap window isn't reset).
func (n *Notifier) handleSendError(ctx context.Context, matchID uuid.UUID, err error) {
	switch err.(type) {
	case *messaging.RateLimitedError, *messaging.TransientError:
		n.logger.Warn("alert delivery transient failure, will retry", slog.String("match_id", matchID.String()), slog.Any("error", err))
	default:
		n.logger.Error("alert delivery permanent failure", slog.String("match_id", matchID.String()), slog.Any("error", err))
		if markErr := n.store.MarkFailed(ctx, matchID); markErr != nil {
			n.logger.Error("mark failed failed", slog.Any("error", markErr))
		}
	}
}
