package alert

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/classify"
	"github.com/Deepakp-t/ai-competitor-watchdog-v1/internal/store"
)

// Decision is the routing outcome for one classified change.
type Decision string

const (
	DeliverNow  Decision = "deliver-now"
	QueueMedium Decision = "queue-medium"
	QueueLow    Decision = "queue-low"
	Suppressed  Decision = "suppressed"
)

// Digest titles.
const (
	DailyTitle  = "Daily Competitive Intelligence Digest"
	WeeklyTitle = "Weekly Competitive Intelligence Summary"
)

// Config configures a Router.
type Config struct {
	Gate classify.Gate

	// Lookback windows for the sweeps. Defaults: 24h and 7 days.
	DailyLookback  time.Duration
	WeeklyLookback time.Duration

	Logger *zap.Logger
	Now    func() time.Time
}

// DefaultConfig returns the standard gate and lookback windows.
func DefaultConfig() Config {
	return Config{
		Gate:           classify.DefaultGate(),
		DailyLookback:  24 * time.Hour,
		WeeklyLookback: 7 * 24 * time.Hour,
	}
}

// Router decides how a classified change is surfaced and tracks delivery
// state in the store.
type Router struct {
	store  *store.Store
	sink   Sink
	cfg    Config
	logger *zap.Logger
	now    func() time.Time
}

// NewRouter returns a Router delivering through sink.
func NewRouter(st *store.Store, sink Sink, cfg Config) *Router {
	def := DefaultConfig()
	if cfg.Gate.Validators == nil {
		cfg.Gate = def.Gate
	}
	if cfg.DailyLookback <= 0 {
		cfg.DailyLookback = def.DailyLookback
	}
	if cfg.WeeklyLookback <= 0 {
		cfg.WeeklyLookback = def.WeeklyLookback
	}
	r := &Router{store: st, sink: sink, cfg: cfg, logger: cfg.Logger, now: cfg.Now}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

// Decide runs the quality gate and the asset threshold against a
// classification and picks the delivery tier. A Suppressed decision comes
// with the reason to record on the change; any other decision comes with
// an empty reason.
func (r *Router) Decide(ch store.Change, cls store.Classification, threshold store.Priority) (Decision, string) {
	log := r.logger.With(zap.Int64("change_id", ch.ID), zap.String("priority", string(cls.Priority)))

	if verr := r.cfg.Gate.Check(classify.CandidateFor(ch, cls)); verr != nil {
		log.Info("change failed quality gate", zap.String("reason", verr.Error()))
		return Suppressed, verr.Error()
	}

	if threshold != "" && cls.Priority.Ordinal() < threshold.Ordinal() {
		log.Info("change below threshold", zap.String("threshold", string(threshold)))
		return Suppressed, fmt.Sprintf("priority %s below asset threshold %s", cls.Priority, threshold)
	}

	switch cls.Priority {
	case store.PriorityHigh:
		return DeliverNow, ""
	case store.PriorityLow:
		return QueueLow, ""
	default:
		return QueueMedium, ""
	}
}

// Dispatch carries out a decision whose classification and suppression
// state are already stored. Only DeliverNow has work to do: the change is
// sent before Dispatch returns. Queued changes wait for a sweep.
func (r *Router) Dispatch(ctx context.Context, id int64, d Decision) error {
	if d != DeliverNow {
		return nil
	}
	_, err := r.deliverNow(ctx, id)
	return err
}

// Route is Decide, then recording a suppression, then Dispatch.
func (r *Router) Route(ctx context.Context, ch store.Change, cls store.Classification, threshold store.Priority) (Decision, error) {
	d, reason := r.Decide(ch, cls, threshold)
	if d == Suppressed {
		return d, r.suppress(ctx, ch.ID, reason)
	}
	return d, r.Dispatch(ctx, ch.ID, d)
}

func (r *Router) suppress(ctx context.Context, id int64, reason string) error {
	if err := r.store.Repo().SuppressChange(ctx, id, reason); err != nil {
		return fmt.Errorf("suppress change %d: %w", id, err)
	}
	return nil
}

// deliverNow transmits one change and records the delivery in the same
// transaction. It reports false when the change had already been sent.
// Only the transmission observes cancellation of ctx: once the sink has
// accepted the alert the delivery is committed.
func (r *Router) deliverNow(ctx context.Context, id int64) (bool, error) {
	txCtx := context.WithoutCancel(ctx)
	delivered := false
	err := r.store.InTx(txCtx, func(repo *store.Repo) error {
		d, err := repo.GetChange(txCtx, id)
		if err != nil {
			return fmt.Errorf("reload change %d: %w", id, err)
		}
		if d.Sent {
			return nil
		}

		if err := r.sink.Send(ctx, RecordFor(*d)); err != nil {
			return &DeliveryError{Channel: store.ChannelImmediate, Err: err}
		}

		at := r.now().UTC()
		ok, err := repo.MarkSent(txCtx, id, at)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		delivered = true
		return repo.AppendAlert(txCtx, &store.Alert{
			ChangeID:     id,
			Priority:     d.Priority,
			DeliveryType: store.ChannelImmediate,
			BatchID:      uuid.NewString(),
			SentAt:       at,
		})
	})
	if err != nil {
		return false, err
	}
	if delivered {
		r.logger.Info("sent immediate alert", zap.Int64("change_id", id))
	}
	return delivered, nil
}

// DeliverPending retries immediate delivery of unsent high-priority
// changes, for example after a sink outage. It returns how many were sent.
func (r *Router) DeliverPending(ctx context.Context) (int, error) {
	pending, err := r.store.Repo().PendingChanges(ctx, store.PriorityHigh, time.Time{})
	if err != nil {
		return 0, err
	}

	sent := 0
	var errs []error
	for _, d := range pending {
		if ctx.Err() != nil {
			break
		}
		ok, err := r.deliverNow(ctx, d.ID)
		if err != nil {
			r.logger.Error("immediate alert failed", zap.Int64("change_id", d.ID), zap.Error(err))
			errs = append(errs, err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, errors.Join(errs...)
}

type sweep struct {
	priority store.Priority
	channel  store.Channel
	title    string
	lookback time.Duration
}

// SweepDaily delivers unsent medium-priority changes from the daily
// lookback window as one digest. It returns how many changes were sent.
func (r *Router) SweepDaily(ctx context.Context) (int, error) {
	return r.sweep(ctx, sweep{
		priority: store.PriorityMedium,
		channel:  store.ChannelDailyDigest,
		title:    DailyTitle,
		lookback: r.cfg.DailyLookback,
	})
}

// SweepWeekly delivers unsent low-priority changes from the weekly
// lookback window as one summary.
func (r *Router) SweepWeekly(ctx context.Context) (int, error) {
	return r.sweep(ctx, sweep{
		priority: store.PriorityLow,
		channel:  store.ChannelWeeklySummary,
		title:    WeeklyTitle,
		lookback: r.cfg.WeeklyLookback,
	})
}

// sweep selects, transmits and marks a batch in one transaction, so a
// failed transmission leaves every change unsent. As in deliverNow, only
// the transmission observes cancellation of ctx.
func (r *Router) sweep(ctx context.Context, s sweep) (int, error) {
	now := r.now().UTC()
	log := r.logger.With(zap.String("channel", string(s.channel)))
	txCtx := context.WithoutCancel(ctx)

	count := 0
	err := r.store.InTx(txCtx, func(repo *store.Repo) error {
		pending, err := repo.PendingChanges(txCtx, s.priority, now.Add(-s.lookback))
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			return nil
		}

		digest := Digest{Title: s.title, Channel: s.channel}
		for _, d := range pending {
			digest.Records = append(digest.Records, RecordFor(d))
		}
		if err := r.sink.SendDigest(ctx, digest); err != nil {
			return &DeliveryError{Channel: s.channel, Err: err}
		}

		batch := uuid.NewString()
		for _, d := range pending {
			ok, err := repo.MarkSent(txCtx, d.ID, now)
			if err != nil {
				return err
			}
			if !ok {
				continue
			}
			if err := repo.AppendAlert(txCtx, &store.Alert{
				ChangeID:     d.ID,
				Priority:     d.Priority,
				DeliveryType: s.channel,
				BatchID:      batch,
				SentAt:       now,
			}); err != nil {
				return err
			}
			count++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if count == 0 {
		log.Info("nothing to sweep")
	} else {
		log.Info("sent digest", zap.Int("changes", count))
	}
	return count, nil
}
