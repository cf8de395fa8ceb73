// Package poller drives the periodic presence checks: one loop, one cycle
// per interval, one rate-limited query per tracked user, and a history write
// only when the observed status actually changed.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"presence-archive/internal/models"
	"presence-archive/internal/ratelimit"
	"presence-archive/internal/telegram"
)

// errRetryDelay is the shortened sleep after a cycle in which every query
// failed, so a dead upstream is probed again soon without hammering it.
const errRetryDelay = 5 * time.Second

// Store is the slice of the persistence layer the poller writes through.
type Store interface {
	UpsertUser(ctx context.Context, user models.User) error
	LastStatus(ctx context.Context, userID int64) (models.Status, bool, error)
	AppendStatus(ctx context.Context, userID int64, status models.Status, wasOnline *time.Time, recordedAt time.Time) error
}

type Poller struct {
	log     *slog.Logger
	store   Store
	client  telegram.Observer
	limiter *ratelimit.Limiter
	backoff *telegram.Backoff

	interval time.Duration
	tracked  []string

	// handle -> numeric id, resolved on first successful observation and
	// kept for the lifetime of this poller
	resolved map[string]int64
}

func New(log *slog.Logger, store Store, client telegram.Observer, limiter *ratelimit.Limiter, interval time.Duration, tracked []string) *Poller {
	return &Poller{
		log:      log,
		store:    store,
		client:   client,
		limiter:  limiter,
		backoff:  telegram.NewBackoff(),
		interval: interval,
		tracked:  tracked,
		resolved: make(map[string]int64),
	}
}

// Run loops until ctx is cancelled (returns nil) or the platform session
// expires (returns the fatal error). Recoverable per-user failures never end
// the run.
func (p *Poller) Run(ctx context.Context) error {
	p.log.Info("poller_started", "tracked_users", len(p.tracked), "interval", p.interval.String())

	for {
		succeeded, attempted, err := p.cycle(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				p.log.Info("poller_stopped")
				return nil
			}
			return err
		}

		sleep := p.interval
		if attempted > 0 && succeeded == 0 {
			p.log.Warn("cycle_failed", "attempted", attempted, "retry_in", errRetryDelay.String())
			if sleep > errRetryDelay {
				sleep = errRetryDelay
			}
		}

		if err := sleepCtx(ctx, sleep); err != nil {
			p.log.Info("poller_stopped")
			return nil
		}
	}
}

// cycle makes one pass over the tracked identifiers. It returns a fatal
// error only for cancellation or session expiry; everything else is logged
// and skipped until the next cycle.
func (p *Poller) cycle(ctx context.Context) (succeeded, attempted int, err error) {
	start := time.Now()

	for _, ident := range p.tracked {
		if ctx.Err() != nil {
			return succeeded, attempted, ctx.Err()
		}

		if d := p.backoff.Delay(); d > 0 {
			p.log.Info("backoff_wait", "delay", d.String())
			if err := sleepCtx(ctx, d); err != nil {
				return succeeded, attempted, err
			}
		}

		if err := p.limiter.Acquire(ctx); err != nil {
			return succeeded, attempted, err
		}

		attempted++
		obs, err := p.client.Observe(ctx, p.query(ident))
		if err != nil {
			if ctx.Err() != nil {
				return succeeded, attempted, ctx.Err()
			}
			if errors.Is(err, telegram.ErrAuthExpired) {
				p.log.Error("session_expired", "identifier", ident, "error", err)
				return succeeded, attempted, fmt.Errorf("halting poller: %w", err)
			}
			if te, ok := telegram.AsThrottled(err); ok {
				p.backoff.RecordThrottle(te.RetryAfter)
				p.log.Warn("platform_rate_limited", "identifier", ident, "retry_after", te.RetryAfter.String())
				continue
			}
			if errors.Is(err, telegram.ErrUnknownUser) {
				p.log.Warn("user_not_resolvable", "identifier", ident)
				continue
			}
			p.log.Warn("observe_failed", "identifier", ident, "error", err)
			continue
		}

		p.backoff.RecordSuccess()
		p.remember(ident, obs.UserID)
		succeeded++

		if err := p.record(ctx, obs); err != nil {
			p.log.Error("record_failed", "user_id", obs.UserID, "error", err)
		}
	}

	p.log.Info("cycle_complete",
		"attempted", attempted,
		"succeeded", succeeded,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return succeeded, attempted, nil
}

// record upserts the fresh profile and appends a history row when the status
// category changed. No prior history counts as a change, except that a first
// observation of unknown proves nothing and writes no row.
func (p *Poller) record(ctx context.Context, obs *telegram.Observation) error {
	now := time.Now().UTC()

	if err := p.store.UpsertUser(ctx, models.User{
		ID:        obs.UserID,
		Username:  obs.Username,
		FirstName: obs.FirstName,
		LastName:  obs.LastName,
		Phone:     obs.Phone,
		UpdatedAt: now,
	}); err != nil {
		return err
	}

	last, ok, err := p.store.LastStatus(ctx, obs.UserID)
	if err != nil {
		return err
	}
	if ok && last == obs.Status {
		p.log.Debug("status_unchanged", "user_id", obs.UserID, "status", string(obs.Status))
		return nil
	}
	if !ok && obs.Status == models.StatusUnknown {
		p.log.Debug("first_observation_unresolved", "user_id", obs.UserID)
		return nil
	}

	if err := p.store.AppendStatus(ctx, obs.UserID, obs.Status, obs.WasOnline, now); err != nil {
		return err
	}

	p.log.Info("status_changed",
		"user_id", obs.UserID,
		"previous", string(last),
		"status", string(obs.Status),
	)
	return nil
}

// query maps a tracked identifier to what is actually sent upstream: once a
// handle has resolved, later cycles ask by numeric id.
func (p *Poller) query(ident string) string {
	if id, ok := p.resolved[ident]; ok {
		return strconv.FormatInt(id, 10)
	}
	return ident
}

func (p *Poller) remember(ident string, userID int64) {
	if _, err := strconv.ParseInt(ident, 10, 64); err == nil {
		return
	}
	if _, ok := p.resolved[ident]; !ok {
		p.log.Info("handle_resolved", "handle", ident, "user_id", userID)
		p.resolved[ident] = userID
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
