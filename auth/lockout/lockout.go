// Package lockout provides brute-force login protection: failed attempts
// are tracked per identity in Redis, with a configurable progressive
// delay on each failure and a hard lockout once the attempt count crosses
// a threshold.
package lockout

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aras-services/svccore/config"
)

// Status is the result of checking or recording an attempt against an
// identity's lockout state.
type Status struct {
	Locked               bool
	LockoutRemainingSecs int64
	DelayMs              int64
	AttemptCount         uint32
}

// Service enforces login lockout policy for one configured set of rules.
type Service struct {
	client        *redis.Client
	cfg           config.LockoutConfig
	notifications []Notification
}

// Option configures a Service at construction time.
type Option func(*Service)

// WithNotification registers a handler for lockout lifecycle events.
func WithNotification(n Notification) Option {
	return func(s *Service) { s.notifications = append(s.notifications, n) }
}

// New constructs a Service backed by client, enforcing cfg's thresholds.
func New(cfg config.LockoutConfig, client *redis.Client, opts ...Option) *Service {
	s := &Service{client: client, cfg: cfg}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) attemptsKey(identity string) string {
	return fmt.Sprintf("%s:attempts:%s", s.cfg.KeyPrefix, identity)
}

func (s *Service) lockedKey(identity string) string {
	return fmt.Sprintf("%s:locked:%s", s.cfg.KeyPrefix, identity)
}

// Check reports whether identity is currently locked out, without
// recording an attempt. Callers should run this before verifying
// credentials so a locked identity never reaches the auth backend.
func (s *Service) Check(ctx context.Context, identity string) (Status, error) {
	if !s.cfg.Enabled {
		return Status{}, nil
	}

	ttl, err := s.client.TTL(ctx, s.lockedKey(identity)).Result()
	if err != nil {
		return Status{}, fmt.Errorf("checking lockout state: %w", err)
	}
	if ttl <= 0 {
		return Status{}, nil
	}
	return Status{Locked: true, LockoutRemainingSecs: int64(math.Ceil(ttl.Seconds()))}, nil
}

// RecordFailure registers a failed login attempt for identity. It returns
// the resulting Status: Locked if this failure crossed the threshold, and
// DelayMs set to the progressive delay the caller should apply before
// responding (0 if progressive delay is disabled; base_delay_ms for the
// first failure of a window).
func (s *Service) RecordFailure(ctx context.Context, identity string) (Status, error) {
	if !s.cfg.Enabled {
		return Status{}, nil
	}

	if status, err := s.Check(ctx, identity); err != nil {
		return Status{}, err
	} else if status.Locked {
		return status, nil
	}

	window := time.Duration(s.cfg.WindowSecs) * time.Second
	count, err := s.incrementAttempts(ctx, identity, window)
	if err != nil {
		return Status{}, err
	}

	if count >= s.cfg.MaxAttempts {
		lockoutDuration := time.Duration(s.cfg.LockoutDurationSecs) * time.Second
		if err := s.client.Set(ctx, s.lockedKey(identity), "1", lockoutDuration).Err(); err != nil {
			return Status{}, fmt.Errorf("setting lockout key: %w", err)
		}
		s.client.Del(ctx, s.attemptsKey(identity))

		dispatch(s.notifications, Event{
			Kind:                EventAccountLocked,
			Identity:            identity,
			AttemptCount:        count,
			LockoutDurationSecs: s.cfg.LockoutDurationSecs,
		})
		return Status{Locked: true, LockoutRemainingSecs: int64(s.cfg.LockoutDurationSecs), AttemptCount: count}, nil
	}

	dispatch(s.notifications, Event{
		Kind:         EventFailedAttempt,
		Identity:     identity,
		AttemptCount: count,
		MaxAttempts:  s.cfg.MaxAttempts,
	})

	if s.cfg.WarningThreshold > 0 && count == s.cfg.WarningThreshold {
		dispatch(s.notifications, Event{
			Kind:              EventApproachingThreshold,
			Identity:          identity,
			AttemptCount:      count,
			RemainingAttempts: s.cfg.MaxAttempts - count,
		})
	}

	return Status{AttemptCount: count, DelayMs: s.delayForAttempt(count)}, nil
}

// RecordSuccess clears any failed-attempt and lockout state for identity.
// Call this after a successful credential check.
func (s *Service) RecordSuccess(ctx context.Context, identity string) error {
	if !s.cfg.Enabled {
		return nil
	}

	wasLocked, err := s.client.Del(ctx, s.lockedKey(identity)).Result()
	if err != nil {
		return fmt.Errorf("clearing lockout key: %w", err)
	}
	if err := s.client.Del(ctx, s.attemptsKey(identity)).Err(); err != nil {
		return fmt.Errorf("clearing attempts key: %w", err)
	}

	if wasLocked > 0 {
		dispatch(s.notifications, Event{
			Kind:     EventAccountUnlocked,
			Identity: identity,
			Reason:   UnlockSuccessfulLogin,
		})
	}
	return nil
}

// Unlock clears identity's lockout state administratively, regardless of
// whether it is currently locked.
func (s *Service) Unlock(ctx context.Context, identity string) error {
	if err := s.client.Del(ctx, s.lockedKey(identity), s.attemptsKey(identity)).Err(); err != nil {
		return fmt.Errorf("clearing lockout state: %w", err)
	}
	dispatch(s.notifications, Event{
		Kind:     EventAccountUnlocked,
		Identity: identity,
		Reason:   UnlockAdminAction,
	})
	return nil
}

func (s *Service) incrementAttempts(ctx context.Context, identity string, window time.Duration) (uint32, error) {
	key := s.attemptsKey(identity)
	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("incrementing attempt counter: %w", err)
	}
	if count == 1 {
		if err := s.client.Expire(ctx, key, window).Err(); err != nil {
			return 0, fmt.Errorf("setting attempt window expiry: %w", err)
		}
	}
	return uint32(count), nil
}

// delayForAttempt computes the progressive backoff delay for the given
// attempt count: base * multiplier^(count-1), capped at max_delay_ms.
func (s *Service) delayForAttempt(count uint32) int64 {
	if !s.cfg.ProgressiveDelayEnabled || count == 0 {
		return 0
	}
	delay := float64(s.cfg.BaseDelayMs) * math.Pow(s.cfg.DelayMultiplier, float64(count-1))
	if max := float64(s.cfg.MaxDelayMs); delay > max {
		delay = max
	}
	return int64(delay)
}
