package util

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// LimiterState represents the state of the activation limiter
type LimiterState string

const (
	LimiterStateIdle    LimiterState = "IDLE"    // accepting activations
	LimiterStateCooling LimiterState = "COOLING" // inside the per-activation cooldown
	LimiterStateTripped LimiterState = "TRIPPED" // window cap exceeded, all activity blocked
)

// String implements Stringer interface
func (s LimiterState) String() string {
	return string(s)
}

// ActivationLimiterConfig tunes the limiter windows.
type ActivationLimiterConfig struct {
	Cooldown       time.Duration // minimum gap between accepted activations
	Window         time.Duration // sliding window for the activation cap
	MaxActivations int           // activations allowed inside Window
	TripDuration   time.Duration // how long the limiter stays tripped
}

// DefaultActivationLimiterConfig guards external-trigger-driven scans:
// 2s cooldown, at most 5 activations per 60s, 60s lockout once exceeded.
func DefaultActivationLimiterConfig() ActivationLimiterConfig {
	return ActivationLimiterConfig{
		Cooldown:       2 * time.Second,
		Window:         60 * time.Second,
		MaxActivations: 5,
		TripDuration:   60 * time.Second,
	}
}

// ActivationLimiter is a pure clock-driven state machine preventing feedback
// loops where the bridge's own output re-triggers the host's scanning.
// Transitions depend only on wall-clock timestamps and the activation record;
// the tripped state auto-resets once TripDuration elapses.
type ActivationLimiter struct {
	cfg            ActivationLimiterConfig
	mu             sync.Mutex
	now            func() time.Time
	lastActivation time.Time
	activations    []time.Time
	trippedUntil   time.Time
	logger         *zap.Logger
}

// NewActivationLimiter creates a limiter in the idle state.
func NewActivationLimiter(cfg ActivationLimiterConfig, logger *zap.Logger) *ActivationLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActivationLimiter{
		cfg:    cfg,
		now:    time.Now,
		logger: logger,
	}
}

// Allow records an activation attempt and reports whether it may proceed.
// A rejected attempt is silently dropped by the caller; rejection is
// self-healing and never user-visible.
func (l *ActivationLimiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if !l.trippedUntil.IsZero() {
		if now.Before(l.trippedUntil) {
			l.logger.Debug("Activation limiter: tripped, dropping activation",
				zap.Time("until", l.trippedUntil),
			)
			return false
		}
		l.logger.Info("Activation limiter: trip window elapsed, resetting",
			zap.String("from", LimiterStateTripped.String()),
			zap.String("to", LimiterStateIdle.String()),
		)
		l.trippedUntil = time.Time{}
		l.activations = l.activations[:0]
	}

	l.prune(now)

	if !l.lastActivation.IsZero() && now.Sub(l.lastActivation) < l.cfg.Cooldown {
		l.logger.Debug("Activation limiter: inside cooldown, dropping activation",
			zap.Duration("since_last", now.Sub(l.lastActivation)),
			zap.Duration("cooldown", l.cfg.Cooldown),
		)
		return false
	}

	if len(l.activations) >= l.cfg.MaxActivations {
		l.trippedUntil = now.Add(l.cfg.TripDuration)
		l.logger.Warn("Activation limiter: window cap exceeded, TRIPPING",
			zap.Int("cap", l.cfg.MaxActivations),
			zap.Duration("window", l.cfg.Window),
			zap.Time("until", l.trippedUntil),
		)
		return false
	}

	l.activations = append(l.activations, now)
	l.lastActivation = now
	return true
}

// prune drops activation records older than the sliding window. Caller holds the lock.
func (l *ActivationLimiter) prune(now time.Time) {
	cutoff := now.Add(-l.cfg.Window)
	kept := l.activations[:0]
	for _, t := range l.activations {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.activations = kept
}

// State returns the current limiter state.
func (l *ActivationLimiter) State() LimiterState {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	switch {
	case !l.trippedUntil.IsZero() && now.Before(l.trippedUntil):
		return LimiterStateTripped
	case !l.lastActivation.IsZero() && now.Sub(l.lastActivation) < l.cfg.Cooldown:
		return LimiterStateCooling
	default:
		return LimiterStateIdle
	}
}

// Reset manually returns the limiter to idle.
func (l *ActivationLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.logger.Info("Activation limiter: manual reset")
	l.trippedUntil = time.Time{}
	l.lastActivation = time.Time{}
	l.activations = l.activations[:0]
}
