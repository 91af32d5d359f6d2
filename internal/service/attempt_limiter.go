package service

import (
	"context"
	"strings"
	"sync"
	"time"
)

// AttemptLimiter cuenta intentos de login o de verificación por clave.
// Cuando la clave agotó su cupo devuelve false y el tiempo hasta el próximo intento permitido.
type AttemptLimiter interface {
	Allow(ctx context.Context, key string) (bool, time.Duration)
}

// slidingAttemptLimiter guarda los intentos en memoria con ventana deslizante.
// Una vez por ventana barre las claves cuyos intentos expiraron.
type slidingAttemptLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	attempts  map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewMemoryAttemptLimiter sirve para una sola réplica o cuando Redis no está disponible.
func NewMemoryAttemptLimiter(window time.Duration, max int) AttemptLimiter {
	window, max = limiterBounds(window, max)
	return &slidingAttemptLimiter{
		window:    window,
		max:       max,
		attempts:  make(map[string][]time.Time),
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *slidingAttemptLimiter) Allow(_ context.Context, key string) (bool, time.Duration) {
	key = attemptKey(key)
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		for k, hits := range l.attempts {
			if recent := pruneAttempts(hits, cutoff); len(recent) > 0 {
				l.attempts[k] = recent
			} else {
				delete(l.attempts, k)
			}
		}
		l.lastSweep = now
	}

	recent := pruneAttempts(l.attempts[key], cutoff)
	if len(recent) >= l.max {
		l.attempts[key] = recent
		return false, recent[0].Add(l.window).Sub(now)
	}
	l.attempts[key] = append(recent, now)
	return true, 0
}

func pruneAttempts(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]
	for _, ts := range hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	return kept
}

func attemptKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func limiterBounds(window time.Duration, max int) (time.Duration, int) {
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	return window, max
}

type unlimitedAttempts struct{}

func (unlimitedAttempts) Allow(context.Context, string) (bool, time.Duration) { return true, 0 }
