// Package ratelimit implements the sign-request rate limits the SSH agent
// enforces: a global minimum interval between any two successful
// signatures, a per-key maximum uses within a sliding window, and a
// per-host maximum connections within a sliding window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter tracks sliding-window sign-request state. Zero value is not
// usable; construct with [New].
type Limiter struct {
	minInterval time.Duration
	keyWindow   time.Duration
	keyMaxUses  int
	hostWindow  time.Duration
	hostMaxUses int

	mu         sync.Mutex
	lastGlobal time.Time
	keyUses    map[string][]time.Time
	hostUses   map[string][]time.Time
}

// Config bundles the limiter's thresholds. A zero value for any window or
// max disables that particular check.
type Config struct {
	MinInterval time.Duration
	KeyWindow   time.Duration
	KeyMaxUses  int
	HostWindow  time.Duration
	HostMaxUses int
}

// Thresholds overrides a [Limiter]'s configured per-key/per-host window
// and use-count caps for a single Allow/Record call, the way a matched
// policy.KeyPolicy/HostPolicy's max-uses-per-window fields take precedence
// over the limiter's global Config. A zero Max leaves the corresponding
// check at the limiter's own configured default.
type Thresholds struct {
	KeyMax     int
	KeyWindow  time.Duration
	HostMax    int
	HostWindow time.Duration
}

// New returns a [Limiter] configured with cfg.
func New(cfg Config) *Limiter {
	return &Limiter{
		minInterval: cfg.MinInterval,
		keyWindow:   cfg.KeyWindow,
		keyMaxUses:  cfg.KeyMaxUses,
		hostWindow:  cfg.HostWindow,
		hostMaxUses: cfg.HostMaxUses,
		keyUses:     make(map[string][]time.Time),
		hostUses:    make(map[string][]time.Time),
	}
}

// Reason identifies which check rejected a request.
type Reason int

const (
	Allowed Reason = iota
	GlobalInterval
	KeyWindow
	HostWindow
)

func (l *Limiter) resolve(th Thresholds) (keyMax int, keyWindow time.Duration, hostMax int, hostWindow time.Duration) {
	keyMax, keyWindow = l.keyMaxUses, l.keyWindow
	if th.KeyMax > 0 {
		keyMax, keyWindow = th.KeyMax, th.KeyWindow
	}

	hostMax, hostWindow = l.hostMaxUses, l.hostWindow
	if th.HostMax > 0 {
		hostMax, hostWindow = th.HostMax, th.HostWindow
	}

	return keyMax, keyWindow, hostMax, hostWindow
}

// Allow evaluates all three checks for the given key id and target host at
// time now, without recording a use. th overrides the limiter's configured
// per-key/per-host caps when a matched policy rule supplies its own (pass
// the zero value to use only the limiter's Config). Call [Limiter.Record]
// only after the signature actually succeeds, so a denial never consumes
// budget.
func (l *Limiter) Allow(now time.Time, keyID, host string, th Thresholds) Reason {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.minInterval > 0 && !l.lastGlobal.IsZero() && now.Sub(l.lastGlobal) < l.minInterval {
		return GlobalInterval
	}

	keyMax, keyWindow, hostMax, hostWindow := l.resolve(th)

	if keyMax > 0 {
		uses := slideWindow(l.keyUses[keyID], now, keyWindow)
		if len(uses) >= keyMax {
			return KeyWindow
		}
	}

	if hostMax > 0 {
		uses := slideWindow(l.hostUses[host], now, hostWindow)
		if len(uses) >= hostMax {
			return HostWindow
		}
	}

	return Allowed
}

// Record registers a successful sign at time now for keyID/host, sliding
// each window by the same th used in the preceding [Limiter.Allow] call.
func (l *Limiter) Record(now time.Time, keyID, host string, th Thresholds) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.lastGlobal = now

	_, keyWindow, _, hostWindow := l.resolve(th)

	l.keyUses[keyID] = append(slideWindow(l.keyUses[keyID], now, keyWindow), now)
	l.hostUses[host] = append(slideWindow(l.hostUses[host], now, hostWindow), now)
}

// slideWindow returns the subset of ts within window of now, oldest first.
// A zero window keeps everything, so with no window configured the slice
// grows by one entry for every recorded use.
func slideWindow(ts []time.Time, now time.Time, window time.Duration) []time.Time {
	if window <= 0 {
		return ts
	}

	cutoff := now.Add(-window)

	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}

	return ts[i:]
}
