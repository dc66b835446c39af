package ratelimit_test

import (
	"testing"
	"time"

	"github.com/ladzaretti/vaultagent/sshagent/ratelimit"
)

func TestLimiter_GlobalInterval(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{MinInterval: time.Second})

	now := time.Now()

	if got := l.Allow(now, "key", "host", ratelimit.Thresholds{}); got != ratelimit.Allowed {
		t.Fatalf("first Allow() = %v, want Allowed", got)
	}

	l.Record(now, "key", "host", ratelimit.Thresholds{})

	if got := l.Allow(now.Add(500*time.Millisecond), "key", "host", ratelimit.Thresholds{}); got != ratelimit.GlobalInterval {
		t.Errorf("Allow() within min interval = %v, want GlobalInterval", got)
	}

	if got := l.Allow(now.Add(2*time.Second), "key", "host", ratelimit.Thresholds{}); got != ratelimit.Allowed {
		t.Errorf("Allow() past min interval = %v, want Allowed", got)
	}
}

func TestLimiter_KeyWindow(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{
		KeyWindow:  time.Minute,
		KeyMaxUses: 2,
	})

	now := time.Now()

	l.Record(now, "key", "host-a", ratelimit.Thresholds{})
	l.Record(now, "key", "host-b", ratelimit.Thresholds{})

	if got := l.Allow(now, "key", "host-c", ratelimit.Thresholds{}); got != ratelimit.KeyWindow {
		t.Errorf("Allow() at max uses = %v, want KeyWindow", got)
	}

	if got := l.Allow(now.Add(2*time.Minute), "key", "host-c", ratelimit.Thresholds{}); got != ratelimit.Allowed {
		t.Errorf("Allow() after window slides = %v, want Allowed", got)
	}
}

func TestLimiter_HostWindow(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{
		HostWindow:  time.Minute,
		HostMaxUses: 1,
	})

	now := time.Now()

	l.Record(now, "key-a", "host", ratelimit.Thresholds{})

	if got := l.Allow(now, "key-b", "host", ratelimit.Thresholds{}); got != ratelimit.HostWindow {
		t.Errorf("Allow() at max uses = %v, want HostWindow", got)
	}

	if got := l.Allow(now, "key-b", "other-host", ratelimit.Thresholds{}); got != ratelimit.Allowed {
		t.Errorf("Allow() for a different host = %v, want Allowed", got)
	}
}

func TestLimiter_ZeroConfigAlwaysAllows(t *testing.T) {
	l := ratelimit.New(ratelimit.Config{})

	now := time.Now()

	for i := 0; i < 5; i++ {
		if got := l.Allow(now, "key", "host", ratelimit.Thresholds{}); got != ratelimit.Allowed {
			t.Fatalf("Allow() iteration %d = %v, want Allowed", i, got)
		}

		l.Record(now, "key", "host", ratelimit.Thresholds{})
	}
}

func TestLimiter_PerRuleThresholdOverridesGlobalConfig(t *testing.T) {
	// No global per-key cap configured; a matched policy rule's threshold
	// must still be enforced via the per-call override.
	l := ratelimit.New(ratelimit.Config{})

	now := time.Now()
	th := ratelimit.Thresholds{KeyMax: 1, KeyWindow: time.Minute}

	if got := l.Allow(now, "key", "host", th); got != ratelimit.Allowed {
		t.Fatalf("first Allow() = %v, want Allowed", got)
	}

	l.Record(now, "key", "host", th)

	if got := l.Allow(now, "key", "host-2", th); got != ratelimit.KeyWindow {
		t.Errorf("Allow() at per-rule max uses = %v, want KeyWindow", got)
	}

	if got := l.Allow(now.Add(2*time.Minute), "key", "host-2", th); got != ratelimit.Allowed {
		t.Errorf("Allow() after per-rule window slides = %v, want Allowed", got)
	}
}
