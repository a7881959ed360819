// Package antiban holds the pure posting-policy rules: whether an account may
// publish right now, how much it may publish per day, and the randomized time
// offsets that keep the schedule from looking machine-generated.
package antiban

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/mediaflux/hub/internal/models"
)

// Daily quotas by account age tier.
const (
	NewAccountLimit     = 2  // younger than 30 days
	NormalAccountLimit  = 5  // younger than 90 days
	TrustedAccountLimit = 8  // younger than a year
	PremiumAccountLimit = 12 // a year or older
)

const jitterWindow = 30 * time.Minute

type Policy struct {
	minDelay time.Duration
	rng      *rand.Rand
	now      func() time.Time
}

// NewPolicy builds a policy with the given minimum inter-post delay. The
// random source and clock are injected so tests can pin outcomes.
func NewPolicy(minDelay time.Duration, rng *rand.Rand, now func() time.Time) *Policy {
	if now == nil {
		now = time.Now
	}
	return &Policy{minDelay: minDelay, rng: rng, now: now}
}

// CanPostNow reports whether the account may publish immediately. The reason
// string is operator-readable and is recorded on the task when it causes a
// reschedule.
func (p *Policy) CanPostNow(acc *models.Account) (bool, string) {
	if acc.Status != models.AccountStatusActive {
		return false, fmt.Sprintf("account status is %s", acc.Status)
	}

	if acc.CurrentDailyPosts >= acc.DailyLimit {
		return false, fmt.Sprintf("daily limit reached (%d)", acc.DailyLimit)
	}

	if acc.LastPostTime != nil {
		elapsed := p.now().Sub(*acc.LastPostTime)
		if elapsed < p.minDelay {
			wait := (p.minDelay - elapsed).Round(time.Minute)
			return false, fmt.Sprintf("too soon after last post, wait %s", wait)
		}
	}

	return true, "OK"
}

// JitterTime offsets a base time by a uniform ±30 minutes.
func (p *Policy) JitterTime(base time.Time) time.Time {
	offset := time.Duration(p.rng.Int63n(int64(2*jitterWindow))) - jitterWindow
	return base.Add(offset)
}

// QuotaForAccountAge maps account age to its daily posting quota tier.
func QuotaForAccountAge(ageDays int) int {
	switch {
	case ageDays < 30:
		return NewAccountLimit
	case ageDays < 90:
		return NormalAccountLimit
	case ageDays < 365:
		return TrustedAccountLimit
	default:
		return PremiumAccountLimit
	}
}

// MinDelay exposes the configured inter-post spacing for schedule generation.
func (p *Policy) MinDelay() time.Duration {
	return p.minDelay
}
