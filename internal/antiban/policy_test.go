package antiban

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mediaflux/hub/internal/models"
)

func testPolicy(minDelay time.Duration, now time.Time) *Policy {
	return NewPolicy(minDelay, rand.New(rand.NewSource(1)), func() time.Time { return now })
}

func TestCanPostNowActiveAccount(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	p := testPolicy(30*time.Minute, now)

	lastPost := now.Add(-2 * time.Hour)
	acc := &models.Account{
		Status:            models.AccountStatusActive,
		DailyLimit:        5,
		CurrentDailyPosts: 2,
		LastPostTime:      &lastPost,
	}

	ok, reason := p.CanPostNow(acc)
	require.True(t, ok)
	require.Equal(t, "OK", reason)
}

func TestCanPostNowRejectsNonActiveStatus(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	p := testPolicy(30*time.Minute, now)

	for _, status := range []models.AccountStatus{
		models.AccountStatusLimited,
		models.AccountStatusBanned,
		models.AccountStatusError,
	} {
		acc := &models.Account{Status: status, DailyLimit: 5}
		ok, reason := p.CanPostNow(acc)
		require.False(t, ok, "status %s should block posting", status)
		require.Contains(t, reason, string(status))
	}
}

func TestCanPostNowRejectsExhaustedQuota(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	p := testPolicy(30*time.Minute, now)

	acc := &models.Account{
		Status:            models.AccountStatusActive,
		DailyLimit:        5,
		CurrentDailyPosts: 5,
	}

	ok, reason := p.CanPostNow(acc)
	require.False(t, ok)
	require.Contains(t, reason, "daily limit")
}

func TestCanPostNowRejectsTooSoonAfterLastPost(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	p := testPolicy(30*time.Minute, now)

	lastPost := now.Add(-10 * time.Minute)
	acc := &models.Account{
		Status:       models.AccountStatusActive,
		DailyLimit:   5,
		LastPostTime: &lastPost,
	}

	ok, reason := p.CanPostNow(acc)
	require.False(t, ok)
	require.Contains(t, reason, "too soon")
}

func TestCanPostNowNeverPostedBefore(t *testing.T) {
	now := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	p := testPolicy(30*time.Minute, now)

	acc := &models.Account{Status: models.AccountStatusActive, DailyLimit: 2}

	ok, _ := p.CanPostNow(acc)
	require.True(t, ok)
}

func TestJitterTimeStaysWithinWindow(t *testing.T) {
	base := time.Date(2025, 6, 2, 14, 0, 0, 0, time.UTC)
	p := testPolicy(30*time.Minute, base)

	for i := 0; i < 200; i++ {
		jittered := p.JitterTime(base)
		diff := jittered.Sub(base)
		if diff < 0 {
			diff = -diff
		}
		require.LessOrEqual(t, diff, 30*time.Minute)
	}
}

func TestQuotaForAccountAge(t *testing.T) {
	cases := []struct {
		ageDays int
		want    int
	}{
		{0, NewAccountLimit},
		{29, NewAccountLimit},
		{30, NormalAccountLimit},
		{89, NormalAccountLimit},
		{90, TrustedAccountLimit},
		{364, TrustedAccountLimit},
		{365, PremiumAccountLimit},
		{1000, PremiumAccountLimit},
	}

	for _, tc := range cases {
		require.Equal(t, tc.want, QuotaForAccountAge(tc.ageDays), "age %d days", tc.ageDays)
	}
}
