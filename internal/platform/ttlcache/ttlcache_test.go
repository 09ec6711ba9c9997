package ttlcache

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGetWithinTTL(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cache := New(5 * time.Minute).WithClock(func() time.Time { return now })

	cache.Set("dpk_submission_stats_2025", 42)

	now = now.Add(4*time.Minute + 59*time.Second)
	value, ok := cache.Get("dpk_submission_stats_2025")
	require.True(t, ok)
	require.Equal(t, 42, value)
}

func TestGetEvictsExpiredEntry(t *testing.T) {
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	cache := New(5 * time.Minute).WithClock(func() time.Time { return now })

	cache.Set("dpk_submission_stats_2025", 42)

	now = now.Add(5 * time.Minute)
	_, ok := cache.Get("dpk_submission_stats_2025")
	require.False(t, ok)
	require.Zero(t, cache.Len())
}

func TestInvalidateBySubstring(t *testing.T) {
	cache := New(time.Minute)
	cache.Set("dpk_submission_stats_2025", 1)
	cache.Set("dpk_submission_stats_2024", 2)
	cache.Set("dpk_accuracy_2025", 3)

	cache.Invalidate("submission")

	_, ok := cache.Get("dpk_submission_stats_2025")
	require.False(t, ok)
	_, ok = cache.Get("dpk_submission_stats_2024")
	require.False(t, ok)

	value, ok := cache.Get("dpk_accuracy_2025")
	require.True(t, ok)
	require.Equal(t, 3, value)
}

func TestInvalidateAll(t *testing.T) {
	cache := New(time.Minute)
	cache.Set("a", 1)
	cache.Set("b", 2)

	cache.InvalidateAll()
	require.Zero(t, cache.Len())
}

func TestConcurrentAccess(t *testing.T) {
	cache := New(time.Minute)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(3)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Set("shared", j)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Get("shared")
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				cache.Invalidate("shar")
			}
		}()
	}
	wg.Wait()
}
