package analyzer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultCacheExpiresEntries(t *testing.T) {
	now := time.Now()
	cache := newResultCache(15*time.Minute, 10)
	cache.now = func() time.Time { return now }

	cache.Set("key", Result{ConfidenceScore: 0.5})

	got, ok := cache.Get("key")
	require.True(t, ok)
	assert.Equal(t, 0.5, got.ConfidenceScore)

	now = now.Add(15*time.Minute + time.Second)

	_, ok = cache.Get("key")
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Len())
}

func TestResultCacheEvictsOldestPastCapacity(t *testing.T) {
	now := time.Now()
	cache := newResultCache(time.Hour, 100)
	cache.now = func() time.Time { return now }

	for i := 0; i < 101; i++ {
		cache.Set(fmt.Sprintf("key-%d", i), Result{})
		now = now.Add(time.Second)
	}

	assert.Equal(t, 100, cache.Len())

	_, ok := cache.Get("key-0")
	assert.False(t, ok, "oldest entry should have been evicted")

	_, ok = cache.Get("key-100")
	assert.True(t, ok, "newest entry should survive eviction")
}

func TestCacheKeyIsSensitiveToEachComponent(t *testing.T) {
	headers := map[string]string{"content-type": "application/json"}
	body := []byte(`{"action":"opened"}`)

	base := cacheKey("github", "POST", "/hooks", headers, body, "gpt-4o")

	assert.NotEqual(t, base, cacheKey("generic", "POST", "/hooks", headers, body, "gpt-4o"))
	assert.NotEqual(t, base, cacheKey("github", "PUT", "/hooks", headers, body, "gpt-4o"))
	assert.NotEqual(t, base, cacheKey("github", "POST", "/other", headers, body, "gpt-4o"))
	assert.NotEqual(t, base, cacheKey("github", "POST", "/hooks", headers, []byte(`{}`), "gpt-4o"))
	assert.NotEqual(t, base, cacheKey("github", "POST", "/hooks", nil, body, "gpt-4o"))
	assert.NotEqual(t, base, cacheKey("github", "POST", "/hooks", headers, body, "gpt-4o-mini"))

	assert.Equal(t, base, cacheKey("github", "POST", "/hooks", headers, body, "gpt-4o"))
}

func TestCacheKeyIgnoresHeaderOrder(t *testing.T) {
	a := map[string]string{"a": "1", "b": "2", "c": "3"}
	b := map[string]string{"c": "3", "a": "1", "b": "2"}

	assert.Equal(t,
		cacheKey("github", "POST", "/hooks", a, []byte(`{}`), "gpt-4o"),
		cacheKey("github", "POST", "/hooks", b, []byte(`{}`), "gpt-4o"),
	)
}
