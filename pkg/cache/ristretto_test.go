package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestCache(t *testing.T) *RistrettoCache {
	t.Helper()

	c, err := NewRistrettoCache(&RistrettoConfig{
		NumCounters: 1000,
		MaxCost:     100,
		BufferItems: 64,
		Logger:      zap.NewNop(),
	})
	require.NoError(t, err)
	t.Cleanup(c.Close)

	rc, ok := c.(*RistrettoCache)
	require.True(t, ok)
	return rc
}

func TestRistrettoCache_SetGet(t *testing.T) {
	c := newTestCache(t)

	ok := c.Set("btc-updown-5m-1700000100", "market-payload", time.Minute)
	require.True(t, ok)
	c.Wait()

	value, found := c.Get("btc-updown-5m-1700000100")
	require.True(t, found)
	assert.Equal(t, "market-payload", value)
}

func TestRistrettoCache_GetMissing(t *testing.T) {
	c := newTestCache(t)

	_, found := c.Get("no-such-window")
	assert.False(t, found)
}

func TestRistrettoCache_Delete(t *testing.T) {
	c := newTestCache(t)

	c.Set("slug", 42, time.Minute)
	c.Wait()
	c.Delete("slug")
	c.Wait()

	_, found := c.Get("slug")
	assert.False(t, found)
}

func TestRistrettoCache_TTLExpiry(t *testing.T) {
	c := newTestCache(t)

	c.Set("slug", 42, 10*time.Millisecond)
	c.Wait()
	time.Sleep(50 * time.Millisecond)

	_, found := c.Get("slug")
	assert.False(t, found)
}
