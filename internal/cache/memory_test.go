package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMemory() (*Memory, *time.Time) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	m := NewMemory()
	m.nowFunc = func() time.Time { return now }
	return m, &now
}

func TestMemory_SetGetDelete(t *testing.T) {
	m, _ := newTestMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	v, ok, err := m.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("1"), v)

	require.NoError(t, m.Delete(ctx, "a"))
	_, ok, err = m.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemory_Expiry(t *testing.T) {
	m, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), time.Minute))
	*now = now.Add(59 * time.Second)
	_, ok, _ := m.Get(ctx, "a")
	assert.True(t, ok)

	*now = now.Add(time.Second)
	_, ok, _ = m.Get(ctx, "a")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
}

func TestMemory_NoTTLNeverExpires(t *testing.T) {
	m, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "a", []byte("1"), 0))
	*now = now.Add(24 * 365 * time.Hour)
	_, ok, _ := m.Get(ctx, "a")
	assert.True(t, ok)
}

func TestMemory_ValuesAreCopied(t *testing.T) {
	m, _ := newTestMemory()
	ctx := context.Background()

	src := []byte("abc")
	require.NoError(t, m.Set(ctx, "a", src, time.Minute))
	src[0] = 'X'

	v, _, _ := m.Get(ctx, "a")
	assert.Equal(t, "abc", string(v))
	v[1] = 'Y'

	again, _, _ := m.Get(ctx, "a")
	assert.Equal(t, "abc", string(again))
}

func TestMemory_Sweep(t *testing.T) {
	m, now := newTestMemory()
	ctx := context.Background()

	require.NoError(t, m.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, m.Set(ctx, "long", []byte("2"), time.Hour))
	*now = now.Add(time.Minute)

	assert.Equal(t, 1, m.Sweep())
	assert.Equal(t, 1, m.Len())
}

func TestMemory_Concurrent(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = m.Set(ctx, key, []byte("v"), time.Minute)
			_, _, _ = m.Get(ctx, key)
			if i%3 == 0 {
				_ = m.Delete(ctx, key)
			}
		}(i)
	}
	wg.Wait()
	assert.LessOrEqual(t, m.Len(), 5)
}
