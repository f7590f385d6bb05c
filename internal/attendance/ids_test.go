package attendance

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDAllocator_SuppliedIDWins(t *testing.T) {
	a := NewIDAllocator()

	assert.Equal(t, "s1", a.Allocate("s1"))
	assert.Equal(t, "  s2 ", a.Allocate("  s2 "), "supplied ids are not trimmed")
	assert.Equal(t, " ", a.Allocate(" "))
}

func TestIDAllocator_GeneratesTimeDerivedIDs(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_000)
	a := &IDAllocator{now: func() time.Time { return fixed }}

	assert.Equal(t, "ID1700000000000", a.Allocate(""))
	assert.Equal(t, "ID1700000000001", a.Allocate(""), "same millisecond must not repeat")
}

func TestIDAllocator_ClockGoingBackwards(t *testing.T) {
	now := time.UnixMilli(2_000)
	a := &IDAllocator{now: func() time.Time { return now }}

	first := a.Allocate("")
	now = time.UnixMilli(1_000)
	second := a.Allocate("")

	assert.Equal(t, "ID2000", first)
	assert.Equal(t, "ID2001", second)
}

func TestIDAllocator_ConcurrentCallsAreUnique(t *testing.T) {
	a := NewIDAllocator()
	const n = 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, n)
		wg   sync.WaitGroup
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := a.Allocate("")
			mu.Lock()
			seen[id] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for id := range seen {
		assert.True(t, strings.HasPrefix(id, "ID"), id)
	}
}
