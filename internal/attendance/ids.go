package attendance

import (
	"strconv"
	"sync/atomic"
	"time"
)

// IDAllocator hands out time-derived student ids. Ids are unique within the
// process only: two processes started in the same millisecond can collide.
type IDAllocator struct {
	last atomic.Int64
	now  func() time.Time
}

// NewIDAllocator creates an allocator driven by the wall clock.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{now: time.Now}
}

// Allocate returns supplied unchanged when it is not empty, otherwise
// "ID" followed by the current unix milliseconds, bumped past the last
// value handed out.
func (a *IDAllocator) Allocate(supplied string) string {
	if supplied != "" {
		return supplied
	}
	for {
		prev := a.last.Load()
		next := a.now().UnixMilli()
		if next <= prev {
			next = prev + 1
		}
		if a.last.CompareAndSwap(prev, next) {
			return "ID" + strconv.FormatInt(next, 10)
		}
	}
}
