package event

import (
	"sync"
)

// depthPool recycles DepthEvent, the most frequent write into the store.
//
// Usage:
//
//	ev := AcquireDepthEvent()
//	ev.Pair, ev.Book = pair, book
//	// ... send to store ...
//	ReleaseDepthEvent(ev)  // called by the store after applying
var depthPool = sync.Pool{
	New: func() interface{} {
		return &DepthEvent{}
	},
}

// AcquireDepthEvent gets a DepthEvent from the pool.
// The returned event has zero values and must be initialized.
func AcquireDepthEvent() *DepthEvent {
	return depthPool.Get().(*DepthEvent)
}

// ReleaseDepthEvent returns a DepthEvent to the pool.
// The book is detached, not cleared; the store keeps it.
func ReleaseDepthEvent(ev *DepthEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Pair = ""
	ev.Book = nil

	depthPool.Put(ev)
}

// accountPool recycles AccountEvent.
var accountPool = sync.Pool{
	New: func() interface{} {
		return &AccountEvent{}
	},
}

// AcquireAccountEvent gets an AccountEvent from the pool.
func AcquireAccountEvent() *AccountEvent {
	return accountPool.Get().(*AccountEvent)
}

// ReleaseAccountEvent returns an AccountEvent to the pool.
func ReleaseAccountEvent(ev *AccountEvent) {
	if ev == nil {
		return
	}
	ev.Seq = 0
	ev.Ts = 0
	ev.Account = nil

	accountPool.Put(ev)
}

// Release returns pooled event types to their pool and ignores the rest.
func Release(ev Event) {
	switch e := ev.(type) {
	case *DepthEvent:
		ReleaseDepthEvent(e)
	case *AccountEvent:
		ReleaseAccountEvent(e)
	}
}

// Warmup pre-allocates event objects to reduce GC pressure at startup.
func Warmup() {
	const batchSize = 64

	depthEvs := make([]*DepthEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		depthEvs = append(depthEvs, AcquireDepthEvent())
	}
	for _, ev := range depthEvs {
		ReleaseDepthEvent(ev)
	}

	accountEvs := make([]*AccountEvent, 0, batchSize)
	for i := 0; i < batchSize; i++ {
		accountEvs = append(accountEvs, AcquireAccountEvent())
	}
	for _, ev := range accountEvs {
		ReleaseAccountEvent(ev)
	}
}
