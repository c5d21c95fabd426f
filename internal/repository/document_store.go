package repository

import (
	"time"
)

// StoreObserver receives timings for document store operations.
type StoreObserver interface {
	ObserveStoreOperation(operation string, duration time.Duration)
}

const quarantineLayout = "20060102T150405Z"

// quarantineName returns the name a corrupt document is moved to.
func quarantineName(name string, at time.Time) string {
	return name + ".corrupt-" + at.UTC().Format(quarantineLayout)
}

func observe(observer StoreObserver, operation string, start time.Time) {
	if observer == nil {
		return
	}
	observer.ObserveStoreOperation(operation, time.Since(start))
}
