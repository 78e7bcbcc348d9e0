package db

import "time"

// Observer receives the duration and outcome of each record-store operation.
type Observer interface {
	ObserveStore(entity, operation string, d time.Duration, err error)
}

// NopObserver discards observations.
type NopObserver struct{}

func (NopObserver) ObserveStore(string, string, time.Duration, error) {}
