//go:build deadlock

// Package syncutil provides the mutex types used to serialise access to a
// reader. This file is compiled when building with -tags=deadlock and swaps in
// github.com/sasha-s/go-deadlock so a stuck command exchange is reported
// instead of hanging silently.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

// Mutex wraps deadlock.Mutex for deadlock detection.
type Mutex struct {
	deadlock.Mutex
}

// RWMutex wraps deadlock.RWMutex for deadlock detection.
type RWMutex struct {
	deadlock.RWMutex
}
