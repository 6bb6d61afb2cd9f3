/*
NAME
  timedmutex.go

DESCRIPTION
  timedmutex.go implements a mutex that supports acquiring with a
  timeout, matching the role of std::timed_mutex in
  original_source/audio_mixer.h's audio_mutex: AddAudio/AddSilence try
  to take it for a short duration and report failure rather than block,
  so a producer never deadlocks against a consumer holding the lock
  while tearing a device down.

AUTHOR
  Trek Hopton <trek@ausocean.org>

LICENSE
  Copyright (C) 2024 the Australian Ocean Lab (AusOcean). All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of the Australian Ocean Lab (AusOcean).
*/

package mixer

import "time"

// timedMutex is a binary semaphore supporting both blocking Lock and a
// bounded TryLockTimeout.
type timedMutex chan struct{}

func newTimedMutex() timedMutex {
	m := make(timedMutex, 1)
	m <- struct{}{}
	return m
}

// Lock blocks until the mutex is acquired.
func (m timedMutex) Lock() { <-m }

// Unlock releases the mutex. Unlocking an already-unlocked timedMutex
// panics, same as sync.Mutex.
func (m timedMutex) Unlock() {
	select {
	case m <- struct{}{}:
	default:
		panic("mixer: unlock of unlocked timedMutex")
	}
}

// TryLockTimeout attempts to acquire the mutex within d, returning false
// if it could not.
func (m timedMutex) TryLockTimeout(d time.Duration) bool {
	select {
	case <-m:
		return true
	case <-time.After(d):
		return false
	}
}
