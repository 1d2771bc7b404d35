// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build deadlock

package syncutil

import (
	"time"

	deadlock "github.com/sasha-s/go-deadlock"
)

// HoldLimit is how long a lock may be waited on before it is reported.
// The worker ticks every few milliseconds, so seconds means a stuck goroutine.
const HoldLimit = 5 * time.Second

type (
	Mutex   = deadlock.Mutex
	RWMutex = deadlock.RWMutex
)

func init() {
	deadlock.Opts.DeadlockTimeout = HoldLimit
}

// Detecting reports whether locks are instrumented
func Detecting() bool { return true }
