// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

//go:build !deadlock

package syncutil

import "sync"

type (
	Mutex   = sync.Mutex
	RWMutex = sync.RWMutex
)

// Detecting reports whether locks are instrumented
func Detecting() bool { return false }
