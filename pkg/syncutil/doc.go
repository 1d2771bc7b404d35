// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package syncutil selects the lock implementation used by the link layer.
//
// Regular builds use the sync package directly. Building with
// -tags deadlock swaps in go-deadlock, which reports lock-order inversions
// and locks held longer than HoldLimit.
package syncutil
