// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"errors"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/syncutil"
)

// ErrQueueFull is returned by Push when the queue is at capacity
var ErrQueueFull = errors.New("command queue full")

// DefaultQueueSize is used when a non-positive size is requested
const DefaultQueueSize = 64

// Queue is a bounded FIFO of outbound commands shared between producers
// and the worker. Push never blocks.
type Queue struct {
	mu    syncutil.Mutex
	items []lineproto.Command
	size  int
}

// NewQueue creates a queue holding at most size commands
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{
		items: make([]lineproto.Command, 0, size),
		size:  size,
	}
}

// Push appends cmd, or returns ErrQueueFull
func (q *Queue) Push(cmd lineproto.Command) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.size {
		return ErrQueueFull
	}
	q.items = append(q.items, cmd)
	return nil
}

// Front returns the oldest command without removing it
func (q *Queue) Front() (lineproto.Command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Pop removes the oldest command. The worker only pops after a successful
// write, so a command survives a failed transmission.
func (q *Queue) Pop() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return
	}
	q.items[0] = nil
	q.items = q.items[1:]
}

// Len returns the number of queued commands
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Cap returns the queue capacity
func (q *Queue) Cap() int {
	return q.size
}
