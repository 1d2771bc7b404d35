// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/syncutil"
)

// Snapshot is the published view of the board and the link
type Snapshot struct {
	Device   lineproto.State
	Link     State
	LastLine string
	Stats    lineproto.Statistics
}

type subscriber struct {
	id uint64
	fn func(Snapshot)
}

// Store holds the latest snapshot and fans it out to subscribers.
//
// Every update is delivered to every subscriber synchronously, in the order
// the updates were made. Subscribers receive copies and must not call Reset
// from inside the callback.
type Store struct {
	mu      syncutil.RWMutex // guards latest, subs and nextID
	pubMu   syncutil.Mutex   // serializes update + delivery
	latest  Snapshot
	initial lineproto.State
	subs    []subscriber
	nextID  uint64
}

// NewStore creates a store whose device state starts (and resets) to initial
func NewStore(initial lineproto.State) *Store {
	return &Store{
		latest:  Snapshot{Device: initial, Link: Disconnected},
		initial: initial,
	}
}

// Subscribe registers fn for every future snapshot. The returned function
// removes the subscription.
func (s *Store) Subscribe(fn func(Snapshot)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs = append(s.subs, subscriber{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// Latest returns a copy of the current snapshot
func (s *Store) Latest() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Reset replaces the device state with the initial state and publishes it.
// Link state and statistics are kept.
func (s *Store) Reset() {
	s.update(func(snap *Snapshot) {
		snap.Device = s.initial
		snap.LastLine = ""
	})
}

// update mutates the snapshot under lock, then delivers the result
func (s *Store) update(mutate func(*Snapshot)) {
	s.pubMu.Lock()
	defer s.pubMu.Unlock()

	s.mu.Lock()
	mutate(&s.latest)
	snap := s.latest
	subs := make([]subscriber, len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, sub := range subs {
		sub.fn(snap)
	}
}
