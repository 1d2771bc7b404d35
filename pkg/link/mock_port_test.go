// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"io"
	"sync"
)

// mockPort is an in-memory Port. Reads return queued chunks, then (0, nil)
// like a serial port hitting its read timeout.
type mockPort struct {
	mu       sync.Mutex
	reads    [][]byte
	written  []string
	readErr  error
	writeErr error
	closed   bool
}

func newMockPort(chunks ...string) *mockPort {
	p := &mockPort{}
	for _, c := range chunks {
		p.reads = append(p.reads, []byte(c))
	}
	return p
}

func (p *mockPort) Read(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.readErr != nil {
		return 0, p.readErr
	}
	if len(p.reads) == 0 {
		return 0, nil
	}

	n := copy(b, p.reads[0])
	if n < len(p.reads[0]) {
		p.reads[0] = p.reads[0][n:]
	} else {
		p.reads = p.reads[1:]
	}
	return n, nil
}

func (p *mockPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, io.ErrClosedPipe
	}
	if p.writeErr != nil {
		return 0, p.writeErr
	}
	p.written = append(p.written, string(b))
	return len(b), nil
}

func (p *mockPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *mockPort) feed(chunk string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reads = append(p.reads, []byte(chunk))
}

func (p *mockPort) failReads(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readErr = err
}

func (p *mockPort) Written() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.written))
	copy(out, p.written)
	return out
}

func (p *mockPort) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// dialSequence returns a Dialer handing out ports in order. A nil entry
// fails the dial; the last entry is reused once the list is exhausted.
func dialSequence(ports ...*mockPort) (Dialer, func() int) {
	var mu sync.Mutex
	calls := 0

	dial := func(ctx context.Context) (Port, error) {
		mu.Lock()
		defer mu.Unlock()

		idx := calls
		if idx >= len(ports) {
			idx = len(ports) - 1
		}
		calls++

		if ports[idx] == nil {
			return nil, io.ErrUnexpectedEOF
		}
		return ports[idx], nil
	}
	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return calls
	}
	return dial, count
}
