// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package link runs the serial link to the panel board.
//
// A single Worker goroutine owns the connection. Each tick it sends the
// periodic time sync, drains queued commands, reads whatever bytes are
// available and applies every completed line to the device state held in
// a Store. I/O failures drop the link to Disconnected and the worker redials
// with exponential backoff; queued commands wait for the next connection.
package link

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync/atomic"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/Thermoquad/boardlink/pkg/syncutil"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

var (
	// ErrStopped is returned when using a worker after Stop
	ErrStopped = errors.New("link worker stopped")
	// ErrAlreadyStarted is returned by a second Start
	ErrAlreadyStarted = errors.New("link worker already started")
)

// State is the connection state of the worker
type State int32

const (
	Disconnected State = iota
	Connecting
	Connected
	Stopped
)

var stateNames = []string{"DISCONNECTED", "CONNECTING", "CONNECTED", "STOPPED"}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Port is a byte stream to the board. Read must return within a short
// timeout (0, nil when nothing arrived) so ticks stay responsive.
type Port = io.ReadWriteCloser

// Dialer opens a new Port
type Dialer func(ctx context.Context) (Port, error)

// TimeSyncMode selects the periodic time-sync payload
type TimeSyncMode int

const (
	TimeSyncOff   TimeSyncMode = iota
	TimeSyncMMSS               // 4-digit MMSS
	TimeSyncClock              // T<HH>:<MM>
)

// ParseTimeSyncMode maps a config name ("off", "mmss", "clock") to a mode
func ParseTimeSyncMode(name string) (TimeSyncMode, error) {
	switch strings.ToLower(name) {
	case "", "off":
		return TimeSyncOff, nil
	case "mmss":
		return TimeSyncMMSS, nil
	case "clock":
		return TimeSyncClock, nil
	default:
		return TimeSyncOff, fmt.Errorf("unknown time sync mode %q (use off, mmss or clock)", name)
	}
}

// Config controls worker timing and wire behaviour
type Config struct {
	Tick             time.Duration
	TimeSync         TimeSyncMode
	TimeSyncInterval time.Duration
	Terminator       lineproto.Terminator
	DrainAll         bool // send every queued command per tick instead of one
	QueueSize        int
	ReconnectMin     time.Duration
	ReconnectMax     time.Duration
}

// DefaultConfig returns the settings used by the five-button panel firmware
func DefaultConfig() Config {
	return Config{
		Tick:             10 * time.Millisecond,
		TimeSync:         TimeSyncOff,
		TimeSyncInterval: time.Second,
		Terminator:       lineproto.TerminatorNone,
		QueueSize:        DefaultQueueSize,
		ReconnectMin:     10 * time.Millisecond,
		ReconnectMax:     30 * time.Second,
	}
}

// Option configures a Worker
type Option func(*Worker)

// WithClock replaces the wall clock, for tests
func WithClock(clock clockwork.Clock) Option {
	return func(w *Worker) {
		w.clock = clock
	}
}

// WithTap registers fn to observe every received line and sent command.
// fn runs on the worker goroutine.
func WithTap(fn func(dir lineproto.Direction, text string)) Option {
	return func(w *Worker) {
		w.tap = fn
	}
}

// Worker owns the connection to the board
type Worker struct {
	dial  Dialer
	store *Store
	cfg   Config
	clock clockwork.Clock
	tap   func(lineproto.Direction, string)
	queue *Queue

	state      atomic.Int32
	resetStats atomic.Bool // set by ResetStats, consumed by the run goroutine

	mu     syncutil.Mutex // guards cancel and done
	cancel context.CancelFunc
	done   chan struct{}

	// Owned by the run goroutine
	port      Port
	codec     *lineproto.LineCodec
	stats     *lineproto.Statistics
	buf       []byte
	lastSync  time.Time
	backoff   time.Duration
	nextDial  time.Time
	connected bool // has connected at least once
}

// NewWorker creates a stopped worker publishing into store
func NewWorker(dial Dialer, store *Store, cfg Config, opts ...Option) *Worker {
	def := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.TimeSyncInterval <= 0 {
		cfg.TimeSyncInterval = def.TimeSyncInterval
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = cfg.Tick
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = cfg.ReconnectMin
	}

	w := &Worker{
		dial:    dial,
		store:   store,
		cfg:     cfg,
		clock:   clockwork.NewRealClock(),
		queue:   NewQueue(cfg.QueueSize),
		codec:   lineproto.NewLineCodec(),
		stats:   lineproto.NewStatistics(),
		buf:     make([]byte, lineproto.MaxLineLength),
		backoff: cfg.ReconnectMin,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.stats.StartTime = w.clock.Now()
	return w
}

// Start launches the worker goroutine. It runs until Stop is called or ctx
// is cancelled.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.LinkState() == Stopped {
		return ErrStopped
	}
	if w.done != nil {
		return ErrAlreadyStarted
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
	return nil
}

// Stop ends the worker loop, closes the connection and waits for the
// goroutine to exit. Safe to call more than once.
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.mu.Unlock()

	if cancel == nil {
		w.setState(Stopped, "stopped")
		return
	}
	cancel()
	<-done
}

// Done is closed when the worker goroutine has exited
func (w *Worker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.done
}

// Issue validates cmd and queues it for transmission. It never blocks.
// Commands issued while disconnected are sent after the next connect.
func (w *Worker) Issue(cmd lineproto.Command) error {
	if err := lineproto.Validate(cmd); err != nil {
		return err
	}
	if w.LinkState() == Stopped {
		return ErrStopped
	}
	return w.queue.Push(cmd)
}

// ResetStats asks the worker to zero its statistics on the next tick
func (w *Worker) ResetStats() {
	w.resetStats.Store(true)
}

// LinkState returns the current connection state
func (w *Worker) LinkState() State {
	return State(w.state.Load())
}

// Pending returns the number of queued commands
func (w *Worker) Pending() int {
	return w.queue.Len()
}

func (w *Worker) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	defer func() {
		w.closePort()
		w.setState(Stopped, "stopped")
		log.Info().Msg("link worker stopped")
	}()

	for {
		if ctx.Err() != nil {
			return
		}

		w.tick(ctx)

		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(w.cfg.Tick):
		}
	}
}

// tick runs one iteration: connect if needed, time sync, drain, read
func (w *Worker) tick(ctx context.Context) {
	if w.resetStats.Swap(false) {
		w.clearStats()
	}

	if w.port == nil && !w.connect(ctx) {
		return
	}

	if err := w.syncTime(); err != nil {
		w.disconnect(fmt.Errorf("time sync: %w", err))
		return
	}
	if err := w.drain(); err != nil {
		w.disconnect(fmt.Errorf("write: %w", err))
		return
	}
	if err := w.readOnce(); err != nil {
		w.stats.ReadErrors++
		w.disconnect(fmt.Errorf("read: %w", err))
	}
}

// connect dials once if the backoff has expired
func (w *Worker) connect(ctx context.Context) bool {
	now := w.clock.Now()
	if now.Before(w.nextDial) {
		return false
	}

	w.setState(Connecting, "connecting")

	port, err := w.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		log.Warn().Err(err).Dur("retry_in", w.backoff).Msg("failed to open link")
		w.setState(Disconnected, "connect failed: "+err.Error())
		w.scheduleRedial()
		return false
	}

	if w.connected {
		w.stats.Reconnects++
	}
	w.connected = true
	w.port = port
	w.codec.Reset()
	w.backoff = w.cfg.ReconnectMin
	w.nextDial = time.Time{}

	log.Info().Msg("link connected")
	w.setState(Connected, "connected")
	return true
}

// scheduleRedial pushes the next dial out by the current backoff and
// doubles it up to ReconnectMax
func (w *Worker) scheduleRedial() {
	w.nextDial = w.clock.Now().Add(w.backoff)
	w.backoff *= 2
	if w.backoff > w.cfg.ReconnectMax {
		w.backoff = w.cfg.ReconnectMax
	}
}

func (w *Worker) disconnect(err error) {
	log.Warn().Err(err).Msg("link lost")
	w.closePort()
	w.setState(Disconnected, "disconnected: "+err.Error())
	w.scheduleRedial()
}

func (w *Worker) closePort() {
	if w.port == nil {
		return
	}
	if err := w.port.Close(); err != nil {
		log.Debug().Err(err).Msg("error closing link port")
	}
	w.port = nil
	w.codec.Reset()
}

func (w *Worker) syncTime() error {
	if w.cfg.TimeSync == TimeSyncOff {
		return nil
	}

	now := w.clock.Now()
	if !w.lastSync.IsZero() && now.Sub(w.lastSync) < w.cfg.TimeSyncInterval {
		return nil
	}

	var cmd lineproto.Command = lineproto.NewTimeSync(now)
	if w.cfg.TimeSync == TimeSyncClock {
		cmd = lineproto.NewClockSync(now)
	}

	if err := w.send(cmd); err != nil {
		return err
	}
	w.lastSync = now
	w.stats.TimeSyncs++
	return nil
}

// drain sends the queued command at the front (or all of them). A command
// is removed only once it has been written.
func (w *Worker) drain() error {
	for {
		cmd, ok := w.queue.Front()
		if !ok {
			return nil
		}

		if err := w.send(cmd); err != nil {
			if errors.Is(err, lineproto.ErrInvalidCommand) {
				log.Error().Err(err).Msg("dropping invalid command")
				w.queue.Pop()
				continue
			}
			return err
		}
		w.queue.Pop()
		w.stats.CommandsSent++

		if !w.cfg.DrainAll {
			return nil
		}
	}
}

func (w *Worker) send(cmd lineproto.Command) error {
	data, err := lineproto.Encode(cmd, w.cfg.Terminator)
	if err != nil {
		return err
	}

	n, err := w.port.Write(data)
	if err == nil && n < len(data) {
		err = io.ErrShortWrite
	}
	if err != nil {
		w.stats.WriteErrors++
		return err
	}

	text := strings.TrimRight(string(data), "\r\n")
	log.Debug().Str("tx", text).Msg("command sent")
	if w.tap != nil {
		w.tap(lineproto.Outbound, text)
	}
	return nil
}

// readOnce performs a single read and applies every line it completes
func (w *Worker) readOnce() error {
	n, err := w.port.Read(w.buf)
	if n > 0 {
		for _, line := range w.codec.Feed(w.buf[:n]) {
			w.handleLine(line)
		}
	}
	return err
}

func (w *Worker) handleLine(line string) {
	if w.tap != nil {
		w.tap(lineproto.Inbound, line)
	}

	events := lineproto.ParseLine(line)
	w.stats.UpdateLine(events)
	w.stats.UpdateCodec(w.codec)
	w.stats.LastUpdateTime = w.clock.Now()

	if u, ok := events[0].(lineproto.Unrecognized); ok {
		log.Warn().Str("line", line).Str("reason", u.Reason).Msg("unrecognized line")
	} else {
		log.Debug().Str("rx", line).Int("events", len(events)).Msg("line received")
	}

	stats := *w.stats
	for _, ev := range events {
		w.store.update(func(s *Snapshot) {
			s.Device = lineproto.Apply(s.Device, ev)
			s.LastLine = line
			s.Stats = stats
		})
	}
}

// clearStats zeroes the counters and publishes the cleared statistics
func (w *Worker) clearStats() {
	w.stats.Reset()
	now := w.clock.Now()
	w.stats.StartTime = now
	w.stats.LastUpdateTime = now
	w.codec.ResetCounters()

	stats := *w.stats
	w.store.update(func(s *Snapshot) {
		s.Stats = stats
	})
}

// setState records the link state and publishes it with a status event
func (w *Worker) setState(state State, status string) {
	w.state.Store(int32(state))
	stats := *w.stats
	w.store.update(func(s *Snapshot) {
		s.Link = state
		s.Device = lineproto.Apply(s.Device, lineproto.StatusChanged{Text: status})
		s.Stats = stats
	})
}
