// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package link

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/Thermoquad/boardlink/pkg/lineproto"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	waitFor = 2 * time.Second
	pollInt = time.Millisecond
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.Tick = time.Millisecond
	cfg.ReconnectMin = time.Millisecond
	cfg.ReconnectMax = 5 * time.Millisecond
	return cfg
}

func startWorker(t *testing.T, w *Worker) {
	t.Helper()
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)
}

func TestWorker_AppliesInboundLines(t *testing.T) {
	t.Parallel()

	port := newMockPort("LED:1,ON\nRGB:10,", "20,30\nADC:45\n", "SEG:0042\n")
	dial, _ := dialSequence(port)
	store := NewStore(lineproto.DefaultState())

	var mu sync.Mutex
	var lines []string
	store.Subscribe(func(s Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		if s.LastLine != "" && (len(lines) == 0 || lines[len(lines)-1] != s.LastLine) {
			lines = append(lines, s.LastLine)
		}
	})

	w := NewWorker(dial, store, fastConfig())
	startWorker(t, w)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(lines) == 4
	}, waitFor, pollInt)

	dev := store.Latest().Device
	assert.Equal(t, "0042", dev.Segment)
	assert.Equal(t, [lineproto.NumLeds]bool{true, false, false, false}, dev.Leds)
	assert.Equal(t, lineproto.RGB{R: 0, G: 255, B: 0}, dev.Color)
	assert.Equal(t, 45, dev.AdcRaw)
	assert.Equal(t, lineproto.ModeADC, dev.Mode)

	mu.Lock()
	assert.Equal(t, []string{"LED:1,ON", "RGB:10,20,30", "ADC:45", "SEG:0042"}, lines)
	mu.Unlock()

	stats := store.Latest().Stats
	assert.Equal(t, uint64(4), stats.TotalLines)
	assert.Equal(t, uint64(4), stats.Recognized)
}

func TestWorker_UnrecognizedLineLeavesState(t *testing.T) {
	t.Parallel()

	port := newMockPort("ADC:notanumber\n")
	dial, _ := dialSequence(port)
	store := NewStore(lineproto.DefaultState())

	w := NewWorker(dial, store, fastConfig())
	startWorker(t, w)

	require.Eventually(t, func() bool {
		return store.Latest().LastLine == "ADC:notanumber"
	}, waitFor, pollInt)

	snap := store.Latest()
	assert.Equal(t, 0, snap.Device.AdcRaw)
	assert.Equal(t, lineproto.ModeIdle, snap.Device.Mode)
	assert.Equal(t, uint64(1), snap.Stats.Unrecognized)
	assert.Equal(t, Connected, w.LinkState())
}

func TestWorker_IssueWritesCommand(t *testing.T) {
	t.Parallel()

	port := newMockPort()
	dial, _ := dialSequence(port)
	cfg := fastConfig()
	cfg.Terminator = lineproto.TerminatorLF

	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg)
	startWorker(t, w)

	require.NoError(t, w.Issue(lineproto.ButtonPress{Index: 3}))
	require.NoError(t, w.Issue(lineproto.RgbSet{Color: lineproto.RGB{R: 1, G: 2, B: 3}}))

	require.Eventually(t, func() bool {
		return len(port.Written()) == 2
	}, waitFor, pollInt)
	assert.Equal(t, []string{"BTN4\n", "RGB:1,2,3\n"}, port.Written())
	assert.Zero(t, w.Pending())
}

func TestWorker_IssueRejectsInvalid(t *testing.T) {
	t.Parallel()

	dial, _ := dialSequence(newMockPort())
	w := NewWorker(dial, NewStore(lineproto.DefaultState()), fastConfig())

	assert.ErrorIs(t, w.Issue(lineproto.ButtonPress{Index: 9}), lineproto.ErrInvalidCommand)
	assert.Zero(t, w.Pending())
}

func TestWorker_IssueQueueFull(t *testing.T) {
	t.Parallel()

	dial, _ := dialSequence(newMockPort())
	cfg := fastConfig()
	cfg.QueueSize = 1
	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg)

	require.NoError(t, w.Issue(lineproto.NewADCRequest()))
	assert.ErrorIs(t, w.Issue(lineproto.NewADCRequest()), ErrQueueFull)
}

func TestWorker_CommandIssuedDuringOutageIsSentAfterReconnect(t *testing.T) {
	t.Parallel()

	first := newMockPort()
	second := newMockPort()

	gate := make(chan struct{})
	var mu sync.Mutex
	calls := 0
	dial := func(ctx context.Context) (Port, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		if n == 1 {
			return first, nil
		}
		select {
		case <-gate:
			return second, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	store := NewStore(lineproto.DefaultState())
	var statesMu sync.Mutex
	var states []State
	store.Subscribe(func(s Snapshot) {
		statesMu.Lock()
		defer statesMu.Unlock()
		if len(states) == 0 || states[len(states)-1] != s.Link {
			states = append(states, s.Link)
		}
	})

	w := NewWorker(dial, store, fastConfig())
	startWorker(t, w)

	require.Eventually(t, func() bool { return w.LinkState() == Connected }, waitFor, pollInt)

	first.failReads(errors.New("device unplugged"))
	require.Eventually(t, first.IsClosed, waitFor, pollInt)
	require.Eventually(t, func() bool { return w.LinkState() == Connecting }, waitFor, pollInt)

	cmd := lineproto.RgbSet{Color: lineproto.RGB{R: 7, G: 8, B: 9}}
	require.NoError(t, w.Issue(cmd))
	assert.Equal(t, 1, w.Pending())
	assert.Empty(t, first.Written())

	close(gate)

	require.Eventually(t, func() bool {
		return slices.Contains(second.Written(), "RGB:7,8,9")
	}, waitFor, pollInt)

	statesMu.Lock()
	assert.Contains(t, states, Disconnected)
	assert.Equal(t, Connected, states[len(states)-1])
	statesMu.Unlock()

	assert.Equal(t, uint64(1), store.Latest().Stats.Reconnects)
	assert.Equal(t, uint64(1), store.Latest().Stats.ReadErrors)
}

func TestWorker_FailedWriteKeepsCommand(t *testing.T) {
	t.Parallel()

	broken := newMockPort()
	broken.writeErr = errors.New("write failed")
	healthy := newMockPort()
	dial, _ := dialSequence(broken, healthy)

	w := NewWorker(dial, NewStore(lineproto.DefaultState()), fastConfig())
	require.NoError(t, w.Issue(lineproto.NewBuzzerRequest()))
	startWorker(t, w)

	require.Eventually(t, func() bool {
		return slices.Contains(healthy.Written(), lineproto.CodeBuzzer)
	}, waitFor, pollInt)
	assert.True(t, broken.IsClosed())
	assert.Empty(t, broken.Written())
}

func TestWorker_DialRetries(t *testing.T) {
	t.Parallel()

	port := newMockPort()
	dial, calls := dialSequence(nil, nil, port)
	store := NewStore(lineproto.DefaultState())

	w := NewWorker(dial, store, fastConfig())
	startWorker(t, w)

	require.Eventually(t, func() bool { return store.Latest().Link == Connected }, waitFor, pollInt)
	assert.Equal(t, 3, calls())
	assert.Equal(t, "connected", store.Latest().Device.StatusText)
	assert.Zero(t, store.Latest().Stats.Reconnects)
}

func TestWorker_BackoffDoublesUpToMax(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	dial, calls := dialSequence(nil)
	cfg := DefaultConfig()
	cfg.Tick = 10 * time.Millisecond
	cfg.ReconnectMin = 100 * time.Millisecond
	cfg.ReconnectMax = 200 * time.Millisecond

	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg, WithClock(clock))
	startWorker(t, w)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	step := func(d time.Duration) {
		t.Helper()
		require.NoError(t, clock.BlockUntilContext(ctx, 1))
		clock.Advance(d)
	}

	// first dial is immediate, retry after 100ms
	step(90 * time.Millisecond)
	step(10 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 2, calls())

	// next retry after 200ms, then capped at 200ms
	step(190 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 2, calls())
	step(10 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 3, calls())

	step(200 * time.Millisecond)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 4, calls())
	assert.Equal(t, Disconnected, w.LinkState())
}

func TestWorker_DefaultRedialOnNextTick(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClock()
	port := newMockPort()
	dial, calls := dialSequence(nil, port)
	cfg := DefaultConfig()

	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg, WithClock(clock))
	startWorker(t, w)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 1, calls())
	assert.Equal(t, Disconnected, w.LinkState())

	clock.Advance(cfg.Tick)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, 2, calls())
	assert.Equal(t, Connected, w.LinkState())
}

func TestWorker_TimeSync(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 17, 4, 59, 0, time.UTC))
	port := newMockPort()
	dial, _ := dialSequence(port)

	cfg := DefaultConfig()
	cfg.TimeSync = TimeSyncMMSS
	cfg.TimeSyncInterval = time.Second

	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg, WithClock(clock))
	startWorker(t, w)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, []string{"0459"}, port.Written())

	// not due yet
	clock.Advance(cfg.Tick)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Len(t, port.Written(), 1)

	clock.Advance(time.Second)
	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, []string{"0459", "0500"}, port.Written())
}

func TestWorker_ClockSyncBeforeCommands(t *testing.T) {
	t.Parallel()

	clock := clockwork.NewFakeClockAt(time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC))
	port := newMockPort()
	dial, _ := dialSequence(port)

	cfg := DefaultConfig()
	cfg.TimeSync = TimeSyncClock

	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg, WithClock(clock))
	require.NoError(t, w.Issue(lineproto.NewTimeRequest()))
	startWorker(t, w)

	ctx, cancel := context.WithTimeout(context.Background(), waitFor)
	defer cancel()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	assert.Equal(t, []string{"T09:30", lineproto.CodeTime}, port.Written())
}

func TestWorker_DrainOnePerTick(t *testing.T) {
	t.Parallel()

	for _, drainAll := range []bool{false, true} {
		clock := clockwork.NewFakeClock()
		port := newMockPort()
		dial, _ := dialSequence(port)

		cfg := DefaultConfig()
		cfg.DrainAll = drainAll

		w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg, WithClock(clock))
		for i := 0; i < 3; i++ {
			require.NoError(t, w.Issue(lineproto.ButtonPress{Index: i}))
		}
		require.NoError(t, w.Start(context.Background()))

		ctx, cancel := context.WithTimeout(context.Background(), waitFor)
		require.NoError(t, clock.BlockUntilContext(ctx, 1))

		if drainAll {
			assert.Equal(t, []string{"BTN1", "BTN2", "BTN3"}, port.Written())
		} else {
			assert.Equal(t, []string{"BTN1"}, port.Written())
			clock.Advance(cfg.Tick)
			require.NoError(t, clock.BlockUntilContext(ctx, 1))
			assert.Equal(t, []string{"BTN1", "BTN2"}, port.Written())
		}

		cancel()
		w.Stop()
	}
}

func TestWorker_Tap(t *testing.T) {
	t.Parallel()

	port := newMockPort("PROG:30\r\n")
	dial, _ := dialSequence(port)

	var mu sync.Mutex
	var taps []string
	tap := func(dir lineproto.Direction, text string) {
		mu.Lock()
		defer mu.Unlock()
		taps = append(taps, dir.String()+" "+text)
	}

	cfg := fastConfig()
	cfg.Terminator = lineproto.TerminatorCRLF
	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg, WithTap(tap))
	require.NoError(t, w.Issue(lineproto.LedSet{Index: 0, On: true}))
	startWorker(t, w)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(taps) == 2
	}, waitFor, pollInt)

	mu.Lock()
	assert.Equal(t, []string{"tx LED1:ON", "rx PROG:30"}, taps)
	mu.Unlock()
}

func TestWorker_StopClosesPort(t *testing.T) {
	t.Parallel()

	port := newMockPort()
	dial, _ := dialSequence(port)
	store := NewStore(lineproto.DefaultState())

	w := NewWorker(dial, store, fastConfig())
	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return w.LinkState() == Connected }, waitFor, pollInt)

	w.Stop()
	w.Stop()

	assert.True(t, port.IsClosed())
	assert.Equal(t, Stopped, w.LinkState())
	assert.Equal(t, Stopped, store.Latest().Link)
	assert.ErrorIs(t, w.Issue(lineproto.NewADCRequest()), ErrStopped)
	assert.ErrorIs(t, w.Start(context.Background()), ErrStopped)

	select {
	case <-w.Done():
	default:
		t.Fatal("worker goroutine still running after Stop")
	}
}

func TestWorker_StopWithinOneTick(t *testing.T) {
	t.Parallel()

	dial, _ := dialSequence(newMockPort())
	cfg := DefaultConfig()
	cfg.Tick = 50 * time.Millisecond

	w := NewWorker(dial, NewStore(lineproto.DefaultState()), cfg)
	require.NoError(t, w.Start(context.Background()))
	require.Eventually(t, func() bool { return w.LinkState() == Connected }, waitFor, pollInt)

	start := time.Now()
	w.Stop()
	assert.Less(t, time.Since(start), cfg.Tick+50*time.Millisecond)
}

func TestWorker_ResetStats(t *testing.T) {
	t.Parallel()

	port := newMockPort("ADC:1\nnoise\n")
	dial, _ := dialSequence(port)
	store := NewStore(lineproto.DefaultState())
	w := NewWorker(dial, store, fastConfig())
	startWorker(t, w)

	require.Eventually(t, func() bool { return store.Latest().Stats.TotalLines == 2 }, waitFor, pollInt)

	w.ResetStats()
	require.Eventually(t, func() bool {
		st := store.Latest().Stats
		return st.TotalLines == 0 && st.Unrecognized == 0 && st.Recognized == 0
	}, waitFor, pollInt)

	// Counting resumes from zero and the device state is untouched
	port.feed("ADC:2\n")
	require.Eventually(t, func() bool { return store.Latest().Stats.TotalLines == 1 }, waitFor, pollInt)
	assert.Equal(t, 2, store.Latest().Device.AdcRaw)
}

func TestWorker_ContextCancelStops(t *testing.T) {
	t.Parallel()

	port := newMockPort()
	dial, _ := dialSequence(port)
	w := NewWorker(dial, NewStore(lineproto.DefaultState()), fastConfig())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, w.Start(ctx))
	assert.ErrorIs(t, w.Start(ctx), ErrAlreadyStarted)
	require.Eventually(t, func() bool { return w.LinkState() == Connected }, waitFor, pollInt)

	cancel()
	<-w.Done()
	assert.Equal(t, Stopped, w.LinkState())
	assert.True(t, port.IsClosed())
}

func TestWorker_StopBeforeStart(t *testing.T) {
	t.Parallel()

	dial, calls := dialSequence(newMockPort())
	w := NewWorker(dial, NewStore(lineproto.DefaultState()), fastConfig())

	w.Stop()
	assert.Equal(t, Stopped, w.LinkState())
	assert.Zero(t, calls())
}

func TestParseTimeSyncMode(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]TimeSyncMode{"": TimeSyncOff, "off": TimeSyncOff, "MMSS": TimeSyncMMSS, "clock": TimeSyncClock} {
		got, err := ParseTimeSyncMode(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseTimeSyncMode("hourly")
	assert.Error(t, err)
}

func TestState_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "CONNECTED", Connected.String())
	assert.Equal(t, "STOPPED", Stopped.String())
	assert.Equal(t, "State(9)", State(9).String())
}
