// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import "strings"

// Mode is the device's displayed operating context
type Mode uint8

const (
	ModeIdle Mode = iota
	ModeRTC
	ModeTimer
	ModeFlash
	ModeADC
)

var modeNames = []string{"IDLE", "RTC", "TIMER", "FLASH", "ADC"}

// String returns the upper-case mode tag
func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "UNKNOWN"
}

// RGB is an 8-bit color triple
type RGB struct {
	R, G, B uint8
}

// Defaults are the start-up values that differ between board revisions
type Defaults struct {
	Segment string
	Color   RGB
}

// DefaultDefaults returns the white lamp / "8888" defaults
func DefaultDefaults() Defaults {
	return Defaults{
		Segment: DefaultSegment,
		Color:   RGB{255, 255, 255},
	}
}

// State is an immutable snapshot of the board as last reported.
//
// It is a plain value: Apply returns a new State and never modifies its
// argument, so snapshots can be handed to other goroutines freely.
type State struct {
	Leds       [NumLeds]bool
	Color      RGB
	Segment    string // always SegmentWidth characters
	AdcRaw     int    // as parsed, may exceed AdcDisplayMax
	AdcDisplay int    // AdcRaw clamped to [0, AdcDisplayMax]
	Progress   int    // clamped to [0, 100]
	Mode       Mode
	ModeDetail string
	FlashInfo  string
	StatusText string
}

// NewState returns the start-up state for the given defaults
func NewState(d Defaults) State {
	return State{
		Color:   d.Color,
		Segment: NormalizeSegment(d.Segment),
		Mode:    ModeIdle,
	}
}

// DefaultState returns NewState(DefaultDefaults())
func DefaultState() State {
	return NewState(DefaultDefaults())
}

// Apply returns the state that results from applying ev to s.
// It is total: unknown and Unrecognized events leave s unchanged.
func Apply(s State, ev Event) State {
	switch e := ev.(type) {
	case LedChanged:
		if e.Index >= 0 && e.Index < NumLeds {
			s.Leds[e.Index] = e.On
		}

	case RgbChanged:
		s.Color = e.Color

	case SegmentChanged:
		s.Segment = NormalizeSegment(e.Text)

	case AdcChanged:
		s.AdcRaw = e.Raw
		s.AdcDisplay = ClampADC(e.Raw)
		s.Color = AdcBand(s.AdcDisplay)

	case ModeChanged:
		s.Mode = e.Mode
		s.ModeDetail = e.Detail

	case FlashInfo:
		s.FlashInfo = e.Text
		s.Mode = ModeFlash
		s.ModeDetail = ""
		s.StatusText = ""

	case ProgressChanged:
		s.Progress = clamp(e.Value, 0, 100)

	case StatusChanged:
		s.StatusText = e.Text
	}

	return s
}

// ApplyAll applies events in order
func ApplyAll(s State, events []Event) State {
	for _, ev := range events {
		s = Apply(s, ev)
	}
	return s
}

// NormalizeSegment left-pads text with '0' to SegmentWidth characters, or
// keeps only the last SegmentWidth characters if it is longer.
func NormalizeSegment(text string) string {
	runes := []rune(text)
	if len(runes) > SegmentWidth {
		return string(runes[len(runes)-SegmentWidth:])
	}
	if len(runes) < SegmentWidth {
		return strings.Repeat("0", SegmentWidth-len(runes)) + string(runes)
	}
	return text
}

// ClampADC clamps a raw reading into the bar-graph range
func ClampADC(raw int) int {
	return clamp(raw, 0, AdcDisplayMax)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
