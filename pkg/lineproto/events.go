// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

// Event is a typed device-state delta produced by ParseLine.
// The set of implementations is closed.
type Event interface {
	isEvent()
}

// LedChanged reports one LED's state. Index is 0-based.
type LedChanged struct {
	Index int
	On    bool
}

// RgbChanged reports the RGB lamp color
type RgbChanged struct {
	Color RGB
}

// SegmentChanged carries raw 7-segment text; Apply normalizes it
type SegmentChanged struct {
	Text string
}

// AdcChanged carries the raw ADC reading, which may exceed the display range
type AdcChanged struct {
	Raw int
}

// ModeChanged switches the displayed operating context
type ModeChanged struct {
	Mode   Mode
	Detail string
}

// FlashInfo carries the flash identification line verbatim
type FlashInfo struct {
	Text string
}

// ProgressChanged is the legacy PROG:<n> progress update
type ProgressChanged struct {
	Value int
}

// StatusChanged replaces the human-readable status line. The parser never
// produces it; the link worker uses it to report connection changes.
type StatusChanged struct {
	Text string
}

// Unrecognized is a line that matched no grammar rule. Applying it is a no-op.
type Unrecognized struct {
	Raw    string
	Reason string
}

func (LedChanged) isEvent()      {}
func (RgbChanged) isEvent()      {}
func (SegmentChanged) isEvent()  {}
func (AdcChanged) isEvent()      {}
func (ModeChanged) isEvent()     {}
func (FlashInfo) isEvent()       {}
func (ProgressChanged) isEvent() {}
func (StatusChanged) isEvent()   {}
func (Unrecognized) isEvent()    {}
