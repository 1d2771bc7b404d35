// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

// Command is an outbound request for the board. Commands are plain values:
// built by the UI layer, copied into the link queue and encoded once.
// The set of implementations is closed.
type Command interface {
	isCommand()
}

// ButtonPress encodes as BTN<n> (Index is 0-based)
type ButtonPress struct {
	Index int
}

// ButtonRelease encodes as BTN<n>_OFF (Index is 0-based)
type ButtonRelease struct {
	Index int
}

// RgbSet encodes as RGB:<r>,<g>,<b>
type RgbSet struct {
	Color RGB
}

// LedSet encodes as LED<n>:<ON|OFF> (Index is 0-based)
type LedSet struct {
	Index int
	On    bool
}

// SegmentSet encodes as SEG:<4 digits>
type SegmentSet struct {
	Text string
}

// TimeSync encodes as the 4-digit MMSS string
type TimeSync struct {
	Minutes int
	Seconds int
}

// ClockSync encodes as T<HH>:<MM>
type ClockSync struct {
	Hours   int
	Minutes int
}

// RawCode is sent verbatim, e.g. CodeADC
type RawCode struct {
	Code string
}

func (ButtonPress) isCommand()   {}
func (ButtonRelease) isCommand() {}
func (RgbSet) isCommand()        {}
func (LedSet) isCommand()        {}
func (SegmentSet) isCommand()    {}
func (TimeSync) isCommand()      {}
func (ClockSync) isCommand()     {}
func (RawCode) isCommand()       {}

// Command builders mirror the request codes of the firmware.

// NewADCRequest creates the ADC read request
func NewADCRequest() RawCode { return RawCode{Code: CodeADC} }

// NewTimerRequest creates the timer request
func NewTimerRequest() RawCode { return RawCode{Code: CodeTimer} }

// NewBuzzerRequest creates the buzzer request
func NewBuzzerRequest() RawCode { return RawCode{Code: CodeBuzzer} }

// NewResetRequest asks the board to reset its outputs
func NewResetRequest() RawCode { return RawCode{Code: CodeReset} }

// NewTimeRequest asks the board to report its clock
func NewTimeRequest() RawCode { return RawCode{Code: CodeTime} }
