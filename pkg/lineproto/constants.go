// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package lineproto implements the ASCII line protocol spoken by the STM32
// panel board.
//
// Inbound traffic is newline-delimited TYPE:PAYLOAD text (LED:1,ON, RGB:r,g,b,
// ADC:45, ...). This package provides the line codec, the message parser, the
// device state model with its transition function, and the command encoder
// for outbound requests.
package lineproto

// Framing
const (
	LineDelimiter = '\n'
	MaxLineLength = 256 // longer partial lines are discarded
)

// Serial defaults observed on every board revision
const (
	DefaultBaudRate = 115200
)

// Device model sizes
const (
	NumLeds       = 4
	NumButtons    = 5
	SegmentWidth  = 4
	AdcDisplayMax = 100
)

// Outbound limits
const (
	MaxCommandLength = 16 // longest template is RGB:255,255,255
	MaxRawCodeLength = 7
)

// Inbound message types
const (
	TypeLed      = "LED"
	TypeRgb      = "RGB"
	TypeSegment  = "SEG"
	TypeTimer    = "TIM"
	TypeAdc      = "ADC"
	TypeRtc      = "RTC"
	TypeProgress = "PROG"

	FlashInfoPrefix = "0x90 ID - Manufacturer"
)

// LED states on the wire
const (
	LedOn  = "ON"
	LedOff = "OFF"
)

// Request codes understood by the firmware
const (
	CodeADC    = "R00001"
	CodeTimer  = "R00002"
	CodeBuzzer = "R00003"
	CodeReset  = "R00004"
	CodeTime   = "R00005"
)

// Default display values
const (
	DefaultSegment = "8888"
)
