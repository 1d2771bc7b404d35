// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseLine converts one stripped line into the events it describes, in the
// order they must be applied. It never fails: a line that matches no rule, or
// whose numeric fields are malformed, yields a single Unrecognized event.
//
// Grammar (case-sensitive):
//
//	0x90 ID - Manufacturer...   FlashInfo
//	LED:<n>,<ON|OFF>            LedChanged (n is 1-based)
//	LED<n>:<ON|OFF>             LedChanged (alternate form)
//	RGB:<r>,<g>,<b>             RgbChanged
//	SEG:<text>                  SegmentChanged
//	TIM:<text>                  SegmentChanged, ModeChanged(TIMER)
//	ADC:<int>                   AdcChanged, ModeChanged(ADC)
//	RTC:<text>                  ModeChanged(RTC)
//	PROG:<int>                  ProgressChanged
func ParseLine(line string) []Event {
	if strings.HasPrefix(line, FlashInfoPrefix) {
		return []Event{FlashInfo{Text: line}}
	}

	parts := strings.Split(line, ":")
	if len(parts) != 2 {
		return unrecognized(line, "expected TYPE:PAYLOAD, got %d fields", len(parts))
	}
	msgType, payload := parts[0], parts[1]

	switch msgType {
	case TypeLed:
		return parseLed(line, payload)

	case TypeRgb:
		return parseRgb(line, payload)

	case TypeSegment:
		return []Event{SegmentChanged{Text: payload}}

	case TypeTimer:
		return []Event{
			SegmentChanged{Text: payload},
			ModeChanged{Mode: ModeTimer, Detail: payload},
		}

	case TypeAdc:
		value, err := parseInt(payload)
		if err != nil {
			return unrecognized(line, "invalid ADC value %q", payload)
		}
		return []Event{
			AdcChanged{Raw: value},
			ModeChanged{Mode: ModeADC, Detail: strconv.Itoa(value)},
		}

	case TypeRtc:
		return []Event{ModeChanged{Mode: ModeRTC, Detail: payload}}

	case TypeProgress:
		value, err := parseInt(payload)
		if err != nil {
			return unrecognized(line, "invalid progress value %q", payload)
		}
		return []Event{ProgressChanged{Value: value}}
	}

	// Alternate LED form: LED<n>:<ON|OFF>
	if rest, ok := strings.CutPrefix(msgType, TypeLed); ok && rest != "" {
		return parseLedIndexState(line, rest, payload)
	}

	return unrecognized(line, "unknown message type %q", msgType)
}

// ParseEvent is ParseLine for callers that only want the first event
func ParseEvent(line string) Event {
	return ParseLine(line)[0]
}

func parseLed(line, payload string) []Event {
	fields := strings.Split(payload, ",")
	if len(fields) != 2 {
		return unrecognized(line, "LED payload needs <n>,<ON|OFF>")
	}
	return parseLedIndexState(line, fields[0], fields[1])
}

func parseLedIndexState(line, number, state string) []Event {
	n, err := parseInt(number)
	if err != nil {
		return unrecognized(line, "invalid LED number %q", number)
	}

	index := n - 1
	if index < 0 || index >= NumLeds {
		return unrecognized(line, "LED number %d out of range 1..%d", n, NumLeds)
	}

	switch strings.TrimSpace(state) {
	case LedOn:
		return []Event{LedChanged{Index: index, On: true}}
	case LedOff:
		return []Event{LedChanged{Index: index, On: false}}
	default:
		return unrecognized(line, "invalid LED state %q", state)
	}
}

func parseRgb(line, payload string) []Event {
	fields := strings.Split(payload, ",")
	if len(fields) != 3 {
		return unrecognized(line, "RGB payload needs 3 components, got %d", len(fields))
	}

	var c [3]uint8
	for i, field := range fields {
		v, err := parseInt(field)
		if err != nil || v < 0 || v > 255 {
			return unrecognized(line, "invalid RGB component %q", field)
		}
		c[i] = uint8(v)
	}

	return []Event{RgbChanged{Color: RGB{R: c[0], G: c[1], B: c[2]}}}
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func unrecognized(line, format string, args ...interface{}) []Event {
	return []Event{Unrecognized{Raw: line, Reason: fmt.Sprintf(format, args...)}}
}
