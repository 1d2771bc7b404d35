// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"fmt"
	"strings"
)

// FormatLine formats a received line and its events for log output
func FormatLine(line string, events []Event) string {
	var s strings.Builder
	fmt.Fprintf(&s, "%q\n", line)
	for _, ev := range events {
		fmt.Fprintf(&s, "  %s\n", FormatEvent(ev))
	}
	return s.String()
}

// FormatEvent returns a one-line human-readable description of ev
func FormatEvent(ev Event) string {
	switch e := ev.(type) {
	case LedChanged:
		return fmt.Sprintf("LED %d -> %s", e.Index+1, onOff(e.On))
	case RgbChanged:
		return fmt.Sprintf("RGB -> %s", FormatRGB(e.Color))
	case SegmentChanged:
		return fmt.Sprintf("SEGMENT -> %q (%s)", e.Text, NormalizeSegment(e.Text))
	case AdcChanged:
		return fmt.Sprintf("ADC -> %d (display %d, band %s)", e.Raw, ClampADC(e.Raw), FormatRGB(AdcBand(ClampADC(e.Raw))))
	case ModeChanged:
		if e.Detail == "" {
			return fmt.Sprintf("MODE -> %s", e.Mode)
		}
		return fmt.Sprintf("MODE -> %s (%s)", e.Mode, e.Detail)
	case FlashInfo:
		return fmt.Sprintf("FLASH INFO -> %s", e.Text)
	case ProgressChanged:
		return fmt.Sprintf("PROGRESS -> %d", e.Value)
	case StatusChanged:
		return fmt.Sprintf("STATUS -> %s", e.Text)
	case Unrecognized:
		return fmt.Sprintf("UNRECOGNIZED: %s", e.Reason)
	default:
		return fmt.Sprintf("UNKNOWN EVENT %T", ev)
	}
}

// FormatState formats a snapshot as a short multi-line summary
func FormatState(s State) string {
	leds := make([]string, NumLeds)
	for i, on := range s.Leds {
		leds[i] = fmt.Sprintf("%d:%s", i+1, onOff(on))
	}

	mode := s.Mode.String()
	if s.ModeDetail != "" {
		mode += " (" + s.ModeDetail + ")"
	}

	result := fmt.Sprintf("  LEDs:     %s\n", strings.Join(leds, " "))
	result += fmt.Sprintf("  RGB:      %s\n", FormatRGB(s.Color))
	result += fmt.Sprintf("  Segment:  %s\n", s.Segment)
	result += fmt.Sprintf("  ADC:      %d (display %d%%)\n", s.AdcRaw, s.AdcDisplay)
	result += fmt.Sprintf("  Progress: %d%%\n", s.Progress)
	result += fmt.Sprintf("  Mode:     %s\n", mode)
	if s.FlashInfo != "" {
		result += fmt.Sprintf("  Flash:    %s\n", s.FlashInfo)
	}
	if s.StatusText != "" {
		result += fmt.Sprintf("  Status:   %s\n", s.StatusText)
	}
	return result
}

// FormatRGB formats a color as (r,g,b)
func FormatRGB(c RGB) string {
	return fmt.Sprintf("(%d,%d,%d)", c.R, c.G, c.B)
}

func onOff(on bool) string {
	if on {
		return LedOn
	}
	return LedOff
}
