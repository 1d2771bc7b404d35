// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidCommand is returned for commands whose fields violate the
// encoder's preconditions. It indicates a programming error in the caller,
// never bad wire data.
var ErrInvalidCommand = errors.New("invalid command")

// Terminator is appended to every encoded command. Board revisions disagree
// on whether a trailing newline is expected, so it is a deployment setting.
type Terminator string

const (
	TerminatorNone Terminator = ""
	TerminatorLF   Terminator = "\n"
	TerminatorCRLF Terminator = "\r\n"
)

// ParseTerminator maps a config name ("none", "lf", "crlf") to a Terminator
func ParseTerminator(name string) (Terminator, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return TerminatorNone, nil
	case "lf":
		return TerminatorLF, nil
	case "crlf":
		return TerminatorCRLF, nil
	default:
		return TerminatorNone, fmt.Errorf("unknown terminator %q (use none, lf or crlf)", name)
	}
}

// Encode converts cmd to its wire bytes followed by term.
func Encode(cmd Command, term Terminator) ([]byte, error) {
	text, err := EncodeText(cmd)
	if err != nil {
		return nil, err
	}
	return []byte(text + string(term)), nil
}

// MustEncode is Encode that panics on a precondition violation
func MustEncode(cmd Command, term Terminator) []byte {
	data, err := Encode(cmd, term)
	if err != nil {
		panic(fmt.Sprintf("lineproto: encode error: %v", err))
	}
	return data
}

// Validate checks cmd against the encoder's preconditions
func Validate(cmd Command) error {
	_, err := EncodeText(cmd)
	return err
}

// EncodeText returns the command template text without terminator
func EncodeText(cmd Command) (string, error) {
	var text string

	switch c := cmd.(type) {
	case ButtonPress:
		if c.Index < 0 || c.Index >= NumButtons {
			return "", invalid("button index %d out of range 0..%d", c.Index, NumButtons-1)
		}
		text = fmt.Sprintf("BTN%d", c.Index+1)

	case ButtonRelease:
		if c.Index < 0 || c.Index >= NumButtons {
			return "", invalid("button index %d out of range 0..%d", c.Index, NumButtons-1)
		}
		text = fmt.Sprintf("BTN%d_OFF", c.Index+1)

	case RgbSet:
		text = fmt.Sprintf("RGB:%d,%d,%d", c.Color.R, c.Color.G, c.Color.B)

	case LedSet:
		if c.Index < 0 || c.Index >= NumLeds {
			return "", invalid("LED index %d out of range 0..%d", c.Index, NumLeds-1)
		}
		state := LedOff
		if c.On {
			state = LedOn
		}
		text = fmt.Sprintf("LED%d:%s", c.Index+1, state)

	case SegmentSet:
		if !isDigits(c.Text) || len(c.Text) == 0 || len(c.Text) > SegmentWidth {
			return "", invalid("segment text %q must be 1..%d digits", c.Text, SegmentWidth)
		}
		text = "SEG:" + NormalizeSegment(c.Text)

	case TimeSync:
		if c.Minutes < 0 || c.Minutes > 59 || c.Seconds < 0 || c.Seconds > 59 {
			return "", invalid("time %d:%d out of range", c.Minutes, c.Seconds)
		}
		text = fmt.Sprintf("%02d%02d", c.Minutes, c.Seconds)

	case ClockSync:
		if c.Hours < 0 || c.Hours > 23 || c.Minutes < 0 || c.Minutes > 59 {
			return "", invalid("clock %d:%d out of range", c.Hours, c.Minutes)
		}
		text = fmt.Sprintf("T%02d:%02d", c.Hours, c.Minutes)

	case RawCode:
		if len(c.Code) == 0 || len(c.Code) > MaxRawCodeLength || !isPrintableASCII(c.Code) {
			return "", invalid("raw code %q must be 1..%d printable ASCII characters", c.Code, MaxRawCodeLength)
		}
		text = c.Code

	case nil:
		return "", invalid("nil command")

	default:
		return "", invalid("unsupported command %T", cmd)
	}

	if len(text) > MaxCommandLength {
		return "", invalid("encoded command %q exceeds %d bytes", text, MaxCommandLength)
	}
	return text, nil
}

// NewTimeSync builds the MMSS time-sync command for t
func NewTimeSync(t time.Time) TimeSync {
	return TimeSync{Minutes: t.Minute(), Seconds: t.Second()}
}

// NewClockSync builds the T<HH>:<MM> clock-sync command for t
func NewClockSync(t time.Time) ClockSync {
	return ClockSync{Hours: t.Hour(), Minutes: t.Minute()}
}

// ParseCommand is the inverse of EncodeText. It accepts the templates the
// encoder produces (trailing whitespace ignored) and falls back to RawCode
// for anything short enough to be a request code.
func ParseCommand(text string) (Command, error) {
	text = strings.TrimSpace(text)

	if rest, ok := strings.CutPrefix(text, "BTN"); ok {
		release := false
		if r, ok := strings.CutSuffix(rest, "_OFF"); ok {
			rest, release = r, true
		}
		n, err := strconv.Atoi(rest)
		if err == nil {
			var cmd Command = ButtonPress{Index: n - 1}
			if release {
				cmd = ButtonRelease{Index: n - 1}
			}
			return cmd, Validate(cmd)
		}
	}

	if rest, ok := strings.CutPrefix(text, "RGB:"); ok {
		events := parseRgb(text, rest)
		if rgb, ok := events[0].(RgbChanged); ok {
			return RgbSet(rgb), nil
		}
		return nil, invalid("malformed RGB command %q", text)
	}

	if rest, ok := strings.CutPrefix(text, "SEG:"); ok {
		cmd := SegmentSet{Text: rest}
		return cmd, Validate(cmd)
	}

	if strings.HasPrefix(text, TypeLed) {
		events := ParseLine(text)
		if led, ok := events[0].(LedChanged); ok {
			return LedSet(led), nil
		}
		return nil, invalid("malformed LED command %q", text)
	}

	if len(text) == 6 && text[0] == 'T' && text[3] == ':' {
		h, errH := strconv.Atoi(text[1:3])
		m, errM := strconv.Atoi(text[4:6])
		if errH == nil && errM == nil {
			cmd := ClockSync{Hours: h, Minutes: m}
			return cmd, Validate(cmd)
		}
	}

	if len(text) == 4 && isDigits(text) {
		m, _ := strconv.Atoi(text[:2])
		s, _ := strconv.Atoi(text[2:])
		cmd := TimeSync{Minutes: m, Seconds: s}
		return cmd, Validate(cmd)
	}

	cmd := RawCode{Code: text}
	return cmd, Validate(cmd)
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidCommand, fmt.Sprintf(format, args...))
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isPrintableASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < 0x21 || s[i] > 0x7E {
			return false
		}
	}
	return true
}
