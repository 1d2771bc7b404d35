// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
)

// LineCodec splits a raw byte stream into text lines.
//
// Bytes are accumulated until the delimiter is seen. Invalid UTF-8 is replaced
// with U+FFFD rather than rejected, trailing whitespace is stripped, and lines
// that are empty after stripping are dropped. A LineCodec is not safe for
// concurrent use; the link worker owns exactly one.
type LineCodec struct {
	delim         byte
	maxLen        int
	buffer        []byte
	substitutions uint64
	overflows     uint64
	discarding    bool // inside an overflowed line, skip until the next delimiter
}

// CodecOption configures a LineCodec
type CodecOption func(*LineCodec)

// WithDelimiter overrides the line delimiter (default '\n')
func WithDelimiter(delim byte) CodecOption {
	return func(c *LineCodec) {
		c.delim = delim
	}
}

// WithMaxLineLength overrides the partial line limit (default MaxLineLength)
func WithMaxLineLength(n int) CodecOption {
	return func(c *LineCodec) {
		if n > 0 {
			c.maxLen = n
		}
	}
}

// NewLineCodec creates a codec with an empty buffer
func NewLineCodec(opts ...CodecOption) *LineCodec {
	c := &LineCodec{
		delim:  LineDelimiter,
		maxLen: MaxLineLength,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.buffer = make([]byte, 0, c.maxLen)
	return c
}

// Feed appends p to the buffer and returns every line completed by it, in
// arrival order. A partial line is retained for the next call.
func (c *LineCodec) Feed(p []byte) []string {
	var lines []string

	for len(p) > 0 {
		idx := bytes.IndexByte(p, c.delim)
		if idx < 0 {
			c.accumulate(p)
			break
		}

		c.accumulate(p[:idx])
		p = p[idx+1:]

		if c.discarding {
			c.discarding = false
			c.buffer = c.buffer[:0]
			continue
		}

		if line, ok := c.emit(); ok {
			lines = append(lines, line)
		}
	}

	return lines
}

// Flush returns the buffered partial line, if any, as if a delimiter had
// arrived. Used at end of input.
func (c *LineCodec) Flush() (string, bool) {
	if c.discarding {
		c.Reset()
		return "", false
	}
	return c.emit()
}

// Reset drops any buffered partial line
func (c *LineCodec) Reset() {
	c.buffer = c.buffer[:0]
	c.discarding = false
}

// ResetCounters zeroes the substitution and overflow counters. The buffered
// partial line is kept.
func (c *LineCodec) ResetCounters() {
	c.substitutions = 0
	c.overflows = 0
}

// Pending returns the number of buffered bytes awaiting a delimiter
func (c *LineCodec) Pending() int {
	return len(c.buffer)
}

// Substitutions returns how many lines contained undecodable bytes
func (c *LineCodec) Substitutions() uint64 {
	return c.substitutions
}

// Overflows returns how many partial lines exceeded the length limit
func (c *LineCodec) Overflows() uint64 {
	return c.overflows
}

func (c *LineCodec) accumulate(p []byte) {
	if c.discarding {
		return
	}
	if len(c.buffer)+len(p) > c.maxLen {
		c.overflows++
		c.buffer = c.buffer[:0]
		c.discarding = true
		return
	}
	c.buffer = append(c.buffer, p...)
}

func (c *LineCodec) emit() (string, bool) {
	raw := c.buffer
	c.buffer = c.buffer[:0]

	line := DecodeText(raw)
	if !utf8.Valid(raw) {
		c.substitutions++
	}

	line = strings.TrimRightFunc(line, isLineSpace)
	line = strings.TrimLeftFunc(line, isLineSpace)
	if line == "" {
		return "", false
	}
	return line, true
}

// DecodeText decodes raw bytes as UTF-8, replacing invalid sequences with
// U+FFFD. It never fails.
func DecodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	decoded, err := unicode.UTF8.NewDecoder().Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), string(utf8.RuneError))
	}
	return string(decoded)
}

func isLineSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n', '\v', '\f', 0:
		return true
	}
	return false
}
