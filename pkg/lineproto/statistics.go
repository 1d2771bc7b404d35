// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"fmt"
	"time"
)

// Statistics tracks line and command counters for a link session
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Inbound
	TotalLines    uint64
	Recognized    uint64
	Unrecognized  uint64
	Substitutions uint64
	Overflows     uint64

	// Outbound
	CommandsSent uint64
	TimeSyncs    uint64
	WriteErrors  uint64

	// Link
	ReadErrors uint64
	Reconnects uint64

	// Rates (calculated)
	LineRate  float64 // lines/sec
	ErrorRate float64 // unrecognized + I/O errors per sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// UpdateLine counts one inbound line and the events it parsed to
func (s *Statistics) UpdateLine(events []Event) {
	s.TotalLines++
	if len(events) == 1 {
		if _, ok := events[0].(Unrecognized); ok {
			s.Unrecognized++
			s.LastUpdateTime = time.Now()
			return
		}
	}
	s.Recognized++
	s.LastUpdateTime = time.Now()
}

// UpdateCodec copies the codec's decode counters
func (s *Statistics) UpdateCodec(c *LineCodec) {
	s.Substitutions = c.Substitutions()
	s.Overflows = c.Overflows()
}

// CalculateRates calculates line and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.LineRate = float64(s.TotalLines) / elapsed
		s.ErrorRate = float64(s.errorCount()) / elapsed
	}
}

func (s *Statistics) errorCount() uint64 {
	return s.Unrecognized + s.WriteErrors + s.ReadErrors
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var recognizedPercent, unrecognizedPercent float64
	if s.TotalLines > 0 {
		recognizedPercent = float64(s.Recognized) * 100.0 / float64(s.TotalLines)
		unrecognizedPercent = float64(s.Unrecognized) * 100.0 / float64(s.TotalLines)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Total Lines:     %8d\n", s.TotalLines)
	result += fmt.Sprintf("Recognized:      %8d (%.1f%%)\n", s.Recognized, recognizedPercent)

	if s.Unrecognized > 0 {
		result += fmt.Sprintf("Unrecognized:    %8d (%.1f%%)\n", s.Unrecognized, unrecognizedPercent)
	}
	if s.Substitutions > 0 {
		result += fmt.Sprintf("Bad Encoding:    %8d\n", s.Substitutions)
	}
	if s.Overflows > 0 {
		result += fmt.Sprintf("Overlong Lines:  %8d\n", s.Overflows)
	}

	result += fmt.Sprintf("Commands Sent:   %8d\n", s.CommandsSent)
	if s.TimeSyncs > 0 {
		result += fmt.Sprintf("  Time Syncs:       %5d\n", s.TimeSyncs)
	}
	if s.WriteErrors > 0 || s.ReadErrors > 0 {
		result += fmt.Sprintf("I/O Errors:      %8d (read %d, write %d)\n", s.WriteErrors+s.ReadErrors, s.ReadErrors, s.WriteErrors)
	}
	if s.Reconnects > 0 {
		result += fmt.Sprintf("Reconnects:      %8d\n", s.Reconnects)
	}

	result += fmt.Sprintf("Line Rate:       %8.1f lines/sec\n", s.LineRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
