// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Direction of a captured line
type Direction uint8

const (
	Inbound  Direction = 0 // board -> host
	Outbound Direction = 1 // host -> board
)

// String returns "rx" or "tx"
func (d Direction) String() string {
	if d == Outbound {
		return "tx"
	}
	return "rx"
}

// Record is one captured line. Records are stored as a CBOR sequence with
// integer keys to keep capture files compact.
type Record struct {
	Time      time.Time `cbor:"0,keyasint"`
	Direction Direction `cbor:"1,keyasint"`
	Text      string    `cbor:"2,keyasint"`
}

// CaptureWriter appends records to a CBOR sequence
type CaptureWriter struct {
	enc *cbor.Encoder
}

// NewCaptureWriter creates a writer on w
func NewCaptureWriter(w io.Writer) (*CaptureWriter, error) {
	mode, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}
	return &CaptureWriter{enc: mode.NewEncoder(w)}, nil
}

// Write appends one record
func (w *CaptureWriter) Write(r Record) error {
	if err := w.enc.Encode(r); err != nil {
		return fmt.Errorf("failed to write capture record: %w", err)
	}
	return nil
}

// CaptureReader reads records written by CaptureWriter
type CaptureReader struct {
	dec *cbor.Decoder
}

// NewCaptureReader creates a reader on r
func NewCaptureReader(r io.Reader) *CaptureReader {
	return &CaptureReader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the capture
func (r *CaptureReader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to read capture record: %w", err)
	}
	return rec, nil
}
