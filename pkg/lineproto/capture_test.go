// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapture_WriteThenRead(t *testing.T) {
	t.Parallel()

	at := time.Date(2025, 6, 1, 12, 0, 0, 500, time.UTC)
	records := []Record{
		{Time: at, Direction: Outbound, Text: "BTN4"},
		{Time: at.Add(time.Millisecond), Direction: Inbound, Text: "ADC:45"},
		{Time: at.Add(2 * time.Millisecond), Direction: Inbound, Text: "LED:1,ON"},
	}

	var buf bytes.Buffer
	w, err := NewCaptureWriter(&buf)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}

	r := NewCaptureReader(&buf)
	for _, want := range records {
		got, err := r.Next()
		require.NoError(t, err)
		assert.True(t, want.Time.Equal(got.Time), "time %v != %v", want.Time, got.Time)
		assert.Equal(t, want.Direction, got.Direction)
		assert.Equal(t, want.Text, got.Text)
	}

	_, err = r.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestCaptureReader_Garbage(t *testing.T) {
	t.Parallel()

	r := NewCaptureReader(bytes.NewReader([]byte{0xFF, 0xFF, 0xFF}))
	_, err := r.Next()
	require.Error(t, err)
	assert.NotErrorIs(t, err, io.EOF)
}

func TestDirection_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "rx", Inbound.String())
	assert.Equal(t, "tx", Outbound.String())
}
