// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdcBand(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value int
		want  RGB
	}{
		{0, RGB{255, 0, 0}},
		{1, RGB{255, 50, 0}},
		{20, RGB{255, 50, 0}},
		{21, RGB{255, 100, 0}},
		{40, RGB{255, 100, 0}},
		{41, RGB{0, 255, 0}},
		{60, RGB{0, 255, 0}},
		{61, RGB{0, 255, 100}},
		{80, RGB{0, 255, 100}},
		{81, RGB{0, 50, 255}},
		{95, RGB{0, 50, 255}},
		{96, RGB{0, 0, 255}},
		{100, RGB{0, 0, 255}},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, AdcBand(tt.value), "AdcBand(%d)", tt.value)
	}
}

func TestAdcBandIndex_Monotonic(t *testing.T) {
	t.Parallel()

	prev := AdcBandIndex(0)
	assert.Equal(t, 0, prev)

	for v := 1; v <= AdcDisplayMax; v++ {
		idx := AdcBandIndex(v)
		assert.GreaterOrEqual(t, idx, prev, "band index decreased at %d", v)
		prev = idx
	}
	assert.Equal(t, 6, prev)
}

func TestAdcBand_Deterministic(t *testing.T) {
	t.Parallel()

	for v := 0; v <= AdcDisplayMax; v++ {
		assert.Equal(t, AdcBand(v), AdcBand(v))
	}
}
