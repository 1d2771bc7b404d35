// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package lineproto

// ADC alert bands. Each entry covers values up to and including Max.
var adcBands = []struct {
	Max   int
	Color RGB
}{
	{0, RGB{255, 0, 0}},
	{20, RGB{255, 50, 0}},
	{40, RGB{255, 100, 0}},
	{60, RGB{0, 255, 0}},
	{80, RGB{0, 255, 100}},
	{95, RGB{0, 50, 255}},
}

// adcBandTop is used above the last breakpoint
var adcBandTop = RGB{0, 0, 255}

// AdcBandIndex returns the band number (0..6) for a display value.
// Values below zero fall in band 0.
func AdcBandIndex(value int) int {
	for i, band := range adcBands {
		if value <= band.Max {
			return i
		}
	}
	return len(adcBands)
}

// AdcBand maps a display value to the alert color the firmware shows for it
func AdcBand(value int) RGB {
	idx := AdcBandIndex(value)
	if idx < len(adcBands) {
		return adcBands[idx].Color
	}
	return adcBandTop
}
