// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import (
	"math"
	"testing"
)

func TestFloatToPCMScaling(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{0, 0},
		{1, 32767},
		{-1, -32768},
		{0.5, 16383},
		{-0.5, -16384},
		{2.0, 32767},   // clamped
		{-2.0, -32768}, // clamped
	}
	for _, c := range cases {
		if got := FloatToPCM(c.in); got != c.want {
			t.Errorf("FloatToPCM(%v) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestResampleEqualRateIsPureConversion(t *testing.T) {
	in := []float32{0, 0.25, -0.25, 1, -1, 0.999}
	out := Resample(in, 16000, 16000)

	if len(out) != len(in) {
		t.Fatalf("output length = %d, want %d", len(out), len(in))
	}
	for i, s := range in {
		if out[i] != FloatToPCM(s) {
			t.Errorf("sample %d = %d, want %d (no averaging at equal rates)", i, out[i], FloatToPCM(s))
		}
	}
}

func TestResampleIntegerRatioAverages(t *testing.T) {
	// 48k -> 16k: every output sample is the mean of 3 inputs.
	in := []float32{0.3, 0.3, 0.3, -0.6, -0.6, -0.6}
	out := Resample(in, 48000, 16000)

	if len(out) != 2 {
		t.Fatalf("output length = %d, want 2", len(out))
	}
	if want := FloatToPCM(0.3); out[0] != want {
		t.Errorf("out[0] = %d, want %d", out[0], want)
	}
	if want := FloatToPCM(-0.6); out[1] != want {
		t.Errorf("out[1] = %d, want %d", out[1], want)
	}
}

func TestResampleNonIntegerRatioLength(t *testing.T) {
	// 44.1k -> 16k, one second of input.
	in := make([]float32, 44100)
	out := Resample(in, 44100, 16000)

	want := int(math.Round(44100 / (44100.0 / 16000.0)))
	if len(out) != want {
		t.Fatalf("output length = %d, want %d", len(out), want)
	}
}

func TestResampleSpanBoundariesDoNotDrift(t *testing.T) {
	// Mark one input sample and check it lands in the output span that
	// the rounded cumulative boundaries dictate, not a fixed-width one.
	inRate, outRate := 44100, 16000
	ratio := float64(inRate) / float64(outRate)
	in := make([]float32, 4410) // 100ms

	markIdx := 3000
	in[markIdx] = 1.0
	out := Resample(in, inRate, outRate)

	found := -1
	for i, s := range out {
		if s != 0 {
			found = i
			break
		}
	}
	if found < 0 {
		t.Fatal("marked sample averaged away entirely")
	}
	start := int(math.Round(float64(found) * ratio))
	end := int(math.Round(float64(found+1) * ratio))
	if markIdx < start || markIdx >= end {
		t.Errorf("mark at input %d surfaced in output %d spanning [%d,%d)", markIdx, found, start, end)
	}
}

func TestResampleEmptyInput(t *testing.T) {
	if out := Resample(nil, 48000, 16000); out != nil {
		t.Errorf("Resample(nil) = %v, want nil", out)
	}
}
