// SPDX-FileCopyrightText: 2026 Nextcloud GmbH and Nextcloud contributors
// SPDX-License-Identifier: AGPL-3.0-or-later

package audio

import "math"

// Resample converts a frame of float samples at inRate to 16-bit PCM
// at targetRate. Equal rates perform only the float→int16 conversion.
// Downsampling uses block averaging: each output sample is the mean of
// the corresponding input span, with span boundaries computed by
// rounding cumulative ratio positions so the spans never drift. No
// interpolation or anti-aliasing filter is applied.
func Resample(samples []float32, inRate, targetRate int) []int16 {
	if len(samples) == 0 {
		return nil
	}
	if inRate == targetRate {
		out := make([]int16, len(samples))
		for i, s := range samples {
			out[i] = FloatToPCM(s)
		}
		return out
	}

	ratio := float64(inRate) / float64(targetRate)
	outLen := int(math.Round(float64(len(samples)) / ratio))
	if outLen == 0 {
		return nil
	}

	out := make([]int16, outLen)
	for i := 0; i < outLen; i++ {
		start := int(math.Round(float64(i) * ratio))
		end := int(math.Round(float64(i+1) * ratio))
		if start >= len(samples) {
			start = len(samples) - 1
		}
		if end > len(samples) {
			end = len(samples)
		}
		if end <= start {
			end = start + 1
		}

		var sum float64
		for _, s := range samples[start:end] {
			sum += float64(s)
		}
		out[i] = FloatToPCM(float32(sum / float64(end-start)))
	}
	return out
}

// FloatToPCM converts one float sample to int16, clamping to [-1, 1]
// first. Negative values scale by 32768 and positive by 32767 to match
// the asymmetric signed 16-bit range.
func FloatToPCM(s float32) int16 {
	if s < -1 {
		s = -1
	} else if s > 1 {
		s = 1
	}
	if s < 0 {
		return int16(s * 32768)
	}
	return int16(s * 32767)
}
