// SPDX-License-Identifier: MIT
package utils

import "math"

// SineSample returns sample i of a sine wave as signed 16-bit PCM. amplitude
// is a fraction of full scale in [0, 1]; a frequency of 0 yields silence.
func SineSample(i int, sampleRate, frequency, amplitude float64) int16 {
	if frequency == 0 {
		return 0
	}
	t := float64(i) / sampleRate
	return int16(math.Round(math.Sin(2*math.Pi*frequency*t) * amplitude * math.MaxInt16))
}

// GenerateSineWave returns frames of interleaved PCM with the same sine on
// every channel.
func GenerateSineWave(frames, channels int, sampleRate, frequency, amplitude float64) []int16 {
	buffer := make([]int16, frames*channels)
	for i := range frames {
		s := SineSample(i, sampleRate, frequency, amplitude)
		for ch := range channels {
			buffer[i*channels+ch] = s
		}
	}
	return buffer
}

// GenerateStereo returns frames of interleaved stereo PCM with independent
// left and right tones.
func GenerateStereo(frames int, sampleRate, leftHz, rightHz, amplitude float64) []int16 {
	buffer := make([]int16, frames*2)
	for i := range frames {
		buffer[2*i] = SineSample(i, sampleRate, leftHz, amplitude)
		buffer[2*i+1] = SineSample(i, sampleRate, rightHz, amplitude)
	}
	return buffer
}

// BinFrequency returns the centre frequency of bin k of an n-point FFT.
func BinFrequency(k, n int, sampleRate float64) float64 {
	return float64(k) * sampleRate / float64(n)
}

// FindPeakBin returns the index of the largest value in
// magnitudes[startBin:endBin+1], clamping the range to the slice.
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}

	if startBin < 0 {
		startBin = 0
	}

	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]

	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}

	return peakBin
}
