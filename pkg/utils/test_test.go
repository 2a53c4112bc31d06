// SPDX-License-Identifier: MIT
package utils

import (
	"math"
	"os"
	"testing"
)

const (
	testSize       = 1024
	testSampleRate = 44100
	testFrequency  = 440.0 // A4 note
)

var testMagnitudes []float64

func TestMain(m *testing.M) {
	testMagnitudes = make([]float64, testSize)

	// A "hill" with its peak at testSize/4.
	for i := range testMagnitudes {
		testMagnitudes[i] = math.Exp(-0.01 * math.Pow(float64(i-testSize/4), 2))
	}

	os.Exit(m.Run())
}

func TestSineSample(t *testing.T) {
	if got := SineSample(0, testSampleRate, testFrequency, 1); got != 0 {
		t.Errorf("SineSample(0) = %d, want 0", got)
	}
	if got := SineSample(10, testSampleRate, 0, 1); got != 0 {
		t.Errorf("zero frequency should be silent, got %d", got)
	}
	// A quarter period into a full-scale sine is the positive peak.
	quarter := int(testSampleRate / 441.0 / 4) // 441 Hz has an integer period of 100 samples
	if got := SineSample(quarter, testSampleRate, 441, 1); got != math.MaxInt16 {
		t.Errorf("SineSample at quarter period = %d, want %d", got, math.MaxInt16)
	}
}

func TestGenerateSineWave(t *testing.T) {
	tests := []struct {
		name       string
		frames     int
		channels   int
		sampleRate float64
		frequency  float64
	}{
		{"A4 Mono", 1024, 1, 44100, 440.0},
		{"Middle C Stereo", 1024, 2, 44100, 261.63},
		{"High Sample Rate", 1024, 1, 192000, 440.0},
		{"Low Sample Rate", 1024, 2, 8000, 440.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := GenerateSineWave(tt.frames, tt.channels, tt.sampleRate, tt.frequency, 0.9)

			if len(result) != tt.frames*tt.channels {
				t.Fatalf("buffer size = %d, want %d", len(result), tt.frames*tt.channels)
			}

			for i := 0; i < tt.frames; i++ {
				for ch := 1; ch < tt.channels; ch++ {
					if result[i*tt.channels+ch] != result[i*tt.channels] {
						t.Fatalf("frame %d channel %d differs from channel 0", i, ch)
					}
				}
			}

			// Two zero crossings per cycle, give or take phase alignment.
			samplesPerCycle := tt.sampleRate / tt.frequency
			crossCount := 0
			for i := 1; i < tt.frames; i++ {
				prev, cur := result[(i-1)*tt.channels], result[i*tt.channels]
				if (prev < 0 && cur >= 0) || (prev >= 0 && cur < 0) {
					crossCount++
				}
			}
			expected := float64(tt.frames) / (samplesPerCycle / 2)
			tolerance := 0.2 * expected
			if math.Abs(float64(crossCount)-expected) > tolerance {
				t.Errorf("zero crossings = %d, expected approximately %.1f±%.1f", crossCount, expected, tolerance)
			}
		})
	}
}

func TestGenerateStereo(t *testing.T) {
	buf := GenerateStereo(256, testSampleRate, 0, testFrequency, 0.5)
	if len(buf) != 512 {
		t.Fatalf("len = %d, want 512", len(buf))
	}
	hasRight := false
	for i := 0; i < 256; i++ {
		if buf[2*i] != 0 {
			t.Fatalf("left channel should be silent, frame %d = %d", i, buf[2*i])
		}
		if buf[2*i+1] != 0 {
			hasRight = true
		}
	}
	if !hasRight {
		t.Error("right channel is silent")
	}
}

func TestBinFrequency(t *testing.T) {
	if got := BinFrequency(4, 192, 44100); math.Abs(got-918.75) > 1e-9 {
		t.Errorf("BinFrequency(4, 192) = %f, want 918.75", got)
	}
}

func TestFindPeakBin(t *testing.T) {
	tests := []struct {
		name     string
		mags     []float64
		start    int
		end      int
		expected int
	}{
		{"Full Range", testMagnitudes, 0, testSize - 1, testSize / 4},
		{"Partial Range Start", testMagnitudes, testSize / 8, testSize - 1, testSize / 4},
		{"Partial Range End", testMagnitudes, 0, testSize / 3, testSize / 4},
		{"Negative Start", testMagnitudes, -10, testSize - 1, testSize / 4},
		{"Out of Range End", testMagnitudes, 0, testSize * 2, testSize / 4},
		{"Empty Slice", []float64{}, 0, 10, 0},
		{"Single Value", []float64{1.0}, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := FindPeakBin(tt.mags, tt.start, tt.end)
			if result != tt.expected {
				t.Errorf("FindPeakBin() = %d, want %d", result, tt.expected)
			}
		})
	}

	allocs := testing.AllocsPerRun(100, func() {
		FindPeakBin(testMagnitudes, 0, len(testMagnitudes)-1)
	})

	if allocs > 0 {
		t.Errorf("FindPeakBin allocated memory: got %.1f allocs, want 0", allocs)
	}
}

func BenchmarkGenerateSineWave(b *testing.B) {
	b.ReportAllocs()
	for b.Loop() {
		GenerateSineWave(1024, 2, testSampleRate, testFrequency, 0.5)
	}
}
