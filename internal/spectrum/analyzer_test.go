// SPDX-License-Identifier: MIT
package spectrum

import (
	"errors"
	"math"
	"testing"

	"listener/pkg/utils"
)

const (
	testFFTSize    = 192
	testSampleRate = 44100
	testToneBin    = 4 // 918.75 Hz at 192 points
)

func newTestAnalyzer(t *testing.T, channels int) *Analyzer {
	t.Helper()
	a, err := NewAnalyzer(Config{
		FFTSize:       testFFTSize,
		Channels:      channels,
		SampleRate:    testSampleRate,
		BitsPerSample: 16,
	})
	if err != nil {
		t.Fatalf("NewAnalyzer() error: %v", err)
	}
	return a
}

func toneHz() float64 {
	return utils.BinFrequency(testToneBin, testFFTSize, testSampleRate)
}

func TestAnalyzeSilence(t *testing.T) {
	for _, channels := range []int{1, 2} {
		a := newTestAnalyzer(t, channels)
		spec, err := a.Analyze(make([]int16, testFFTSize*channels))
		if err != nil {
			t.Fatalf("Analyze() error: %v", err)
		}
		if len(spec) != testFFTSize {
			t.Fatalf("len(spectrum) = %d, want %d", len(spec), testFFTSize)
		}
		for i, v := range spec {
			if v != 0 {
				t.Fatalf("channels=%d: spectrum[%d] = %f, want 0", channels, i, v)
			}
		}
	}
}

func TestAnalyzeDCBoundary(t *testing.T) {
	a := newTestAnalyzer(t, 1)
	frame := make([]int16, testFFTSize)
	for i := range frame {
		frame[i] = 8192 // exactly 0.25 of full scale
	}

	spec, err := a.Analyze(frame)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	want := 0.25 * testFFTSize
	if math.Abs(spec[testFFTSize/2]-want) > 1e-9 {
		t.Errorf("DC bin = %f, want %f", spec[testFFTSize/2], want)
	}
	if peak := utils.FindPeakBin(spec, 0, testFFTSize-1); peak != testFFTSize/2 {
		t.Errorf("constant input peaks at %d, want DC index %d", peak, testFFTSize/2)
	}
}

func TestAnalyzeTonePeak(t *testing.T) {
	a := newTestAnalyzer(t, 1)
	frame := utils.GenerateSineWave(testFFTSize, 1, testSampleRate, toneHz(), 0.5)

	spec, err := a.Analyze(frame)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}

	want := testFFTSize/2 + testToneBin
	if peak := utils.FindPeakBin(spec, testFFTSize/2, testFFTSize-1); peak != want {
		t.Errorf("positive-half peak at %d, want %d", peak, want)
	}
	// A full-scale/2 sine on an exact bin has magnitude A*n/2.
	if got := spec[want]; math.Abs(got-0.5*testFFTSize/2) > 0.1 {
		t.Errorf("peak magnitude = %f, want about %f", got, 0.5*testFFTSize/2)
	}
	if f := a.Frequency(want); math.Abs(f-toneHz()) > 1e-9 {
		t.Errorf("Frequency(%d) = %f, want %f", want, f, toneHz())
	}
}

func TestAnalyzeStereoStitching(t *testing.T) {
	tests := []struct {
		name     string
		leftHz   float64
		rightHz  float64
		wantPeak int
	}{
		// Right channel feeds the positive half starting at DC.
		{"Right tone", 0, toneHz(), testFFTSize/2 + testToneBin},
		// Left bin n-k lands at index n-k-(n/2-1).
		{"Left tone", toneHz(), 0, testFFTSize/2 - testToneBin + 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestAnalyzer(t, 2)
			frame := utils.GenerateStereo(testFFTSize, testSampleRate, tt.leftHz, tt.rightHz, 0.5)

			spec, err := a.Analyze(frame)
			if err != nil {
				t.Fatalf("Analyze() error: %v", err)
			}
			if peak := utils.FindPeakBin(spec, 0, testFFTSize-1); peak != tt.wantPeak {
				t.Errorf("peak at %d, want %d", peak, tt.wantPeak)
			}
		})
	}
}

func TestAnalyzeDeterministic(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	frame := utils.GenerateStereo(testFFTSize, testSampleRate, 440, 3000, 0.7)

	first, err := a.Analyze(frame)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	// Run something else through the workspace in between.
	if _, err := a.Analyze(utils.GenerateStereo(testFFTSize, testSampleRate, 5000, 100, 0.9)); err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	second, _ := a.Analyze(frame)

	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("spectrum[%d] differs between runs: %v vs %v", i, first[i], second[i])
		}
	}
}

func TestAnalyzeUsesFirstWindow(t *testing.T) {
	a := newTestAnalyzer(t, 1)
	frame := make([]int16, 3*testFFTSize)
	copy(frame, utils.GenerateSineWave(testFFTSize, 1, testSampleRate, toneHz(), 0.5))

	long, err := a.Analyze(frame)
	if err != nil {
		t.Fatalf("Analyze() error: %v", err)
	}
	exact, _ := a.Analyze(frame[:testFFTSize])
	for i := range long {
		if long[i] != exact[i] {
			t.Fatalf("spectrum[%d] = %v, want %v", i, long[i], exact[i])
		}
	}
}

func TestAnalyzeShortFrame(t *testing.T) {
	a := newTestAnalyzer(t, 2)
	_, err := a.Analyze(make([]int16, testFFTSize)) // one window of mono is half a stereo window
	if !errors.Is(err, ErrShortFrame) {
		t.Errorf("expected ErrShortFrame, got %v", err)
	}
}

func TestNewAnalyzerErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"Odd size", Config{FFTSize: 191, Channels: 1, SampleRate: 44100, BitsPerSample: 16}},
		{"Three channels", Config{FFTSize: 192, Channels: 3, SampleRate: 44100, BitsPerSample: 16}},
		{"Zero rate", Config{FFTSize: 192, Channels: 1, SampleRate: 0, BitsPerSample: 16}},
		{"Zero bits", Config{FFTSize: 192, Channels: 1, SampleRate: 44100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewAnalyzer(tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCombine(t *testing.T) {
	const n = 8
	left := make([]complex128, n)
	right := make([]complex128, n)
	for i := range n {
		left[i] = complex(float64(i), 0)
		right[i] = complex(0, -float64(100+i)) // magnitude 100+i
	}

	got := Combine(left, right, n)
	want := []float64{3, 4, 5, 6, 100, 101, 102, 103}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("Combine()[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestDeinterleave(t *testing.T) {
	frame := []int16{16384, -16384, 8192, -8192, 0, 32767, 1}
	signals := Deinterleave(frame, 2, 32768)

	if len(signals) != 2 {
		t.Fatalf("got %d channels, want 2", len(signals))
	}
	for ch, sig := range signals {
		if len(sig) != 3 {
			t.Errorf("channel %d has %d samples, want floor(7/2)=3", ch, len(sig))
		}
	}
	if signals[0][0] != 0.5 || signals[1][0] != -0.5 || signals[0][1] != 0.25 {
		t.Errorf("unexpected normalisation: %v", signals)
	}
}

func TestParseWindowFunc(t *testing.T) {
	tests := []struct {
		name    string
		want    WindowFunc
		wantErr bool
	}{
		{"", Rectangular, false},
		{"none", Rectangular, false},
		{"Hanning", Hann, false},
		{"BLACKMAN", Blackman, false},
		{"nuttall", Nuttall, false},
		{"kaiser", Rectangular, true},
	}
	for _, tt := range tests {
		got, err := ParseWindowFunc(tt.name)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseWindowFunc(%q) = %v, %v; want %v, err=%v", tt.name, got, err, tt.want, tt.wantErr)
		}
	}
}

func TestWindowedSilenceStaysZero(t *testing.T) {
	a, err := NewAnalyzer(Config{FFTSize: testFFTSize, Channels: 1, SampleRate: testSampleRate, BitsPerSample: 16, Window: Hann})
	if err != nil {
		t.Fatalf("NewAnalyzer() error: %v", err)
	}
	spec, _ := a.Analyze(make([]int16, testFFTSize))
	for i, v := range spec {
		if v != 0 {
			t.Fatalf("spectrum[%d] = %f, want 0", i, v)
		}
	}
}

func BenchmarkAnalyze(b *testing.B) {
	a, _ := NewAnalyzer(Config{FFTSize: testFFTSize, Channels: 2, SampleRate: testSampleRate, BitsPerSample: 16})
	frame := utils.GenerateStereo(testFFTSize, testSampleRate, 440, 880, 0.5)

	b.ReportAllocs()
	for b.Loop() {
		_, _ = a.Analyze(frame)
	}
}
