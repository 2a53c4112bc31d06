// SPDX-License-Identifier: MIT
/*
Package spectrum turns interleaved 16-bit PCM into a combined magnitude
spectrum of one FFT window.

Layout of the combined spectrum for a window of n bins:

	index:   0 ........... n/2-1 | n/2 ............ n-1
	source:  left[n/2-1 .. n-2]  | right[0 .. n/2-1]
	meaning: negative freqs      | DC, positive freqs

Index n/2 is always the zero-frequency bin of the right channel. Mono input
uses the same transform for both halves.
*/
package spectrum

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"

	"gonum.org/v1/gonum/dsp/fourier"
)

// ErrShortFrame is returned when a frame holds less than one FFT window.
var ErrShortFrame = errors.New("frame shorter than one FFT window")

// Config is the immutable analyzer configuration.
type Config struct {
	FFTSize       int        // nFFT, must be even.
	Channels      int        // Interleaved channels in each frame, 1 or 2.
	SampleRate    float64    // Capture rate in Hz.
	BitsPerSample int        // Sample width, used for normalisation.
	Window        WindowFunc // Window applied before the transform.
}

// MaxAmplitude returns 2^(bits-1), the divisor that maps samples to [-1, 1].
func (c Config) MaxAmplitude() float64 {
	return math.Ldexp(1, c.BitsPerSample-1)
}

// Analyzer computes combined magnitude spectra. It keeps reusable FFT
// buffers, so a single Analyzer must not be used from two goroutines at once.
type Analyzer struct {
	cfg    Config
	maxAmp float64
	fft    *fourier.CmplxFFT
	window []float64

	seq   []complex128 // windowed input of the current transform
	left  []complex128
	right []complex128
}

// NewAnalyzer validates cfg and allocates the FFT workspace. Any even FFT
// size is accepted; gonum's complex FFT handles mixed radices such as 192.
func NewAnalyzer(cfg Config) (*Analyzer, error) {
	if cfg.FFTSize < 2 || cfg.FFTSize%2 != 0 {
		return nil, fmt.Errorf("fft size must be even and >= 2, got %d", cfg.FFTSize)
	}
	if cfg.Channels != 1 && cfg.Channels != 2 {
		return nil, fmt.Errorf("channels must be 1 or 2, got %d", cfg.Channels)
	}
	if cfg.BitsPerSample < 2 || cfg.BitsPerSample > 32 {
		return nil, fmt.Errorf("bits per sample out of range: %d", cfg.BitsPerSample)
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("sample rate must be positive, got %f", cfg.SampleRate)
	}

	return &Analyzer{
		cfg:    cfg,
		maxAmp: cfg.MaxAmplitude(),
		fft:    fourier.NewCmplxFFT(cfg.FFTSize),
		window: coefficients(cfg.Window, cfg.FFTSize),
		seq:    make([]complex128, cfg.FFTSize),
		left:   make([]complex128, cfg.FFTSize),
		right:  make([]complex128, cfg.FFTSize),
	}, nil
}

// Config returns the analyzer configuration.
func (a *Analyzer) Config() Config {
	return a.cfg
}

// Analyze de-interleaves frame, transforms each channel and stitches the
// left channel's negative half to the right channel's positive half. frame
// must hold at least one full window; samples past the first window are
// ignored. The returned slice is newly allocated.
func (a *Analyzer) Analyze(frame []int16) ([]float64, error) {
	n := a.cfg.FFTSize
	if len(frame) < n*a.cfg.Channels {
		return nil, fmt.Errorf("%w: %d samples, need %d", ErrShortFrame, len(frame), n*a.cfg.Channels)
	}

	signals := Deinterleave(frame, a.cfg.Channels, a.maxAmp)

	a.transform(a.left, signals[0])
	if a.cfg.Channels == 1 {
		copy(a.right, a.left)
	} else {
		a.transform(a.right, signals[1])
	}

	return Combine(a.left, a.right, n), nil
}

// transform writes the FFT of the first FFTSize samples of sig into dst,
// zero-padding short input.
func (a *Analyzer) transform(dst []complex128, sig []float64) {
	for i := range a.seq {
		if i < len(sig) {
			a.seq[i] = complex(sig[i]*a.window[i], 0)
		} else {
			a.seq[i] = 0
		}
	}
	a.fft.Coefficients(dst, a.seq)
}

// Frequency returns the frequency in Hz represented by a combined spectrum
// index. Indices below FFTSize/2 are negative.
func (a *Analyzer) Frequency(index int) float64 {
	return float64(index-a.cfg.FFTSize/2) * a.cfg.SampleRate / float64(a.cfg.FFTSize)
}

// Deinterleave splits frame into one signal per channel, dividing every
// sample by maxAmplitude. Each signal has len(frame)/channels samples; a
// trailing partial frame is dropped.
func Deinterleave(frame []int16, channels int, maxAmplitude float64) [][]float64 {
	frames := len(frame) / channels
	signals := make([][]float64, channels)
	for ch := range channels {
		sig := make([]float64, frames)
		for i := range frames {
			sig[i] = float64(frame[i*channels+ch]) / maxAmplitude
		}
		signals[ch] = sig
	}
	return signals
}

// Combine builds the n-point magnitude spectrum from two n-point transforms:
// out[0:n/2] = |left[n/2-1 : n-1]| and out[n/2:n] = |right[0 : n/2]|.
// Both inputs must hold at least n values.
func Combine(left, right []complex128, n int) []float64 {
	half := n / 2
	out := make([]float64, n)
	for k := range half {
		out[k] = cmplx.Abs(left[half-1+k])
		out[half+k] = cmplx.Abs(right[k])
	}
	return out
}
