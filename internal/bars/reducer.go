// SPDX-License-Identifier: MIT
package bars

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrSpectrumTooShort is returned when the highest bar centre falls outside
// the spectrum handed to Reduce.
var ErrSpectrumTooShort = errors.New("spectrum too short for bar layout")

// Smoothing selects how a bar value is taken from its centre bin.
type Smoothing int

const (
	// SmoothCenter uses the centre bin alone.
	SmoothCenter Smoothing = iota
	// SmoothNeighbors averages the centre with its immediate neighbours. A
	// neighbour is used only if it lies strictly above the DC bin and inside
	// the spectrum; missing neighbours are skipped, never wrapped.
	SmoothNeighbors
)

func (s Smoothing) String() string {
	if s == SmoothNeighbors {
		return "neighbors"
	}
	return "center"
}

// ParseSmoothing converts "center" or "neighbors" to a Smoothing.
func ParseSmoothing(name string) (Smoothing, error) {
	switch strings.ToLower(name) {
	case "", "center", "centre":
		return SmoothCenter, nil
	case "neighbors", "neighbours":
		return SmoothNeighbors, nil
	default:
		return SmoothCenter, fmt.Errorf("unknown smoothing %q", name)
	}
}

// Config is the immutable reducer configuration.
type Config struct {
	Count      int       // Bars per line.
	Stride     int       // Bins between bar centres.
	Resolution int       // Maximum bar value, at most 99.
	Smoothing  Smoothing // Centre-bin policy.
	Gains      []float64 // Per-bar multipliers; nil selects GainsFor(Count).
}

// Reducer maps a combined magnitude spectrum onto Count bar levels.
// It holds no per-call state and is safe for concurrent use.
type Reducer struct {
	cfg   Config
	gains []float64
}

// NewReducer validates cfg and returns a Reducer.
func NewReducer(cfg Config) (*Reducer, error) {
	if cfg.Count < 1 {
		return nil, fmt.Errorf("bar count must be positive, got %d", cfg.Count)
	}
	if cfg.Stride < 1 {
		return nil, fmt.Errorf("bar stride must be positive, got %d", cfg.Stride)
	}
	if cfg.Resolution < 1 || cfg.Resolution > 99 {
		return nil, fmt.Errorf("resolution must be in [1, 99], got %d", cfg.Resolution)
	}

	gains := cfg.Gains
	if gains == nil {
		gains = GainsFor(cfg.Count)
	}
	if len(gains) != cfg.Count {
		return nil, fmt.Errorf("gain table has %d entries, want %d", len(gains), cfg.Count)
	}

	cfg.Gains = append([]float64(nil), gains...)
	return &Reducer{cfg: cfg, gains: cfg.Gains}, nil
}

// Config returns the reducer configuration.
func (r *Reducer) Config() Config {
	return r.cfg
}

// MinSpectrum returns the smallest even spectrum length the bar layout fits.
func (r *Reducer) MinSpectrum() int {
	// Centre of bar i is i*stride + n/2 and must be < n.
	n := 2 * ((r.cfg.Count-1)*r.cfg.Stride + 1)
	return n
}

// Reduce returns Count levels, each in [0, Resolution].
//
// Every spectrum value is first scaled by Resolution and clamped. Bar i is
// then read around bin i*Stride + len(spectrum)/2, multiplied by its gain,
// clamped again and truncated to an integer.
func (r *Reducer) Reduce(spectrum []float64) ([]int, error) {
	n := len(spectrum)
	half := n / 2
	if last := (r.cfg.Count-1)*r.cfg.Stride + half; last >= n {
		return nil, fmt.Errorf("%w: bar centre %d, spectrum length %d", ErrSpectrumTooShort, last, n)
	}

	res := float64(r.cfg.Resolution)
	scaled := make([]float64, n)
	for i, v := range spectrum {
		scaled[i] = clamp(v*res, res)
	}

	levels := make([]int, r.cfg.Count)
	for i := range levels {
		c := i*r.cfg.Stride + half
		v := scaled[c]
		if r.cfg.Smoothing == SmoothNeighbors {
			sum, k := v, 1.0
			if c-1 > half {
				sum += scaled[c-1]
				k++
			}
			if c+1 < n {
				sum += scaled[c+1]
				k++
			}
			v = sum / k
		}
		levels[i] = int(clamp(v*r.gains[i], res))
	}
	return levels, nil
}

// clamp limits v to [0, hi]. NaN maps to 0.
func clamp(v, hi float64) float64 {
	if !(v > 0) {
		return 0
	}
	if v > hi {
		return hi
	}
	return v
}

// Encode renders levels as a bar line: each value left-justified in a
// two-character field followed by one space, so "0  7  12 " for 0, 7, 12.
// There is no terminator; the reader knows the bar count.
func Encode(levels []int) []byte {
	return AppendEncode(make([]byte, 0, 3*len(levels)), levels)
}

// AppendEncode appends the encoding of levels to dst.
func AppendEncode(dst []byte, levels []int) []byte {
	for _, v := range levels {
		dst = strconv.AppendInt(dst, int64(v), 10)
		if v >= 0 && v < 10 {
			dst = append(dst, ' ')
		}
		dst = append(dst, ' ')
	}
	return dst
}

// ParseLine decodes a bar line produced by Encode.
func ParseLine(line []byte) ([]int, error) {
	fields := strings.Fields(string(line))
	levels := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, fmt.Errorf("bar %d: %w", i, err)
		}
		levels[i] = v
	}
	return levels, nil
}
