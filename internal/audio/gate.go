// SPDX-License-Identifier: MIT
package audio

import "math"

// Gate is a peak noise gate. A window whose absolute peak falls below the
// threshold is treated as silence by the caller.
type Gate struct {
	threshold int32 // Absolute amplitude threshold (0-32767)
}

// NewGate returns a gate at the given threshold, see SetThreshold.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	return g
}

// SetThreshold adjusts the noise gate threshold.
// The value is in the range of 0.0-1.0 where 0=always open, 1=only full scale passes.
func (g *Gate) SetThreshold(threshold float64) {
	if threshold < 0.0 {
		threshold = 0.0
	}
	if threshold > 1.0 {
		threshold = 1.0
	}

	g.threshold = int32(threshold * float64(math.MaxInt16))
}

// Threshold returns the current threshold in the range 0.0-1.0.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold) / float64(math.MaxInt16)
}

// Open reports whether buffer is loud enough to pass. A zero threshold
// always passes.
func (g *Gate) Open(buffer []int16) bool {
	if g == nil || g.threshold == 0 {
		return true
	}
	return Peak(buffer) >= g.threshold
}

// Peak returns the largest absolute sample value in buffer without branching
// in the loop.
func Peak(buffer []int16) int32 {
	var maxAmplitude int32
	for _, s := range buffer {
		sample := int32(s)
		mask := sample >> 31
		amplitude := (sample ^ mask) - mask

		diff := amplitude - maxAmplitude
		maxAmplitude += (diff & (diff >> 31)) ^ diff
	}
	return maxAmplitude
}
