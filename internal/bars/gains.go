// SPDX-License-Identifier: MIT
package bars

// DefaultGains is the per-bar multiplier table for 32 bars. Music and room
// noise fall off roughly like pink noise, so upper bars would sit near zero
// next to the bass. The table leaves the first five bars untouched, ramps by
// one per bar and holds a plateau of 8 for the rest of the spectrum.
var DefaultGains = [32]float64{
	1, 1, 1, 1, 1, 2, 3, 4, 5, 6, 7, 8, 8, 8, 8, 8,
	8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8, 8,
}

// GainsFor returns a gain table for count bars. Thirty-two bars get
// DefaultGains; other counts take the entry at the same relative position,
// which keeps the table non-decreasing and within [1, 8].
func GainsFor(count int) []float64 {
	gains := make([]float64, count)
	for i := range gains {
		gains[i] = DefaultGains[i*len(DefaultGains)/count]
	}
	return gains
}
