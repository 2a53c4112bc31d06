// SPDX-License-Identifier: MIT
/*
Package audio provides capture sources of interleaved signed 16-bit PCM:
a PortAudio input device, synthetic tone and silence sources that pace
themselves by the wall clock, a WAV recorder for the capture side path and a
peak noise gate.

Sources are owned by a single caller at a time; none of them lock.
*/
package audio

import "errors"

// ErrOverflow marks input the source had to drop because it was not read in
// time. It is informational: data returned alongside it is still valid.
var ErrOverflow = errors.New("input overflowed")

// Source is a blocking capture source of interleaved 16-bit PCM.
type Source interface {
	// AvailableFrames reports how many frames can be read without blocking.
	AvailableFrames() (int, error)

	// ReadFrames fills buf, which must hold a whole number of frames,
	// blocking until enough input has arrived. overflowed reports that
	// input was dropped before this read; buf is still filled.
	ReadFrames(buf []int16) (overflowed bool, err error)

	// Channels returns the number of interleaved channels per frame.
	Channels() int

	// SampleRate returns the capture rate in Hz.
	SampleRate() float64

	// Close stops capture and releases the source.
	Close() error
}
