// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"time"

	"listener/pkg/utils"
)

// Synthetic is a generated source that produces frames at the configured
// rate of wall-clock time, so pulls pace like a real device. A backlog larger
// than one second is dropped and reported as an overflow.
type Synthetic struct {
	channels int
	rate     float64
	sample   func(frame int) int16

	start    time.Time
	consumed int
	closed   bool

	now   func() time.Time
	sleep func(time.Duration)
}

// NewTone returns a source producing a sine of hz at the given fraction of
// full scale on every channel.
func NewTone(channels int, sampleRate, hz, amplitude float64) *Synthetic {
	return newSynthetic(channels, sampleRate, func(i int) int16 {
		return utils.SineSample(i, sampleRate, hz, amplitude)
	})
}

// NewSilence returns a source producing zero samples.
func NewSilence(channels int, sampleRate float64) *Synthetic {
	return newSynthetic(channels, sampleRate, func(int) int16 { return 0 })
}

func newSynthetic(channels int, rate float64, sample func(int) int16) *Synthetic {
	s := &Synthetic{
		channels: channels,
		rate:     rate,
		sample:   sample,
		now:      time.Now,
		sleep:    time.Sleep,
	}
	s.start = s.now()
	return s
}

func (s *Synthetic) Channels() int {
	return s.channels
}

func (s *Synthetic) SampleRate() float64 {
	return s.rate
}

// produced returns how many frames the clock has generated so far.
func (s *Synthetic) produced() int {
	return int(float64(s.now().Sub(s.start).Nanoseconds()) * s.rate / 1e9)
}

func (s *Synthetic) AvailableFrames() (int, error) {
	if s.closed {
		return 0, errors.New("source closed")
	}
	return min(max(s.produced()-s.consumed, 0), s.maxBacklog()), nil
}

// maxBacklog is the most unread audio kept: one second of frames.
func (s *Synthetic) maxBacklog() int {
	return int(s.rate)
}

func (s *Synthetic) ReadFrames(buf []int16) (bool, error) {
	if s.closed {
		return false, errors.New("source closed")
	}
	if len(buf)%s.channels != 0 {
		return false, errors.New("read is not a whole number of frames")
	}
	frames := len(buf) / s.channels

	overflowed := false
	produced := s.produced()
	if produced-s.consumed > s.maxBacklog() {
		s.consumed = produced - s.maxBacklog()
		overflowed = true
	}

	if deficit := s.consumed + frames - produced; deficit > 0 {
		s.sleep(time.Duration(float64(deficit) * float64(time.Second) / s.rate))
	}

	for i := range frames {
		v := s.sample(s.consumed + i)
		for ch := range s.channels {
			buf[i*s.channels+ch] = v
		}
	}
	s.consumed += frames
	return overflowed, nil
}

func (s *Synthetic) Close() error {
	s.closed = true
	return nil
}
