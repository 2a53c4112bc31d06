// SPDX-License-Identifier: MIT
/*
Package pipeline runs one pull cycle: capture whatever audio has accumulated
(at least one window), analyse it, reduce it to bars and encode the bar line.

The capture source is a single exclusive resource. Cycle holds a mutex for
its whole duration, so transports may share one Pipeline and cycles never
read the source concurrently.
*/
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"listener/internal/audio"
	"listener/internal/bars"
	"listener/internal/log"
	"listener/internal/observe"
	"listener/internal/spectrum"
)

// ErrClosed is returned by Cycle after Close.
var ErrClosed = errors.New("pipeline closed")

// Options carries the optional collaborators of a Pipeline.
type Options struct {
	Gate     *audio.Gate
	Recorder *audio.Recorder
	Metrics  *observe.Metrics
}

type Pipeline struct {
	mu       sync.Mutex
	source   audio.Source
	analyzer *spectrum.Analyzer
	reducer  *bars.Reducer
	gate     *audio.Gate
	recorder *audio.Recorder
	metrics  *observe.Metrics

	window   int // Frames per analysis window.
	channels int
	frame    []int16 // Reused capture buffer.
	silence  []float64
	closed   bool
}

// New checks that the analyzer, reducer and source agree and returns a
// Pipeline that owns source.
func New(source audio.Source, analyzer *spectrum.Analyzer, reducer *bars.Reducer, opts Options) (*Pipeline, error) {
	acfg := analyzer.Config()
	if source.Channels() != acfg.Channels {
		return nil, fmt.Errorf("source has %d channels, analyzer expects %d", source.Channels(), acfg.Channels)
	}
	if need := reducer.MinSpectrum(); acfg.FFTSize < need {
		return nil, fmt.Errorf("%d-bin spectrum is too short for the bar layout, need %d: %w",
			acfg.FFTSize, need, bars.ErrSpectrumTooShort)
	}

	return &Pipeline{
		source:   source,
		analyzer: analyzer,
		reducer:  reducer,
		gate:     opts.Gate,
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
		window:   acfg.FFTSize,
		channels: acfg.Channels,
		silence:  make([]float64, acfg.FFTSize),
	}, nil
}

// WindowFrames returns how many frames a cycle reads when available frames
// are waiting: available rounded up to a whole number of windows, and never
// less than one window.
func WindowFrames(available, window int) int {
	if available <= window {
		return window
	}
	return (available + window - 1) / window * window
}

// Cycle captures, analyses and encodes one bar line.
//
// A source overflow does not fail the cycle: the line is returned together
// with an error wrapping audio.ErrOverflow. Any other error leaves line nil.
func (p *Pipeline) Cycle(ctx context.Context) (line []byte, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()

	available, err := p.source.AvailableFrames()
	if err != nil {
		return nil, err
	}
	frames := WindowFrames(available, p.window)
	buf := p.buffer(frames * p.channels)

	overflowed, err := p.source.ReadFrames(buf)
	if err != nil {
		return nil, err
	}
	p.record(buf)

	var mags []float64
	if p.gate.Open(buf[:p.window*p.channels]) {
		if mags, err = p.analyzer.Analyze(buf); err != nil {
			return nil, err
		}
	} else {
		mags = p.silence
	}

	levels, err := p.reducer.Reduce(mags)
	if err != nil {
		return nil, err
	}
	line = bars.Encode(levels)

	elapsed := time.Since(start)
	p.metrics.RecordCycle(ctx, frames, overflowed, elapsed)
	log.Debugf("Cycle: %d available, %d read, %v", available, frames, elapsed)

	if overflowed {
		return line, fmt.Errorf("read of %d frames: %w", frames, audio.ErrOverflow)
	}
	return line, nil
}

// buffer returns the reusable capture buffer resized to n samples.
func (p *Pipeline) buffer(n int) []int16 {
	if cap(p.frame) < n {
		p.frame = make([]int16, n)
	}
	p.frame = p.frame[:n]
	return p.frame
}

// record appends buf to the WAV side path. Recorder failures disable it.
func (p *Pipeline) record(buf []int16) {
	if p.recorder == nil {
		return
	}
	if err := p.recorder.Write(buf); err != nil {
		log.Errorf("Recording to %s failed, disabling: %v", p.recorder.Path(), err)
		p.closeRecorder()
		return
	}
	if p.recorder.Full() {
		log.Infof("Recording limit reached, %d frames in %s", p.recorder.Frames(), p.recorder.Path())
		p.closeRecorder()
	}
}

func (p *Pipeline) closeRecorder() {
	if err := p.recorder.Close(); err != nil {
		log.Errorf("Failed to close recording: %v", err)
	}
	p.recorder = nil
}

// Close stops the capture source and finalises any recording. Later cycles
// fail.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil
	}
	p.closed = true

	if p.recorder != nil {
		p.closeRecorder()
	}
	if err := p.source.Close(); err != nil {
		return fmt.Errorf("failed to close capture source: %w", err)
	}
	return nil
}
