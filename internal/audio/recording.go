// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// ErrRecordingClosed is returned by Write after Close.
var ErrRecordingClosed = errors.New("recording closed")

// Recorder appends captured PCM to a 16-bit WAV file.
type Recorder struct {
	path       string
	channels   int
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion

	limit   int // Frames; 0 means unlimited.
	written int
}

// NewRecorder creates path and prepares a WAV encoder for it. maxSeconds
// caps the recording length; 0 means unlimited.
func NewRecorder(path string, sampleRate, channels int, maxSeconds float64) (*Recorder, error) {
	if channels < 1 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create recording: %w", err)
	}

	return &Recorder{
		path:       path,
		channels:   channels,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, sampleRate, 16, channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: channels,
				SampleRate:  sampleRate,
			},
			SourceBitDepth: 16,
		},
		limit: int(maxSeconds * float64(sampleRate)),
	}, nil
}

// Path returns the file being written.
func (r *Recorder) Path() string {
	return r.path
}

// Frames returns how many frames have been written.
func (r *Recorder) Frames() int {
	return r.written
}

// Full reports whether the length cap has been reached.
func (r *Recorder) Full() bool {
	return r.limit > 0 && r.written >= r.limit
}

// Write appends interleaved samples, dropping whatever exceeds the cap.
func (r *Recorder) Write(samples []int16) error {
	if r.wavEncoder == nil {
		return ErrRecordingClosed
	}

	frames := len(samples) / r.channels
	if r.limit > 0 {
		frames = min(frames, r.limit-r.written)
	}
	if frames <= 0 {
		return nil
	}

	n := frames * r.channels
	if cap(r.sampleBuf.Data) < n {
		r.sampleBuf.Data = make([]int, n)
	}
	r.sampleBuf.Data = r.sampleBuf.Data[:n]
	for i, sample := range samples[:n] {
		r.sampleBuf.Data[i] = int(sample)
	}

	if err := r.wavEncoder.Write(r.sampleBuf); err != nil {
		return fmt.Errorf("failed to write WAV data: %w", err)
	}
	r.written += frames
	return nil
}

// Close finalises the WAV header and closes the file.
func (r *Recorder) Close() error {
	if r.wavEncoder == nil {
		return nil
	}

	encErr := r.wavEncoder.Close()
	r.wavEncoder = nil
	fileErr := r.outputFile.Close()
	r.outputFile = nil

	if encErr != nil {
		return fmt.Errorf("failed to finalise WAV: %w", encErr)
	}
	if fileErr != nil {
		return fmt.Errorf("failed to close recording: %w", fileErr)
	}
	return nil
}
