// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"fmt"
	"time"

	"listener/internal/log"

	"github.com/gordonklaus/portaudio"
)

// stream is the part of *portaudio.Stream a Device drives.
type stream interface {
	Start() error
	Stop() error
	Close() error
	Read() error
	AvailableToRead() (int, error)
}

// openStream opens a blocking input stream that reads into *buf.
var openStream = func(params portaudio.StreamParameters, buf *[]int16) (stream, error) {
	return portaudio.OpenStream(params, buf)
}

// DeviceConfig describes a PortAudio capture stream.
type DeviceConfig struct {
	DeviceID     int     // PortAudio index, or config.MinDeviceID for the default input.
	Channels     int     // 1 or 2.
	SampleRate   float64 // Hz.
	WindowFrames int     // Frames per blocking read; one analysis window.
	LowLatency   bool    // Use the device's low input latency.
}

// Device is a blocking PortAudio input stream of int16 samples. The stream
// buffers one analysis window; larger reads loop over it.
type Device struct {
	cfg     DeviceConfig
	info    *portaudio.DeviceInfo
	latency time.Duration
	chunk   []int16
	stream  stream
}

// OpenDevice opens and starts the input stream described by cfg.
// Initialize must have been called.
func OpenDevice(cfg DeviceConfig) (*Device, error) {
	if cfg.Channels < 1 || cfg.Channels > 2 {
		return nil, fmt.Errorf("unsupported channel count %d", cfg.Channels)
	}
	if cfg.WindowFrames < 1 {
		return nil, fmt.Errorf("window frames must be positive, got %d", cfg.WindowFrames)
	}

	info, err := InputDevice(cfg.DeviceID)
	if err != nil {
		return nil, err
	}
	if info.MaxInputChannels < cfg.Channels {
		return nil, fmt.Errorf("device %q has %d input channels, need %d",
			info.Name, info.MaxInputChannels, cfg.Channels)
	}

	d := &Device{
		cfg:   cfg,
		info:  info,
		chunk: make([]int16, cfg.WindowFrames*cfg.Channels),
	}
	if cfg.LowLatency {
		d.latency = info.DefaultLowInputLatency
	} else {
		d.latency = info.DefaultHighInputLatency
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: cfg.Channels,
			Device:   info,
			Latency:  d.latency,
		},
		FramesPerBuffer: cfg.WindowFrames,
		SampleRate:      cfg.SampleRate,
	}

	s, err := openStream(params, &d.chunk)
	if err != nil {
		return nil, fmt.Errorf("failed to open input stream on %q: %w", info.Name, err)
	}
	if err := s.Start(); err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to start input stream on %q: %w", info.Name, err)
	}
	d.stream = s

	log.Infof("Capturing from %q: %d ch, %.0f Hz, %d frames per read, latency %v",
		info.Name, cfg.Channels, cfg.SampleRate, cfg.WindowFrames, d.latency)
	return d, nil
}

// Name returns the PortAudio device name.
func (d *Device) Name() string {
	return d.info.Name
}

func (d *Device) Channels() int {
	return d.cfg.Channels
}

func (d *Device) SampleRate() float64 {
	return d.cfg.SampleRate
}

func (d *Device) AvailableFrames() (int, error) {
	if d.stream == nil {
		return 0, errors.New("input stream closed")
	}
	n, err := d.stream.AvailableToRead()
	if err != nil {
		return 0, fmt.Errorf("failed to query available input: %w", err)
	}
	return n, nil
}

// ReadFrames fills buf one window at a time. len(buf) must be a multiple of
// the window. An overflow reported by PortAudio is not an error.
func (d *Device) ReadFrames(buf []int16) (bool, error) {
	if d.stream == nil {
		return false, errors.New("input stream closed")
	}
	if len(buf)%len(d.chunk) != 0 {
		return false, fmt.Errorf("read of %d samples is not a multiple of the %d-sample window",
			len(buf), len(d.chunk))
	}

	overflowed := false
	for off := 0; off < len(buf); off += len(d.chunk) {
		err := d.stream.Read()
		if errors.Is(err, portaudio.InputOverflowed) {
			overflowed = true
		} else if err != nil {
			return overflowed, fmt.Errorf("failed to read input stream: %w", err)
		}
		copy(buf[off:], d.chunk)
	}
	return overflowed, nil
}

// Close stops and closes the stream. It is safe to call more than once.
func (d *Device) Close() error {
	if d.stream == nil {
		return nil
	}
	s := d.stream
	d.stream = nil

	if err := s.Stop(); err != nil {
		s.Close()
		return fmt.Errorf("failed to stop input stream: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	return nil
}
