// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Load builds the configuration from the defaults, the YAML file at path and
// LISTENER_* environment overrides, in that order. An empty path searches
// "listener.yaml" in the working directory and falls back to the defaults
// when it is missing.
func Load(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		if _, err := os.Stat("listener.yaml"); err == nil {
			path = "listener.yaml"
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration describes a usable pipeline.
func (c *Config) Validate() error {
	a, an, b := c.Audio, c.Analysis, c.Bars

	switch a.Source {
	case SourceDevice, SourceTone, SourceSilence:
	default:
		return fmt.Errorf("%w: audio.source %q (want device, tone or silence)", ErrInvalid, a.Source)
	}
	if a.InputDevice < MinDeviceID {
		return fmt.Errorf("%w: audio.input_device %d", ErrInvalid, a.InputDevice)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("%w: audio.sample_rate %.0f outside [%d, %d]", ErrInvalid, a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if a.Channels != 1 && a.Channels != 2 {
		return fmt.Errorf("%w: audio.channels must be 1 or 2, got %d", ErrInvalid, a.Channels)
	}
	if a.BitsPerSample != 16 {
		return fmt.Errorf("%w: audio.bits_per_sample must be 16, got %d", ErrInvalid, a.BitsPerSample)
	}
	if a.Source == SourceTone && (a.ToneHz <= 0 || a.ToneHz >= a.SampleRate/2) {
		return fmt.Errorf("%w: audio.tone_hz %.1f outside (0, %.1f)", ErrInvalid, a.ToneHz, a.SampleRate/2)
	}

	if an.FFTSize < 2 || an.FFTSize%2 != 0 {
		return fmt.Errorf("%w: analysis.fft_size must be even and >= 2, got %d", ErrInvalid, an.FFTSize)
	}
	if an.GateThreshold < 0 || an.GateThreshold > 1 {
		return fmt.Errorf("%w: analysis.gate_threshold %.3f outside [0, 1]", ErrInvalid, an.GateThreshold)
	}

	if b.Count < 1 {
		return fmt.Errorf("%w: bars.count must be positive, got %d", ErrInvalid, b.Count)
	}
	if b.Stride < 1 {
		return fmt.Errorf("%w: bars.stride must be positive, got %d", ErrInvalid, b.Stride)
	}
	if b.Resolution < 1 || b.Resolution > MaxResolution {
		return fmt.Errorf("%w: bars.resolution %d outside [1, %d]", ErrInvalid, b.Resolution, MaxResolution)
	}
	if last := (b.Count-1)*b.Stride + an.FFTSize/2; last >= an.FFTSize {
		return fmt.Errorf("%w: %d bars at stride %d need bin %d, fft_size %d only has %d",
			ErrInvalid, b.Count, b.Stride, last, an.FFTSize, an.FFTSize)
	}
	if b.Smoothing != "center" && b.Smoothing != "neighbors" {
		return fmt.Errorf("%w: bars.smoothing %q (want center or neighbors)", ErrInvalid, b.Smoothing)
	}
	if len(b.Gains) > 0 {
		if len(b.Gains) != b.Count {
			return fmt.Errorf("%w: bars.gains has %d entries, want %d", ErrInvalid, len(b.Gains), b.Count)
		}
		for i := 1; i < len(b.Gains); i++ {
			if b.Gains[i] < b.Gains[i-1] {
				return fmt.Errorf("%w: bars.gains must be non-decreasing (index %d)", ErrInvalid, i)
			}
		}
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: server.port %d", ErrInvalid, c.Server.Port)
	}
	if c.Server.SendBuffer < 0 {
		return fmt.Errorf("%w: server.send_buffer %d", ErrInvalid, c.Server.SendBuffer)
	}
	if addr := c.Server.WebSocketAddr; addr != "" {
		if _, _, err := net.SplitHostPort(addr); err != nil {
			return fmt.Errorf("%w: server.websocket_addr %q: %v", ErrInvalid, addr, err)
		}
	}
	if c.Recording.Enabled && c.Recording.Path == "" {
		return fmt.Errorf("%w: recording.path must be set when recording is enabled", ErrInvalid)
	}

	return nil
}

// Addr returns the host:port the TCP pull server binds to.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// applyEnvOverrides applies LISTENER_* environment variables. Unparseable
// values are ignored.
func (c *Config) applyEnvOverrides() {
	if val, ok := os.LookupEnv("LISTENER_LOG_LEVEL"); ok {
		c.LogLevel = val
	}
	if val, ok := os.LookupEnv("LISTENER_QUIET_STDERR"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.QuietStderr = b
		}
	}

	// LISTENER_AUDIO_{...}
	if val, ok := os.LookupEnv("LISTENER_AUDIO_SOURCE"); ok {
		c.Audio.Source = val
	}
	if val, ok := os.LookupEnv("LISTENER_AUDIO_INPUT_DEVICE"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.InputDevice = n
		}
	}
	if val, ok := os.LookupEnv("LISTENER_AUDIO_CHANNELS"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Audio.Channels = n
		}
	}

	// LISTENER_SERVER_{...}
	if val, ok := os.LookupEnv("LISTENER_SERVER_HOST"); ok {
		c.Server.Host = val
	}
	if val, ok := os.LookupEnv("LISTENER_SERVER_PORT"); ok {
		if n, err := strconv.Atoi(val); err == nil {
			c.Server.Port = n
		}
	}
	if val, ok := os.LookupEnv("LISTENER_SERVER_WEBSOCKET_ADDR"); ok {
		c.Server.WebSocketAddr = val
	}

	if val, ok := os.LookupEnv("LISTENER_RECORDING_ENABLED"); ok {
		if b, err := strconv.ParseBool(val); err == nil {
			c.Recording.Enabled = b
		}
	}
	if val, ok := os.LookupEnv("LISTENER_METRICS_ADDR"); ok {
		c.Metrics.Addr = val
	}
}
