// SPDX-License-Identifier: MIT
package config

import "errors"

// Core configuration constants. The defaults reproduce the tunables the
// LED-matrix visualizer was built against: 32 bars of height 32, read over
// loopback port 1488.
const (
	// Capture defaults
	DefaultDeviceID      = MinDeviceID // System default input device
	DefaultSampleRate    = 44100       // CD-quality audio
	DefaultChannels      = 1           // Mono audio
	DefaultBitsPerSample = 16          // Signed 16-bit little-endian PCM
	DefaultLowLatency    = false       // Standard latency mode
	DefaultSource        = SourceDevice
	DefaultToneHz        = 440.0

	// Analysis defaults
	DefaultFFTSize       = 64 * 3 // nFFT
	DefaultWindow        = "rectangular"
	DefaultGateThreshold = 0.0 // Gate disabled

	// Bar defaults
	DefaultBarCount   = 32
	DefaultBarStride  = 3
	DefaultResolution = 32 // RESOLUTION_Y
	DefaultSmoothing  = "center"

	// Server defaults
	DefaultHost          = "127.0.0.1"
	DefaultPort          = 1488
	DefaultSendBuffer    = 384 // SO_SNDBUF in bytes
	DefaultSingleSession = false

	// Recording defaults
	DefaultRecordInputStream = false
	DefaultOutputFile        = "temp.wav"
	DefaultMaxSeconds        = 0.0 // Unlimited

	DefaultLogLevel    = "info"
	DefaultQuietStderr = true

	// Limits
	MinDeviceID   = -1 // -1 represents system default device
	MinSampleRate = 8000
	MaxSampleRate = 192000
	MaxResolution = 99 // Tokens are at most two digits wide
)

// Capture source kinds.
const (
	SourceDevice  = "device"
	SourceTone    = "tone"
	SourceSilence = "silence"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all runtime configuration. It is built once at process start
// and never mutated afterwards.
type Config struct {
	LogLevel    string          `yaml:"log_level"`
	QuietStderr bool            `yaml:"quiet_stderr"`
	Audio       AudioConfig     `yaml:"audio"`
	Analysis    AnalysisConfig  `yaml:"analysis"`
	Bars        BarsConfig      `yaml:"bars"`
	Server      ServerConfig    `yaml:"server"`
	Recording   RecordingConfig `yaml:"recording"`
	Metrics     MetricsConfig   `yaml:"metrics"`
}

// AudioConfig holds settings for the capture source.
type AudioConfig struct {
	InputDevice   int     `yaml:"input_device"`    // PortAudio device index (-1 for default).
	SampleRate    float64 `yaml:"sample_rate"`     // Sample rate in Hz.
	Channels      int     `yaml:"channels"`        // 1 for mono, 2 for stereo.
	BitsPerSample int     `yaml:"bits_per_sample"` // Only 16 is supported.
	LowLatency    bool    `yaml:"low_latency"`     // Request low input latency from the device.
	Source        string  `yaml:"source"`          // device, tone or silence.
	ToneHz        float64 `yaml:"tone_hz"`         // Frequency of the tone source.
}

// AnalysisConfig holds settings for the spectral analyzer.
type AnalysisConfig struct {
	FFTSize       int     `yaml:"fft_size"`       // Samples per transform (nFFT).
	Window        string  `yaml:"window"`         // Window function name.
	GateThreshold float64 `yaml:"gate_threshold"` // Peak level below which a frame counts as silence, 0..1.
}

// BarsConfig holds settings for the bar reducer.
type BarsConfig struct {
	Count      int       `yaml:"count"`      // Number of bars per line.
	Stride     int       `yaml:"stride"`     // Spacing of bar centres in FFT bins.
	Resolution int       `yaml:"resolution"` // Maximum bar height.
	Smoothing  string    `yaml:"smoothing"`  // center or neighbors.
	Gains      []float64 `yaml:"gains"`      // Optional per-bar gain table.
}

// ServerConfig holds settings for the pull protocol listeners.
type ServerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	SendBuffer    int    `yaml:"send_buffer"`    // Socket send buffer in bytes, 0 leaves the OS default.
	SingleSession bool   `yaml:"single_session"` // Stop after the first client disconnects.
	WebSocketAddr string `yaml:"websocket_addr"` // Optional websocket pull endpoint, e.g. "127.0.0.1:8080".
}

// RecordingConfig holds settings for the WAV capture side path.
type RecordingConfig struct {
	Enabled    bool    `yaml:"enabled"`
	Path       string  `yaml:"path"`
	MaxSeconds float64 `yaml:"max_seconds"`
}

// MetricsConfig holds settings for the Prometheus endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // Empty disables the endpoint.
}

// NewConfig returns a Config populated with the default values.
func NewConfig() *Config {
	return &Config{
		LogLevel:    DefaultLogLevel,
		QuietStderr: DefaultQuietStderr,
		Audio: AudioConfig{
			InputDevice:   DefaultDeviceID,
			SampleRate:    DefaultSampleRate,
			Channels:      DefaultChannels,
			BitsPerSample: DefaultBitsPerSample,
			LowLatency:    DefaultLowLatency,
			Source:        DefaultSource,
			ToneHz:        DefaultToneHz,
		},
		Analysis: AnalysisConfig{
			FFTSize:       DefaultFFTSize,
			Window:        DefaultWindow,
			GateThreshold: DefaultGateThreshold,
		},
		Bars: BarsConfig{
			Count:      DefaultBarCount,
			Stride:     DefaultBarStride,
			Resolution: DefaultResolution,
			Smoothing:  DefaultSmoothing,
		},
		Server: ServerConfig{
			Host:          DefaultHost,
			Port:          DefaultPort,
			SendBuffer:    DefaultSendBuffer,
			SingleSession: DefaultSingleSession,
		},
		Recording: RecordingConfig{
			Enabled:    DefaultRecordInputStream,
			Path:       DefaultOutputFile,
			MaxSeconds: DefaultMaxSeconds,
		},
	}
}
