// SPDX-License-Identifier: MIT
package audio

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"
)

func decodeWAV(t *testing.T, path string) *wav.Decoder {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open recording: %v", err)
	}
	t.Cleanup(func() { f.Close() })

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		t.Fatalf("%s is not a valid WAV file", path)
	}
	return d
}

func TestRecorderWritesWAV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp.wav")
	r, err := NewRecorder(path, 44100, 2, 0)
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}

	window := []int16{1, -1, 2, -2, 3, -3, 4, -4}
	for range 3 {
		if err := r.Write(window); err != nil {
			t.Fatalf("Write() error: %v", err)
		}
	}
	if r.Frames() != 12 {
		t.Errorf("Frames() = %d, want 12", r.Frames())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	d := decodeWAV(t, path)
	buf, err := d.FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error: %v", err)
	}
	if d.NumChans != 2 || d.SampleRate != 44100 || d.BitDepth != 16 {
		t.Errorf("header = %d ch, %d Hz, %d bit", d.NumChans, d.SampleRate, d.BitDepth)
	}
	if len(buf.Data) != 24 {
		t.Fatalf("decoded %d samples, want 24", len(buf.Data))
	}
	for i, v := range buf.Data[:8] {
		if v != int(window[i]) {
			t.Errorf("sample %d = %d, want %d", i, v, window[i])
		}
	}
}

func TestRecorderMaxSeconds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capped.wav")
	// 0.5 s at 10 Hz is five frames.
	r, err := NewRecorder(path, 10, 1, 0.5)
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}

	r.Write([]int16{1, 2, 3})
	if r.Full() {
		t.Error("recorder full after three frames")
	}
	r.Write([]int16{4, 5, 6})
	r.Write([]int16{7})
	if !r.Full() || r.Frames() != 5 {
		t.Errorf("Frames() = %d, Full() = %v; want 5, true", r.Frames(), r.Full())
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	buf, err := decodeWAV(t, path).FullPCMBuffer()
	if err != nil {
		t.Fatalf("FullPCMBuffer() error: %v", err)
	}
	if len(buf.Data) != 5 || buf.Data[4] != 5 {
		t.Errorf("decoded %v, want [1 2 3 4 5]", buf.Data)
	}
}

func TestRecorderClosed(t *testing.T) {
	r, err := NewRecorder(filepath.Join(t.TempDir(), "x.wav"), 8000, 1, 0)
	if err != nil {
		t.Fatalf("NewRecorder() error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error: %v", err)
	}
	if err := r.Write([]int16{1}); !errors.Is(err, ErrRecordingClosed) {
		t.Errorf("Write() after Close = %v, want ErrRecordingClosed", err)
	}
}

func TestNewRecorderBadPath(t *testing.T) {
	if _, err := NewRecorder(filepath.Join(t.TempDir(), "missing", "x.wav"), 8000, 1, 0); err == nil {
		t.Error("expected error for an uncreatable path")
	}
}
