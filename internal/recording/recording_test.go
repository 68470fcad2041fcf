package recording

import (
	"encoding/binary"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/voxpaste/voxpaste/internal/observe"
)

func TestNewPathFormat(t *testing.T) {
	at := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	got := NewPath("/data/recordings", at)
	want := filepath.Join("/data/recordings", "recording_20260314_092653.wav")
	if got != want {
		t.Errorf("NewPath = %q, want %q", got, want)
	}
}

func TestNewPathUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	at := time.Date(2026, 3, 14, 2, 0, 0, 0, loc)
	got := NewPath("d", at)
	want := filepath.Join("d", "recording_20260313_230000.wav")
	if got != want {
		t.Errorf("NewPath = %q, want %q", got, want)
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := []int16{0, 100, -100, 32767, -32768}
	wav := encodeWAV(samples, SampleRate, Channels)

	if len(wav) != 44+len(samples)*2 {
		t.Fatalf("wav length = %d, want %d", len(wav), 44+len(samples)*2)
	}
	if string(wav[0:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Errorf("bad RIFF header: %q %q", wav[0:4], wav[8:12])
	}
	if got := binary.LittleEndian.Uint32(wav[4:8]); got != uint32(36+len(samples)*2) {
		t.Errorf("riff size = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[20:22]); got != 1 {
		t.Errorf("audio format = %d, want 1 (PCM)", got)
	}
	if got := binary.LittleEndian.Uint16(wav[22:24]); got != Channels {
		t.Errorf("channels = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[24:28]); got != SampleRate {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[28:32]); got != SampleRate*Channels*2 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint16(wav[34:36]); got != 16 {
		t.Errorf("bits per sample = %d", got)
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != uint32(len(samples)*2) {
		t.Errorf("data size = %d", got)
	}
	if got := int16(binary.LittleEndian.Uint16(wav[46:48])); got != 100 {
		t.Errorf("second sample = %d, want 100", got)
	}
	if got := int16(binary.LittleEndian.Uint16(wav[48:50])); got != -100 {
		t.Errorf("third sample = %d, want -100", got)
	}
}

func TestEncodeWAVEmpty(t *testing.T) {
	wav := encodeWAV(nil, SampleRate, Channels)
	if len(wav) != 44 {
		t.Fatalf("wav length = %d, want header only", len(wav))
	}
	if got := binary.LittleEndian.Uint32(wav[40:44]); got != 0 {
		t.Errorf("data size = %d, want 0", got)
	}
}

func TestStopWaitsForCaptureLoop(t *testing.T) {
	r := &Recorder{
		log:     slog.New(slog.DiscardHandler),
		metrics: observe.DefaultMetrics(),
		running: true,
		done:    make(chan struct{}),
	}

	// Stand in for a capture loop still inside a stream read; Stop must
	// not touch the stream until it has exited.
	loopExit := 150 * time.Millisecond
	go func() {
		time.Sleep(loopExit)
		close(r.done)
	}()

	start := time.Now()
	path, err := r.Stop(t.TempDir())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if waited := time.Since(start); waited < loopExit {
		t.Errorf("Stop returned after %v, before the capture loop exited", waited)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Stop did not write the recording: %v", err)
	}
	if r.Recording() {
		t.Error("Recording() = true after Stop")
	}
}

func TestStopWithoutCapture(t *testing.T) {
	r := &Recorder{log: slog.New(slog.DiscardHandler)}
	if _, err := r.Stop(t.TempDir()); !errors.Is(err, ErrNotRecording) {
		t.Errorf("Stop error = %v, want ErrNotRecording", err)
	}
}
