package recording

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/voxpaste/voxpaste/internal/observe"
)

const (
	// SampleRate matches what the speech providers expect.
	SampleRate = 16000
	// Channels is mono capture.
	Channels = 1
	// FramesPerBuffer is the portaudio read granularity.
	FramesPerBuffer = 1024
)

// ErrNotRecording is returned when Stop is called with no capture running.
var ErrNotRecording = errors.New("recording: not recording")

// Recorder captures mono 16-bit audio from the default input device.
// One capture at a time; Start while running is a no-op.
type Recorder struct {
	mu      sync.Mutex
	log     *slog.Logger
	metrics *observe.Metrics
	stream  *portaudio.Stream
	buffer  []int16
	samples []int16
	running bool
	done    chan struct{}
}

// NewRecorder initializes the audio backend. Call Close to release it.
func NewRecorder(log *slog.Logger) (*Recorder, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("recording: init audio backend: %w", err)
	}
	return &Recorder{
		log:     log,
		metrics: observe.DefaultMetrics(),
		buffer:  make([]int16, FramesPerBuffer),
	}, nil
}

// Start opens the default input stream and begins capturing.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}

	r.samples = make([]int16, 0, SampleRate*30)
	r.done = make(chan struct{})

	stream, err := portaudio.OpenDefaultStream(Channels, 0, SampleRate, FramesPerBuffer, r.buffer)
	if err != nil {
		return fmt.Errorf("recording: open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("recording: start input stream: %w", err)
	}

	r.stream = stream
	r.running = true
	go r.captureLoop()

	r.metrics.AddActiveRecordings(context.Background(), 1)
	r.log.Info("recording started", "sample_rate", SampleRate)
	return nil
}

func (r *Recorder) captureLoop() {
	defer close(r.done)

	for {
		r.mu.Lock()
		running, stream := r.running, r.stream
		r.mu.Unlock()
		if !running || stream == nil {
			return
		}

		available, err := stream.AvailableToRead()
		if err != nil || available == 0 {
			time.Sleep(10 * time.Millisecond)
			continue
		}
		if err := stream.Read(); err != nil {
			time.Sleep(10 * time.Millisecond)
			continue
		}

		r.mu.Lock()
		if r.running {
			r.samples = append(r.samples, r.buffer...)
		}
		r.mu.Unlock()
	}
}

// Stop ends the capture and writes the audio as a WAV file inside dir,
// returning the file path.
func (r *Recorder) Stop(dir string) (string, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return "", ErrNotRecording
	}
	r.running = false
	stream := r.stream
	r.stream = nil
	samples := r.samples
	r.samples = nil
	done := r.done
	r.mu.Unlock()

	// The loop never blocks on the stream (reads only happen after
	// AvailableToRead) and checks running every 10ms, so this wait is
	// short. Closing the stream before the loop exits would race a read.
	<-done

	if stream != nil {
		stream.Stop()
		stream.Close()
	}
	r.metrics.AddActiveRecordings(context.Background(), -1)

	path := NewPath(dir, time.Now())
	if err := os.WriteFile(path, encodeWAV(samples, SampleRate, Channels), 0o600); err != nil {
		return "", fmt.Errorf("recording: write wav: %w", err)
	}

	r.log.Info("recording stopped", "path", path,
		"duration", time.Duration(len(samples))*time.Second/SampleRate)
	return path, nil
}

// Recording reports whether a capture is in progress.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Close stops any active capture and releases the audio backend.
func (r *Recorder) Close() {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()
	if running {
		if _, err := r.Stop(os.TempDir()); err != nil {
			r.log.Warn("failed to stop recording during close", "error", err)
		}
	}
	portaudio.Terminate()
}
