// Package recording captures microphone audio and writes timestamped WAV
// files for the transcription pipeline.
package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Dir returns the recordings directory under dataDir, creating it if
// needed.
func Dir(dataDir string) (string, error) {
	dir := filepath.Join(dataDir, "recordings")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("recording: create dir: %w", err)
	}
	return dir, nil
}

// NewPath returns a unique WAV path inside dir for a recording started at t.
func NewPath(dir string, t time.Time) string {
	return filepath.Join(dir, fmt.Sprintf("recording_%s.wav", t.UTC().Format("20060102_150405")))
}
