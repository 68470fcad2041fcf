//go:build darwin

package paste

import (
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// AppleScript keystroke injection avoids FFI into CGEvent and survives
// sandboxed builds better than direct event posting.
type darwinSimulator struct{}

func newSimulator() Simulator { return &darwinSimulator{} }

func (darwinSimulator) Paste() error {
	time.Sleep(FocusDelay)

	out, err := exec.Command("osascript", "-e",
		`tell application "System Events" to keystroke "v" using command down`).CombinedOutput()
	if err != nil {
		return fmt.Errorf("paste: osascript: %w: %s", err, strings.TrimSpace(string(out)))
	}
	return nil
}

// darwinChecker probes System Events: the probe fails with the same
// automation permission a keystroke would need.
type darwinChecker struct{}

func newChecker() Checker { return &darwinChecker{} }

func (darwinChecker) Allowed() bool {
	err := exec.Command("osascript", "-e",
		`tell application "System Events" to count processes`).Run()
	return err == nil
}
