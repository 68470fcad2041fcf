//go:build windows

package paste

import (
	"fmt"
	"syscall"
	"time"
	"unsafe"
)

var (
	user32        = syscall.NewLazyDLL("user32.dll")
	procSendInput = user32.NewProc("SendInput")
)

const (
	inputKeyboard = 1
	keyEventFUp   = 0x0002

	vkControl = 0x11
	vkV       = 0x56
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   uint64
}

type windowsSimulator struct{}

func newSimulator() Simulator { return &windowsSimulator{} }

func (windowsSimulator) Paste() error {
	time.Sleep(FocusDelay)

	inputs := []input{
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vkControl}},
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vkV}},
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vkV, dwFlags: keyEventFUp}},
		{inputType: inputKeyboard, ki: keyboardInput{wVk: vkControl, dwFlags: keyEventFUp}},
	}

	sent, _, err := procSendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		uintptr(unsafe.Sizeof(inputs[0])),
	)
	if int(sent) != len(inputs) {
		return fmt.Errorf("paste: SendInput sent %d of %d events: %w", sent, len(inputs), err)
	}
	return nil
}

// windowsChecker: SendInput needs no special permission grant.
type windowsChecker struct{}

func newChecker() Checker { return &windowsChecker{} }

func (windowsChecker) Allowed() bool { return true }
