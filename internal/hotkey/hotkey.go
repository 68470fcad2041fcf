// Package hotkey registers the global dictation shortcut and forwards
// press and release events.
package hotkey

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"golang.design/x/hotkey"
	"golang.design/x/hotkey/mainthread"
)

// Shortcut is a parsed key combination such as "Alt+Space".
type Shortcut struct {
	mods []hotkey.Modifier
	key  hotkey.Key
	raw  string
}

// String returns the original shortcut text.
func (s Shortcut) String() string { return s.raw }

// Parse converts a textual shortcut ("Alt+Space", "Ctrl+Shift+D") into a
// Shortcut. Modifier and key names are case-insensitive.
func Parse(text string) (Shortcut, error) {
	parts := strings.Split(text, "+")
	if len(parts) < 2 {
		return Shortcut{}, fmt.Errorf("hotkey: %q needs at least one modifier and a key", text)
	}

	var mods []hotkey.Modifier
	for _, p := range parts[:len(parts)-1] {
		mod, ok := modifierNames[strings.ToLower(strings.TrimSpace(p))]
		if !ok {
			return Shortcut{}, fmt.Errorf("hotkey: unknown modifier %q in %q", p, text)
		}
		mods = append(mods, mod)
	}

	keyName := strings.ToLower(strings.TrimSpace(parts[len(parts)-1]))
	key, ok := keyNames[keyName]
	if !ok {
		return Shortcut{}, fmt.Errorf("hotkey: unknown key %q in %q", parts[len(parts)-1], text)
	}

	return Shortcut{mods: mods, key: key, raw: text}, nil
}

// Handler owns one registered global shortcut and its listener goroutine.
type Handler struct {
	mu        sync.Mutex
	hk        *hotkey.Hotkey
	stop      chan struct{}
	onPress   func()
	onRelease func()
	log       *slog.Logger
}

// New creates a Handler forwarding events to the given callbacks.
func New(onPress, onRelease func(), log *slog.Logger) *Handler {
	return &Handler{onPress: onPress, onRelease: onRelease, log: log}
}

// Register binds the shortcut, replacing any previous registration.
func (h *Handler) Register(sc Shortcut) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	if h.hk != nil {
		h.hk.Unregister()
		h.hk = nil
	}

	hk := hotkey.New(sc.mods, sc.key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("hotkey: register %q: %w", sc.raw, err)
	}

	h.hk = hk
	h.stop = make(chan struct{})
	h.log.Info("global shortcut registered", "shortcut", sc.raw)
	go h.listen(hk, h.stop)
	return nil
}

// listen forwards keydown/keyup pairs. OS key repeat emits extra keydown
// events while the key is held; only the first one before a keyup counts,
// otherwise a held key would read as a double tap.
func (h *Handler) listen(hk *hotkey.Hotkey, stop chan struct{}) {
	down := false
	for {
		select {
		case <-stop:
			return
		case _, ok := <-hk.Keydown():
			if !ok {
				return
			}
			if down {
				continue
			}
			down = true
			h.onPress()
		case _, ok := <-hk.Keyup():
			if !ok {
				return
			}
			down = false
			h.onRelease()
		}
	}
}

// Unregister releases the shortcut and stops the listener.
func (h *Handler) Unregister() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stop != nil {
		close(h.stop)
		h.stop = nil
	}
	if h.hk != nil {
		h.hk.Unregister()
		h.hk = nil
	}
}

// RunOnMainThread runs fn on the process main thread, which the shortcut
// backend requires on macOS.
func RunOnMainThread(fn func()) {
	mainthread.Init(fn)
}

var keyNames = map[string]hotkey.Key{
	"space":  hotkey.KeySpace,
	"return": hotkey.KeyReturn,
	"enter":  hotkey.KeyReturn,
	"tab":    hotkey.KeyTab,
	"a":      hotkey.KeyA,
	"b":      hotkey.KeyB,
	"c":      hotkey.KeyC,
	"d":      hotkey.KeyD,
	"e":      hotkey.KeyE,
	"f":      hotkey.KeyF,
	"g":      hotkey.KeyG,
	"h":      hotkey.KeyH,
	"i":      hotkey.KeyI,
	"j":      hotkey.KeyJ,
	"k":      hotkey.KeyK,
	"l":      hotkey.KeyL,
	"m":      hotkey.KeyM,
	"n":      hotkey.KeyN,
	"o":      hotkey.KeyO,
	"p":      hotkey.KeyP,
	"q":      hotkey.KeyQ,
	"r":      hotkey.KeyR,
	"s":      hotkey.KeyS,
	"t":      hotkey.KeyT,
	"u":      hotkey.KeyU,
	"v":      hotkey.KeyV,
	"w":      hotkey.KeyW,
	"x":      hotkey.KeyX,
	"y":      hotkey.KeyY,
	"z":      hotkey.KeyZ,
	"f1":     hotkey.KeyF1,
	"f2":     hotkey.KeyF2,
	"f3":     hotkey.KeyF3,
	"f4":     hotkey.KeyF4,
	"f5":     hotkey.KeyF5,
	"f6":     hotkey.KeyF6,
	"f7":     hotkey.KeyF7,
	"f8":     hotkey.KeyF8,
	"f9":     hotkey.KeyF9,
	"f10":    hotkey.KeyF10,
	"f11":    hotkey.KeyF11,
	"f12":    hotkey.KeyF12,
}

// modifierNames is defined in the platform-specific files.
