//go:build linux

package hotkey

import "golang.design/x/hotkey"

// Alt is Mod1 and Super is Mod4 on X11.
var modifierNames = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
	"alt":     hotkey.Mod1,
	"option":  hotkey.Mod1,
	"super":   hotkey.Mod4,
	"win":     hotkey.Mod4,
	"meta":    hotkey.Mod4,
	"cmd":     hotkey.Mod4,
}
