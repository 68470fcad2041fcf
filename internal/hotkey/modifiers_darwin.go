//go:build darwin

package hotkey

import "golang.design/x/hotkey"

var modifierNames = map[string]hotkey.Modifier{
	"ctrl":    hotkey.ModCtrl,
	"control": hotkey.ModCtrl,
	"shift":   hotkey.ModShift,
	"alt":     hotkey.ModOption,
	"option":  hotkey.ModOption,
	"super":   hotkey.ModCmd,
	"win":     hotkey.ModCmd,
	"meta":    hotkey.ModCmd,
	"cmd":     hotkey.ModCmd,
}
