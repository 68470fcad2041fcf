package hotkey

import "testing"

func TestParse(t *testing.T) {
	cases := []struct {
		in      string
		wantErr bool
	}{
		{"Alt+Space", false},
		{"alt+space", false},
		{"Ctrl+Shift+D", false},
		{"Super+F12", false},
		{" Ctrl + V ", false},
		{"Space", true},
		{"Alt+", true},
		{"Hyper+Space", true},
		{"Alt+Escape", true},
		{"", true},
	}
	for _, tc := range cases {
		sc, err := Parse(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) accepted", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tc.in, err)
			continue
		}
		if sc.String() != tc.in {
			t.Errorf("Parse(%q).String() = %q", tc.in, sc.String())
		}
	}
}

func TestParseModifierCount(t *testing.T) {
	sc, err := Parse("Ctrl+Shift+Alt+Z")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(sc.mods) != 3 {
		t.Errorf("modifier count = %d, want 3", len(sc.mods))
	}
}
