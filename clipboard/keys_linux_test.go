//go:build linux && !nativeclipboard

package clipboard

import (
	"errors"
	"testing"
)

func TestCharToKey(t *testing.T) {
	cases := []struct {
		c     byte
		code  uint16
		shift bool
	}{
		{'a', 30, false},
		{'Z', 44, true},
		{'0', 11, false},
		{' ', 57, false},
		{'\n', 28, false},
		{'\t', 15, false},
		{'?', 53, true},
		{',', 51, false},
	}
	for _, tc := range cases {
		code, shift, ok := charToKey(tc.c)
		if !ok || code != tc.code || shift != tc.shift {
			t.Errorf("charToKey(%q) = %d, %v, %v; want %d, %v", tc.c, code, shift, ok, tc.code, tc.shift)
		}
	}
}

func TestTypeable(t *testing.T) {
	if i := Typeable("Hello, world!\n"); i != -1 {
		t.Errorf("Typeable ascii = %d, want -1", i)
	}
	if i := Typeable("déjà vu"); i != 1 {
		t.Errorf("Typeable accented = %d, want 1", i)
	}
}

func TestTypeRejectsUnsupportedBeforeTyping(t *testing.T) {
	err := Type("ça va", 0)
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
}
