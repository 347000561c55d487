package main

import "github.com/eiannone/keyboard"

// hostKeyToScancode maps a host keystroke (from eiannone/keyboard) to
// the scan-code-set-1 make code the PS/2 controller would have
// produced for the same physical key. Only the keys the demo harness
// exercises are mapped; anything else returns ok=false and is dropped.
func hostKeyToScancode(ch rune, key keyboard.Key) (code uint8, ok bool) {
	switch key {
	case keyboard.KeyEnter:
		return 0x1C, true
	case keyboard.KeyBackspace, keyboard.KeyBackspace2:
		return 0x0E, true
	case keyboard.KeyTab:
		return 0x0F, true
	case keyboard.KeyEsc:
		return 0x01, true
	case keyboard.KeySpace:
		return 0x39, true
	}

	if c, ok := runeScancodes[ch]; ok {
		return c, true
	}
	return 0, false
}

// runeScancodes covers lowercase letters and digits, the US QWERTY
// row of the scan-code-set-1 table.
var runeScancodes = map[rune]uint8{
	'a': 0x1E, 'b': 0x30, 'c': 0x2E, 'd': 0x20, 'e': 0x12, 'f': 0x21,
	'g': 0x22, 'h': 0x23, 'i': 0x17, 'j': 0x24, 'k': 0x25, 'l': 0x26,
	'm': 0x32, 'n': 0x31, 'o': 0x18, 'p': 0x19, 'q': 0x10, 'r': 0x13,
	's': 0x1F, 't': 0x14, 'u': 0x16, 'v': 0x2F, 'w': 0x11, 'x': 0x2D,
	'y': 0x15, 'z': 0x2C,
	'0': 0x0B, '1': 0x02, '2': 0x03, '3': 0x04, '4': 0x05,
	'5': 0x06, '6': 0x07, '7': 0x08, '8': 0x09, '9': 0x0A,
}
