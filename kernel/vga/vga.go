// Package vga is an external collaborator boundary: the VGA text-mode
// console is out of scope for this kernel core, but the Fabric device
// registry and the input pipeline both want something concrete to call
// through for console output, so this stub implements just the write
// signature a real VGA text driver would expose and nothing else.
package vga

const (
	// TextBufferAddr is the standard VGA text-mode framebuffer address.
	TextBufferAddr = 0xB8000
	columns        = 80
	rows           = 25
	defaultAttr    = 0x07 // light grey on black
)

// MemWriter writes a byte to a physical address, the same primitive
// the paging and physmem packages use for MMIO.
type MemWriter func(addr uintptr, val byte)

// Console is a minimal VGA text-mode writer: it tracks only a cursor
// position and writes character/attribute pairs directly into the
// text buffer. Scrolling, color control, and cursor-register
// programming belong to a real driver, not this boundary stub.
type Console struct {
	write MemWriter
	col   int
	row   int
}

// New returns a Console that writes through write.
func New(write MemWriter) *Console {
	return &Console{write: write}
}

// PutChar writes one character at the current cursor position and
// advances the cursor, wrapping lines and wrapping back to the top of
// the buffer past the last row.
func (c *Console) PutChar(ch byte) {
	if ch == '\n' {
		c.col = 0
		c.row++
	} else {
		offset := TextBufferAddr + uintptr(2*(c.row*columns+c.col))
		c.write(offset, ch)
		c.write(offset+1, defaultAttr)
		c.col++
		if c.col >= columns {
			c.col = 0
			c.row++
		}
	}
	if c.row >= rows {
		c.row = 0
	}
}

// WriteString writes each byte of s via PutChar.
func (c *Console) WriteString(s string) {
	for i := 0; i < len(s); i++ {
		c.PutChar(s[i])
	}
}
