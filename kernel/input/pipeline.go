package input

// DataReader reads one byte from the keyboard controller's data port
// (0x60), the platform primitive the producer step needs.
type DataReader interface {
	ReadByte() byte
}

// Pipeline wires the scancode ring, the translator, and the blocking
// consumer API together across three stages: IRQ producer ->
// process-step consumer -> line-buffered API.
type Pipeline struct {
	ring       *ScancodeRing
	translator *Translator
	halt       func()
}

// NewPipeline builds a pipeline with the given ring and output-buffer
// capacities (both must be powers of two). halt is invoked by ReadLine
// while it waits for input; real boot code wires it to the HLT
// instruction, tests wire in a no-op or a counting stub.
func NewPipeline(ringCapacity, bufCapacity int, halt func()) (*Pipeline, error) {
	ring, err := NewScancodeRing(ringCapacity)
	if err != nil {
		return nil, err
	}
	tr, err := NewTranslator(bufCapacity)
	if err != nil {
		return nil, err
	}
	if halt == nil {
		halt = func() {}
	}
	return &Pipeline{ring: ring, translator: tr, halt: halt}, nil
}

// OnIRQ is the producer step: reads one byte from the
// keyboard data port, splits it into (key_code, pressed) unless it is
// the 0xE0 extended-prefix marker (published verbatim), and appends to
// the scancode ring.
func (p *Pipeline) OnIRQ(data DataReader) {
	b := data.ReadByte()
	if b == extendedPrefix {
		p.ring.Push(ScancodeEntry{Code: extendedPrefix, Pressed: true})
		return
	}
	p.ring.Push(ScancodeEntry{Code: b & 0x7F, Pressed: b&0x80 == 0})
}

// drain is the process step: drains the ring under no
// lock (single consumer) and feeds each entry to the translator under
// its own mutex.
func (p *Pipeline) drain() {
	for {
		e, ok := p.ring.Pop()
		if !ok {
			return
		}
		p.translator.Process(e)
	}
}

// HasChar drains the scancode ring first, then reports whether the
// input buffer is non-empty.
func (p *Pipeline) HasChar() bool {
	p.drain()
	return p.translator.HasChar()
}

// ReadChar drains and pops one character, if any is available.
func (p *Pipeline) ReadChar() (byte, bool) {
	p.drain()
	return p.translator.ReadChar()
}

// ReadLine blocks (issuing halt between drains) until it has read a
// full line into buf, echoing printable characters, handling backspace
// visually, and terminating on '\n' or '\r'. Returns the number of
// characters written, excluding the terminator.
func (p *Pipeline) ReadLine(buf []byte, echo func(c byte)) int {
	n := 0
	for n < len(buf) {
		c, ok := p.ReadChar()
		if !ok {
			p.halt()
			continue
		}
		if c == '\n' || c == '\r' {
			return n
		}
		if c == '\b' {
			if n > 0 {
				n--
				if echo != nil {
					echo('\b')
				}
			}
			continue
		}
		buf[n] = c
		n++
		if echo != nil {
			echo(c)
		}
	}
	return n
}
