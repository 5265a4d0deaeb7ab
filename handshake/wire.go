package handshake

import "fmt"

// cursor reads the big-endian, length-prefixed-vector wire format
// handshake messages are built from; writer below produces it (spec
// design note: explicit serialise/deserialise over a cursor rather than
// packed structs).
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) need(n int) error {
	if c.remaining() < n {
		return fmt.Errorf("handshake: short read, need %d bytes, have %d", n, c.remaining())
	}
	return nil
}

func (c *cursor) readUint8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

func (c *cursor) readUint16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := uint16(c.buf[c.pos])<<8 | uint16(c.buf[c.pos+1])
	c.pos += 2
	return v, nil
}

func (c *cursor) readUint24() (uint32, error) {
	if err := c.need(3); err != nil {
		return 0, err
	}
	v := uint32(c.buf[c.pos])<<16 | uint32(c.buf[c.pos+1])<<8 | uint32(c.buf[c.pos+2])
	c.pos += 3
	return v, nil
}

func (c *cursor) readBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	v := c.buf[c.pos : c.pos+n]
	c.pos += n
	return v, nil
}

// readVector8 reads a 1-byte length prefix followed by that many bytes.
func (c *cursor) readVector8() ([]byte, error) {
	n, err := c.readUint8()
	if err != nil {
		return nil, err
	}
	return c.readBytes(int(n))
}

// readVector16 reads a 2-byte length prefix followed by that many bytes.
func (c *cursor) readVector16() ([]byte, error) {
	n, err := c.readUint16()
	if err != nil {
		return nil, err
	}
	return c.readBytes(int(n))
}

// readVector24 reads a 3-byte length prefix followed by that many bytes.
func (c *cursor) readVector24() ([]byte, error) {
	n, err := c.readUint24()
	if err != nil {
		return nil, err
	}
	return c.readBytes(int(n))
}

func (c *cursor) atEnd() bool { return c.remaining() == 0 }

// writer accumulates a handshake message body in wire order.
type writer struct {
	buf []byte
}

func (w *writer) writeUint8(v uint8) { w.buf = append(w.buf, v) }

func (w *writer) writeUint16(v uint16) {
	w.buf = append(w.buf, byte(v>>8), byte(v))
}

func (w *writer) writeUint24(v uint32) {
	w.buf = append(w.buf, byte(v>>16), byte(v>>8), byte(v))
}

func (w *writer) writeBytes(b []byte) { w.buf = append(w.buf, b...) }

func (w *writer) writeVector8(b []byte) {
	w.writeUint8(uint8(len(b)))
	w.writeBytes(b)
}

func (w *writer) writeVector16(b []byte) {
	w.writeUint16(uint16(len(b)))
	w.writeBytes(b)
}

func (w *writer) writeVector24(b []byte) {
	w.writeUint24(uint32(len(b)))
	w.writeBytes(b)
}

func (w *writer) bytes() []byte { return w.buf }
