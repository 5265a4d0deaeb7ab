package record

import (
	"fmt"
	"io"
)

// WriteRecord writes one complete TLS record — header followed by its
// ciphertext (or plaintext, under the null cipher) — to w in a single
// call, so a partial write never interleaves with another goroutine's
// record on the same underlying writer.
func WriteRecord(w io.Writer, typ uint8, version uint16, payload []byte) error {
	if len(payload) > MaxPlaintext+2048 { // generous cap; no tighter per-suite bound is enforced
		return fmt.Errorf("record payload too large: %d bytes", len(payload))
	}
	hdr := Header{Type: typ, Version: version, Length: uint16(len(payload))}
	encoded := hdr.Encode()

	buf := make([]byte, 0, HeaderLen+len(payload))
	buf = append(buf, encoded[:]...)
	buf = append(buf, payload...)
	_, err := w.Write(buf)
	return err
}
