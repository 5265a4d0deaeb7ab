package handshake

import "testing"

// FuzzDecodeHandshake checks that every inbound message decoder only
// ever returns an error on malformed input, never panics.
func FuzzDecodeHandshake(f *testing.F) {
	sh := &ServerHello{Version: 0x0303, CipherSuite: 0x003C}
	w := &writer{}
	w.writeUint16(sh.Version)
	w.writeBytes(make([]byte, 32))
	w.writeVector8(nil)
	w.writeUint16(sh.CipherSuite)
	w.writeUint8(0)
	f.Add(w.bytes())

	cert := &Certificate{Chain: [][]byte{[]byte("der")}}
	f.Add(cert.Encode())

	f.Add(make([]byte, FinishedLen))
	f.Add([]byte{1, 0})
	f.Add([]byte{})
	f.Add([]byte{0xFF})

	f.Fuzz(func(t *testing.T, data []byte) {
		_, _ = DecodeServerHello(data)
		_, _ = DecodeCertificate(data)
		_, _ = DecodeFinished(data)
		_, _ = DecodeAlert(data)
	})
}
