package record

import (
	"bytes"
	"testing"
)

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{Type: TypeHandshake, Version: VersionTLS12, Length: 42}
	encoded := h.Encode()

	got, err := DecodeHeader(encoded[:])
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestDecodeHeaderShort(t *testing.T) {
	if _, err := DecodeHeader([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error decoding short header")
	}
}

func TestHandshakeHeaderRoundTrip(t *testing.T) {
	h := HandshakeHeader{Type: HandshakeClientHello, Length: 0x00ABCD}
	encoded := h.Encode()

	got, err := DecodeHandshakeHeader(encoded[:])
	if err != nil {
		t.Fatal(err)
	}
	if got != h {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", got, h)
	}
}

func TestHandshakeHeaderLengthIs24Bit(t *testing.T) {
	h := HandshakeHeader{Type: HandshakeCertificate, Length: 0xFFFFFF}
	encoded := h.Encode()
	if encoded[1] != 0xFF || encoded[2] != 0xFF || encoded[3] != 0xFF {
		t.Fatalf("expected three 0xFF length bytes, got % x", encoded[1:])
	}
}

func TestIsKnownVersion(t *testing.T) {
	for _, v := range []uint16{VersionTLS10, VersionTLS11, VersionTLS12} {
		if !IsKnownVersion(v) {
			t.Fatalf("version 0x%04x should be known", v)
		}
	}
	if IsKnownVersion(0x0304) {
		t.Fatal("TLS 1.3 (0x0304) must not be a known record-layer version for this core")
	}
}

func TestWriteRecordFraming(t *testing.T) {
	var buf bytes.Buffer
	payload := []byte("hello world")
	if err := WriteRecord(&buf, TypeApplicationData, VersionTLS12, payload); err != nil {
		t.Fatal(err)
	}

	hdr, err := DecodeHeader(buf.Bytes()[:HeaderLen])
	if err != nil {
		t.Fatal(err)
	}
	if hdr.Type != TypeApplicationData || hdr.Version != VersionTLS12 || int(hdr.Length) != len(payload) {
		t.Fatalf("unexpected header: %+v", hdr)
	}
	if !bytes.Equal(buf.Bytes()[HeaderLen:], payload) {
		t.Fatal("payload mismatch after framing")
	}
}
