package reassemble

import (
	"bytes"
	"testing"

	"github.com/cvsouth/tls-go/record"
)

func encodeRecord(typ uint8, payload []byte) []byte {
	hdr := record.Header{Type: typ, Version: record.VersionTLS12, Length: uint16(len(payload))}
	enc := hdr.Encode()
	out := append([]byte(nil), enc[:]...)
	return append(out, payload...)
}

func TestFeedSingleCompleteRecord(t *testing.T) {
	r := New()
	wire := encodeRecord(record.TypeHandshake, []byte("hello"))
	var got []byte
	err := r.Feed(wire, func(hdr record.Header, body []byte) error {
		got = append([]byte(nil), body...)
		return nil
	})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !bytes.Equal(got, []byte("hello")) {
		t.Fatalf("got %q", got)
	}
}

func TestFeedByteAtATime(t *testing.T) {
	r := New()
	wire := encodeRecord(record.TypeApplicationData, []byte("fragmented payload"))
	var got []byte
	for _, b := range wire {
		err := r.Feed([]byte{b}, func(hdr record.Header, body []byte) error {
			got = append([]byte(nil), body...)
			return nil
		})
		if err != nil {
			t.Fatalf("Feed: %v", err)
		}
	}
	if !bytes.Equal(got, []byte("fragmented payload")) {
		t.Fatalf("got %q", got)
	}
}

func TestFeedMultipleRecordsInOneChunk(t *testing.T) {
	r := New()
	wire := append(encodeRecord(record.TypeHandshake, []byte("one")), encodeRecord(record.TypeHandshake, []byte("two"))...)
	var got [][]byte
	err := r.Feed(wire, func(hdr record.Header, body []byte) error {
		got = append(got, append([]byte(nil), body...))
		return nil
	})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if len(got) != 2 || string(got[0]) != "one" || string(got[1]) != "two" {
		t.Fatalf("got %q", got)
	}
}

func TestFeedZeroLengthRecord(t *testing.T) {
	r := New()
	wire := encodeRecord(record.TypeApplicationData, nil)
	called := false
	err := r.Feed(wire, func(hdr record.Header, body []byte) error {
		called = true
		if len(body) != 0 {
			t.Fatalf("expected empty body, got %d bytes", len(body))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !called {
		t.Fatal("dispatch was never called for a zero-length record")
	}
}

func TestFeedRejectsOverlengthRecord(t *testing.T) {
	r := New()
	hdr := record.Header{Type: record.TypeHandshake, Version: record.VersionTLS12, Length: 0xFFFF}
	enc := hdr.Encode()
	if err := r.Feed(enc[:], func(record.Header, []byte) error { return nil }); err != ErrOverlength {
		t.Fatalf("expected ErrOverlength, got %v", err)
	}
}

func TestDispatchErrorStopsFeed(t *testing.T) {
	r := New()
	wire := encodeRecord(record.TypeAlert, []byte("xy"))
	called := 0
	err := r.Feed(wire, func(record.Header, []byte) error {
		called++
		return bytes.ErrTooLarge
	})
	if err != bytes.ErrTooLarge {
		t.Fatalf("expected dispatch error to propagate, got %v", err)
	}
	if called != 1 {
		t.Fatalf("dispatch called %d times, want 1", called)
	}
}
