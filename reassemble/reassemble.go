// Package reassemble implements the two-state byte pump that turns an
// arbitrary stream of incoming chunks into whole TLS records (§4.6):
// AWAIT_HEADER accumulates the fixed 5-byte record header, AWAIT_BODY
// accumulates the length the header declared, and each full record is
// handed to a dispatch callback before the reassembler resets.
package reassemble

import (
	"fmt"

	"github.com/cvsouth/tls-go/record"
)

// MaxRecordLen bounds a declared record length before any buffer for
// it is allocated (the original_source cap on received record length,
// generalized from its fixed TLS_MAX_RECORD_LEN to record.MaxPlaintext
// plus the 2048 bytes of expansion RFC 5246 allows a protected record).
const MaxRecordLen = record.MaxPlaintext + 2048

// ErrOverlength reports a record whose declared length exceeds
// MaxRecordLen.
var ErrOverlength = fmt.Errorf("reassemble: record length exceeds %d bytes", MaxRecordLen)

type state int

const (
	awaitHeader state = iota
	awaitBody
)

// Dispatch is invoked once per fully reassembled record.
type Dispatch func(hdr record.Header, body []byte) error

// Reassembler holds the partial-record buffer between Feed calls. A
// single Feed call may contain several records, a fragment of one, or
// both; state survives across calls.
type Reassembler struct {
	st     state
	hdrBuf []byte
	hdr    record.Header
	body   []byte
	filled int
}

// New returns a Reassembler ready to receive the start of a record
// stream.
func New() *Reassembler {
	return &Reassembler{st: awaitHeader, hdrBuf: make([]byte, 0, record.HeaderLen)}
}

// Feed consumes chunk, calling dispatch once per record it completes.
// It returns as soon as dispatch returns an error, leaving any
// unconsumed bytes of chunk undelivered — the caller's session closes
// on the first dispatch failure, so no partial record is recoverable
// past that point anyway.
func (r *Reassembler) Feed(chunk []byte, dispatch Dispatch) error {
	for len(chunk) > 0 {
		switch r.st {
		case awaitHeader:
			need := record.HeaderLen - len(r.hdrBuf)
			n := min(need, len(chunk))
			r.hdrBuf = append(r.hdrBuf, chunk[:n]...)
			chunk = chunk[n:]
			if len(r.hdrBuf) < record.HeaderLen {
				return nil
			}
			hdr, err := record.DecodeHeader(r.hdrBuf)
			if err != nil {
				return fmt.Errorf("reassemble: %w", err)
			}
			if int(hdr.Length) > MaxRecordLen {
				return ErrOverlength
			}
			r.hdr = hdr
			r.body = make([]byte, hdr.Length)
			r.filled = 0
			r.hdrBuf = r.hdrBuf[:0]
			r.st = awaitBody
			if hdr.Length == 0 {
				if err := dispatch(r.hdr, r.body); err != nil {
					return err
				}
				r.st = awaitHeader
			}

		case awaitBody:
			need := len(r.body) - r.filled
			n := min(need, len(chunk))
			copy(r.body[r.filled:], chunk[:n])
			r.filled += n
			chunk = chunk[n:]
			if r.filled < len(r.body) {
				return nil
			}
			body := r.body
			hdr := r.hdr
			r.body = nil
			r.st = awaitHeader
			if err := dispatch(hdr, body); err != nil {
				return err
			}
		}
	}
	return nil
}
