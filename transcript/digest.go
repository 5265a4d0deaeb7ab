// Package transcript maintains the rolling hash over every handshake
// message exchanged on a session (RFC 5246 §7.4.9), used to bind
// CertificateVerify and Finished to the handshake that produced them.
package transcript

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding"
	"fmt"
	"hash"
)

// Selected identifies which of the two parallel digests is bound to
// Finished/CertificateVerify output, fixed once by Select.
type Selected int

const (
	// SelectedNone is the zero value before ServerHello arrives.
	SelectedNone Selected = iota
	SelectedMD5SHA1
	SelectedSHA256
)

// Digest keeps both candidate transcripts running in parallel (the core
// does not know the negotiated protocol version until ServerHello
// arrives, so it cannot know in advance which one it will need) and
// exposes only the one Select fixes.
type Digest struct {
	md5    hash.Hash
	sha1   hash.Hash
	sha256 hash.Hash
	chosen Selected
}

// New creates a Digest with both candidate hashes freshly initialised.
func New() *Digest {
	return &Digest{
		md5:    md5.New(),
		sha1:   sha1.New(),
		sha256: sha256.New(),
		chosen: SelectedSHA256, // matches bootstrap default before ServerHello downgrades it
	}
}

// Select fixes which candidate digest Sum reads from, based on the
// negotiated protocol version (SHA-256 for 1.2+, MD5+SHA1 otherwise).
// It does not stop the other candidate from continuing to absorb bytes;
// both contexts are cheap to keep running and this keeps Select
// idempotent and side-effect-free on the unselected side.
func (d *Digest) Select(version uint16) {
	if version >= 0x0303 {
		d.chosen = SelectedSHA256
	} else {
		d.chosen = SelectedMD5SHA1
	}
}

// Absorb feeds the on-the-wire bytes of one handshake message — the
// 1-byte type, the 3-byte big-endian length, and the body — into both
// running digests. Callers must never call Absorb for HelloRequest (I2).
func (d *Digest) Absorb(msgType uint8, body []byte) {
	var hdr [4]byte
	hdr[0] = msgType
	hdr[1] = byte(len(body) >> 16)
	hdr[2] = byte(len(body) >> 8)
	hdr[3] = byte(len(body))

	d.md5.Write(hdr[:])
	d.md5.Write(body)
	d.sha1.Write(hdr[:])
	d.sha1.Write(body)
	d.sha256.Write(hdr[:])
	d.sha256.Write(body)
}

// Sum returns the finalised value of the selected digest as of this call,
// without disturbing the live running contexts — it clones the relevant
// hash.Hash (via its MarshalBinary/UnmarshalBinary snapshot) and
// finalises the clone, so later handshake messages can still be absorbed.
func (d *Digest) Sum() ([]byte, error) {
	switch d.chosen {
	case SelectedSHA256:
		return cloneSum(d.sha256, sha256.New)
	case SelectedMD5SHA1:
		m, err := cloneSum(d.md5, md5.New)
		if err != nil {
			return nil, fmt.Errorf("clone md5: %w", err)
		}
		s, err := cloneSum(d.sha1, sha1.New)
		if err != nil {
			return nil, fmt.Errorf("clone sha1: %w", err)
		}
		return append(m, s...), nil
	default:
		return nil, fmt.Errorf("transcript digest not selected")
	}
}

// cloneSum snapshots h's internal state into a freshly constructed hash
// of the same kind, finalises that clone, and leaves h itself untouched
// and still running — the live context must stay free to absorb later
// handshake messages.
func cloneSum(h hash.Hash, newHash func() hash.Hash) ([]byte, error) {
	marshaler, ok := h.(encoding.BinaryMarshaler)
	if !ok {
		return nil, fmt.Errorf("hash %T does not support state snapshot", h)
	}
	state, err := marshaler.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("marshal digest state: %w", err)
	}

	clone := newHash()
	if err := clone.(encoding.BinaryUnmarshaler).UnmarshalBinary(state); err != nil {
		return nil, fmt.Errorf("unmarshal digest state into clone: %w", err)
	}
	return clone.Sum(nil), nil
}
