package cipherspec

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"
)

// Spec is the negotiated key material and chaining state for one
// direction (TX or RX) of one cipher spec generation. A freshly
// constructed Spec carries the null suite and encrypts nothing.
type Spec struct {
	Suite     *Suite
	MACSecret []byte
	Key       []byte
	block     cipher.Block // nil under the null suite

	// iv is the CBC chaining state for TLS 1.0, where the IV for record
	// N+1 is the last ciphertext block of record N. TLS 1.1+ instead
	// draws a fresh random IV per record (RFC 5246 §6.2.3.2) and never
	// touches this field. It is only ever advanced after a record has
	// been fully sealed or opened, so a failure mid-record leaves the
	// chain exactly where it was.
	iv []byte
}

// NewSpec returns a Spec under the null cipher suite.
func NewSpec() *Spec {
	return &Spec{Suite: nullSuite}
}

// IsNull reports whether s carries no MAC or encryption.
func (s *Spec) IsNull() bool {
	return s.Suite == nil || s.Suite.ID == NullSuiteID
}

// Install arms s with suite and the key material derived from it by
// package prf's key block (§4.1): the MAC secret, bulk key, and (for
// TLS 1.0) the initial implicit IV.
func (s *Spec) Install(suite *Suite, macSecret, key, iv []byte) error {
	if suite == nil {
		return fmt.Errorf("cipherspec: install with nil suite")
	}
	if len(key) != suite.KeyLen {
		return fmt.Errorf("cipherspec: key length %d, suite %#04x wants %d", len(key), suite.ID, suite.KeyLen)
	}
	block, err := suite.NewBlock(key)
	if err != nil {
		return fmt.Errorf("cipherspec: %w", err)
	}
	s.Suite = suite
	s.MACSecret = macSecret
	s.Key = key
	s.block = block
	s.iv = append([]byte(nil), iv...)
	return nil
}

// Clear zeroes s's key material and resets it to the null suite, the
// way ChangeCipherSpec retires whichever Spec just lost the swap.
func (s *Spec) Clear() {
	clear(s.MACSecret)
	clear(s.Key)
	clear(s.iv)
	s.Suite = nullSuite
	s.MACSecret = nil
	s.Key = nil
	s.block = nil
	s.iv = nil
}

// checkpointIV returns the IV the next record should use without
// mutating s: a freshly random one for TLS 1.1+, or the live chain
// state for TLS 1.0.
func (s *Spec) checkpointIV(version uint16, explicitIV bool) ([]byte, error) {
	if explicitIV {
		iv := make([]byte, s.Suite.BlockSize)
		if _, err := rand.Read(iv); err != nil {
			return nil, fmt.Errorf("cipherspec: generating explicit IV: %w", err)
		}
		return iv, nil
	}
	return s.iv, nil
}

// commitIV advances the TLS 1.0 chaining state to the last ciphertext
// block once a record has been sealed successfully. It is a no-op
// under explicit-IV versions, where each record is self-contained.
func (s *Spec) commitIV(explicitIV bool, lastCiphertextBlock []byte) {
	if explicitIV {
		return
	}
	s.iv = append(s.iv[:0], lastCiphertextBlock...)
}

// CheckpointIV is checkpointIV for callers outside this package.
func (s *Spec) CheckpointIV(version uint16, explicitIV bool) ([]byte, error) {
	return s.checkpointIV(version, explicitIV)
}

// CommitIV is commitIV for callers outside this package.
func (s *Spec) CommitIV(explicitIV bool, lastCiphertextBlock []byte) {
	s.commitIV(explicitIV, lastCiphertextBlock)
}

// Encrypter returns a CBC encrypter seeded with iv and s's key.
// recordlayer's Outbound.Seal commits the chain via CommitIV as soon as
// the record is sealed, before its caller writes it to the transport; a
// failed write does not roll the chain back.
func (s *Spec) Encrypter(iv []byte) cipher.BlockMode {
	return cipher.NewCBCEncrypter(s.block, iv)
}

// Decrypter returns a CBC decrypter seeded with iv and s's key.
func (s *Spec) Decrypter(iv []byte) cipher.BlockMode {
	return cipher.NewCBCDecrypter(s.block, iv)
}

// Pair holds the two cipher-spec slots RFC 5246 §6.1 requires per
// direction: the spec in active use, and the one being prepared under
// the next ChangeCipherSpec. It mirrors the teacher's forward/backward
// split in Hop, generalized from a fixed pair of peers to a pair of
// time-ordered generations of the same peer.
type Pair struct {
	Active  *Spec
	Pending *Spec
}

// NewPair returns a Pair with both slots under the null suite.
func NewPair() *Pair {
	return &Pair{Active: NewSpec(), Pending: NewSpec()}
}

// ChangeCipher promotes Pending to Active and resets Pending to a
// fresh null Spec, failing with *protocol violation* if Pending was
// never installed — a peer may not activate a cipher spec that was
// never negotiated (RFC 5246 §7.1).
func (p *Pair) ChangeCipher() error {
	if p.Pending.IsNull() {
		return fmt.Errorf("cipherspec: change_cipher_spec with no pending suite installed")
	}
	retired := p.Active
	p.Active, p.Pending = p.Pending, NewSpec()
	retired.Clear()
	return nil
}
