// Package cipherspec holds the TLS cipher suite table and the per-direction
// active/pending cipher state it drives (RFC 5246 §6.2.3, §7.1).
//
// The digest, block cipher, and public-key primitives referenced by a
// Suite are external collaborators per the core's scope — this package
// only ever stores constructor functions (hash.Hash, cipher.Block) for
// them, supplied by crypto/* at suite-table construction time.
package cipherspec

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
)

// NullSuiteID is the sentinel cipher suite code used before a real suite
// is negotiated; it carries neither a MAC nor encryption.
const NullSuiteID uint16 = 0x0000

// Mandatory suite codes (§6 of the spec, in preference order).
const (
	RSAWithAES256CBCSHA256 uint16 = 0x003D
	RSAWithAES128CBCSHA256 uint16 = 0x003C
	RSAWithAES256CBCSHA    uint16 = 0x0035
	RSAWithAES128CBCSHA    uint16 = 0x002F
)

// Suite is a static, immutable description of one cipher suite: its
// IANA code, key length, and the digest/cipher constructors used to
// build a Spec once a suite is negotiated.
type Suite struct {
	ID        uint16
	KeyLen    int
	BlockSize int // 0 for a stream cipher
	IsStream  bool
	Hash      func() hash.Hash // MAC digest (also the PRF digest for 1.2+ suites)
	NewBlock  func(key []byte) (cipher.Block, error)
}

// MACLen returns the MAC digest's output size in bytes.
func (s *Suite) MACLen() int {
	if s.Hash == nil {
		return 0
	}
	return s.Hash().Size()
}

var nullSuite = &Suite{ID: NullSuiteID}

// Suites is the preference-ordered table of mandatory suites (§6).
// Only AES-CBC suites are registered because the spec mandates no
// stream cipher and excludes Diffie-Hellman key exchange. Package
// recordlayer frames every protected record as CBC; it does not consult
// Suite.IsStream and has no stream-cipher framing.
var Suites = []*Suite{
	{ID: RSAWithAES256CBCSHA256, KeyLen: 32, BlockSize: aes.BlockSize, Hash: sha256.New, NewBlock: aes.NewCipher},
	{ID: RSAWithAES128CBCSHA256, KeyLen: 16, BlockSize: aes.BlockSize, Hash: sha256.New, NewBlock: aes.NewCipher},
	{ID: RSAWithAES256CBCSHA, KeyLen: 32, BlockSize: aes.BlockSize, Hash: sha1.New, NewBlock: aes.NewCipher},
	{ID: RSAWithAES128CBCSHA, KeyLen: 16, BlockSize: aes.BlockSize, Hash: sha1.New, NewBlock: aes.NewCipher},
}

// ByID looks up a suite in preference-list order, failing with
// *unsupported* (§7) if the code matches none of the suites this core
// implements.
func ByID(id uint16) (*Suite, error) {
	for _, s := range Suites {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, fmt.Errorf("unsupported cipher suite 0x%04x", id)
}

// PreferenceList returns the suite codes in the order ClientHello should
// advertise them.
func PreferenceList() []uint16 {
	ids := make([]uint16, len(Suites))
	for i, s := range Suites {
		ids[i] = s.ID
	}
	return ids
}
