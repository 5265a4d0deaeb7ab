// Package prf implements the TLS pseudo-random function and the key
// derivations built on top of it (RFC 2246 §5, RFC 5246 §5).
//
// The digest primitives themselves (MD5, SHA-1, SHA-256) are external
// collaborators per the core's scope: pHash takes them as hash.Hash
// constructors, and Expand supplies crypto/md5, crypto/sha1 and
// crypto/sha256 as those constructors.
package prf

import (
	"crypto/hmac"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"hash"
)

// MasterSecretLen and PreMasterSecretLen are fixed by RFC 5246 §8.1/§7.4.7.1.
const (
	MasterSecretLen    = 48
	PreMasterSecretLen = 48

	clientFinishedLabel = "client finished"
	serverFinishedLabel = "server finished"
	masterSecretLabel   = "master secret"
	keyExpansionLabel   = "key expansion"
)

// pHash implements P_hash(secret, seed) = HMAC(secret, A(1)) || HMAC(secret, A(2)) || ...
// where A(0) = seed and A(i) = HMAC(secret, A(i-1)), truncated to length bytes.
func pHash(newHash func() hash.Hash, secret []byte, seed []byte, length int) []byte {
	// HMAC may retain a reference to its key; copy the secret locally first.
	s := make([]byte, len(secret))
	copy(s, secret)

	out := make([]byte, 0, length)
	a := seed
	for len(out) < length {
		h := hmac.New(newHash, s)
		h.Write(a)
		a = h.Sum(nil)

		h = hmac.New(newHash, s)
		h.Write(a)
		h.Write(seed)
		out = h.Sum(out)
	}
	return out[:length]
}

// splitSecret splits secret into two halves S1, S2 of length ceil(len/2),
// overlapping by one byte when len is odd (RFC 2246 §5).
func splitSecret(secret []byte) (s1, s2 []byte) {
	half := (len(secret) + 1) / 2
	s1 = secret[:half]
	s2 = secret[len(secret)-half:]
	return s1, s2
}

func seedLen(seed [][]byte) int {
	n := 0
	for _, s := range seed {
		n += len(s)
	}
	return n
}

func flattenSeed(label string, seed [][]byte) []byte {
	buf := make([]byte, 0, len(label)+seedLen(seed))
	buf = append(buf, label...)
	for _, s := range seed {
		buf = append(buf, s...)
	}
	return buf
}

// Expand is the version-dispatching TLS PRF: P_SHA256 for version >= 1.2,
// or P_MD5 XOR P_SHA1 with a split secret for earlier versions.
//
// seed is given as a slice of fragments rather than a single concatenated
// buffer or variadic bytes, so callers can pass client/server randoms (or
// a transcript digest) without concatenating them first; Expand itself
// copies label and fragments into one buffer.
func Expand(version uint16, secret []byte, label string, seed [][]byte, length int) []byte {
	full := flattenSeed(label, seed)

	if version >= 0x0303 {
		return pHash(sha256.New, secret, full, length)
	}

	s1, s2 := splitSecret(secret)
	md5Out := pHash(md5.New, s1, full, length)
	sha1Out := pHash(sha1.New, s2, full, length)

	out := make([]byte, length)
	for i := range out {
		out[i] = md5Out[i] ^ sha1Out[i]
	}
	return out
}

// MasterSecret derives the 48-byte master secret from the pre-master
// secret and the client/server randoms (RFC 5246 §8.1).
func MasterSecret(version uint16, preMaster, clientRandom, serverRandom []byte) []byte {
	return Expand(version, preMaster, masterSecretLabel, [][]byte{clientRandom, serverRandom}, MasterSecretLen)
}

// KeyBlock derives the key expansion block (RFC 5246 §6.3): length bytes
// of PRF output keyed by the master secret, seeded with
// server_random || client_random.
func KeyBlock(version uint16, masterSecret, serverRandom, clientRandom []byte, length int) []byte {
	return Expand(version, masterSecret, keyExpansionLabel, [][]byte{serverRandom, clientRandom}, length)
}

// ClientFinished computes the 12-byte client Finished verify_data.
func ClientFinished(version uint16, masterSecret, transcriptDigest []byte) []byte {
	return Expand(version, masterSecret, clientFinishedLabel, [][]byte{transcriptDigest}, 12)
}

// ServerFinished computes the 12-byte server Finished verify_data.
func ServerFinished(version uint16, masterSecret, transcriptDigest []byte) []byte {
	return Expand(version, masterSecret, serverFinishedLabel, [][]byte{transcriptDigest}, 12)
}
