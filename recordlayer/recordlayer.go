// Package recordlayer implements the TLS record protection transform
// (RFC 5246 §6.2.3.2): MAC-then-pad-then-encrypt on the way out,
// decrypt-then-depad-then-verify on the way in, each keyed by a
// sequence number that is never itself transmitted.
package recordlayer

import (
	"crypto/hmac"
	"crypto/subtle"
	"encoding/binary"
	"fmt"

	"github.com/cvsouth/tls-go/cipherspec"
	"github.com/cvsouth/tls-go/record"
)

// MaxPadding is the largest padding length TLS CBC records allow
// (RFC 5246 §6.2.3.2: padding_length is one byte, 0-255).
const MaxPadding = 255

// Outbound seals plaintext records for one direction of one cipher
// spec generation. A new Outbound is constructed each time cipherspec
// activates a pending spec; SeqNum always restarts at zero for a fresh
// generation (RFC 5246 §6.1).
type Outbound struct {
	Spec       *cipherspec.Spec
	Version    uint16
	ExplicitIV bool // true for TLS 1.1 and 1.2
	SeqNum     uint64
}

// Seal returns the wire payload (IV prefix if explicit, then
// ciphertext) for one record of contentType carrying plaintext. The
// sequence number and, for TLS 1.0, the CBC chain are only advanced
// once the whole record has been assembled, so a failure midway
// leaves o's state exactly as it was before the call.
func (o *Outbound) Seal(contentType uint8, plaintext []byte) ([]byte, error) {
	if o.Spec.IsNull() {
		out := append([]byte(nil), plaintext...)
		o.SeqNum++
		return out, nil
	}

	suite := o.Spec.Suite
	mac := computeMAC(o.Spec.MACSecret, suite, o.SeqNum, contentType, o.Version, plaintext)

	blockSize := suite.BlockSize
	unpadded := len(plaintext) + len(mac)
	padLen := blockSize - (unpadded+1)%blockSize
	if padLen == blockSize {
		padLen = 0
	}
	body := make([]byte, 0, unpadded+padLen+1)
	body = append(body, plaintext...)
	body = append(body, mac...)
	for i := 0; i <= padLen; i++ {
		body = append(body, byte(padLen))
	}
	if len(body)%blockSize != 0 {
		return nil, fmt.Errorf("recordlayer: internal padding error, length %d not a multiple of %d", len(body), blockSize)
	}

	iv, err := o.Spec.CheckpointIV(o.Version, o.ExplicitIV)
	if err != nil {
		return nil, fmt.Errorf("recordlayer: %w", err)
	}
	ciphertext := make([]byte, len(body))
	o.Spec.Encrypter(iv).CryptBlocks(ciphertext, body)

	out := ciphertext
	if o.ExplicitIV {
		out = make([]byte, 0, len(iv)+len(ciphertext))
		out = append(out, iv...)
		out = append(out, ciphertext...)
	}

	o.Spec.CommitIV(o.ExplicitIV, ciphertext[len(ciphertext)-blockSize:])
	o.SeqNum++
	return out, nil
}

// Inbound opens sealed records for one direction of one cipher spec
// generation.
type Inbound struct {
	Spec       *cipherspec.Spec
	Version    uint16
	ExplicitIV bool
	SeqNum     uint64
}

// Open authenticates and decrypts wire, returning the plaintext that
// was originally sealed under contentType. It fails closed with
// *verify failure* on any MAC or padding mismatch without
// distinguishing which, so a record cannot be used as a padding
// oracle (RFC 5246 §6.2.3.2, "bad_record_mac").
func (in *Inbound) Open(contentType uint8, wire []byte) ([]byte, error) {
	if in.Spec.IsNull() {
		out := append([]byte(nil), wire...)
		in.SeqNum++
		return out, nil
	}

	suite := in.Spec.Suite
	blockSize := suite.BlockSize

	var iv []byte
	ciphertext := wire
	if in.ExplicitIV {
		if len(wire) < blockSize {
			return nil, fmt.Errorf("recordlayer: ciphertext shorter than one block")
		}
		iv, ciphertext = wire[:blockSize], wire[blockSize:]
	} else {
		iv, _ = in.Spec.CheckpointIV(in.Version, false) // the live chain; never fails
	}
	if len(ciphertext) == 0 || len(ciphertext)%blockSize != 0 {
		return nil, fmt.Errorf("recordlayer: ciphertext length %d not a multiple of block size %d", len(ciphertext), blockSize)
	}

	body := make([]byte, len(ciphertext))
	in.Spec.Decrypter(iv).CryptBlocks(body, ciphertext)
	in.Spec.CommitIV(in.ExplicitIV, ciphertext[len(ciphertext)-blockSize:])

	macLen := suite.MACLen()
	plaintext, mac, ok := depad(body, macLen)
	if !ok {
		return nil, fmt.Errorf("recordlayer: bad_record_mac")
	}

	wantMAC := computeMAC(in.Spec.MACSecret, suite, in.SeqNum, contentType, in.Version, plaintext)
	if !hmac.Equal(mac, wantMAC) {
		return nil, fmt.Errorf("recordlayer: bad_record_mac")
	}

	in.SeqNum++
	return plaintext, nil
}

// depad strips and validates CBC padding in constant time with
// respect to the padding's own content, returning the plaintext
// (everything before the MAC) and the MAC trailer. ok is false if the
// padding is malformed or the record is too short to hold a MAC —
// callers must map both into the same bad_record_mac alert so decrypt
// failures and MAC failures are indistinguishable to an attacker.
func depad(body []byte, macLen int) (plaintext, mac []byte, ok bool) {
	if len(body) < macLen+1 {
		return nil, nil, false
	}
	padLen := int(body[len(body)-1])
	if padLen+1 > len(body)-macLen {
		return nil, nil, false
	}
	padStart := len(body) - padLen - 1
	good := 1
	for i := padStart; i < len(body); i++ {
		good &= subtle.ConstantTimeByteEq(body[i], byte(padLen))
	}
	if good != 1 {
		return nil, nil, false
	}
	return body[:padStart-macLen], body[padStart-macLen : padStart], true
}

// computeMAC returns HMAC(MACSecret, seq || type || version || length || fragment),
// the MAC input defined in RFC 5246 §6.2.3.1.
func computeMAC(macSecret []byte, suite *cipherspec.Suite, seq uint64, contentType uint8, version uint16, fragment []byte) []byte {
	h := hmac.New(suite.Hash, macSecret)
	var header [13]byte
	binary.BigEndian.PutUint64(header[0:8], seq)
	header[8] = contentType
	binary.BigEndian.PutUint16(header[9:11], version)
	binary.BigEndian.PutUint16(header[11:13], uint16(len(fragment)))
	h.Write(header[:])
	h.Write(fragment)
	return h.Sum(nil)
}

// MaxCiphertext is the largest ciphertext a compliant peer may send in
// one record (RFC 5246 §6.2.1: 2^14 + 2048).
const MaxCiphertext = record.MaxPlaintext + 2048
