package handshake

import (
	"fmt"

	"github.com/cvsouth/tls-go/record"
)

// extensionServerName is the SNI extension type (RFC 6066 §3).
const extensionServerName uint16 = 0

// sigHashSHA256RSA is the only signature/hash identifier this core
// offers in a TLS 1.2 CertificateVerify (§6).
const sigHashSHA256RSA uint16 = 0x0401

// ClientHello is the outbound message that opens every handshake.
type ClientHello struct {
	Version      uint16
	Random       [32]byte
	CipherSuites []uint16
	ServerName   string
}

// Encode serialises h in wire order, including the single server_name
// extension when ServerName is non-empty.
func (h *ClientHello) Encode() []byte {
	w := &writer{}
	w.writeUint16(h.Version)
	w.writeBytes(h.Random[:])
	w.writeVector8(nil) // session_id: always empty, no resumption

	cs := &writer{}
	for _, id := range h.CipherSuites {
		cs.writeUint16(id)
	}
	w.writeVector16(cs.bytes())

	w.writeVector8([]byte{0}) // compression_methods: null only

	if h.ServerName == "" {
		return w.bytes()
	}
	name := &writer{}
	name.writeUint8(0) // host_name
	name.writeVector16([]byte(h.ServerName))
	sniList := &writer{}
	sniList.writeVector16(name.bytes())

	ext := &writer{}
	ext.writeUint16(extensionServerName)
	ext.writeVector16(sniList.bytes())

	w.writeVector16(ext.bytes())
	return w.bytes()
}

// ServerHello is the inbound reply naming the negotiated version,
// random, session id, and cipher suite.
type ServerHello struct {
	Version     uint16
	Random      [32]byte
	SessionID   []byte
	CipherSuite uint16
	Compression uint8
}

// DecodeServerHello parses a ServerHello body.
func DecodeServerHello(body []byte) (*ServerHello, error) {
	c := newCursor(body)
	version, err := c.readUint16()
	if err != nil {
		return nil, fmt.Errorf("server_hello: %w", err)
	}
	random, err := c.readBytes(32)
	if err != nil {
		return nil, fmt.Errorf("server_hello: %w", err)
	}
	sessionID, err := c.readVector8()
	if err != nil {
		return nil, fmt.Errorf("server_hello: %w", err)
	}
	suite, err := c.readUint16()
	if err != nil {
		return nil, fmt.Errorf("server_hello: %w", err)
	}
	compression, err := c.readUint8()
	if err != nil {
		return nil, fmt.Errorf("server_hello: %w", err)
	}
	sh := &ServerHello{
		Version:     version,
		SessionID:   append([]byte(nil), sessionID...),
		CipherSuite: suite,
		Compression: compression,
	}
	copy(sh.Random[:], random)
	return sh, nil
}

// Certificate is both the inbound chain (leaf first) and the outbound
// one (empty, or the single configured client certificate).
type Certificate struct {
	Chain [][]byte
}

// DecodeCertificate parses a 3-length-prefixed list of 3-length-prefixed
// DER certificates.
func DecodeCertificate(body []byte) (*Certificate, error) {
	c := newCursor(body)
	listBytes, err := c.readVector24()
	if err != nil {
		return nil, fmt.Errorf("certificate: %w", err)
	}
	list := newCursor(listBytes)
	var chain [][]byte
	for !list.atEnd() {
		der, err := list.readVector24()
		if err != nil {
			return nil, fmt.Errorf("certificate: %w", err)
		}
		chain = append(chain, append([]byte(nil), der...))
	}
	return &Certificate{Chain: chain}, nil
}

// Encode serialises the outbound Certificate message.
func (m *Certificate) Encode() []byte {
	w := &writer{}
	list := &writer{}
	for _, der := range m.Chain {
		list.writeVector24(der)
	}
	w.writeVector24(list.bytes())
	return w.bytes()
}

// ClientKeyExchange carries the RSA-encrypted pre-master secret.
type ClientKeyExchange struct {
	EncryptedPreMaster []byte
}

// Encode serialises the outbound ClientKeyExchange message.
func (m *ClientKeyExchange) Encode() []byte {
	w := &writer{}
	w.writeVector16(m.EncryptedPreMaster)
	return w.bytes()
}

// CertificateVerify carries a signature over the handshake transcript.
type CertificateVerify struct {
	SigHashID uint16 // only meaningful for TLS >= 1.2
	Signature []byte
}

// Encode serialises the outbound CertificateVerify message. version
// governs whether the 2-byte {hash, signature} identifier prefix is
// present (TLS >= 1.2 only).
func (m *CertificateVerify) Encode(version uint16) []byte {
	w := &writer{}
	if version >= record.VersionTLS12 {
		w.writeUint16(m.SigHashID)
	}
	w.writeVector16(m.Signature)
	return w.bytes()
}

// Finished carries the 12-byte verify_data.
type Finished struct {
	VerifyData []byte
}

// FinishedLen is the fixed length of verify_data (§4.5).
const FinishedLen = 12

// Encode serialises the outbound Finished message.
func (m *Finished) Encode() []byte {
	w := &writer{}
	w.writeBytes(m.VerifyData)
	return w.bytes()
}

// DecodeFinished parses an inbound Finished message.
func DecodeFinished(body []byte) (*Finished, error) {
	if len(body) != FinishedLen {
		return nil, fmt.Errorf("finished: body length %d, want %d", len(body), FinishedLen)
	}
	return &Finished{VerifyData: append([]byte(nil), body...)}, nil
}

// ChangeCipherSpecPayload is the single byte a ChangeCipherSpec record
// must carry (§4.5, confirmed against the reference tls_new_change_cipher).
const ChangeCipherSpecPayload uint8 = 1

// Alert is the inbound {level, description} pair.
type Alert struct {
	Level       uint8
	Description uint8
}

// DecodeAlert parses a 2-byte alert payload.
func DecodeAlert(body []byte) (*Alert, error) {
	if len(body) != 2 {
		return nil, fmt.Errorf("alert: body length %d, want 2", len(body))
	}
	return &Alert{Level: body[0], Description: body[1]}, nil
}
