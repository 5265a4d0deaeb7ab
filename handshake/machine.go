package handshake

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"log/slog"
	"time"

	"github.com/cvsouth/tls-go/cipherspec"
	"github.com/cvsouth/tls-go/prf"
	"github.com/cvsouth/tls-go/record"
	"github.com/cvsouth/tls-go/tlserr"
	"github.com/cvsouth/tls-go/transcript"
)

// Flight bits, in the fixed priority order the scheduler drains them
// (§4.7): ClientHello, Certificate, ClientKeyExchange,
// CertificateVerify, ChangeCipher, Finished.
const (
	FlightClientHello uint8 = 1 << iota
	FlightCertificate
	FlightClientKeyExchange
	FlightCertificateVerify
	FlightChangeCipher
	FlightFinished
)

// flightOrder is the fixed drain priority.
var flightOrder = []uint8{
	FlightClientHello,
	FlightCertificate,
	FlightClientKeyExchange,
	FlightCertificateVerify,
	FlightChangeCipher,
	FlightFinished,
}

// Config carries the parts of a Machine that are fixed for the life of
// the session rather than mutated as the handshake progresses.
type Config struct {
	ServerName string
	Verifier   Verifier
	ClientCert []byte        // DER, nil if no client certificate is configured
	ClientKey  crypto.Signer // required iff ClientCert is set
	Logger     *slog.Logger
	Now        func() time.Time // nil defaults to time.Now
}

// Machine drives the handshake side of a session: it decodes inbound
// handshake/alert/change_cipher_spec bodies, maintains the pending
// flight bitmask, and builds outbound messages on request. It owns no
// transport of its own — the session pumps bytes through it.
type Machine struct {
	cfg Config

	Version      uint16
	ClientRandom [32]byte
	ServerRandom [32]byte
	PreMaster    []byte
	MasterSecret []byte

	Transcript *transcript.Digest
	TXPair     *cipherspec.Pair
	RXPair     *cipherspec.Pair

	ServerPubKey  *rsa.PublicKey
	NegotiatedID  uint16
	CertRequested bool

	PendingFlight uint8
	TXReady       bool
}

// New constructs a Machine with fresh null cipher pairs and a digest
// ready to absorb, but with no version, random, or secret filled in —
// that is the session's bootstrap job (C8).
func New(cfg Config) *Machine {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Machine{
		cfg:        cfg,
		Transcript: transcript.New(),
		TXPair:     cipherspec.NewPair(),
		RXPair:     cipherspec.NewPair(),
	}
}

func (m *Machine) logger() *slog.Logger { return m.cfg.Logger }

// PendingMessage is one outbound handshake-layer send the scheduler
// still owes the peer.
type PendingMessage struct {
	Bit            uint8
	ContentType    uint8
	HandshakeType  uint8 // only meaningful when ContentType == record.TypeHandshake
	Body           []byte
	absorbOnCommit bool
}

// NextFlight selects the lowest-set bit in the fixed priority order and
// builds its wire body. It does not clear the bit or touch the
// transcript — callers must call Commit only after the message has
// been fully written to the wire.
func (m *Machine) NextFlight() (*PendingMessage, bool, error) {
	for _, bit := range flightOrder {
		if m.PendingFlight&bit == 0 {
			continue
		}
		msg, err := m.build(bit)
		if err != nil {
			return nil, false, err
		}
		return msg, true, nil
	}
	return nil, false, nil
}

func (m *Machine) build(bit uint8) (*PendingMessage, error) {
	switch bit {
	case FlightClientHello:
		ch := &ClientHello{
			Version:      m.Version,
			Random:       m.ClientRandom,
			CipherSuites: cipherspec.PreferenceList(),
			ServerName:   m.cfg.ServerName,
		}
		return &PendingMessage{Bit: bit, ContentType: record.TypeHandshake, HandshakeType: record.HandshakeClientHello, Body: ch.Encode(), absorbOnCommit: true}, nil

	case FlightCertificate:
		cert := &Certificate{}
		if m.cfg.ClientCert != nil {
			cert.Chain = [][]byte{m.cfg.ClientCert}
		}
		return &PendingMessage{Bit: bit, ContentType: record.TypeHandshake, HandshakeType: record.HandshakeCertificate, Body: cert.Encode(), absorbOnCommit: true}, nil

	case FlightClientKeyExchange:
		if m.ServerPubKey == nil {
			return nil, tlserr.New(tlserr.KindProtocolViolation, fmt.Errorf("client_key_exchange scheduled with no server public key"))
		}
		encrypted, err := rsa.EncryptPKCS1v15(rand.Reader, m.ServerPubKey, m.PreMaster)
		if err != nil {
			return nil, tlserr.New(tlserr.KindAllocation, fmt.Errorf("encrypting pre-master secret: %w", err))
		}
		cke := &ClientKeyExchange{EncryptedPreMaster: encrypted}
		return &PendingMessage{Bit: bit, ContentType: record.TypeHandshake, HandshakeType: record.HandshakeClientKeyExchange, Body: cke.Encode(), absorbOnCommit: true}, nil

	case FlightCertificateVerify:
		sig, sigHashID, err := m.signTranscript()
		if err != nil {
			return nil, err
		}
		cv := &CertificateVerify{SigHashID: sigHashID, Signature: sig}
		return &PendingMessage{Bit: bit, ContentType: record.TypeHandshake, HandshakeType: record.HandshakeCertificateVerify, Body: cv.Encode(m.Version), absorbOnCommit: true}, nil

	case FlightChangeCipher:
		return &PendingMessage{Bit: bit, ContentType: record.TypeChangeCipherSpec, Body: []byte{ChangeCipherSpecPayload}}, nil

	case FlightFinished:
		digest, err := m.Transcript.Sum()
		if err != nil {
			return nil, tlserr.New(tlserr.KindAllocation, fmt.Errorf("finished: %w", err))
		}
		verifyData := prf.ClientFinished(m.Version, m.MasterSecret, digest)
		fin := &Finished{VerifyData: verifyData}
		return &PendingMessage{Bit: bit, ContentType: record.TypeHandshake, HandshakeType: record.HandshakeFinished, Body: fin.Encode(), absorbOnCommit: true}, nil

	default:
		return nil, fmt.Errorf("handshake: unknown flight bit %d", bit)
	}
}

func (m *Machine) signTranscript() (signature []byte, sigHashID uint16, err error) {
	if m.cfg.ClientKey == nil {
		return nil, 0, tlserr.New(tlserr.KindProtocolViolation, fmt.Errorf("certificate_verify scheduled with no client key configured"))
	}
	digest, err := m.Transcript.Sum()
	if err != nil {
		return nil, 0, tlserr.New(tlserr.KindAllocation, fmt.Errorf("certificate_verify: %w", err))
	}
	if m.Version >= record.VersionTLS12 {
		sig, err := m.cfg.ClientKey.Sign(rand.Reader, digest, crypto.SHA256)
		if err != nil {
			return nil, 0, tlserr.New(tlserr.KindVerifyFailure, fmt.Errorf("signing certificate_verify: %w", err))
		}
		return sig, sigHashSHA256RSA, nil
	}
	sig, err := m.cfg.ClientKey.Sign(rand.Reader, digest, crypto.MD5SHA1)
	if err != nil {
		return nil, 0, tlserr.New(tlserr.KindVerifyFailure, fmt.Errorf("signing certificate_verify: %w", err))
	}
	return sig, 0, nil
}

// Commit records that msg was fully written to the wire: it absorbs
// the message's on-the-wire bytes into the transcript (handshake
// messages only — ChangeCipherSpec is not a handshake message and is
// never absorbed) and clears the bit that produced it.
func (m *Machine) Commit(msg *PendingMessage) {
	if msg.absorbOnCommit {
		m.Transcript.Absorb(msg.HandshakeType, msg.Body)
	}
	m.PendingFlight &^= msg.Bit
}

// Dispatch decodes one inbound handshake message and advances the
// state machine. It absorbs the transcript for every message type
// except HelloRequest, matching the reference implementation's
// early return before absorption (§4.5, confirmed against
// tls_new_handshake).
func (m *Machine) Dispatch(msgType uint8, body []byte) error {
	// Finished is the one message whose expected value depends on the
	// transcript as of immediately *before* this message, so it absorbs
	// itself after computing that expectation rather than up front.
	if msgType == record.HandshakeFinished {
		return m.handleFinished(body)
	}
	if msgType != record.HandshakeHelloRequest {
		m.Transcript.Absorb(msgType, body)
	}

	switch msgType {
	case record.HandshakeHelloRequest:
		if len(body) != 0 {
			return tlserr.New(tlserr.KindInvalidInput, fmt.Errorf("hello_request: non-empty body"))
		}
		return nil

	case record.HandshakeServerHello:
		return m.handleServerHello(body)

	case record.HandshakeCertificate:
		return m.handleCertificate(body)

	case record.HandshakeCertificateRequest:
		m.CertRequested = true
		m.PendingFlight |= FlightCertificate | FlightCertificateVerify
		return nil

	case record.HandshakeServerHelloDone:
		m.PendingFlight |= FlightClientKeyExchange | FlightChangeCipher | FlightFinished
		return nil

	default:
		return tlserr.New(tlserr.KindProtocolViolation, fmt.Errorf("unexpected handshake message type %d", msgType))
	}
}

func (m *Machine) handleServerHello(body []byte) error {
	sh, err := DecodeServerHello(body)
	if err != nil {
		return tlserr.New(tlserr.KindInvalidInput, err)
	}
	if sh.Version < record.VersionTLS10 {
		return tlserr.New(tlserr.KindInvalidInput, fmt.Errorf("illegal protocol version 0x%04x", sh.Version))
	}
	if !record.IsKnownVersion(sh.Version) || sh.Version > m.Version {
		return tlserr.New(tlserr.KindProtocolViolation, fmt.Errorf("server attempted version upgrade to 0x%04x", sh.Version))
	}
	m.Version = sh.Version
	m.ServerRandom = sh.Random
	m.Transcript.Select(m.Version)

	suite, err := cipherspec.ByID(sh.CipherSuite)
	if err != nil {
		return tlserr.New(tlserr.KindUnsupported, err)
	}
	m.NegotiatedID = suite.ID

	m.MasterSecret = prf.MasterSecret(m.Version, m.PreMaster, m.ClientRandom[:], m.ServerRandom[:])

	keyLen := suite.KeyLen
	macLen := suite.MACLen()
	blockLen := suite.BlockSize
	keyBlock := prf.KeyBlock(m.Version, m.MasterSecret, m.ServerRandom[:], m.ClientRandom[:], 2*(macLen+keyLen+blockLen))

	cursor := 0
	take := func(n int) []byte { b := keyBlock[cursor : cursor+n]; cursor += n; return b }
	txMAC := take(macLen)
	rxMAC := take(macLen)
	txKey := take(keyLen)
	rxKey := take(keyLen)
	txIV := take(blockLen)
	rxIV := take(blockLen)

	if err := m.TXPair.Pending.Install(suite, txMAC, txKey, txIV); err != nil {
		return tlserr.New(tlserr.KindAllocation, err)
	}
	if err := m.RXPair.Pending.Install(suite, rxMAC, rxKey, rxIV); err != nil {
		return tlserr.New(tlserr.KindAllocation, err)
	}
	return nil
}

func (m *Machine) handleCertificate(body []byte) error {
	cert, err := DecodeCertificate(body)
	if err != nil {
		return tlserr.New(tlserr.KindInvalidInput, err)
	}
	if len(cert.Chain) == 0 {
		return tlserr.New(tlserr.KindAccessDenied, fmt.Errorf("certificate: incomplete chain"))
	}
	subject, pub, err := m.cfg.Verifier.Verify(cert.Chain, m.cfg.ServerName, m.cfg.Now())
	if err != nil {
		return tlserr.NewAlert(tlserr.KindAccessDenied, tlserr.AlertLevelFatal, tlserr.AlertBadCertificate, err)
	}
	if subject != m.cfg.ServerName {
		return tlserr.NewAlert(tlserr.KindAccessDenied, tlserr.AlertLevelFatal, tlserr.AlertAccessDenied,
			fmt.Errorf("certificate subject %q does not match configured name %q", subject, m.cfg.ServerName))
	}
	rsaPub, ok := pub.(*rsa.PublicKey)
	if !ok {
		return tlserr.New(tlserr.KindUnsupported, fmt.Errorf("certificate: non-RSA public key"))
	}
	m.ServerPubKey = rsaPub
	return nil
}

func (m *Machine) handleFinished(body []byte) error {
	fin, err := DecodeFinished(body)
	if err != nil {
		return tlserr.New(tlserr.KindInvalidInput, err)
	}

	digest, err := m.Transcript.Sum()
	if err != nil {
		return tlserr.New(tlserr.KindAllocation, err)
	}
	expected := prf.ServerFinished(m.Version, m.MasterSecret, digest)

	m.Transcript.Absorb(record.HandshakeFinished, body)

	if !hmac.Equal(fin.VerifyData, expected) {
		return tlserr.NewAlert(tlserr.KindVerifyFailure, tlserr.AlertLevelFatal, tlserr.AlertDecryptError, fmt.Errorf("finished: verify_data mismatch"))
	}
	m.TXReady = true
	return nil
}
