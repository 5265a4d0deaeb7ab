// Package session ties the handshake state machine, cipher specs, and
// record layer together into a single byte-stream endpoint (C7/C8):
// plaintext goes in one side, ciphertext comes out the other, and the
// handshake drives itself opportunistically as records arrive.
package session

import (
	"crypto"
	"crypto/rand"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/cvsouth/tls-go/handshake"
	"github.com/cvsouth/tls-go/reassemble"
	"github.com/cvsouth/tls-go/record"
	"github.com/cvsouth/tls-go/recordlayer"
	"github.com/cvsouth/tls-go/tlserr"
)

// Config configures a Session the way handshake.Config configures the
// Machine it wraps, plus the transport-facing knobs the session itself
// owns.
type Config struct {
	ServerName string
	Verifier   handshake.Verifier
	ClientCert []byte
	ClientKey  crypto.Signer
	Logger     *slog.Logger
	Now        func() time.Time
}

// Session is a single TLS connection's client-side state: the
// handshake machine, the active/pending cipher specs it owns, and the
// record-layer encrypt/decrypt pipeline wired to a ciphertext
// transport. Session implements io.ReadWriteCloser over the plaintext
// side once the handshake completes.
type Session struct {
	conn   io.ReadWriter
	m      *handshake.Machine
	reasm  *reassemble.Reassembler
	txOut  *recordlayer.Outbound
	rxIn   *recordlayer.Inbound
	logger *slog.Logger

	plainRX  []byte
	closeErr *tlserr.Error
}

var _ io.ReadWriteCloser = (*Session)(nil)

// New bootstraps a Session over conn (§4.8): the session is
// constructed with null cipher specs in all four slots, the maximum
// supported protocol version, a fresh client random and pre-master
// secret, and the outbound pending-flight mask fixed to {ClientHello}.
func New(conn io.ReadWriter, cfg Config) (*Session, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	m := handshake.New(handshake.Config{
		ServerName: cfg.ServerName,
		Verifier:   cfg.Verifier,
		ClientCert: cfg.ClientCert,
		ClientKey:  cfg.ClientKey,
		Logger:     cfg.Logger,
		Now:        cfg.Now,
	})
	m.Version = record.MaxVersion

	var random [32]byte
	now := time.Now()
	if cfg.Now != nil {
		now = cfg.Now()
	}
	putUint32BE(random[:4], uint32(now.Unix()))
	if _, err := rand.Read(random[4:]); err != nil {
		return nil, tlserr.New(tlserr.KindAllocation, fmt.Errorf("generating client random: %w", err))
	}
	m.ClientRandom = random

	preMaster := make([]byte, 48)
	preMaster[0] = byte(m.Version >> 8)
	preMaster[1] = byte(m.Version)
	if _, err := rand.Read(preMaster[2:]); err != nil {
		return nil, tlserr.New(tlserr.KindAllocation, fmt.Errorf("generating pre-master secret: %w", err))
	}
	m.PreMaster = preMaster

	m.Transcript.Select(m.Version)
	m.PendingFlight = handshake.FlightClientHello

	s := &Session{
		conn:   conn,
		m:      m,
		reasm:  reassemble.New(),
		logger: cfg.Logger,
	}
	s.txOut = &recordlayer.Outbound{Spec: m.TXPair.Active, Version: m.Version}
	s.rxIn = &recordlayer.Inbound{Spec: m.RXPair.Active, Version: m.Version}
	return s, nil
}

func putUint32BE(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// explicitIV reports whether the negotiated version uses per-record
// explicit IVs (TLS 1.1+) rather than implicit CBC chaining.
func (s *Session) explicitIV() bool {
	return s.m.Version >= record.VersionTLS11
}

// Handshake drives the handshake to completion: it alternates sending
// every currently pending flight message and reading from conn until
// TX-ready is set or an error closes the session.
func (s *Session) Handshake() error {
	if s.closeErr != nil {
		return s.closeErr
	}
	for {
		if err := s.drainFlights(); err != nil {
			return s.fail(err)
		}
		if s.m.TXReady {
			return nil
		}
		if err := s.readOnce(); err != nil {
			return s.fail(err)
		}
	}
}

// drainFlights sends every handshake message the state machine
// currently owes the peer, in fixed priority order, re-arming itself
// after each send the way the scheduler in §4.7 does.
func (s *Session) drainFlights() error {
	for {
		msg, ok, err := s.m.NextFlight()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if err := s.sendMessage(msg); err != nil {
			return tlserr.New(tlserr.KindTransport, err)
		}
		if msg.Bit == handshake.FlightChangeCipher {
			if err := s.m.ActivateTXCipher(); err != nil {
				return err
			}
			s.txOut = &recordlayer.Outbound{Spec: s.m.TXPair.Active, Version: s.m.Version, ExplicitIV: s.explicitIV()}
		}
		s.m.Commit(msg)
	}
}

func (s *Session) sendMessage(msg *handshake.PendingMessage) error {
	body := msg.Body
	if msg.ContentType == record.TypeHandshake {
		hdr := record.HandshakeHeader{Type: msg.HandshakeType, Length: uint32(len(msg.Body))}
		enc := hdr.Encode()
		body = append(append([]byte(nil), enc[:]...), msg.Body...)
	}
	sealed, err := s.txOut.Seal(msg.ContentType, body)
	if err != nil {
		return fmt.Errorf("sealing %d: %w", msg.ContentType, err)
	}
	return record.WriteRecord(s.conn, msg.ContentType, s.m.Version, sealed)
}

// readOnce reads one chunk of ciphertext from conn and feeds it to the
// reassembler, which dispatches every record it completes to
// handleRecord.
func (s *Session) readOnce() error {
	buf := make([]byte, 4096)
	n, err := s.conn.Read(buf)
	if n > 0 {
		if ferr := s.reasm.Feed(buf[:n], s.handleRecord); ferr != nil {
			return ferr
		}
	}
	if err != nil {
		return fmt.Errorf("reading ciphertext: %w", err)
	}
	return nil
}

// handleRecord opens one reassembled record and routes its plaintext
// by content type (§4.4 step 5).
func (s *Session) handleRecord(hdr record.Header, wireBody []byte) error {
	plaintext, err := s.rxIn.Open(hdr.Type, wireBody)
	if err != nil {
		return tlserr.NewAlert(tlserr.KindVerifyFailure, tlserr.AlertLevelFatal, tlserr.AlertBadRecordMAC, err)
	}

	switch hdr.Type {
	case record.TypeHandshake:
		return s.dispatchHandshakeMessages(plaintext)
	case record.TypeChangeCipherSpec:
		if err := s.m.ActivateRXCipher(plaintext); err != nil {
			return err
		}
		s.rxIn = &recordlayer.Inbound{Spec: s.m.RXPair.Active, Version: s.m.Version, ExplicitIV: s.explicitIV()}
		return nil
	case record.TypeAlert:
		return s.m.HandleAlert(plaintext)
	case record.TypeApplicationData:
		if !s.m.TXReady {
			return tlserr.New(tlserr.KindProtocolViolation, fmt.Errorf("application_data received before handshake completed"))
		}
		s.plainRX = append(s.plainRX, plaintext...)
		return nil
	default:
		s.logger.Debug("ignoring unknown record type", "type", hdr.Type)
		return nil
	}
}

// dispatchHandshakeMessages splits a handshake record's plaintext into
// its one or more concatenated handshake messages and dispatches each
// in turn.
func (s *Session) dispatchHandshakeMessages(plaintext []byte) error {
	for len(plaintext) > 0 {
		if len(plaintext) < record.HandshakeHeaderLen {
			return tlserr.New(tlserr.KindInvalidInput, fmt.Errorf("handshake record fragment too short for a header"))
		}
		hdr, err := record.DecodeHandshakeHeader(plaintext)
		if err != nil {
			return tlserr.New(tlserr.KindInvalidInput, err)
		}
		plaintext = plaintext[record.HandshakeHeaderLen:]
		if uint32(len(plaintext)) < hdr.Length {
			return tlserr.New(tlserr.KindInvalidInput, fmt.Errorf("handshake message body shorter than declared length"))
		}
		body := plaintext[:hdr.Length]
		plaintext = plaintext[hdr.Length:]
		if err := s.m.Dispatch(hdr.Type, body); err != nil {
			return err
		}
	}
	return nil
}

// Write sends p as one or more application_data records. It fails with
// *not connected* if the handshake has not yet completed (I5).
func (s *Session) Write(p []byte) (int, error) {
	if s.closeErr != nil {
		return 0, s.closeErr
	}
	if !s.m.TXReady {
		return 0, s.fail(tlserr.New(tlserr.KindNotConnected, fmt.Errorf("write before handshake completed")))
	}
	total := 0
	for len(p) > 0 {
		chunk := p
		if len(chunk) > record.MaxPlaintext {
			chunk = p[:record.MaxPlaintext]
		}
		sealed, err := s.txOut.Seal(record.TypeApplicationData, chunk)
		if err != nil {
			return total, s.fail(tlserr.New(tlserr.KindAllocation, err))
		}
		if err := record.WriteRecord(s.conn, record.TypeApplicationData, s.m.Version, sealed); err != nil {
			return total, s.fail(tlserr.New(tlserr.KindTransport, err))
		}
		total += len(chunk)
		p = p[len(chunk):]
	}
	return total, nil
}

// Read returns previously buffered application data, pulling more
// ciphertext off the transport as needed.
func (s *Session) Read(p []byte) (int, error) {
	if s.closeErr != nil {
		return 0, s.closeErr
	}
	for len(s.plainRX) == 0 {
		if err := s.readOnce(); err != nil {
			return 0, s.fail(tlserr.New(tlserr.KindTransport, err))
		}
	}
	n := copy(p, s.plainRX)
	s.plainRX = s.plainRX[n:]
	return n, nil
}

// Close tears down the session. It is idempotent: the first error
// passed to fail (or observed here) is the one every later Read/Write
// call returns.
func (s *Session) Close() error {
	if s.closeErr == nil {
		s.closeErr = tlserr.New(tlserr.KindTransport, fmt.Errorf("session closed"))
	}
	if closer, ok := s.conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// Err returns the terminal error the session closed with, or nil if it
// is still open.
func (s *Session) Err() error {
	if s.closeErr == nil {
		return nil
	}
	return s.closeErr
}

// fail records err as the session's terminal error (first one wins)
// and returns it, matching Circuit's single-owner teardown shape.
func (s *Session) fail(err error) error {
	if s.closeErr != nil {
		return s.closeErr
	}
	if te, ok := err.(*tlserr.Error); ok {
		s.closeErr = te
	} else {
		s.closeErr = tlserr.New(tlserr.KindTransport, err)
	}
	return s.closeErr
}
