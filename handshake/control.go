package handshake

import (
	"fmt"

	"github.com/cvsouth/tls-go/tlserr"
)

// ActivateRXCipher validates an inbound ChangeCipherSpec payload
// (exactly one byte, value 1 — confirmed against the reference
// tls_new_change_cipher) and, if valid, promotes the pending RX cipher
// spec to active.
func (m *Machine) ActivateRXCipher(payload []byte) error {
	if len(payload) != 1 || payload[0] != ChangeCipherSpecPayload {
		return tlserr.New(tlserr.KindInvalidInput, fmt.Errorf("change_cipher_spec: payload must be a single byte 0x01"))
	}
	if err := m.RXPair.ChangeCipher(); err != nil {
		return tlserr.New(tlserr.KindProtocolViolation, err)
	}
	return nil
}

// ActivateTXCipher promotes the pending TX cipher spec to active. The
// scheduler calls this once its own ChangeCipherSpec record has been
// written successfully.
func (m *Machine) ActivateTXCipher() error {
	if err := m.TXPair.ChangeCipher(); err != nil {
		return tlserr.New(tlserr.KindProtocolViolation, err)
	}
	return nil
}

// HandleAlert classifies an inbound alert: warnings are logged and
// ignored, fatal alerts close the session with *access denied*, and
// any other level closes with *protocol violation* — a stricter
// reading than the reference implementation's level-1/level-2-only
// check, adopted per the resolved open question in the design notes.
func (m *Machine) HandleAlert(payload []byte) error {
	alert, err := DecodeAlert(payload)
	if err != nil {
		return tlserr.New(tlserr.KindInvalidInput, err)
	}
	switch alert.Level {
	case tlserr.AlertLevelWarning:
		m.logger().Warn("received warning alert", "description", alert.Description)
		return nil
	case tlserr.AlertLevelFatal:
		return tlserr.NewAlert(tlserr.KindAccessDenied, alert.Level, alert.Description, fmt.Errorf("peer sent fatal alert %d", alert.Description))
	default:
		return tlserr.NewAlert(tlserr.KindProtocolViolation, alert.Level, alert.Description, fmt.Errorf("peer sent alert with unrecognized level %d", alert.Level))
	}
}
