package tlserr

import (
	"errors"
	"testing"
)

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("bad mac")
	err := New(KindVerifyFailure, cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is did not see through Unwrap")
	}
}

func TestErrorStringIncludesKind(t *testing.T) {
	err := New(KindNotConnected, errors.New("write before handshake"))
	if got := err.Error(); got == "" {
		t.Fatal("Error() returned empty string")
	}
}

func TestNewAlertCarriesLevelAndDescription(t *testing.T) {
	err := NewAlert(KindAccessDenied, AlertLevelFatal, AlertAccessDenied, errors.New("wrong name"))
	if err.Alert == nil || err.Alert.Level != AlertLevelFatal || err.Alert.Description != AlertAccessDenied {
		t.Fatalf("unexpected alert: %+v", err.Alert)
	}
}
