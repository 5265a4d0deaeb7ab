package handshake

import (
	"crypto"
	"crypto/x509"
	"fmt"
	"time"
)

// Verifier is the X.509 pull-callback contract the handshake state
// machine drives Certificate through: it is handed the chain exactly
// as received (leaf first) and must return the leaf's subject name
// and public key, or an error if the chain does not validate.
type Verifier interface {
	Verify(chain [][]byte, serverName string, now time.Time) (subjectName string, pub crypto.PublicKey, err error)
}

// StdVerifier validates a chain against crypto/x509, using the system
// root pool when one is available and falling back to a bare leaf
// parse checked only with x509's VerifyHostname (DNS SAN names; the
// CommonName is not consulted) when it is not — the usual case for a
// firmware image with no configured trust store.
type StdVerifier struct {
	// Roots overrides the system pool when non-nil, letting a caller
	// pin a specific CA for constrained deployments.
	Roots *x509.CertPool
}

// Verify implements Verifier.
func (v *StdVerifier) Verify(chain [][]byte, serverName string, now time.Time) (string, crypto.PublicKey, error) {
	if len(chain) == 0 {
		return "", nil, fmt.Errorf("certificate: empty chain")
	}
	leaf, err := x509.ParseCertificate(chain[0])
	if err != nil {
		return "", nil, fmt.Errorf("certificate: parsing leaf: %w", err)
	}

	roots := v.Roots
	if roots == nil {
		roots, err = x509.SystemCertPool()
		if err != nil || roots == nil {
			roots = nil
		}
	}

	if roots != nil {
		intermediates := x509.NewCertPool()
		for _, der := range chain[1:] {
			if cert, err := x509.ParseCertificate(der); err == nil {
				intermediates.AddCert(cert)
			}
		}
		opts := x509.VerifyOptions{
			DNSName:       serverName,
			Roots:         roots,
			Intermediates: intermediates,
			CurrentTime:   now,
		}
		if _, err := leaf.Verify(opts); err != nil {
			return "", nil, fmt.Errorf("certificate: chain validation: %w", err)
		}
		return serverName, leaf.PublicKey, nil
	}

	// No trust store available: the chain itself is not validated, only
	// the leaf's names are checked against serverName, the same shape as
	// the teacher trusting CERTS cell contents and verifying identity out
	// of band rather than through a CA hierarchy.
	if err := leaf.VerifyHostname(serverName); err != nil {
		return leaf.Subject.CommonName, leaf.PublicKey, fmt.Errorf("certificate: %w", err)
	}
	return serverName, leaf.PublicKey, nil
}
