package handshake

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"
)

// certWithDivergentCN builds a self-signed cert whose SAN list carries
// name but whose CommonName carries something else entirely, the
// ordinary shape of a modern certificate.
func certWithDivergentCN(t *testing.T, name string) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("rsa.GenerateKey: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "unrelated-cn"},
		DNSNames:              []string{name},
		NotBefore:             time.Unix(0, 0),
		NotAfter:              time.Unix(0, 0).Add(100 * 365 * 24 * time.Hour),
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		IsCA:                  true,
		BasicConstraintsValid: true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("x509.CreateCertificate: %v", err)
	}
	return der
}

func TestStdVerifierAcceptsSANMatchDespiteDivergentCommonName(t *testing.T) {
	const name = "example.com"
	der := certWithDivergentCN(t, name)
	leaf, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsing generated cert: %v", err)
	}
	roots := x509.NewCertPool()
	roots.AddCert(leaf)

	v := &StdVerifier{Roots: roots}
	subject, pub, err := v.Verify([][]byte{der}, name, time.Unix(0, 0).Add(time.Hour))
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if subject != name {
		t.Fatalf("subject = %q, want %q (the verified SAN name, not the unrelated CommonName)", subject, name)
	}
	if pub == nil {
		t.Fatal("expected a non-nil public key")
	}
}
