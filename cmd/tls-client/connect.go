package main

import (
	"crypto"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cvsouth/tls-go/handshake"
	"github.com/cvsouth/tls-go/session"
)

func init() {
	connectCmd.Flags().String("addr", "", "host:port of the server to connect to")
	connectCmd.Flags().String("server-name", "", "server name for SNI and certificate verification (defaults to the host in --addr)")
	connectCmd.Flags().String("ca-file", "", "PEM file of CA certificates to verify the server against (defaults to the system pool)")
	connectCmd.Flags().String("client-cert-file", "", "PEM file with a client certificate to present if the server requests one")
	connectCmd.Flags().String("client-key-file", "", "PEM file with the client certificate's private key")
	if err := viper.BindPFlags(connectCmd.Flags()); err != nil {
		panic(err)
	}
}

var connectCmd = &cobra.Command{
	Use:   "connect",
	Short: "handshake with a server and pipe stdin/stdout through the connection",
	RunE:  runConnect,
}

func runConnect(cmd *cobra.Command, args []string) error {
	addr := viper.GetString("addr")
	if addr == "" {
		return fmt.Errorf("--addr is required")
	}
	serverName := viper.GetString("server-name")
	if serverName == "" {
		host, _, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("deriving server name from --addr: %w", err)
		}
		serverName = host
	}

	verifier, err := buildVerifier(viper.GetString("ca-file"))
	if err != nil {
		return err
	}
	clientCert, clientKey, err := loadClientIdentity(viper.GetString("client-cert-file"), viper.GetString("client-key-file"))
	if err != nil {
		return err
	}

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", addr, err)
	}
	defer conn.Close()

	logger := slog.Default()
	sess, err := session.New(conn, session.Config{
		ServerName: serverName,
		Verifier:   verifier,
		ClientCert: clientCert,
		ClientKey:  clientKey,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("constructing session: %w", err)
	}

	logger.Info("starting handshake", "addr", addr, "server_name", serverName)
	if err := sess.Handshake(); err != nil {
		return fmt.Errorf("handshake: %w", err)
	}
	logger.Info("handshake complete")

	done := make(chan error, 2)
	go func() {
		_, err := io.Copy(sess, os.Stdin)
		done <- err
	}()
	go func() {
		_, err := io.Copy(os.Stdout, sess)
		done <- err
	}()
	err = <-done
	_ = sess.Close()
	if err != nil && err != io.EOF {
		return fmt.Errorf("connection: %w", err)
	}
	return nil
}

func buildVerifier(caFile string) (handshake.Verifier, error) {
	if caFile == "" {
		return &handshake.StdVerifier{}, nil
	}
	pemBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("reading --ca-file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pemBytes) {
		return nil, fmt.Errorf("--ca-file contained no usable certificates")
	}
	return &handshake.StdVerifier{Roots: pool}, nil
}

func loadClientIdentity(certFile, keyFile string) (certDER []byte, key crypto.Signer, err error) {
	if certFile == "" && keyFile == "" {
		return nil, nil, nil
	}
	if certFile == "" || keyFile == "" {
		return nil, nil, fmt.Errorf("--client-cert-file and --client-key-file must both be set or both omitted")
	}

	certPEM, err := os.ReadFile(certFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading --client-cert-file: %w", err)
	}
	block, _ := pem.Decode(certPEM)
	if block == nil || !strings.Contains(block.Type, "CERTIFICATE") {
		return nil, nil, fmt.Errorf("--client-cert-file does not contain a PEM certificate")
	}
	certDER = block.Bytes

	keyPEM, err := os.ReadFile(keyFile)
	if err != nil {
		return nil, nil, fmt.Errorf("reading --client-key-file: %w", err)
	}
	key, err = parsePrivateKey(keyPEM)
	if err != nil {
		return nil, nil, err
	}
	return certDER, key, nil
}

// parsePrivateKey tries each private key encoding crypto/x509 supports,
// in the order a PEM file produced by openssl is most likely to use.
func parsePrivateKey(keyPEM []byte) (crypto.Signer, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return nil, fmt.Errorf("client key file contains no PEM block")
	}
	if key, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		signer, ok := key.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("client key is not a signing key")
		}
		return signer, nil
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	if key, err := x509.ParseECPrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	return nil, fmt.Errorf("unrecognised private key encoding in %s", block.Type)
}
