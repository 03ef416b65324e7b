// Package measure exposes the measurement service of §4.H: an
// authenticated, bidirectional-certified RPC surface over get_insns,
// get_num_ports, get_description, run_experiment and gen_code, serialized
// to a single experiment at a time on the pinned core.
package measure

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"net"
	"os"
	"path/filepath"
	"time"
)

// Material names the three PEM files a self-signed CA bootstrap produces
// under --sslpath, matching the server/client file layout (§6 "Persistent
// state").
type Material struct {
	CertFile string
	KeyFile  string
	CAFile   string
}

func materialPaths(sslpath string) Material {
	return Material{
		CertFile: filepath.Join(sslpath, "cert.pem"),
		KeyFile:  filepath.Join(sslpath, "key.pem"),
		CAFile:   filepath.Join(sslpath, "ca_file.pem"),
	}
}

// Bootstrap generates cert.pem/key.pem/ca_file.pem under sslpath, a
// self-signed 10-year certificate, only when sslpath does not exist yet;
// an existing sslpath is used as is, without checking that the three files
// are present (§4.H "bootstrapped on first launch", §6
// "auto-created self-signed if missing"). The certificate doubles as its
// own CA file since this is a closed, mutually-trusted pair rather than a
// chain issued to third parties.
func Bootstrap(sslpath string) (Material, error) {
	m := materialPaths(sslpath)

	if _, err := os.Stat(sslpath); err == nil {
		return m, nil
	}

	if err := os.MkdirAll(sslpath, 0o700); err != nil {
		return Material{}, fmt.Errorf("measure: creating sslpath: %w", err)
	}

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return Material{}, fmt.Errorf("measure: generating key: %w", err)
	}

	serial, err := rand.Int(rand.Reader, new(big.Int).Lsh(big.NewInt(1), 128))
	if err != nil {
		return Material{}, fmt.Errorf("measure: generating serial: %w", err)
	}

	template := &x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: "pite measurement service"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(10, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth, x509.ExtKeyUsageClientAuth},
		IsCA:         true,
		BasicConstraintsValid: true,
		DNSNames:     []string{"localhost"},
		IPAddresses:  []net.IP{net.IPv4(127, 0, 0, 1), net.IPv6loopback},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	if err != nil {
		return Material{}, fmt.Errorf("measure: creating certificate: %w", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})

	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return Material{}, fmt.Errorf("measure: marshaling key: %w", err)
	}
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes})

	if err := os.WriteFile(m.CertFile, certPEM, 0o600); err != nil {
		return Material{}, fmt.Errorf("measure: writing cert: %w", err)
	}
	if err := os.WriteFile(m.KeyFile, keyPEM, 0o600); err != nil {
		return Material{}, fmt.Errorf("measure: writing key: %w", err)
	}
	if err := os.WriteFile(m.CAFile, certPEM, 0o600); err != nil {
		return Material{}, fmt.Errorf("measure: writing ca file: %w", err)
	}

	return m, nil
}

// ServerTLSConfig builds a mutual-TLS config that requires and verifies a
// client certificate signed by the same self-signed CA (§4.H
// "Authentication is mutual-TLS with a self-signed CA").
func ServerTLSConfig(m Material) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(m.CertFile, m.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("measure: loading server keypair: %w", err)
	}
	pool, err := caPool(m.CAFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		ClientCAs:    pool,
		ClientAuth:   tls.RequireAndVerifyClientCert,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// ClientTLSConfig builds the matching client-side config: it presents the
// same certificate (since cert == CA here) and trusts only the server
// that was signed by it.
func ClientTLSConfig(m Material) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(m.CertFile, m.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("measure: loading client keypair: %w", err)
	}
	pool, err := caPool(m.CAFile)
	if err != nil {
		return nil, err
	}
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

func caPool(caFile string) (*x509.CertPool, error) {
	pem, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("measure: reading ca file: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(pem) {
		return nil, fmt.Errorf("measure: ca file %s contains no usable certificate", caFile)
	}
	return pool, nil
}
