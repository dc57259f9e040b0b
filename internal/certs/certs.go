// Package certs implements the Certificate Loader (C8): reads the three
// named credential files (root CA, client certificate, client key) the
// attribute store points at, and registers them with the TLS layer under
// a configured tag. There is no ecosystem library for "load these PEM
// files into a tls.Config" beyond crypto/tls and crypto/x509 themselves —
// this package is necessarily standard-library, see DESIGN.md.
package certs

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Attribute names the three credential file paths are stored under, per
// spec.md §4.8.
const (
	AttrRootCA     = "root_ca"
	AttrClientCert = "client_cert"
	AttrClientKey  = "client_key"
)

// AttributeStore resolves an attribute name to its configured value (here,
// a filesystem path).
type AttributeStore interface {
	GetString(key string, def string) string
}

// Loader reads and holds the gateway's TLS client identity and trust root.
// The buffers it reads must outlive the TLS session that references
// them — Go's tls.Config already holds its own copies, so there is no
// separate buffer-pool lifetime to manage here, unlike the firmware's
// manual allocate/stat/read/free sequence.
type Loader struct {
	tag string
	log zerolog.Logger

	loaded bool
	pool   *x509.CertPool
	cert   tls.Certificate
}

// NewLoader constructs a Loader tagged with tag (used only in log lines —
// the Go TLS stack has no separate credential-registration namespace to
// tag against).
func NewLoader(tag string, log zerolog.Logger) *Loader {
	return &Loader{tag: tag, log: log.With().Str("component", "certs").Str("tag", tag).Logger()}
}

// Load reads root_ca/client_cert/client_key from store and parses them.
// Idempotent: calling Load while already loaded is a no-op success.
func (l *Loader) Load(store AttributeStore) error {
	if l.loaded {
		return nil
	}

	rootCAPath := store.GetString(AttrRootCA, "")
	certPath := store.GetString(AttrClientCert, "")
	keyPath := store.GetString(AttrClientKey, "")

	rootPEM, err := readFile(rootCAPath)
	if err != nil {
		return fmt.Errorf("certs: root CA: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(rootPEM) {
		return fmt.Errorf("certs: root CA %q: no certificates found", rootCAPath)
	}

	certPEM, err := readFile(certPath)
	if err != nil {
		return fmt.Errorf("certs: client cert: %w", err)
	}
	keyPEM, err := readFile(keyPath)
	if err != nil {
		return fmt.Errorf("certs: client key: %w", err)
	}
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return fmt.Errorf("certs: client key pair: %w", err)
	}

	l.pool = pool
	l.cert = cert
	l.loaded = true
	l.log.Info().Msg("certificates loaded")
	return nil
}

// Unload deletes the three in-memory registrations. Idempotent.
func (l *Loader) Unload() error {
	l.pool = nil
	l.cert = tls.Certificate{}
	l.loaded = false
	l.log.Info().Msg("certificates unloaded")
	return nil
}

// Reload is unload-then-load.
func (l *Loader) Reload(store AttributeStore) error {
	if err := l.Unload(); err != nil {
		return err
	}
	return l.Load(store)
}

// Loaded reports whether credentials are currently registered.
func (l *Loader) Loaded() bool {
	return l.loaded
}

// TLSConfig returns a tls.Config presenting the loaded client certificate
// and trusting the loaded root CA. Returns nil if nothing is loaded.
func (l *Loader) TLSConfig() *tls.Config {
	if !l.loaded {
		return nil
	}
	return &tls.Config{
		MinVersion:   tls.VersionTLS12,
		RootCAs:      l.pool,
		Certificates: []tls.Certificate{l.cert},
	}
}

func readFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("no path configured")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%s: empty file", path)
	}
	return os.ReadFile(path)
}
