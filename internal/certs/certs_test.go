package certs

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// genSelfSigned writes a self-signed cert/key pair to dir and returns the
// cert and key file paths. Callers reuse the cert file as the "root CA",
// since the loader only cares that AppendCertsFromPEM succeeds.
func genSelfSigned(t *testing.T, dir string) (certPath, keyPath string) {
	t.Helper()
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test-gateway"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &priv.PublicKey, priv)
	require.NoError(t, err)

	certPath = filepath.Join(dir, "cert.pem")
	keyPath = filepath.Join(dir, "key.pem")

	certOut, err := os.Create(certPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyDER, err := x509.MarshalECPrivateKey(priv)
	require.NoError(t, err)
	keyOut, err := os.Create(keyPath)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	require.NoError(t, keyOut.Close())

	return certPath, keyPath
}

type fakeStore map[string]string

func (s fakeStore) GetString(key, def string) string {
	if v, ok := s[key]; ok {
		return v
	}
	return def
}

func TestLoader_loadThenUnloadThenReload(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := genSelfSigned(t, dir)
	store := fakeStore{AttrRootCA: certPath, AttrClientCert: certPath, AttrClientKey: keyPath}

	l := NewLoader("gateway", zerolog.Nop())
	require.False(t, l.Loaded())

	require.NoError(t, l.Load(store))
	require.True(t, l.Loaded())
	require.NotNil(t, l.TLSConfig())

	require.NoError(t, l.Unload())
	require.False(t, l.Loaded())
	require.Nil(t, l.TLSConfig())

	require.NoError(t, l.Reload(store))
	require.True(t, l.Loaded())
}

func TestLoader_loadIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	certPath, keyPath := genSelfSigned(t, dir)
	store := fakeStore{AttrRootCA: certPath, AttrClientCert: certPath, AttrClientKey: keyPath}

	l := NewLoader("gateway", zerolog.Nop())
	require.NoError(t, l.Load(store))
	require.NoError(t, l.Load(store), "loading again while already loaded is a no-op success")
}

func TestLoader_missingFileFails(t *testing.T) {
	store := fakeStore{AttrRootCA: "/nonexistent/ca.pem", AttrClientCert: "/nonexistent/c.pem", AttrClientKey: "/nonexistent/k.pem"}
	l := NewLoader("gateway", zerolog.Nop())
	require.Error(t, l.Load(store))
	require.False(t, l.Loaded())
}
