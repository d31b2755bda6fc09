package nfse

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// buildTestPFX fabrica um contêiner PKCS#12 de teste no perfil legado, o
// mesmo que os certificados A1 reais usam.
func buildTestPFX(t *testing.T, password string) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject:      pkix.Name{CommonName: "EMPRESA TESTE LTDA:12345678000195"},
		Issuer:       pkix.Name{CommonName: "AC TESTE"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().AddDate(1, 0, 0),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)

	pfx, err := gopkcs12.LegacyRC2.Encode(key, cert, nil, password)
	require.NoError(t, err)
	return pfx, key
}

func TestLoadBundleRoundTrip(t *testing.T) {
	pfx, key := buildTestPFX(t, "senha-secreta")

	b, err := LoadBundle(pfx, "senha-secreta")
	require.NoError(t, err)
	defer b.Close()

	assert.Equal(t, "EMPRESA TESTE LTDA:12345678000195", b.SubjectCN)
	assert.NotEmpty(t, b.Raw)
	assert.Equal(t, key.PublicKey.N, b.PrivateKey.PublicKey.N)
	assert.True(t, b.NotAfter.After(time.Now()))
}

func TestLoadBundleSenhaIncorreta(t *testing.T) {
	pfx, _ := buildTestPFX(t, "senha-certa")

	_, err := LoadBundle(pfx, "senha-errada")
	assert.ErrorIs(t, err, ErrSenhaIncorreta)
}

func TestLoadBundleContainerInvalido(t *testing.T) {
	_, err := LoadBundle([]byte("isto nao é um PFX"), "senha")
	assert.ErrorIs(t, err, ErrContainerInvalido)
}

func TestLoadBundleVazio(t *testing.T) {
	_, err := LoadBundle(nil, "senha")
	assert.ErrorIs(t, err, ErrContainerInvalido)
}

func buildTestBundle(t *testing.T, notBefore, notAfter time.Time) *CertificateBundle {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return &CertificateBundle{
		PrivateKey: key,
		Raw:        []byte{0x30, 0x82},
		SubjectCN:  "EMPRESA TESTE LTDA:00000000000191",
		IssuerCN:   "AC TESTE",
		NotBefore:  notBefore,
		NotAfter:   notAfter,
	}
}

func TestValidateCertificadoValido(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := buildTestBundle(t, now.AddDate(-1, 0, 0), now.AddDate(1, 0, 0))

	v := b.Validate(now)
	assert.True(t, v.IsValid)
	assert.Equal(t, "Certificado válido", v.Message)
	assert.Equal(t, 365, v.DaysUntilExpiry)
}

func TestValidateCertificadoPertoDoVencimento(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := buildTestBundle(t, now.AddDate(-1, 0, 0), now.Add(10*24*time.Hour))

	v := b.Validate(now)
	assert.True(t, v.IsValid)
	assert.Equal(t, 10, v.DaysUntilExpiry)
	assert.Contains(t, v.Message, "expira em 10 dias")
}

func TestValidateCertificadoExpirado(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := buildTestBundle(t, now.AddDate(-2, 0, 0), now.Add(-36*time.Hour))

	v := b.Validate(now)
	assert.False(t, v.IsValid)
	assert.Equal(t, "Certificado expirado ou ainda não válido", v.Message)
	assert.Equal(t, -2, v.DaysUntilExpiry, "dias negativos após o vencimento")
}

func TestValidateCertificadoAindaNaoValido(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := buildTestBundle(t, now.Add(24*time.Hour), now.AddDate(1, 0, 0))

	v := b.Validate(now)
	assert.False(t, v.IsValid)
}

func TestBundleCloseZeraMaterial(t *testing.T) {
	b := buildTestBundle(t, time.Now(), time.Now().AddDate(1, 0, 0))
	b.Close()
	assert.Nil(t, b.Raw)
	assert.Nil(t, b.PrivateKey)
	assert.Nil(t, b.Certificate)
}
