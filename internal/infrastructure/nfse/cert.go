// Carga do certificado digital A1 a partir do contêiner PKCS#12 (.pfx/.p12).

package nfse

import (
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// Erros de carga do contêiner PKCS#12.
var (
	ErrContainerInvalido = errors.New("nfse: contêiner PKCS#12 inválido")
	ErrSenhaIncorreta    = errors.New("nfse: senha do certificado incorreta")
	ErrSemChaveOuCert    = errors.New("nfse: certificado ou chave privada ausente no arquivo PFX")
)

// CertificateBundle reúne o certificado folha e a chave privada extraídos do
// PFX. Nunca é cacheado entre requisições: a senha pode rotacionar e manter
// chave decifrada em memória de vida longa é indesejável. Chamar Close ao
// final da operação de assinatura.
type CertificateBundle struct {
	Certificate *x509.Certificate
	PrivateKey  *rsa.PrivateKey
	Raw         []byte // DER do certificado (para o KeyInfo da assinatura)

	SubjectCN string
	IssuerCN  string
	NotBefore time.Time
	NotAfter  time.Time
}

// Validation é o resultado da validação temporal do certificado.
type Validation struct {
	IsValid         bool
	ExpiryDate      time.Time
	DaysUntilExpiry int
	Message         string
}

// LoadBundle decodifica o PKCS#12 e extrai certificado folha + chave RSA.
// Senha errada retorna ErrSenhaIncorreta; contêiner sem bag de certificado
// ou de chave retorna ErrSemChaveOuCert.
func LoadBundle(pfxBytes []byte, password string) (*CertificateBundle, error) {
	if len(pfxBytes) == 0 {
		return nil, ErrContainerInvalido
	}
	priv, cert, err := pkcs12.Decode(pfxBytes, password)
	if err != nil {
		if strings.Contains(err.Error(), "incorrect password") ||
			strings.Contains(err.Error(), "decryption password") {
			return nil, fmt.Errorf("%w: %v", ErrSenhaIncorreta, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrContainerInvalido, err)
	}
	if cert == nil {
		return nil, ErrSemChaveOuCert
	}
	rsaKey, ok := priv.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: chave privada não é RSA", ErrSemChaveOuCert)
	}

	raw := make([]byte, len(cert.Raw))
	copy(raw, cert.Raw)

	return &CertificateBundle{
		Certificate: cert,
		PrivateKey:  rsaKey,
		Raw:         raw,
		SubjectCN:   cert.Subject.CommonName,
		IssuerCN:    cert.Issuer.CommonName,
		NotBefore:   cert.NotBefore,
		NotAfter:    cert.NotAfter,
	}, nil
}

// Validate verifica a janela de validade do certificado em relação a now.
// DaysUntilExpiry é em dias inteiros e fica negativo após o vencimento.
func (b *CertificateBundle) Validate(now time.Time) Validation {
	isValid := !now.Before(b.NotBefore) && !now.After(b.NotAfter)
	days := int(math.Floor(b.NotAfter.Sub(now).Hours() / 24))

	var msg string
	switch {
	case !isValid:
		msg = "Certificado expirado ou ainda não válido"
	case days <= 30:
		msg = fmt.Sprintf("Certificado expira em %d dias", days)
	default:
		msg = "Certificado válido"
	}

	return Validation{
		IsValid:         isValid,
		ExpiryDate:      b.NotAfter,
		DaysUntilExpiry: days,
		Message:         msg,
	}
}

// TLS converte o bundle em tls.Certificate para o canal mTLS com a
// prefeitura (o mesmo certificado assina o XML e autentica o transporte).
func (b *CertificateBundle) TLS() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{b.Raw},
		PrivateKey:  b.PrivateKey,
		Leaf:        b.Certificate,
	}
}

// Close zera o material sensível que o runtime permite zerar.
func (b *CertificateBundle) Close() {
	for i := range b.Raw {
		b.Raw[i] = 0
	}
	b.Raw = nil
	b.PrivateKey = nil
	b.Certificate = nil
}
