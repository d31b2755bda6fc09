package fiscal

import (
	"context"

	"github.com/jhoicas/nfse-api/internal/domain/repository"
	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
)

// Signer porto de assinatura XML-DSig enveloped.
type Signer interface {
	Sign(xmlBytes []byte, bundle *infranfse.CertificateBundle, referenceID string) ([]byte, error)
}

// WSClient canal SOAP já configurado com a prefeitura.
type WSClient interface {
	Send(ctx context.Context, payload []byte, operation string) ([]byte, error)
}

// WSClientFactory monta um canal por envio: cada empresa autentica o mTLS
// com o próprio certificado, então o cliente não pode ser compartilhado.
type WSClientFactory func(cfg infranfse.ClientConfig) (WSClient, error)

// CertificadoStore guarda dos arquivos PFX das empresas.
type CertificadoStore interface {
	Save(companyID string, data []byte) (string, error)
	Read(path string) ([]byte, error)
	Delete(path string) error
}

// SecretVault cofre da senha do certificado (cifrada em repouso).
type SecretVault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(encoded string) (string, error)
}

// TxRunner executa fn numa transação; o repositório recebido opera dentro
// dela. Usado na atribuição do numeroRps, que exige ler o máximo e inserir
// na mesma transação.
type TxRunner interface {
	RunNfse(ctx context.Context, fn func(repo repository.NfseRepository) error) error
}

// Config parametriza o módulo fiscal.
type Config struct {
	Ambiente string // infranfse.EnvProducao ou EnvHomologacao
}
