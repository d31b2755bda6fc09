package fiscal

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"fmt"
	"math/big"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-api/internal/infrastructure/nfse/signer"
)

// ---- repositório de NFS-e em memória

type fakeNfseRepo struct {
	notas map[string]*entity.Nfse
	// duplicadosRestantes força ErrDuplicate nas próximas N criações,
	// simulando a corrida no numeroRps.
	duplicadosRestantes int
}

func newFakeNfseRepo() *fakeNfseRepo {
	return &fakeNfseRepo{notas: map[string]*entity.Nfse{}}
}

func (r *fakeNfseRepo) Create(_ context.Context, n *entity.Nfse) error {
	if r.duplicadosRestantes > 0 {
		r.duplicadosRestantes--
		return domain.ErrDuplicate
	}
	for _, outro := range r.notas {
		if outro.CompanyID == n.CompanyID && outro.NumeroRps == n.NumeroRps {
			return domain.ErrDuplicate
		}
	}
	cp := *n
	r.notas[n.ID] = &cp
	return nil
}

func (r *fakeNfseRepo) Update(_ context.Context, n *entity.Nfse) error {
	if _, ok := r.notas[n.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *n
	r.notas[n.ID] = &cp
	return nil
}

func (r *fakeNfseRepo) Delete(_ context.Context, companyID, id string) error {
	n, ok := r.notas[id]
	if !ok || n.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(r.notas, id)
	return nil
}

func (r *fakeNfseRepo) GetByID(_ context.Context, companyID, id string) (*entity.Nfse, error) {
	n, ok := r.notas[id]
	if !ok || n.CompanyID != companyID {
		return nil, nil
	}
	cp := *n
	return &cp, nil
}

func (r *fakeNfseRepo) List(_ context.Context, companyID string, limit, offset int) ([]*entity.Nfse, error) {
	var out []*entity.Nfse
	for _, n := range r.notas {
		if n.CompanyID == companyID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (r *fakeNfseRepo) MaxNumeroRps(_ context.Context, companyID string) (int64, error) {
	var max int64
	for _, n := range r.notas {
		if n.CompanyID != companyID {
			continue
		}
		v, err := strconv.ParseInt(n.NumeroRps, 10, 64)
		if err == nil && v > max {
			max = v
		}
	}
	return max, nil
}

// fakeTxRunner executa fn direto sobre o repositório em memória.
type fakeTxRunner struct{ repo repository.NfseRepository }

func (t *fakeTxRunner) RunNfse(ctx context.Context, fn func(repo repository.NfseRepository) error) error {
	return fn(t.repo)
}

// ---- repositório de empresas em memória

type fakeCompanyRepo struct {
	companies map[string]*entity.Company
}

func newFakeCompanyRepo(companies ...*entity.Company) *fakeCompanyRepo {
	r := &fakeCompanyRepo{companies: map[string]*entity.Company{}}
	for _, c := range companies {
		cp := *c
		r.companies[c.ID] = &cp
	}
	return r
}

func (r *fakeCompanyRepo) GetByID(_ context.Context, id string) (*entity.Company, error) {
	c, ok := r.companies[id]
	if !ok {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (r *fakeCompanyRepo) UpdateFiscalData(_ context.Context, c *entity.Company) error {
	if _, ok := r.companies[c.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := *c
	r.companies[c.ID] = &cp
	return nil
}

func (r *fakeCompanyRepo) UpdateCertificate(_ context.Context, c *entity.Company) error {
	return r.UpdateFiscalData(nil, c)
}

// ---- storage de certificados em memória

type fakeCertStore struct {
	arquivos map[string][]byte
	seq      int
}

func newFakeCertStore() *fakeCertStore {
	return &fakeCertStore{arquivos: map[string][]byte{}}
}

func (s *fakeCertStore) Save(companyID string, data []byte) (string, error) {
	s.seq++
	path := fmt.Sprintf("/certs/cert_%s_%d.pfx", companyID, s.seq)
	s.arquivos[path] = data
	return path, nil
}

func (s *fakeCertStore) Read(path string) ([]byte, error) {
	data, ok := s.arquivos[path]
	if !ok {
		return nil, fmt.Errorf("arquivo não encontrado: %s", path)
	}
	return data, nil
}

func (s *fakeCertStore) Delete(path string) error {
	delete(s.arquivos, path)
	return nil
}

// ---- canal SOAP falso

type fakeWSClient struct {
	resposta  []byte
	err       error
	enviados  [][]byte
	operacoes []string
}

func (c *fakeWSClient) Send(_ context.Context, payload []byte, operation string) ([]byte, error) {
	c.enviados = append(c.enviados, payload)
	c.operacoes = append(c.operacoes, operation)
	if c.err != nil {
		return nil, c.err
	}
	return c.resposta, nil
}

func fakeFactory(client *fakeWSClient) WSClientFactory {
	return func(cfg infranfse.ClientConfig) (WSClient, error) {
		return client, nil
	}
}

// ---- fixtures

func buildTestPFX(t *testing.T, password string) []byte {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "EMPRESA TESTE LTDA:12345678000195"},
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
	return pfx
}

type ambiente struct {
	svc         *NfseService
	certSvc     *CertificadoService
	nfseRepo    *fakeNfseRepo
	companyRepo *fakeCompanyRepo
	store       *fakeCertStore
	ws          *fakeWSClient
	vault       *infranfse.Vault
}

// novoAmbiente monta o serviço com empresa de dados fiscais completos.
// comCertificado instala um PFX de teste com senha "senha-cert".
func novoAmbiente(t *testing.T, comCertificado bool) *ambiente {
	t.Helper()
	vault := infranfse.NewVault("segredo-de-teste")
	store := newFakeCertStore()

	company := &entity.Company{
		ID:                 "empresa-1",
		Name:               "Empresa Teste",
		CNPJ:               "12.345.678/0001-95",
		InscricaoMunicipal: "123456",
		CodigoMunicipio:    "5208707",
		RegimeTributacao:   1,
	}
	if comCertificado {
		pfx := buildTestPFX(t, "senha-cert")
		path, err := store.Save(company.ID, pfx)
		require.NoError(t, err)
		senha, err := vault.Encrypt("senha-cert")
		require.NoError(t, err)
		company.CertificadoPfx = path
		company.CertificadoSenha = senha
	}

	nfseRepo := newFakeNfseRepo()
	companyRepo := newFakeCompanyRepo(company)
	ws := &fakeWSClient{}

	svc := NewNfseService(
		nfseRepo,
		companyRepo,
		&fakeTxRunner{repo: nfseRepo},
		infranfse.NewRpsBuilderService(),
		signer.NewService(),
		vault,
		store,
		fakeFactory(ws),
		Config{Ambiente: infranfse.EnvHomologacao},
	)
	certSvc := NewCertificadoService(companyRepo, vault, store)

	return &ambiente{
		svc:         svc,
		certSvc:     certSvc,
		nfseRepo:    nfseRepo,
		companyRepo: companyRepo,
		store:       store,
		ws:          ws,
		vault:       vault,
	}
}
