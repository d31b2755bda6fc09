package fiscal

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/domain"
	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
)

func TestUploadCertificado(t *testing.T) {
	amb := novoAmbiente(t, false)
	ctx := context.Background()
	pfx := buildTestPFX(t, "senha-cert")

	status, err := amb.certSvc.Upload(ctx, "empresa-1", "certificado.pfx", pfx, "senha-cert")
	require.NoError(t, err)

	assert.True(t, status.TemCertificado)
	assert.True(t, status.Valido)
	assert.Equal(t, "EMPRESA TESTE LTDA:12345678000195", status.Titular)
	require.NotNil(t, status.Validade)

	company, err := amb.companyRepo.GetByID(ctx, "empresa-1")
	require.NoError(t, err)
	assert.True(t, company.TemCertificado())
	assert.NotEqual(t, "senha-cert", company.CertificadoSenha, "senha fica cifrada em repouso")

	senha, err := amb.vault.Decrypt(company.CertificadoSenha)
	require.NoError(t, err)
	assert.Equal(t, "senha-cert", senha)
}

func TestUploadExtensaoInvalida(t *testing.T) {
	amb := novoAmbiente(t, false)

	_, err := amb.certSvc.Upload(context.Background(), "empresa-1", "certificado.pem", []byte{1}, "senha")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestUploadSenhaErrada(t *testing.T) {
	amb := novoAmbiente(t, false)
	pfx := buildTestPFX(t, "senha-certa")

	_, err := amb.certSvc.Upload(context.Background(), "empresa-1", "certificado.pfx", pfx, "senha-errada")
	assert.ErrorIs(t, err, infranfse.ErrSenhaIncorreta)
	assert.Empty(t, amb.store.arquivos, "certificado inválido não chega ao disco")
}

func TestUploadSubstituiAnterior(t *testing.T) {
	amb := novoAmbiente(t, true)
	ctx := context.Background()

	company, err := amb.companyRepo.GetByID(ctx, "empresa-1")
	require.NoError(t, err)
	anterior := company.CertificadoPfx

	pfx := buildTestPFX(t, "outra-senha")
	_, err = amb.certSvc.Upload(ctx, "empresa-1", "novo.p12", pfx, "outra-senha")
	require.NoError(t, err)

	_, existe := amb.store.arquivos[anterior]
	assert.False(t, existe, "arquivo anterior removido")

	company, err = amb.companyRepo.GetByID(ctx, "empresa-1")
	require.NoError(t, err)
	assert.NotEqual(t, anterior, company.CertificadoPfx)
}

func TestStatusSemCertificado(t *testing.T) {
	amb := novoAmbiente(t, false)

	status, err := amb.certSvc.Status(context.Background(), "empresa-1")
	require.NoError(t, err)

	assert.False(t, status.TemCertificado)
	assert.False(t, status.Valido)
}

func TestStatusComCertificado(t *testing.T) {
	amb := novoAmbiente(t, true)

	status, err := amb.certSvc.Status(context.Background(), "empresa-1")
	require.NoError(t, err)

	assert.True(t, status.TemCertificado)
	assert.True(t, status.Valido)
	assert.Greater(t, status.DiasParaVencer, 300)
}

func TestStatusArquivoSumiu(t *testing.T) {
	amb := novoAmbiente(t, true)
	ctx := context.Background()

	company, err := amb.companyRepo.GetByID(ctx, "empresa-1")
	require.NoError(t, err)
	require.NoError(t, amb.store.Delete(company.CertificadoPfx))

	status, err := amb.certSvc.Status(ctx, "empresa-1")
	require.NoError(t, err)

	assert.True(t, status.TemCertificado)
	assert.False(t, status.Valido)
	assert.NotEmpty(t, status.Mensagem)
}

func TestRemoveCertificado(t *testing.T) {
	amb := novoAmbiente(t, true)
	ctx := context.Background()

	require.NoError(t, amb.certSvc.Remove(ctx, "empresa-1"))

	company, err := amb.companyRepo.GetByID(ctx, "empresa-1")
	require.NoError(t, err)
	assert.False(t, company.TemCertificado())
	assert.Empty(t, amb.store.arquivos)

	assert.ErrorIs(t, amb.certSvc.Remove(ctx, "empresa-1"), domain.ErrCertificadoAusente)
}

func TestAtualizarDadosFiscais(t *testing.T) {
	amb := novoAmbiente(t, false)
	ctx := context.Background()

	im := "999888"
	regime := 6
	optante := false
	resp, err := amb.certSvc.AtualizarDadosFiscais(ctx, "empresa-1", dto.DadosFiscaisRequest{
		InscricaoMunicipal:     &im,
		RegimeTributacao:       &regime,
		OptanteSimplesNacional: &optante,
	})
	require.NoError(t, err)

	assert.Equal(t, "999888", resp.InscricaoMunicipal)
	assert.Equal(t, 6, resp.RegimeTributacao)
	assert.False(t, resp.OptanteSimplesNacional)
	assert.True(t, resp.Completos)
}

func TestAtualizarDadosFiscaisRegimeInvalido(t *testing.T) {
	amb := novoAmbiente(t, false)

	regime := 99
	_, err := amb.certSvc.AtualizarDadosFiscais(context.Background(), "empresa-1", dto.DadosFiscaisRequest{
		RegimeTributacao: &regime,
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDadosFiscaisEmpresaInexistente(t *testing.T) {
	amb := novoAmbiente(t, false)

	_, err := amb.certSvc.DadosFiscais(context.Background(), "empresa-x")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
