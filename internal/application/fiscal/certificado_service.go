package fiscal

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
	"github.com/jhoicas/nfse-api/internal/infrastructure/storage"
)

// Tamanho máximo do upload de PFX. Certificados A1 reais têm poucos KB.
const maxTamanhoPfx = 5 << 20

// CertificadoService administra o certificado digital e o perfil fiscal da
// empresa.
type CertificadoService struct {
	companyRepo repository.CompanyRepository
	vault       SecretVault
	storage     CertificadoStore
}

// NewCertificadoService constrói o serviço.
func NewCertificadoService(companyRepo repository.CompanyRepository, vault SecretVault, store CertificadoStore) *CertificadoService {
	return &CertificadoService{companyRepo: companyRepo, vault: vault, storage: store}
}

// Upload valida e instala um novo certificado A1. O contêiner é aberto com
// a senha antes de qualquer gravação: certificado inválido nunca chega ao
// disco. Upload novo substitui o anterior, que é removido.
func (s *CertificadoService) Upload(ctx context.Context, companyID, filename string, data []byte, senha string) (*dto.CertificadoStatusResponse, error) {
	if err := storage.ValidarExtensao(filename); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}
	if senha == "" || len(data) == 0 {
		return nil, domain.ErrInvalidInput
	}
	if len(data) > maxTamanhoPfx {
		return nil, fmt.Errorf("%w: arquivo excede %d bytes", domain.ErrInvalidInput, maxTamanhoPfx)
	}

	company, err := s.fetchCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	bundle, err := infranfse.LoadBundle(data, senha)
	if err != nil {
		return nil, err
	}
	defer bundle.Close()

	validation := bundle.Validate(time.Now())
	if !validation.IsValid {
		return nil, fmt.Errorf("%w: %s", domain.ErrCertificadoInvalido, validation.Message)
	}

	path, err := s.storage.Save(companyID, data)
	if err != nil {
		return nil, err
	}

	senhaCifrada, err := s.vault.Encrypt(senha)
	if err != nil {
		// Sem senha cifrada o arquivo é inútil; desfaz a gravação.
		_ = s.storage.Delete(path)
		return nil, err
	}

	anterior := company.CertificadoPfx
	validade := bundle.NotAfter
	company.CertificadoPfx = path
	company.CertificadoSenha = senhaCifrada
	company.CertificadoValidade = &validade
	if err := s.companyRepo.UpdateCertificate(ctx, company); err != nil {
		_ = s.storage.Delete(path)
		return nil, err
	}
	if anterior != "" && anterior != path {
		if err := s.storage.Delete(anterior); err != nil {
			log.Warn().Str("company_id", companyID).Str("path", anterior).Err(err).
				Msg("certificado anterior não pôde ser removido")
		}
	}

	log.Info().Str("company_id", companyID).Str("titular", bundle.SubjectCN).
		Time("validade", bundle.NotAfter).Msg("certificado digital instalado")

	return &dto.CertificadoStatusResponse{
		TemCertificado: true,
		Valido:         true,
		Titular:        bundle.SubjectCN,
		Emissor:        bundle.IssuerCN,
		Validade:       &validade,
		DiasParaVencer: validation.DaysUntilExpiry,
		Mensagem:       validation.Message,
	}, nil
}

// Status informa a situação do certificado instalado, reabrindo o
// contêiner para validar a janela no momento da consulta.
func (s *CertificadoService) Status(ctx context.Context, companyID string) (*dto.CertificadoStatusResponse, error) {
	company, err := s.fetchCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if !company.TemCertificado() {
		return &dto.CertificadoStatusResponse{
			TemCertificado: false,
			Mensagem:       "Nenhum certificado digital configurado",
		}, nil
	}

	senha, err := s.vault.Decrypt(company.CertificadoSenha)
	if err != nil {
		return s.statusIndisponivel(company, "Senha do certificado não pôde ser decifrada"), nil
	}
	data, err := s.storage.Read(company.CertificadoPfx)
	if err != nil {
		return s.statusIndisponivel(company, "Arquivo do certificado não encontrado"), nil
	}
	bundle, err := infranfse.LoadBundle(data, senha)
	if err != nil {
		return s.statusIndisponivel(company, "Certificado não pôde ser aberto"), nil
	}
	defer bundle.Close()

	validation := bundle.Validate(time.Now())
	validade := bundle.NotAfter
	return &dto.CertificadoStatusResponse{
		TemCertificado: true,
		Valido:         validation.IsValid,
		Titular:        bundle.SubjectCN,
		Emissor:        bundle.IssuerCN,
		Validade:       &validade,
		DiasParaVencer: validation.DaysUntilExpiry,
		Mensagem:       validation.Message,
	}, nil
}

// Remove desinstala o certificado: apaga o arquivo e limpa os campos.
func (s *CertificadoService) Remove(ctx context.Context, companyID string) error {
	company, err := s.fetchCompany(ctx, companyID)
	if err != nil {
		return err
	}
	if !company.TemCertificado() {
		return domain.ErrCertificadoAusente
	}

	path := company.CertificadoPfx
	company.CertificadoPfx = ""
	company.CertificadoSenha = ""
	company.CertificadoValidade = nil
	if err := s.companyRepo.UpdateCertificate(ctx, company); err != nil {
		return err
	}
	return s.storage.Delete(path)
}

// DadosFiscais devolve o perfil fiscal da empresa.
func (s *CertificadoService) DadosFiscais(ctx context.Context, companyID string) (*dto.DadosFiscaisResponse, error) {
	company, err := s.fetchCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}
	return toDadosFiscaisResponse(company), nil
}

// AtualizarDadosFiscais atualiza o perfil fiscal (campos opcionais).
func (s *CertificadoService) AtualizarDadosFiscais(ctx context.Context, companyID string, in dto.DadosFiscaisRequest) (*dto.DadosFiscaisResponse, error) {
	company, err := s.fetchCompany(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if in.InscricaoMunicipal != nil {
		company.InscricaoMunicipal = *in.InscricaoMunicipal
	}
	if in.CodigoMunicipio != nil {
		company.CodigoMunicipio = *in.CodigoMunicipio
	}
	if in.RegimeTributacao != nil {
		if *in.RegimeTributacao < 0 || *in.RegimeTributacao > 6 {
			return nil, domain.ErrInvalidInput
		}
		company.RegimeTributacao = *in.RegimeTributacao
	}
	if in.OptanteSimplesNacional != nil {
		company.OptanteSimplesNacional = *in.OptanteSimplesNacional
	}
	if in.IncentivadorCultural != nil {
		company.IncentivadorCultural = *in.IncentivadorCultural
	}

	if err := s.companyRepo.UpdateFiscalData(ctx, company); err != nil {
		return nil, err
	}
	return toDadosFiscaisResponse(company), nil
}

func (s *CertificadoService) fetchCompany(ctx context.Context, companyID string) (*entity.Company, error) {
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	return company, nil
}

func (s *CertificadoService) statusIndisponivel(company *entity.Company, msg string) *dto.CertificadoStatusResponse {
	return &dto.CertificadoStatusResponse{
		TemCertificado: true,
		Valido:         false,
		Validade:       company.CertificadoValidade,
		Mensagem:       msg,
	}
}

func toDadosFiscaisResponse(c *entity.Company) *dto.DadosFiscaisResponse {
	return &dto.DadosFiscaisResponse{
		CNPJ:                   c.CNPJ,
		InscricaoMunicipal:     c.InscricaoMunicipal,
		CodigoMunicipio:        c.CodigoMunicipio,
		RegimeTributacao:       c.RegimeTributacao,
		OptanteSimplesNacional: c.OptanteSimplesNacional,
		IncentivadorCultural:   c.IncentivadorCultural,
		Completos:              c.DadosFiscaisCompletos(),
	}
}
