package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

var _ repository.CompanyRepository = (*CompanyRepo)(nil)

// CompanyRepo implementação de CompanyRepository sobre Postgres.
type CompanyRepo struct {
	q Querier
}

func NewCompanyRepository(q Querier) *CompanyRepo {
	return &CompanyRepo{q: q}
}

func (r *CompanyRepo) GetByID(ctx context.Context, id string) (*entity.Company, error) {
	query := `
		SELECT id, name, cnpj, inscricao_municipal, codigo_municipio,
			address, phone, email, status,
			regime_tributacao, optante_simples_nacional, incentivador_cultural,
			certificado_pfx, certificado_senha, certificado_validade,
			created_at, updated_at
		FROM companies
		WHERE id = $1`

	var c entity.Company
	var cnpj, inscricaoMunicipal, codigoMunicipio *string
	var address, phone, email *string
	var certificadoPfx, certificadoSenha *string

	err := r.q.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.Name, &cnpj, &inscricaoMunicipal, &codigoMunicipio,
		&address, &phone, &email, &c.Status,
		&c.RegimeTributacao, &c.OptanteSimplesNacional, &c.IncentivadorCultural,
		&certificadoPfx, &certificadoSenha, &c.CertificadoValidade,
		&c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get company: %w", err)
	}

	c.CNPJ = derefStr(cnpj)
	c.InscricaoMunicipal = derefStr(inscricaoMunicipal)
	c.CodigoMunicipio = derefStr(codigoMunicipio)
	c.Address = derefStr(address)
	c.Phone = derefStr(phone)
	c.Email = derefStr(email)
	c.CertificadoPfx = derefStr(certificadoPfx)
	c.CertificadoSenha = derefStr(certificadoSenha)
	return &c, nil
}

// UpdateFiscalData regrava só o perfil fiscal da empresa.
func (r *CompanyRepo) UpdateFiscalData(ctx context.Context, company *entity.Company) error {
	query := `
		UPDATE companies SET
			inscricao_municipal = $2,
			codigo_municipio = $3,
			regime_tributacao = $4,
			optante_simples_nacional = $5,
			incentivador_cultural = $6,
			updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		company.ID,
		nullIfEmpty(company.InscricaoMunicipal),
		nullIfEmpty(company.CodigoMunicipio),
		company.RegimeTributacao,
		company.OptanteSimplesNacional,
		company.IncentivadorCultural,
	)
	if err != nil {
		return fmt.Errorf("update fiscal data: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateCertificate regrava os campos de certificado. Valores vazios
// limpam o certificado (NULL no banco).
func (r *CompanyRepo) UpdateCertificate(ctx context.Context, company *entity.Company) error {
	query := `
		UPDATE companies SET
			certificado_pfx = $2,
			certificado_senha = $3,
			certificado_validade = $4,
			updated_at = NOW()
		WHERE id = $1`
	tag, err := r.q.Exec(ctx, query,
		company.ID,
		nullIfEmpty(company.CertificadoPfx),
		nullIfEmpty(company.CertificadoSenha),
		company.CertificadoValidade,
	)
	if err != nil {
		return fmt.Errorf("update certificate: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
