package repository

import (
	"context"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// CompanyRepository define o porto de persistência da empresa (prestador).
// A implementação vive em infrastructure.
type CompanyRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Company, error)
	// UpdateFiscalData atualiza só o perfil fiscal (inscrição municipal,
	// código do município, regime, optante simples, incentivador cultural).
	UpdateFiscalData(ctx context.Context, company *entity.Company) error
	// UpdateCertificate atualiza os campos de certificado (pfx, senha
	// cifrada, validade); valores vazios limpam o certificado.
	UpdateCertificate(ctx context.Context, company *entity.Company) error
}
