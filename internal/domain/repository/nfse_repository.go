package repository

import (
	"context"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// NfseRepository define o porto de persistência da NFS-e.
// Todas as consultas são escopadas por companyID (multi-tenant).
type NfseRepository interface {
	Create(ctx context.Context, nfse *entity.Nfse) error
	Update(ctx context.Context, nfse *entity.Nfse) error
	Delete(ctx context.Context, companyID, id string) error
	GetByID(ctx context.Context, companyID, id string) (*entity.Nfse, error)
	List(ctx context.Context, companyID string, limit, offset int) ([]*entity.Nfse, error)
	// MaxNumeroRps devolve o maior numeroRps já atribuído para a empresa
	// (0 se nenhum). Deve ser chamado dentro da mesma transação do Create
	// para garantir a sequência estritamente crescente; a unique constraint
	// (company_id, numero_rps) cobre corridas entre transações.
	MaxNumeroRps(ctx context.Context, companyID string) (int64, error)
}
