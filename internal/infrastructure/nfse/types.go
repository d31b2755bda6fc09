package nfse

import (
	"time"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

// Valores padrão aplicados quando a empresa não informa os próprios dados
// fiscais. Código IBGE 5208707 = Goiânia/GO.
const (
	DefaultCodigoMunicipio    = "5208707"
	DefaultItemListaServico   = "1401"
	DefaultRegimeTributacao   = 1
	DefaultSerieRps           = "UNICA"
	DefaultTipoRps            = "1"
	DefaultCodigoCancelamento = "1"
)

// RpsBuildContext agrupa tudo que a montagem do RPS precisa. IssueDate
// permite fixar a competência em testes; nil usa o relógio.
type RpsBuildContext struct {
	Nfse      *entity.Nfse
	Company   *entity.Company
	IssueDate *time.Time
}

// CancelBuildContext agrupa os dados do pedido de cancelamento.
type CancelBuildContext struct {
	NumeroNfse         string
	Cnpj               string
	InscricaoMunicipal string
	CodigoMunicipio    string
	CodigoCancelamento string
}
