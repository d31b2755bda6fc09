package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados da NFS-e. O envio (ENVIADA) é síncrono dentro de Send, por isso
// só são persistidos os estados de repouso.
const (
	NfseStatusRascunho   = "RASCUNHO"   // Editável; único estado onde valores derivados são recalculados
	NfseStatusAutorizada = "AUTORIZADA" // Aceita pela prefeitura (ou emissão simulada)
	NfseStatusErro       = "ERRO"       // Rejeitada pela prefeitura; pode ser reenviada
	NfseStatusCancelada  = "CANCELADA"  // Cancelada após autorização
)

// Nfse representa uma nota fiscal de serviço eletrônica (padrão ABRASF).
// NumeroRps é o número sequencial do RPS por empresa, atribuído na criação e
// imutável; Numero, CodigoVerificacao, DataEmissao e Protocolo são atribuídos
// pela prefeitura uma única vez, na autorização.
type Nfse struct {
	ID        string
	CompanyID string
	Status    string

	NumeroRps string // sequencial por empresa, zero-padded a 6 dígitos
	SerieRps  string
	TipoRps   string

	Numero            string
	CodigoVerificacao string
	Protocolo         string
	DataEmissao       *time.Time
	Competencia       time.Time // mês de competência do serviço

	// Tomador (destinatário do serviço)
	TomadorCpfCnpj         string
	TomadorNome            string
	TomadorEmail           string
	TomadorTelefone        string
	TomadorEndereco        string
	TomadorNumero          string
	TomadorComplemento     string
	TomadorBairro          string
	TomadorCodigoMunicipio string
	TomadorUf              string
	TomadorCep             string

	// Serviço
	Discriminacao             string
	ItemListaServico          string
	CodigoCnae                string
	CodigoTributacaoMunicipio string
	MunicipioIncidencia       string

	// Valores
	ValorServicos          decimal.Decimal
	ValorDeducoes          decimal.Decimal
	ValorPis               decimal.Decimal
	ValorCofins            decimal.Decimal
	ValorInss              decimal.Decimal
	ValorIr                decimal.Decimal
	ValorCsll              decimal.Decimal
	OutrasRetencoes        decimal.Decimal
	DescontoIncondicionado decimal.Decimal
	DescontoCondicionado   decimal.Decimal
	AliquotaIss            decimal.Decimal
	IssRetido              bool
	ResponsavelRetencao    string

	// Derivados; congelados fora de RASCUNHO
	BaseCalculo      decimal.Decimal
	ValorIss         decimal.Decimal
	ValorLiquidoNfse decimal.Decimal

	// Auditoria do envio
	XmlEnvio     string
	XmlRetorno   string
	MensagemErro string

	DataCancelamento   *time.Time
	MotivoCancelamento string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PodeEditar indica se a nota aceita edição ou exclusão.
func (n *Nfse) PodeEditar() bool {
	return n.Status == NfseStatusRascunho
}

// PodeEnviar indica se a nota pode ser (re)enviada à prefeitura.
// ERRO permite reenvio porque o RPS nunca foi aceito (mesmo NumeroRps).
func (n *Nfse) PodeEnviar() bool {
	return n.Status == NfseStatusRascunho || n.Status == NfseStatusErro
}

// PodeCancelar indica se a nota pode ser cancelada junto à prefeitura.
func (n *Nfse) PodeCancelar() bool {
	return n.Status == NfseStatusAutorizada && n.Numero != ""
}
