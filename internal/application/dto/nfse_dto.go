package dto

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateNfseRequest entrada para criar um rascunho de NFS-e.
type CreateNfseRequest struct {
	Competencia *time.Time `json:"competencia"`

	TomadorCpfCnpj         string `json:"tomador_cpf_cnpj"`
	TomadorNome            string `json:"tomador_nome"`
	TomadorEndereco        string `json:"tomador_endereco"`
	TomadorNumero          string `json:"tomador_numero"`
	TomadorComplemento     string `json:"tomador_complemento"`
	TomadorBairro          string `json:"tomador_bairro"`
	TomadorCodigoMunicipio string `json:"tomador_codigo_municipio"`
	TomadorUf              string `json:"tomador_uf"`
	TomadorCep             string `json:"tomador_cep"`
	TomadorTelefone        string `json:"tomador_telefone"`
	TomadorEmail           string `json:"tomador_email"`

	Discriminacao             string `json:"discriminacao" validate:"required"`
	ItemListaServico          string `json:"item_lista_servico"`
	CodigoCnae                string `json:"codigo_cnae"`
	CodigoTributacaoMunicipio string `json:"codigo_tributacao_municipio"`
	MunicipioIncidencia       string `json:"municipio_incidencia"`

	ValorServicos          decimal.Decimal `json:"valor_servicos" validate:"required"`
	ValorDeducoes          decimal.Decimal `json:"valor_deducoes"`
	ValorPis               decimal.Decimal `json:"valor_pis"`
	ValorCofins            decimal.Decimal `json:"valor_cofins"`
	ValorInss              decimal.Decimal `json:"valor_inss"`
	ValorIr                decimal.Decimal `json:"valor_ir"`
	ValorCsll              decimal.Decimal `json:"valor_csll"`
	DescontoIncondicionado decimal.Decimal `json:"desconto_incondicionado"`
	DescontoCondicionado   decimal.Decimal `json:"desconto_condicionado"`
	AliquotaIss            decimal.Decimal `json:"aliquota_iss"`
	IssRetido              bool            `json:"iss_retido"`
}

// UpdateNfseRequest entrada para editar um rascunho (campos opcionais).
type UpdateNfseRequest struct {
	Competencia *time.Time `json:"competencia"`

	TomadorCpfCnpj         *string `json:"tomador_cpf_cnpj"`
	TomadorNome            *string `json:"tomador_nome"`
	TomadorEndereco        *string `json:"tomador_endereco"`
	TomadorNumero          *string `json:"tomador_numero"`
	TomadorComplemento     *string `json:"tomador_complemento"`
	TomadorBairro          *string `json:"tomador_bairro"`
	TomadorCodigoMunicipio *string `json:"tomador_codigo_municipio"`
	TomadorUf              *string `json:"tomador_uf"`
	TomadorCep             *string `json:"tomador_cep"`
	TomadorTelefone        *string `json:"tomador_telefone"`
	TomadorEmail           *string `json:"tomador_email"`

	Discriminacao             *string `json:"discriminacao"`
	ItemListaServico          *string `json:"item_lista_servico"`
	CodigoCnae                *string `json:"codigo_cnae"`
	CodigoTributacaoMunicipio *string `json:"codigo_tributacao_municipio"`
	MunicipioIncidencia       *string `json:"municipio_incidencia"`

	ValorServicos          *decimal.Decimal `json:"valor_servicos"`
	ValorDeducoes          *decimal.Decimal `json:"valor_deducoes"`
	ValorPis               *decimal.Decimal `json:"valor_pis"`
	ValorCofins            *decimal.Decimal `json:"valor_cofins"`
	ValorInss              *decimal.Decimal `json:"valor_inss"`
	ValorIr                *decimal.Decimal `json:"valor_ir"`
	ValorCsll              *decimal.Decimal `json:"valor_csll"`
	DescontoIncondicionado *decimal.Decimal `json:"desconto_incondicionado"`
	DescontoCondicionado   *decimal.Decimal `json:"desconto_condicionado"`
	AliquotaIss            *decimal.Decimal `json:"aliquota_iss"`
	IssRetido              *bool            `json:"iss_retido"`
}

// EnviarNfseRequest parâmetros do envio à prefeitura.
type EnviarNfseRequest struct {
	Simular bool `json:"simular"`
}

// CancelarNfseRequest parâmetros do cancelamento.
type CancelarNfseRequest struct {
	Simular bool   `json:"simular"`
	Motivo  string `json:"motivo"`
}

// NfseResponse saída de uma NFS-e.
type NfseResponse struct {
	ID        string `json:"id"`
	CompanyID string `json:"company_id"`
	Status    string `json:"status"`

	NumeroRps         string     `json:"numero_rps"`
	SerieRps          string     `json:"serie_rps"`
	Numero            string     `json:"numero,omitempty"`
	CodigoVerificacao string     `json:"codigo_verificacao,omitempty"`
	Protocolo         string     `json:"protocolo,omitempty"`
	DataEmissao       *time.Time `json:"data_emissao,omitempty"`
	Competencia       *time.Time `json:"competencia,omitempty"`

	TomadorCpfCnpj string `json:"tomador_cpf_cnpj,omitempty"`
	TomadorNome    string `json:"tomador_nome,omitempty"`

	Discriminacao    string `json:"discriminacao"`
	ItemListaServico string `json:"item_lista_servico,omitempty"`

	ValorServicos    decimal.Decimal `json:"valor_servicos"`
	ValorDeducoes    decimal.Decimal `json:"valor_deducoes"`
	AliquotaIss      decimal.Decimal `json:"aliquota_iss"`
	IssRetido        bool            `json:"iss_retido"`
	BaseCalculo      decimal.Decimal `json:"base_calculo"`
	ValorIss         decimal.Decimal `json:"valor_iss"`
	ValorLiquidoNfse decimal.Decimal `json:"valor_liquido_nfse"`

	MensagemErro       string     `json:"mensagem_erro,omitempty"`
	DataCancelamento   *time.Time `json:"data_cancelamento,omitempty"`
	MotivoCancelamento string     `json:"motivo_cancelamento,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NfseListResponse lista paginada de NFS-e.
type NfseListResponse struct {
	Items []NfseResponse `json:"items"`
	Page  PageResponse   `json:"page"`
}

// NfseXmlResponse devolve os XMLs de envio e retorno para auditoria.
type NfseXmlResponse struct {
	ID         string `json:"id"`
	XmlEnvio   string `json:"xml_envio,omitempty"`
	XmlRetorno string `json:"xml_retorno,omitempty"`
}
