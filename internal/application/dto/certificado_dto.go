package dto

import "time"

// CertificadoStatusResponse situação do certificado digital da empresa.
type CertificadoStatusResponse struct {
	TemCertificado bool       `json:"tem_certificado"`
	Valido         bool       `json:"valido"`
	Titular        string     `json:"titular,omitempty"`
	Emissor        string     `json:"emissor,omitempty"`
	Validade       *time.Time `json:"validade,omitempty"`
	DiasParaVencer int        `json:"dias_para_vencer,omitempty"`
	Mensagem       string     `json:"mensagem"`
}

// DadosFiscaisRequest entrada para atualizar os dados fiscais da empresa.
type DadosFiscaisRequest struct {
	InscricaoMunicipal     *string `json:"inscricao_municipal"`
	CodigoMunicipio        *string `json:"codigo_municipio"`
	RegimeTributacao       *int    `json:"regime_tributacao"`
	OptanteSimplesNacional *bool   `json:"optante_simples_nacional"`
	IncentivadorCultural   *bool   `json:"incentivador_cultural"`
}

// DadosFiscaisResponse saída dos dados fiscais da empresa.
type DadosFiscaisResponse struct {
	CNPJ                   string `json:"cnpj"`
	InscricaoMunicipal     string `json:"inscricao_municipal"`
	CodigoMunicipio        string `json:"codigo_municipio"`
	RegimeTributacao       int    `json:"regime_tributacao"`
	OptanteSimplesNacional bool   `json:"optante_simples_nacional"`
	IncentivadorCultural   bool   `json:"incentivador_cultural"`
	Completos              bool   `json:"completos"`
}
