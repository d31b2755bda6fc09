package entity

import "time"

// Company representa uma organização/tenant do sistema (prestador de serviço).
// Os campos Certificado* guardam o certificado digital A1 da empresa:
// o caminho do .pfx no disco, a senha cifrada (formato ivhex:cipherhex,
// ver infraestrutura nfse.Vault) e a validade extraída do certificado.
type Company struct {
	ID                 string
	Name               string
	CNPJ               string
	InscricaoMunicipal string
	CodigoMunicipio    string
	Address            string
	Phone              string
	Email              string
	Status             string // active, suspended, inactive

	// Perfil fiscal NFS-e
	RegimeTributacao       int
	OptanteSimplesNacional bool
	IncentivadorCultural   bool

	// Certificado digital A1 (um ativo por empresa; o upload de um novo
	// remove o arquivo anterior)
	CertificadoPfx      string     // caminho do arquivo .pfx/.p12
	CertificadoSenha    string     // senha cifrada pelo Vault
	CertificadoValidade *time.Time // NotAfter do certificado

	CreatedAt time.Time
	UpdatedAt time.Time
}

// DadosFiscaisCompletos indica se a empresa pode emitir NFS-e
// (CNPJ e inscrição municipal obrigatórios).
func (c *Company) DadosFiscaisCompletos() bool {
	return c.CNPJ != "" && c.InscricaoMunicipal != ""
}

// TemCertificado indica se há certificado digital configurado.
func (c *Company) TemCertificado() bool {
	return c.CertificadoPfx != "" && c.CertificadoSenha != ""
}
