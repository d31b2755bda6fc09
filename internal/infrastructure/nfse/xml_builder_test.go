package nfse

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/nfse-api/internal/domain/entity"
)

func buildTestContext() *RpsBuildContext {
	emissao := time.Date(2026, 2, 10, 9, 30, 0, 0, time.UTC)
	return &RpsBuildContext{
		Nfse: &entity.Nfse{
			NumeroRps:              "000001",
			SerieRps:               "UNICA",
			TipoRps:                "1",
			ValorServicos:          decimal.NewFromInt(1000),
			AliquotaIss:            decimal.NewFromFloat(5),
			Discriminacao:          "Serviços de consultoria em TI",
			ItemListaServico:       "0107",
			IssRetido:              false,
			TomadorCpfCnpj:         "123.456.789-09",
			TomadorNome:            "Fulano de Tal",
			TomadorEndereco:        "Rua das Flores",
			TomadorNumero:          "100",
			TomadorBairro:          "Centro",
			TomadorCodigoMunicipio: "5208707",
			TomadorUf:              "GO",
			TomadorCep:             "74000-000",
			TomadorEmail:           "fulano@example.com",
		},
		Company: &entity.Company{
			CNPJ:                   "12.345.678/0001-95",
			InscricaoMunicipal:     "123456",
			CodigoMunicipio:        "",
			RegimeTributacao:       1,
			OptanteSimplesNacional: true,
		},
		IssueDate: &emissao,
	}
}

func TestBuildRpsEstrutura(t *testing.T) {
	ctx := buildTestContext()

	xml, err := NewRpsBuilderService().BuildRps(ctx)
	require.NoError(t, err)
	out := string(xml)

	assert.Contains(t, out, `<Rps xmlns="http://www.abrasf.org.br/nfse.xsd">`)
	assert.Contains(t, out, `<InfDeclaracaoPrestacaoServico Id="rps000001">`)
	assert.Contains(t, out, "<Numero>000001</Numero>", "número com padding preservado")
	assert.Contains(t, out, "<Serie>UNICA</Serie>")
	assert.Contains(t, out, "<DataEmissao>2026-02-10</DataEmissao>")
	assert.Contains(t, out, "<Competencia>2026-02-10</Competencia>")
}

func TestBuildRpsValoresComDuasCasas(t *testing.T) {
	ctx := buildTestContext()
	ctx.Nfse.ValorServicos = decimal.NewFromFloat(1234.5)
	ctx.Nfse.AliquotaIss = decimal.NewFromFloat(2.5)

	xml, err := NewRpsBuilderService().BuildRps(ctx)
	require.NoError(t, err)
	out := string(xml)

	assert.Contains(t, out, "<ValorServicos>1234.50</ValorServicos>")
	assert.Contains(t, out, "<Aliquota>2.50</Aliquota>")
	assert.NotContains(t, out, "<ValorDeducoes>", "valores zerados são omitidos")
}

func TestBuildRpsFlagsSimNao(t *testing.T) {
	ctx := buildTestContext()
	ctx.Nfse.IssRetido = true
	ctx.Company.OptanteSimplesNacional = false
	ctx.Company.IncentivadorCultural = false

	xml, err := NewRpsBuilderService().BuildRps(ctx)
	require.NoError(t, err)
	out := string(xml)

	assert.Contains(t, out, "<IssRetido>1</IssRetido>")
	assert.Contains(t, out, "<OptanteSimplesNacional>2</OptanteSimplesNacional>")
	assert.Contains(t, out, "<IncentivoFiscal>2</IncentivoFiscal>")
}

func TestBuildRpsTomadorCpf(t *testing.T) {
	ctx := buildTestContext()
	ctx.Nfse.TomadorCpfCnpj = "123.456.789-09" // 11 dígitos

	xml, err := NewRpsBuilderService().BuildRps(ctx)
	require.NoError(t, err)
	out := string(xml)

	assert.Contains(t, out, "<Cpf>12345678909</Cpf>")
	assert.NotContains(t, out, "<Cnpj>12345678909</Cnpj>")
}

func TestBuildRpsTomadorCnpj(t *testing.T) {
	ctx := buildTestContext()
	ctx.Nfse.TomadorCpfCnpj = "11.222.333/0001-81" // 14 dígitos

	xml, err := NewRpsBuilderService().BuildRps(ctx)
	require.NoError(t, err)

	assert.Contains(t, string(xml), "<Cnpj>11222333000181</Cnpj>")
}

func TestBuildRpsMunicipioPadrao(t *testing.T) {
	ctx := buildTestContext()
	ctx.Company.CodigoMunicipio = ""

	xml, err := NewRpsBuilderService().BuildRps(ctx)
	require.NoError(t, err)
	out := string(xml)

	assert.Contains(t, out, "<CodigoMunicipio>5208707</CodigoMunicipio>")
	assert.Contains(t, out, "<MunicipioIncidencia>5208707</MunicipioIncidencia>")
}

func TestBuildRpsTomadorMunicipioPadrao(t *testing.T) {
	ctx := buildTestContext()
	ctx.Company.CodigoMunicipio = "9999999"
	ctx.Nfse.TomadorCodigoMunicipio = ""

	xml, err := NewRpsBuilderService().BuildRps(ctx)
	require.NoError(t, err)
	out := string(xml)

	// Endereço do tomador sem município recebe o código de Goiânia; o do
	// prestador aqui é outro, então o 5208707 só pode vir do tomador.
	assert.Contains(t, out, "<CodigoMunicipio>5208707</CodigoMunicipio>")
	assert.Contains(t, out, "<CodigoMunicipio>9999999</CodigoMunicipio>")
}

func TestBuildRpsPrestadorSoDigitos(t *testing.T) {
	xml, err := NewRpsBuilderService().BuildRps(buildTestContext())
	require.NoError(t, err)

	assert.Contains(t, string(xml), "<Cnpj>12345678000195</Cnpj>")
}

func TestBuildRpsContextoIncompleto(t *testing.T) {
	b := NewRpsBuilderService()

	_, err := b.BuildRps(nil)
	assert.Error(t, err)

	_, err = b.BuildRps(&RpsBuildContext{Nfse: &entity.Nfse{}})
	assert.Error(t, err)

	ctx := buildTestContext()
	ctx.Nfse.NumeroRps = ""
	_, err = b.BuildRps(ctx)
	assert.Error(t, err)
}

func TestBuildRpsPrestadorSemDadosFiscais(t *testing.T) {
	b := NewRpsBuilderService()

	ctx := buildTestContext()
	ctx.Company.CNPJ = ""
	_, err := b.BuildRps(ctx)
	assert.Error(t, err)

	ctx = buildTestContext()
	ctx.Company.InscricaoMunicipal = ""
	_, err = b.BuildRps(ctx)
	assert.Error(t, err)
}

func TestBuildCancelamento(t *testing.T) {
	xml, err := NewRpsBuilderService().BuildCancelamento(&CancelBuildContext{
		NumeroNfse:         "202600000123",
		Cnpj:               "12.345.678/0001-95",
		InscricaoMunicipal: "123456",
	})
	require.NoError(t, err)
	out := string(xml)

	assert.Contains(t, out, `<CancelarNfseEnvio xmlns="http://www.abrasf.org.br/nfse.xsd">`)
	assert.Contains(t, out, `<InfPedidoCancelamento Id="cancel_202600000123">`)
	assert.Contains(t, out, "<Numero>202600000123</Numero>")
	assert.Contains(t, out, "<CodigoCancelamento>1</CodigoCancelamento>")
	assert.Contains(t, out, "<CodigoMunicipio>5208707</CodigoMunicipio>")
}

func TestBuildCancelamentoSemNumero(t *testing.T) {
	_, err := NewRpsBuilderService().BuildCancelamento(&CancelBuildContext{})
	assert.Error(t, err)
}

func TestBuildConsultaRps(t *testing.T) {
	xml, err := NewRpsBuilderService().BuildConsultaRps("000042", "", "", "12345678000195", "123456")
	require.NoError(t, err)
	out := string(xml)

	assert.Contains(t, out, "<ConsultarNfseRpsEnvio")
	assert.Contains(t, out, "<Numero>000042</Numero>")
	assert.Contains(t, out, "<Serie>UNICA</Serie>")
	assert.Contains(t, out, "<InscricaoMunicipal>123456</InscricaoMunicipal>")
}

func TestBuildConsultaLote(t *testing.T) {
	xml, err := NewRpsBuilderService().BuildConsultaLote("PROTO-9", "12345678000195", "123456")
	require.NoError(t, err)

	assert.Contains(t, string(xml), "<Protocolo>PROTO-9</Protocolo>")
}

func TestReferenceID(t *testing.T) {
	assert.Equal(t, "rps000001", ReferenceID("000001"))
	assert.Equal(t, "rps000042", ReferenceID("000042"))
	assert.Equal(t, "cancel_123", CancelReferenceID("123"))
}
