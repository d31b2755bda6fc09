package nfse

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Namespace do modelo nacional ABRASF, usado pelo ISS Net de Goiânia.
const NamespaceABRASF = "http://www.abrasf.org.br/nfse.xsd"

// RpsBuilderService monta os XMLs ABRASF (RPS, cancelamento e consultas),
// sem assinatura. A assinatura é injetada depois pelo pacote signer.
type RpsBuilderService struct{}

// NewRpsBuilderService cria o serviço.
func NewRpsBuilderService() *RpsBuilderService {
	return &RpsBuilderService{}
}

// ReferenceID devolve o Id do elemento assinável do RPS ("000001" ->
// "rps000001"). O mesmo valor vai no atributo Id e na URI da Reference da
// assinatura. Lotes assinados em batch usam ids sintéticos rps1..rpsN.
func ReferenceID(numeroRps string) string {
	return "rps" + numeroRps
}

// CancelReferenceID devolve o Id do pedido de cancelamento.
func CancelReferenceID(numeroNfse string) string {
	return "cancel_" + numeroNfse
}

// BuildRps gera o <Rps> com <InfDeclaracaoPrestacaoServico Id="rpsN">
// pronto para assinatura. Campos opcionais vazios são omitidos; valores
// monetários saem sempre com duas casas decimais.
func (s *RpsBuilderService) BuildRps(ctx *RpsBuildContext) ([]byte, error) {
	if ctx == nil || ctx.Nfse == nil || ctx.Company == nil {
		return nil, fmt.Errorf("nfse: faltam nfse ou company no contexto de montagem")
	}
	doc := ctx.Nfse
	emp := ctx.Company
	if doc.NumeroRps == "" {
		return nil, fmt.Errorf("nfse: RPS sem número")
	}
	// O ciclo de vida já barra empresa sem dados fiscais; aqui é a última
	// linha antes do XML sair.
	if onlyDigits(emp.CNPJ) == "" || onlyDigits(emp.InscricaoMunicipal) == "" {
		return nil, fmt.Errorf("nfse: prestador sem CNPJ ou inscrição municipal")
	}

	emissao := time.Now()
	if ctx.IssueDate != nil {
		emissao = *ctx.IssueDate
	}
	competencia := emissao
	if !doc.Competencia.IsZero() {
		competencia = doc.Competencia
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "Rps"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NamespaceABRASF}},
	}
	if err := enc.EncodeToken(root); err != nil {
		return nil, err
	}

	inf := xml.StartElement{
		Name: xml.Name{Local: "InfDeclaracaoPrestacaoServico"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "Id"}, Value: ReferenceID(doc.NumeroRps)}},
	}
	_ = enc.EncodeToken(inf)

	// ---- Identificação do RPS
	writeStart(enc, "Rps")
	writeStart(enc, "IdentificacaoRps")
	writeEl(enc, "Numero", doc.NumeroRps)
	writeEl(enc, "Serie", defaultIfEmpty(doc.SerieRps, DefaultSerieRps))
	writeEl(enc, "Tipo", defaultIfEmpty(doc.TipoRps, DefaultTipoRps))
	writeEnd(enc, "IdentificacaoRps")
	writeEl(enc, "DataEmissao", emissao.Format("2006-01-02"))
	writeEl(enc, "Status", "1")
	writeEnd(enc, "Rps")

	writeEl(enc, "Competencia", competencia.Format("2006-01-02"))

	// ---- Serviço e valores
	writeStart(enc, "Servico")
	writeStart(enc, "Valores")
	writeEl(enc, "ValorServicos", formatDecimal(doc.ValorServicos))
	writeDecimalIfPositive(enc, "ValorDeducoes", doc.ValorDeducoes)
	writeDecimalIfPositive(enc, "ValorPis", doc.ValorPis)
	writeDecimalIfPositive(enc, "ValorCofins", doc.ValorCofins)
	writeDecimalIfPositive(enc, "ValorInss", doc.ValorInss)
	writeDecimalIfPositive(enc, "ValorIr", doc.ValorIr)
	writeDecimalIfPositive(enc, "ValorCsll", doc.ValorCsll)
	writeDecimalIfPositive(enc, "ValorIss", doc.ValorIss)
	writeDecimalIfPositive(enc, "Aliquota", doc.AliquotaIss)
	writeDecimalIfPositive(enc, "DescontoIncondicionado", doc.DescontoIncondicionado)
	writeDecimalIfPositive(enc, "DescontoCondicionado", doc.DescontoCondicionado)
	writeEnd(enc, "Valores")
	writeEl(enc, "IssRetido", simNao(doc.IssRetido))
	writeEl(enc, "ItemListaServico", defaultIfEmpty(doc.ItemListaServico, DefaultItemListaServico))
	writeIfNotEmpty(enc, "CodigoCnae", doc.CodigoCnae)
	writeIfNotEmpty(enc, "CodigoTributacaoMunicipio", doc.CodigoTributacaoMunicipio)
	writeEl(enc, "Discriminacao", doc.Discriminacao)
	codigoMunicipio := defaultIfEmpty(emp.CodigoMunicipio, DefaultCodigoMunicipio)
	writeEl(enc, "CodigoMunicipio", codigoMunicipio)
	writeEl(enc, "ExigibilidadeISS", "1")
	writeEl(enc, "MunicipioIncidencia", defaultIfEmpty(doc.MunicipioIncidencia, codigoMunicipio))
	writeEnd(enc, "Servico")

	// ---- Prestador
	writeStart(enc, "Prestador")
	writeStart(enc, "CpfCnpj")
	writeEl(enc, "Cnpj", onlyDigits(emp.CNPJ))
	writeEnd(enc, "CpfCnpj")
	writeEl(enc, "InscricaoMunicipal", onlyDigits(emp.InscricaoMunicipal))
	writeEnd(enc, "Prestador")

	// ---- Tomador
	s.writeTomador(enc, ctx)

	if emp.RegimeTributacao > 0 {
		writeEl(enc, "RegimeEspecialTributacao", fmt.Sprintf("%d", emp.RegimeTributacao))
	}
	writeEl(enc, "OptanteSimplesNacional", simNao(emp.OptanteSimplesNacional))
	writeEl(enc, "IncentivoFiscal", simNao(emp.IncentivadorCultural))

	writeEnd(enc, "InfDeclaracaoPrestacaoServico")
	if err := enc.EncodeToken(xml.EndElement{Name: root.Name}); err != nil {
		return nil, err
	}
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// writeTomador escreve o bloco do tomador. Documento com 11 dígitos entra
// como Cpf, qualquer outro tamanho como Cnpj. Endereço e contato só saem
// quando informados.
func (s *RpsBuilderService) writeTomador(enc *xml.Encoder, ctx *RpsBuildContext) {
	doc := ctx.Nfse
	cpfCnpj := onlyDigits(doc.TomadorCpfCnpj)
	if cpfCnpj == "" && doc.TomadorNome == "" {
		return
	}

	writeStart(enc, "Tomador")
	if cpfCnpj != "" {
		writeStart(enc, "IdentificacaoTomador")
		writeStart(enc, "CpfCnpj")
		if len(cpfCnpj) == 11 {
			writeEl(enc, "Cpf", cpfCnpj)
		} else {
			writeEl(enc, "Cnpj", cpfCnpj)
		}
		writeEnd(enc, "CpfCnpj")
		writeEnd(enc, "IdentificacaoTomador")
	}
	writeIfNotEmpty(enc, "RazaoSocial", doc.TomadorNome)

	if doc.TomadorEndereco != "" || doc.TomadorCep != "" {
		writeStart(enc, "Endereco")
		writeIfNotEmpty(enc, "Endereco", doc.TomadorEndereco)
		writeIfNotEmpty(enc, "Numero", doc.TomadorNumero)
		writeIfNotEmpty(enc, "Complemento", doc.TomadorComplemento)
		writeIfNotEmpty(enc, "Bairro", doc.TomadorBairro)
		writeEl(enc, "CodigoMunicipio", defaultIfEmpty(doc.TomadorCodigoMunicipio, DefaultCodigoMunicipio))
		writeIfNotEmpty(enc, "Uf", doc.TomadorUf)
		writeIfNotEmpty(enc, "Cep", onlyDigits(doc.TomadorCep))
		writeEnd(enc, "Endereco")
	}

	if doc.TomadorTelefone != "" || doc.TomadorEmail != "" {
		writeStart(enc, "Contato")
		writeIfNotEmpty(enc, "Telefone", onlyDigits(doc.TomadorTelefone))
		writeIfNotEmpty(enc, "Email", doc.TomadorEmail)
		writeEnd(enc, "Contato")
	}
	writeEnd(enc, "Tomador")
}

// BuildCancelamento gera o <CancelarNfseEnvio> com o pedido identificado
// por Id="cancel_{numero}", pronto para assinatura.
func (s *RpsBuilderService) BuildCancelamento(ctx *CancelBuildContext) ([]byte, error) {
	if ctx == nil || ctx.NumeroNfse == "" {
		return nil, fmt.Errorf("nfse: cancelamento sem número de NFS-e")
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "CancelarNfseEnvio"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NamespaceABRASF}},
	}
	_ = enc.EncodeToken(root)

	writeStart(enc, "Pedido")
	infPedido := xml.StartElement{
		Name: xml.Name{Local: "InfPedidoCancelamento"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "Id"}, Value: CancelReferenceID(ctx.NumeroNfse)}},
	}
	_ = enc.EncodeToken(infPedido)

	writeStart(enc, "IdentificacaoNfse")
	writeEl(enc, "Numero", ctx.NumeroNfse)
	writeStart(enc, "CpfCnpj")
	writeEl(enc, "Cnpj", onlyDigits(ctx.Cnpj))
	writeEnd(enc, "CpfCnpj")
	writeEl(enc, "InscricaoMunicipal", onlyDigits(ctx.InscricaoMunicipal))
	writeEl(enc, "CodigoMunicipio", defaultIfEmpty(ctx.CodigoMunicipio, DefaultCodigoMunicipio))
	writeEnd(enc, "IdentificacaoNfse")
	writeEl(enc, "CodigoCancelamento", defaultIfEmpty(ctx.CodigoCancelamento, DefaultCodigoCancelamento))

	writeEnd(enc, "InfPedidoCancelamento")
	writeEnd(enc, "Pedido")
	_ = enc.EncodeToken(xml.EndElement{Name: root.Name})
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildConsultaRps gera o <ConsultarNfseRpsEnvio>. Consulta não é assinada.
func (s *RpsBuilderService) BuildConsultaRps(numeroRps, serie, tipo, cnpj, inscricaoMunicipal string) ([]byte, error) {
	if numeroRps == "" {
		return nil, fmt.Errorf("nfse: consulta sem número de RPS")
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "ConsultarNfseRpsEnvio"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NamespaceABRASF}},
	}
	_ = enc.EncodeToken(root)

	writeStart(enc, "IdentificacaoRps")
	writeEl(enc, "Numero", numeroRps)
	writeEl(enc, "Serie", defaultIfEmpty(serie, DefaultSerieRps))
	writeEl(enc, "Tipo", defaultIfEmpty(tipo, DefaultTipoRps))
	writeEnd(enc, "IdentificacaoRps")

	writeStart(enc, "Prestador")
	writeStart(enc, "CpfCnpj")
	writeEl(enc, "Cnpj", onlyDigits(cnpj))
	writeEnd(enc, "CpfCnpj")
	writeEl(enc, "InscricaoMunicipal", onlyDigits(inscricaoMunicipal))
	writeEnd(enc, "Prestador")

	_ = enc.EncodeToken(xml.EndElement{Name: root.Name})
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildConsultaLote gera o <ConsultarLoteRpsEnvio> a partir do protocolo.
func (s *RpsBuilderService) BuildConsultaLote(protocolo, cnpj, inscricaoMunicipal string) ([]byte, error) {
	if protocolo == "" {
		return nil, fmt.Errorf("nfse: consulta sem protocolo")
	}

	var buf bytes.Buffer
	enc := xml.NewEncoder(&buf)

	root := xml.StartElement{
		Name: xml.Name{Local: "ConsultarLoteRpsEnvio"},
		Attr: []xml.Attr{{Name: xml.Name{Local: "xmlns"}, Value: NamespaceABRASF}},
	}
	_ = enc.EncodeToken(root)

	writeStart(enc, "Prestador")
	writeStart(enc, "CpfCnpj")
	writeEl(enc, "Cnpj", onlyDigits(cnpj))
	writeEnd(enc, "CpfCnpj")
	writeEl(enc, "InscricaoMunicipal", onlyDigits(inscricaoMunicipal))
	writeEnd(enc, "Prestador")
	writeEl(enc, "Protocolo", protocolo)

	_ = enc.EncodeToken(xml.EndElement{Name: root.Name})
	if err := enc.Flush(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ---- helpers de escrita

func writeStart(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.StartElement{Name: xml.Name{Local: local}})
}

func writeEnd(enc *xml.Encoder, local string) {
	_ = enc.EncodeToken(xml.EndElement{Name: xml.Name{Local: local}})
}

func writeEl(enc *xml.Encoder, local, value string) {
	writeStart(enc, local)
	_ = enc.EncodeToken(xml.CharData(value))
	writeEnd(enc, local)
}

func writeIfNotEmpty(enc *xml.Encoder, local, value string) {
	if value != "" {
		writeEl(enc, local, value)
	}
}

func writeDecimalIfPositive(enc *xml.Encoder, local string, d decimal.Decimal) {
	if d.IsPositive() {
		writeEl(enc, local, formatDecimal(d))
	}
}

// simNao mapeia bool para o domínio "1"/"2" do esquema ABRASF.
func simNao(v bool) string {
	if v {
		return "1"
	}
	return "2"
}

func formatDecimal(d decimal.Decimal) string {
	return d.Round(2).StringFixed(2)
}

func onlyDigits(s string) string {
	var out []byte
	for _, b := range []byte(s) {
		if b >= '0' && b <= '9' {
			out = append(out, b)
		}
	}
	return string(out)
}

func defaultIfEmpty(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
