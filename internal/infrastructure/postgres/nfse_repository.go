package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
)

var _ repository.NfseRepository = (*NfseRepo)(nil)

// NfseRepo implementação de NfseRepository (aceita pool ou tx).
type NfseRepo struct {
	q Querier
}

// NewNfseRepository constrói o adaptador. Passar pool ou tx (Querier).
func NewNfseRepository(q Querier) *NfseRepo {
	return &NfseRepo{q: q}
}

const nfseColumns = `
	id, company_id, status,
	numero_rps, serie_rps, tipo_rps,
	numero, codigo_verificacao, protocolo, data_emissao, competencia,
	tomador_cpf_cnpj, tomador_nome, tomador_email, tomador_telefone,
	tomador_endereco, tomador_numero, tomador_complemento, tomador_bairro,
	tomador_codigo_municipio, tomador_uf, tomador_cep,
	discriminacao, item_lista_servico, codigo_cnae,
	codigo_tributacao_municipio, municipio_incidencia,
	valor_servicos, valor_deducoes, valor_pis, valor_cofins, valor_inss,
	valor_ir, valor_csll, outras_retencoes,
	desconto_incondicionado, desconto_condicionado,
	aliquota_iss, iss_retido, responsavel_retencao,
	base_calculo, valor_iss, valor_liquido_nfse,
	xml_envio, xml_retorno, mensagem_erro,
	data_cancelamento, motivo_cancelamento,
	created_at, updated_at`

// Create insere a NFS-e. Violação da unique (company_id, numero_rps) vira
// domain.ErrDuplicate para o chamador tentar o próximo número.
func (r *NfseRepo) Create(ctx context.Context, n *entity.Nfse) error {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	query := `
		INSERT INTO nfse (` + nfseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27,
			$28, $29, $30, $31, $32, $33, $34, $35, $36, $37, $38, $39, $40,
			$41, $42, $43, $44, $45, $46, $47, $48, $49, $50)`
	_, err := r.q.Exec(ctx, query, r.bindArgs(n)...)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: numero_rps %s", domain.ErrDuplicate, n.NumeroRps)
		}
		return fmt.Errorf("insert nfse: %w", err)
	}
	return nil
}

// Update regrava todos os campos mutáveis da NFS-e. numeroRps, serie e
// tipo são imutáveis após a criação e ficam de fora.
func (r *NfseRepo) Update(ctx context.Context, n *entity.Nfse) error {
	query := `
		UPDATE nfse SET
			status = $3,
			numero = $4, codigo_verificacao = $5, protocolo = $6,
			data_emissao = $7, competencia = $8,
			tomador_cpf_cnpj = $9, tomador_nome = $10, tomador_email = $11,
			tomador_telefone = $12, tomador_endereco = $13, tomador_numero = $14,
			tomador_complemento = $15, tomador_bairro = $16,
			tomador_codigo_municipio = $17, tomador_uf = $18, tomador_cep = $19,
			discriminacao = $20, item_lista_servico = $21, codigo_cnae = $22,
			codigo_tributacao_municipio = $23, municipio_incidencia = $24,
			valor_servicos = $25, valor_deducoes = $26, valor_pis = $27,
			valor_cofins = $28, valor_inss = $29, valor_ir = $30,
			valor_csll = $31, outras_retencoes = $32,
			desconto_incondicionado = $33, desconto_condicionado = $34,
			aliquota_iss = $35, iss_retido = $36, responsavel_retencao = $37,
			base_calculo = $38, valor_iss = $39, valor_liquido_nfse = $40,
			xml_envio = $41, xml_retorno = $42, mensagem_erro = $43,
			data_cancelamento = $44, motivo_cancelamento = $45,
			updated_at = $46
		WHERE id = $1 AND company_id = $2`
	args := []any{
		n.ID, n.CompanyID, n.Status,
		nullIfEmpty(n.Numero), nullIfEmpty(n.CodigoVerificacao), nullIfEmpty(n.Protocolo),
		n.DataEmissao, n.Competencia,
		nullIfEmpty(n.TomadorCpfCnpj), nullIfEmpty(n.TomadorNome), nullIfEmpty(n.TomadorEmail),
		nullIfEmpty(n.TomadorTelefone), nullIfEmpty(n.TomadorEndereco), nullIfEmpty(n.TomadorNumero),
		nullIfEmpty(n.TomadorComplemento), nullIfEmpty(n.TomadorBairro),
		nullIfEmpty(n.TomadorCodigoMunicipio), nullIfEmpty(n.TomadorUf), nullIfEmpty(n.TomadorCep),
		n.Discriminacao, nullIfEmpty(n.ItemListaServico), nullIfEmpty(n.CodigoCnae),
		nullIfEmpty(n.CodigoTributacaoMunicipio), nullIfEmpty(n.MunicipioIncidencia),
		n.ValorServicos, n.ValorDeducoes, n.ValorPis, n.ValorCofins, n.ValorInss,
		n.ValorIr, n.ValorCsll, n.OutrasRetencoes,
		n.DescontoIncondicionado, n.DescontoCondicionado,
		n.AliquotaIss, n.IssRetido, nullIfEmpty(n.ResponsavelRetencao),
		n.BaseCalculo, n.ValorIss, n.ValorLiquidoNfse,
		nullIfEmpty(n.XmlEnvio), nullIfEmpty(n.XmlRetorno), nullIfEmpty(n.MensagemErro),
		n.DataCancelamento, nullIfEmpty(n.MotivoCancelamento),
		n.UpdatedAt,
	}
	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update nfse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Delete remove a NFS-e da empresa.
func (r *NfseRepo) Delete(ctx context.Context, companyID, id string) error {
	tag, err := r.q.Exec(ctx, `DELETE FROM nfse WHERE id = $1 AND company_id = $2`, id, companyID)
	if err != nil {
		return fmt.Errorf("delete nfse: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// GetByID busca a NFS-e da empresa; (nil, nil) se não existir.
func (r *NfseRepo) GetByID(ctx context.Context, companyID, id string) (*entity.Nfse, error) {
	query := `SELECT ` + nfseColumns + ` FROM nfse WHERE id = $1 AND company_id = $2`
	n, err := scanNfse(r.q.QueryRow(ctx, query, id, companyID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get nfse: %w", err)
	}
	return n, nil
}

// List devolve as NFS-e da empresa, mais recentes primeiro.
func (r *NfseRepo) List(ctx context.Context, companyID string, limit, offset int) ([]*entity.Nfse, error) {
	query := `SELECT ` + nfseColumns + `
		FROM nfse WHERE company_id = $1
		ORDER BY numero_rps DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.q.Query(ctx, query, companyID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list nfse: %w", err)
	}
	defer rows.Close()

	var out []*entity.Nfse
	for rows.Next() {
		n, err := scanNfse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan nfse: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// MaxNumeroRps devolve o maior numero_rps da empresa (0 se não houver).
// O cast é necessário porque a coluna guarda o número com zeros à esquerda.
func (r *NfseRepo) MaxNumeroRps(ctx context.Context, companyID string) (int64, error) {
	var max int64
	err := r.q.QueryRow(ctx,
		`SELECT COALESCE(MAX(numero_rps::bigint), 0) FROM nfse WHERE company_id = $1`,
		companyID,
	).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max numero_rps: %w", err)
	}
	return max, nil
}

// bindArgs produz os binds do INSERT na ordem de nfseColumns.
func (r *NfseRepo) bindArgs(n *entity.Nfse) []any {
	return []any{
		n.ID, n.CompanyID, n.Status,
		n.NumeroRps, n.SerieRps, n.TipoRps,
		nullIfEmpty(n.Numero), nullIfEmpty(n.CodigoVerificacao), nullIfEmpty(n.Protocolo),
		n.DataEmissao, n.Competencia,
		nullIfEmpty(n.TomadorCpfCnpj), nullIfEmpty(n.TomadorNome), nullIfEmpty(n.TomadorEmail),
		nullIfEmpty(n.TomadorTelefone), nullIfEmpty(n.TomadorEndereco), nullIfEmpty(n.TomadorNumero),
		nullIfEmpty(n.TomadorComplemento), nullIfEmpty(n.TomadorBairro),
		nullIfEmpty(n.TomadorCodigoMunicipio), nullIfEmpty(n.TomadorUf), nullIfEmpty(n.TomadorCep),
		n.Discriminacao, nullIfEmpty(n.ItemListaServico), nullIfEmpty(n.CodigoCnae),
		nullIfEmpty(n.CodigoTributacaoMunicipio), nullIfEmpty(n.MunicipioIncidencia),
		n.ValorServicos, n.ValorDeducoes, n.ValorPis, n.ValorCofins, n.ValorInss,
		n.ValorIr, n.ValorCsll, n.OutrasRetencoes,
		n.DescontoIncondicionado, n.DescontoCondicionado,
		n.AliquotaIss, n.IssRetido, nullIfEmpty(n.ResponsavelRetencao),
		n.BaseCalculo, n.ValorIss, n.ValorLiquidoNfse,
		nullIfEmpty(n.XmlEnvio), nullIfEmpty(n.XmlRetorno), nullIfEmpty(n.MensagemErro),
		n.DataCancelamento, nullIfEmpty(n.MotivoCancelamento),
		n.CreatedAt, n.UpdatedAt,
	}
}

func scanNfse(row pgx.Row) (*entity.Nfse, error) {
	var n entity.Nfse
	var numero, codigoVerificacao, protocolo *string
	var tomadorCpfCnpj, tomadorNome, tomadorEmail, tomadorTelefone *string
	var tomadorEndereco, tomadorNumero, tomadorComplemento, tomadorBairro *string
	var tomadorCodigoMunicipio, tomadorUf, tomadorCep *string
	var itemListaServico, codigoCnae, codigoTributacao, municipioIncidencia *string
	var responsavelRetencao *string
	var xmlEnvio, xmlRetorno, mensagemErro, motivoCancelamento *string

	err := row.Scan(
		&n.ID, &n.CompanyID, &n.Status,
		&n.NumeroRps, &n.SerieRps, &n.TipoRps,
		&numero, &codigoVerificacao, &protocolo, &n.DataEmissao, &n.Competencia,
		&tomadorCpfCnpj, &tomadorNome, &tomadorEmail, &tomadorTelefone,
		&tomadorEndereco, &tomadorNumero, &tomadorComplemento, &tomadorBairro,
		&tomadorCodigoMunicipio, &tomadorUf, &tomadorCep,
		&n.Discriminacao, &itemListaServico, &codigoCnae,
		&codigoTributacao, &municipioIncidencia,
		&n.ValorServicos, &n.ValorDeducoes, &n.ValorPis, &n.ValorCofins, &n.ValorInss,
		&n.ValorIr, &n.ValorCsll, &n.OutrasRetencoes,
		&n.DescontoIncondicionado, &n.DescontoCondicionado,
		&n.AliquotaIss, &n.IssRetido, &responsavelRetencao,
		&n.BaseCalculo, &n.ValorIss, &n.ValorLiquidoNfse,
		&xmlEnvio, &xmlRetorno, &mensagemErro,
		&n.DataCancelamento, &motivoCancelamento,
		&n.CreatedAt, &n.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	n.Numero = derefStr(numero)
	n.CodigoVerificacao = derefStr(codigoVerificacao)
	n.Protocolo = derefStr(protocolo)
	n.TomadorCpfCnpj = derefStr(tomadorCpfCnpj)
	n.TomadorNome = derefStr(tomadorNome)
	n.TomadorEmail = derefStr(tomadorEmail)
	n.TomadorTelefone = derefStr(tomadorTelefone)
	n.TomadorEndereco = derefStr(tomadorEndereco)
	n.TomadorNumero = derefStr(tomadorNumero)
	n.TomadorComplemento = derefStr(tomadorComplemento)
	n.TomadorBairro = derefStr(tomadorBairro)
	n.TomadorCodigoMunicipio = derefStr(tomadorCodigoMunicipio)
	n.TomadorUf = derefStr(tomadorUf)
	n.TomadorCep = derefStr(tomadorCep)
	n.ItemListaServico = derefStr(itemListaServico)
	n.CodigoCnae = derefStr(codigoCnae)
	n.CodigoTributacaoMunicipio = derefStr(codigoTributacao)
	n.MunicipioIncidencia = derefStr(municipioIncidencia)
	n.ResponsavelRetencao = derefStr(responsavelRetencao)
	n.XmlEnvio = derefStr(xmlEnvio)
	n.XmlRetorno = derefStr(xmlRetorno)
	n.MensagemErro = derefStr(mensagemErro)
	n.MotivoCancelamento = derefStr(motivoCancelamento)
	return &n, nil
}
