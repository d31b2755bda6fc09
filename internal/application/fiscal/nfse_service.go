// Ciclo de vida da NFS-e: rascunho, envio à prefeitura, cancelamento.
//
//	RASCUNHO ──envio──▶ AUTORIZADA ──cancelamento──▶ CANCELADA
//	    │  ▲                ▲
//	    ▼  │                │ reenvio
//	  (edição)            ERRO
//
// Falha de transporte, de TLS ou resposta ambígua nunca muda o estado: o
// RPS só sai de RASCUNHO/ERRO quando a prefeitura responde algo conclusivo.

package fiscal

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/domain"
	"github.com/jhoicas/nfse-api/internal/domain/entity"
	domfiscal "github.com/jhoicas/nfse-api/internal/domain/fiscal"
	"github.com/jhoicas/nfse-api/internal/domain/repository"
	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
)

// Tentativas de atribuição do numeroRps antes de desistir. A unique
// constraint (company_id, numero_rps) detecta a corrida; a repetição a
// resolve.
const maxTentativasNumero = 3

// NfseService orquestra o ciclo de vida da NFS-e.
type NfseService struct {
	nfseRepo    repository.NfseRepository
	companyRepo repository.CompanyRepository
	txRunner    TxRunner
	builder     *infranfse.RpsBuilderService
	signer      Signer
	vault       SecretVault
	storage     CertificadoStore
	wsFactory   WSClientFactory
	cfg         Config
}

// NewNfseService constrói o serviço com todas as dependências.
func NewNfseService(
	nfseRepo repository.NfseRepository,
	companyRepo repository.CompanyRepository,
	txRunner TxRunner,
	builder *infranfse.RpsBuilderService,
	signer Signer,
	vault SecretVault,
	storage CertificadoStore,
	wsFactory WSClientFactory,
	cfg Config,
) *NfseService {
	return &NfseService{
		nfseRepo:    nfseRepo,
		companyRepo: companyRepo,
		txRunner:    txRunner,
		builder:     builder,
		signer:      signer,
		vault:       vault,
		storage:     storage,
		wsFactory:   wsFactory,
		cfg:         cfg,
	}
}

// Create cria um rascunho de NFS-e com o próximo numeroRps da empresa.
func (s *NfseService) Create(ctx context.Context, companyID string, in dto.CreateNfseRequest) (*dto.NfseResponse, error) {
	if in.Discriminacao == "" || !in.ValorServicos.IsPositive() {
		return nil, domain.ErrInvalidInput
	}

	now := time.Now()
	n := &entity.Nfse{
		ID:        uuid.New().String(),
		CompanyID: companyID,
		Status:    entity.NfseStatusRascunho,
		SerieRps:  infranfse.DefaultSerieRps,
		TipoRps:   infranfse.DefaultTipoRps,
		CreatedAt: now,
		UpdatedAt: now,
	}
	aplicarCreateRequest(n, in)
	recalcularDerivados(n)

	var lastErr error
	for tentativa := 0; tentativa < maxTentativasNumero; tentativa++ {
		lastErr = s.txRunner.RunNfse(ctx, func(repo repository.NfseRepository) error {
			max, err := repo.MaxNumeroRps(ctx, companyID)
			if err != nil {
				return err
			}
			n.NumeroRps = fmt.Sprintf("%06d", max+1)
			return repo.Create(ctx, n)
		})
		if lastErr == nil {
			return toNfseResponse(n), nil
		}
		if !errors.Is(lastErr, domain.ErrDuplicate) {
			return nil, lastErr
		}
	}
	return nil, lastErr
}

// GetByID busca uma NFS-e da empresa.
func (s *NfseService) GetByID(ctx context.Context, companyID, id string) (*dto.NfseResponse, error) {
	n, err := s.fetch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return toNfseResponse(n), nil
}

// GetXml devolve os XMLs de envio e retorno guardados para auditoria.
func (s *NfseService) GetXml(ctx context.Context, companyID, id string) (*dto.NfseXmlResponse, error) {
	n, err := s.fetch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	return &dto.NfseXmlResponse{ID: n.ID, XmlEnvio: n.XmlEnvio, XmlRetorno: n.XmlRetorno}, nil
}

// List lista as NFS-e da empresa, paginadas.
func (s *NfseService) List(ctx context.Context, companyID string, page dto.PageRequest) (*dto.NfseListResponse, error) {
	page.DefaultPage()
	notas, err := s.nfseRepo.List(ctx, companyID, page.Limit, page.Offset)
	if err != nil {
		return nil, err
	}
	items := make([]dto.NfseResponse, 0, len(notas))
	for _, n := range notas {
		items = append(items, *toNfseResponse(n))
	}
	return &dto.NfseListResponse{
		Items: items,
		Page:  dto.PageResponse{Limit: page.Limit, Offset: page.Offset},
	}, nil
}

// Update edita um rascunho. numeroRps nunca muda; os valores derivados são
// recalculados a cada edição.
func (s *NfseService) Update(ctx context.Context, companyID, id string, in dto.UpdateNfseRequest) (*dto.NfseResponse, error) {
	n, err := s.fetch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !n.PodeEditar() {
		return nil, domain.ErrConflict
	}

	aplicarUpdateRequest(n, in)
	if n.Discriminacao == "" || !n.ValorServicos.IsPositive() {
		return nil, domain.ErrInvalidInput
	}
	recalcularDerivados(n)
	n.UpdatedAt = time.Now()

	if err := s.nfseRepo.Update(ctx, n); err != nil {
		return nil, err
	}
	return toNfseResponse(n), nil
}

// Delete remove um rascunho. Notas autorizadas não se apagam, cancelam-se.
func (s *NfseService) Delete(ctx context.Context, companyID, id string) error {
	n, err := s.fetch(ctx, companyID, id)
	if err != nil {
		return err
	}
	if !n.PodeEditar() {
		return domain.ErrConflict
	}
	return s.nfseRepo.Delete(ctx, companyID, id)
}

// Send emite a NFS-e: monta o RPS, assina, envia e aplica o desfecho.
// Com Simular, o envio é sintetizado localmente sem tocar a prefeitura,
// mas o XML composto (assinado, se houver certificado) fica guardado.
func (s *NfseService) Send(ctx context.Context, companyID, id string, in dto.EnviarNfseRequest) (*dto.NfseResponse, error) {
	n, err := s.fetch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if !n.PodeEnviar() {
		return nil, domain.ErrConflict
	}

	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}
	if !company.DadosFiscaisCompletos() {
		return nil, domain.ErrDadosFiscais
	}

	xmlRps, err := s.builder.BuildRps(&infranfse.RpsBuildContext{Nfse: n, Company: company})
	if err != nil {
		return nil, err
	}

	if in.Simular {
		return s.sendSimulado(ctx, n, company, xmlRps)
	}
	return s.sendReal(ctx, n, company, xmlRps)
}

// sendSimulado sintetiza a autorização: número derivado do ano + numeroRps,
// código de verificação aleatório, sem ida à prefeitura.
func (s *NfseService) sendSimulado(ctx context.Context, n *entity.Nfse, company *entity.Company, xmlRps []byte) (*dto.NfseResponse, error) {
	xmlEnvio := xmlRps
	if bundle, _, _, err := s.loadBundle(company); err == nil {
		defer bundle.Close()
		if signed, errSign := s.signer.Sign(xmlRps, bundle, infranfse.ReferenceID(n.NumeroRps)); errSign == nil {
			xmlEnvio = signed
		}
	}

	now := time.Now()
	n.Numero = fmt.Sprintf("%d%s", now.Year(), n.NumeroRps)
	n.CodigoVerificacao = codigoAleatorio(8)
	n.Protocolo = "SIM-" + uuid.New().String()
	n.DataEmissao = &now
	n.XmlEnvio = string(xmlEnvio)
	n.XmlRetorno = ""
	n.MensagemErro = ""
	n.Status = entity.NfseStatusAutorizada
	n.UpdatedAt = now

	if err := s.nfseRepo.Update(ctx, n); err != nil {
		return nil, err
	}
	log.Info().Str("nfse_id", n.ID).Str("numero", n.Numero).Msg("emissão simulada autorizada")
	return toNfseResponse(n), nil
}

// sendReal assina, envia por mTLS e aplica o desfecho da resposta.
func (s *NfseService) sendReal(ctx context.Context, n *entity.Nfse, company *entity.Company, xmlRps []byte) (*dto.NfseResponse, error) {
	bundle, senha, pfx, err := s.loadBundle(company)
	if err != nil {
		return nil, err
	}
	defer bundle.Close()

	signed, err := s.signer.Sign(xmlRps, bundle, infranfse.ReferenceID(n.NumeroRps))
	if err != nil {
		return nil, err
	}

	client, err := s.wsFactory(infranfse.ClientConfig{
		Environment:         s.cfg.Ambiente,
		CertificatePFX:      pfx,
		CertificatePassword: senha,
	})
	if err != nil {
		return nil, err
	}

	raw, err := client.Send(ctx, signed, infranfse.OpRecepcionarLoteRps)
	if err != nil {
		// Sem resposta não há desfecho: estado intacto, reenvio permitido.
		return nil, err
	}

	result, err := infranfse.ParseResposta(raw)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	n.XmlEnvio = string(signed)
	n.XmlRetorno = result.Raw
	n.UpdatedAt = now

	switch result.Outcome {
	case infranfse.OutcomeAceita:
		n.Numero = result.Numero
		n.CodigoVerificacao = result.CodigoVerificacao
		n.Protocolo = result.Protocolo
		if result.DataEmissao != nil {
			n.DataEmissao = result.DataEmissao
		} else {
			n.DataEmissao = &now
		}
		n.MensagemErro = ""
		n.Status = entity.NfseStatusAutorizada
		if err := s.nfseRepo.Update(ctx, n); err != nil {
			return nil, err
		}
		return toNfseResponse(n), nil

	case infranfse.OutcomeRejeitada:
		n.MensagemErro = result.Mensagem()
		n.Status = entity.NfseStatusErro
		if err := s.nfseRepo.Update(ctx, n); err != nil {
			return nil, err
		}
		log.Warn().Str("nfse_id", n.ID).Str("erros", n.MensagemErro).Msg("RPS rejeitado pela prefeitura")
		return toNfseResponse(n), fmt.Errorf("%w: %s", domain.ErrRejeitada, n.MensagemErro)

	default:
		// Resposta sem NFS-e e sem erros: pode ter sido emitida do outro
		// lado. Guarda os XMLs, mantém o estado e devolve ao operador.
		if err := s.nfseRepo.Update(ctx, n); err != nil {
			return nil, err
		}
		log.Warn().Str("nfse_id", n.ID).Msg("resposta ambígua da prefeitura; estado mantido")
		return toNfseResponse(n), domain.ErrRespostaAmbigua
	}
}

// Cancel cancela uma NFS-e autorizada junto à prefeitura.
func (s *NfseService) Cancel(ctx context.Context, companyID, id string, in dto.CancelarNfseRequest) (*dto.NfseResponse, error) {
	n, err := s.fetch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if n.Status == entity.NfseStatusAutorizada && n.Numero == "" {
		return nil, domain.ErrNumeroAusente
	}
	if !n.PodeCancelar() {
		return nil, domain.ErrConflict
	}

	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}

	now := time.Now()
	if in.Simular {
		n.Status = entity.NfseStatusCancelada
		n.DataCancelamento = &now
		n.MotivoCancelamento = in.Motivo
		n.UpdatedAt = now
		if err := s.nfseRepo.Update(ctx, n); err != nil {
			return nil, err
		}
		return toNfseResponse(n), nil
	}

	xmlCancel, err := s.builder.BuildCancelamento(&infranfse.CancelBuildContext{
		NumeroNfse:         n.Numero,
		Cnpj:               company.CNPJ,
		InscricaoMunicipal: company.InscricaoMunicipal,
		CodigoMunicipio:    company.CodigoMunicipio,
	})
	if err != nil {
		return nil, err
	}

	bundle, senha, pfx, err := s.loadBundle(company)
	if err != nil {
		return nil, err
	}
	defer bundle.Close()

	signed, err := s.signer.Sign(xmlCancel, bundle, infranfse.CancelReferenceID(n.Numero))
	if err != nil {
		return nil, err
	}

	client, err := s.wsFactory(infranfse.ClientConfig{
		Environment:         s.cfg.Ambiente,
		CertificatePFX:      pfx,
		CertificatePassword: senha,
	})
	if err != nil {
		return nil, err
	}
	raw, err := client.Send(ctx, signed, infranfse.OpCancelarNfse)
	if err != nil {
		return nil, err
	}
	result, err := infranfse.ParseResposta(raw)
	if err != nil {
		return nil, err
	}

	switch result.Outcome {
	case infranfse.OutcomeAceita:
		n.Status = entity.NfseStatusCancelada
		n.DataCancelamento = &now
		n.MotivoCancelamento = in.Motivo
		n.XmlRetorno = result.Raw
		n.UpdatedAt = now
		if err := s.nfseRepo.Update(ctx, n); err != nil {
			return nil, err
		}
		return toNfseResponse(n), nil
	case infranfse.OutcomeRejeitada:
		return toNfseResponse(n), fmt.Errorf("%w: %s", domain.ErrRejeitada, result.Mensagem())
	default:
		return toNfseResponse(n), domain.ErrRespostaAmbigua
	}
}

// ConsultarPorRps consulta na prefeitura a NFS-e gerada a partir do RPS.
// Operação de leitura: não muda estado local.
func (s *NfseService) ConsultarPorRps(ctx context.Context, companyID, id string) (*infranfse.WSResult, error) {
	n, err := s.fetch(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}

	payload, err := s.builder.BuildConsultaRps(n.NumeroRps, n.SerieRps, n.TipoRps, company.CNPJ, company.InscricaoMunicipal)
	if err != nil {
		return nil, err
	}
	return s.consultar(ctx, company, payload, infranfse.OpConsultarNfseRps)
}

// ConsultarLote consulta o lote pelo protocolo devolvido no envio.
func (s *NfseService) ConsultarLote(ctx context.Context, companyID, protocolo string) (*infranfse.WSResult, error) {
	company, err := s.companyRepo.GetByID(ctx, companyID)
	if err != nil {
		return nil, err
	}
	if company == nil {
		return nil, domain.ErrNotFound
	}

	payload, err := s.builder.BuildConsultaLote(protocolo, company.CNPJ, company.InscricaoMunicipal)
	if err != nil {
		return nil, err
	}
	return s.consultar(ctx, company, payload, infranfse.OpConsultarLoteRps)
}

func (s *NfseService) consultar(ctx context.Context, company *entity.Company, payload []byte, op string) (*infranfse.WSResult, error) {
	bundle, senha, pfx, err := s.loadBundle(company)
	if err != nil {
		return nil, err
	}
	bundle.Close()

	client, err := s.wsFactory(infranfse.ClientConfig{
		Environment:         s.cfg.Ambiente,
		CertificatePFX:      pfx,
		CertificatePassword: senha,
	})
	if err != nil {
		return nil, err
	}
	raw, err := client.Send(ctx, payload, op)
	if err != nil {
		return nil, err
	}
	return infranfse.ParseResposta(raw)
}

// fetch busca a nota e normaliza ausência em ErrNotFound.
func (s *NfseService) fetch(ctx context.Context, companyID, id string) (*entity.Nfse, error) {
	n, err := s.nfseRepo.GetByID(ctx, companyID, id)
	if err != nil {
		return nil, err
	}
	if n == nil {
		return nil, domain.ErrNotFound
	}
	return n, nil
}

// loadBundle decifra a senha, lê o PFX do disco e valida a janela do
// certificado. Devolve também a senha em claro e os bytes do PFX porque o
// canal mTLS precisa dos dois.
func (s *NfseService) loadBundle(company *entity.Company) (*infranfse.CertificateBundle, string, []byte, error) {
	if !company.TemCertificado() {
		return nil, "", nil, domain.ErrCertificadoAusente
	}
	senha, err := s.vault.Decrypt(company.CertificadoSenha)
	if err != nil {
		return nil, "", nil, err
	}
	pfx, err := s.storage.Read(company.CertificadoPfx)
	if err != nil {
		return nil, "", nil, err
	}
	bundle, err := infranfse.LoadBundle(pfx, senha)
	if err != nil {
		return nil, "", nil, err
	}
	if v := bundle.Validate(time.Now()); !v.IsValid {
		bundle.Close()
		return nil, "", nil, fmt.Errorf("%w: %s", domain.ErrCertificadoInvalido, v.Message)
	}
	return bundle, senha, pfx, nil
}

func recalcularDerivados(n *entity.Nfse) {
	d := domfiscal.Calcular(domfiscal.Valores{
		ValorServicos:          n.ValorServicos,
		ValorDeducoes:          n.ValorDeducoes,
		DescontoIncondicionado: n.DescontoIncondicionado,
		AliquotaIss:            n.AliquotaIss,
		IssRetido:              n.IssRetido,
	})
	n.BaseCalculo = d.BaseCalculo
	n.ValorIss = d.ValorIss
	n.ValorLiquidoNfse = d.ValorLiquidoNfse
}

const alfabetoCodigo = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// codigoAleatorio gera o código de verificação sintético das emissões
// simuladas.
func codigoAleatorio(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return uuid.New().String()[:n]
	}
	for i := range buf {
		buf[i] = alfabetoCodigo[int(buf[i])%len(alfabetoCodigo)]
	}
	return string(buf)
}

func aplicarCreateRequest(n *entity.Nfse, in dto.CreateNfseRequest) {
	if in.Competencia != nil {
		n.Competencia = *in.Competencia
	}
	n.TomadorCpfCnpj = in.TomadorCpfCnpj
	n.TomadorNome = in.TomadorNome
	n.TomadorEndereco = in.TomadorEndereco
	n.TomadorNumero = in.TomadorNumero
	n.TomadorComplemento = in.TomadorComplemento
	n.TomadorBairro = in.TomadorBairro
	n.TomadorCodigoMunicipio = in.TomadorCodigoMunicipio
	n.TomadorUf = in.TomadorUf
	n.TomadorCep = in.TomadorCep
	n.TomadorTelefone = in.TomadorTelefone
	n.TomadorEmail = in.TomadorEmail
	n.Discriminacao = in.Discriminacao
	n.ItemListaServico = in.ItemListaServico
	n.CodigoCnae = in.CodigoCnae
	n.CodigoTributacaoMunicipio = in.CodigoTributacaoMunicipio
	n.MunicipioIncidencia = in.MunicipioIncidencia
	n.ValorServicos = in.ValorServicos
	n.ValorDeducoes = in.ValorDeducoes
	n.ValorPis = in.ValorPis
	n.ValorCofins = in.ValorCofins
	n.ValorInss = in.ValorInss
	n.ValorIr = in.ValorIr
	n.ValorCsll = in.ValorCsll
	n.DescontoIncondicionado = in.DescontoIncondicionado
	n.DescontoCondicionado = in.DescontoCondicionado
	n.AliquotaIss = in.AliquotaIss
	n.IssRetido = in.IssRetido
}

func aplicarUpdateRequest(n *entity.Nfse, in dto.UpdateNfseRequest) {
	if in.Competencia != nil {
		n.Competencia = *in.Competencia
	}
	if in.TomadorCpfCnpj != nil {
		n.TomadorCpfCnpj = *in.TomadorCpfCnpj
	}
	if in.TomadorNome != nil {
		n.TomadorNome = *in.TomadorNome
	}
	if in.TomadorEndereco != nil {
		n.TomadorEndereco = *in.TomadorEndereco
	}
	if in.TomadorNumero != nil {
		n.TomadorNumero = *in.TomadorNumero
	}
	if in.TomadorComplemento != nil {
		n.TomadorComplemento = *in.TomadorComplemento
	}
	if in.TomadorBairro != nil {
		n.TomadorBairro = *in.TomadorBairro
	}
	if in.TomadorCodigoMunicipio != nil {
		n.TomadorCodigoMunicipio = *in.TomadorCodigoMunicipio
	}
	if in.TomadorUf != nil {
		n.TomadorUf = *in.TomadorUf
	}
	if in.TomadorCep != nil {
		n.TomadorCep = *in.TomadorCep
	}
	if in.TomadorTelefone != nil {
		n.TomadorTelefone = *in.TomadorTelefone
	}
	if in.TomadorEmail != nil {
		n.TomadorEmail = *in.TomadorEmail
	}
	if in.Discriminacao != nil {
		n.Discriminacao = *in.Discriminacao
	}
	if in.ItemListaServico != nil {
		n.ItemListaServico = *in.ItemListaServico
	}
	if in.CodigoCnae != nil {
		n.CodigoCnae = *in.CodigoCnae
	}
	if in.CodigoTributacaoMunicipio != nil {
		n.CodigoTributacaoMunicipio = *in.CodigoTributacaoMunicipio
	}
	if in.MunicipioIncidencia != nil {
		n.MunicipioIncidencia = *in.MunicipioIncidencia
	}
	if in.ValorServicos != nil {
		n.ValorServicos = *in.ValorServicos
	}
	if in.ValorDeducoes != nil {
		n.ValorDeducoes = *in.ValorDeducoes
	}
	if in.ValorPis != nil {
		n.ValorPis = *in.ValorPis
	}
	if in.ValorCofins != nil {
		n.ValorCofins = *in.ValorCofins
	}
	if in.ValorInss != nil {
		n.ValorInss = *in.ValorInss
	}
	if in.ValorIr != nil {
		n.ValorIr = *in.ValorIr
	}
	if in.ValorCsll != nil {
		n.ValorCsll = *in.ValorCsll
	}
	if in.DescontoIncondicionado != nil {
		n.DescontoIncondicionado = *in.DescontoIncondicionado
	}
	if in.DescontoCondicionado != nil {
		n.DescontoCondicionado = *in.DescontoCondicionado
	}
	if in.AliquotaIss != nil {
		n.AliquotaIss = *in.AliquotaIss
	}
	if in.IssRetido != nil {
		n.IssRetido = *in.IssRetido
	}
}

func toNfseResponse(n *entity.Nfse) *dto.NfseResponse {
	resp := &dto.NfseResponse{
		ID:                n.ID,
		CompanyID:         n.CompanyID,
		Status:            n.Status,
		NumeroRps:         n.NumeroRps,
		SerieRps:          n.SerieRps,
		Numero:            n.Numero,
		CodigoVerificacao: n.CodigoVerificacao,
		Protocolo:         n.Protocolo,
		DataEmissao:       n.DataEmissao,

		TomadorCpfCnpj: n.TomadorCpfCnpj,
		TomadorNome:    n.TomadorNome,

		Discriminacao:    n.Discriminacao,
		ItemListaServico: n.ItemListaServico,

		ValorServicos:    n.ValorServicos,
		ValorDeducoes:    n.ValorDeducoes,
		AliquotaIss:      n.AliquotaIss,
		IssRetido:        n.IssRetido,
		BaseCalculo:      n.BaseCalculo,
		ValorIss:         n.ValorIss,
		ValorLiquidoNfse: n.ValorLiquidoNfse,

		MensagemErro:       n.MensagemErro,
		DataCancelamento:   n.DataCancelamento,
		MotivoCancelamento: n.MotivoCancelamento,

		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
	if !n.Competencia.IsZero() {
		c := n.Competencia
		resp.Competencia = &c
	}
	return resp
}
