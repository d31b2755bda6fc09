package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/application/fiscal"
	"github.com/jhoicas/nfse-api/internal/domain"
	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
)

// NfseHandler trata as requisições HTTP do recurso NFS-e (protegido).
type NfseHandler struct {
	svc *fiscal.NfseService
}

// NewNfseHandler constrói o handler injetando o serviço.
func NewNfseHandler(svc *fiscal.NfseService) *NfseHandler {
	return &NfseHandler{svc: svc}
}

// fiscalError mapeia os erros de domínio da emissão para status HTTP.
// Os handlers de NFS-e e certificado compartilham este mapeamento.
func fiscalError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	case errors.Is(err, domain.ErrNotFound):
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "NFS-e não encontrada"})
	case errors.Is(err, domain.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "acesso negado ao recurso"})
	case errors.Is(err, domain.ErrConflict):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "CONFLICT", Message: err.Error()})
	case errors.Is(err, domain.ErrNumeroAusente):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "NUMERO_AUSENTE", Message: err.Error()})
	case errors.Is(err, domain.ErrDadosFiscais):
		return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "DADOS_FISCAIS", Message: err.Error()})
	case errors.Is(err, domain.ErrCertificadoAusente):
		return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "CERTIFICADO_AUSENTE", Message: err.Error()})
	case errors.Is(err, domain.ErrCertificadoInvalido):
		return c.Status(fiber.StatusPreconditionFailed).JSON(dto.ErrorResponse{Code: "CERTIFICADO_INVALIDO", Message: err.Error()})
	case errors.Is(err, domain.ErrRejeitada):
		// A rejeição já foi persistida (status ERRO); o cliente pode corrigir e reenviar.
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.ErrorResponse{Code: "REJEITADA", Message: err.Error()})
	case errors.Is(err, domain.ErrRespostaAmbigua):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "RESPOSTA_AMBIGUA", Message: err.Error()})
	case errors.Is(err, infranfse.ErrComunicacao):
		return c.Status(fiber.StatusBadGateway).JSON(dto.ErrorResponse{Code: "COMUNICACAO", Message: err.Error()})
	case errors.Is(err, infranfse.ErrSenhaIncorreta):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "SENHA_INCORRETA", Message: err.Error()})
	case errors.Is(err, infranfse.ErrContainerInvalido):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "CONTAINER_INVALIDO", Message: err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

// Create godoc
// @Summary      Criar rascunho de NFS-e
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Param        body  body  dto.CreateNfseRequest  true  "Dados da NFS-e"
// @Success      201   {object}  dto.NfseResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/nfse [post]
func (h *NfseHandler) Create(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.CreateNfseRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	out, err := h.svc.Create(c.Context(), companyID, in)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(out)
}

// List godoc
// @Summary      Listar NFS-e da empresa
// @Tags         nfse
// @Produce      json
// @Param        limit   query  int  false  "Limite"  default(20)
// @Param        offset  query  int  false  "Offset"  default(0)
// @Success      200     {object}  dto.NfseListResponse
// @Router       /api/nfse [get]
func (h *NfseHandler) List(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	page := dto.PageRequest{
		Limit:  c.QueryInt("limit", 20),
		Offset: c.QueryInt("offset", 0),
	}
	if page.Limit > 100 {
		page.Limit = 100
	}
	page.DefaultPage()
	out, err := h.svc.List(c.Context(), companyID, page)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// GetByID godoc
// @Summary      Obter NFS-e por ID
// @Tags         nfse
// @Produce      json
// @Param        id   path  string  true  "ID da NFS-e"
// @Success      200  {object}  dto.NfseResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/nfse/{id} [get]
func (h *NfseHandler) GetByID(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id obrigatório"})
	}
	out, err := h.svc.GetByID(c.Context(), companyID, id)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// GetXml godoc
// @Summary      Obter XMLs de envio e retorno da NFS-e
// @Tags         nfse
// @Produce      json
// @Param        id   path  string  true  "ID da NFS-e"
// @Success      200  {object}  dto.NfseXmlResponse
// @Router       /api/nfse/{id}/xml [get]
func (h *NfseHandler) GetXml(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id obrigatório"})
	}
	out, err := h.svc.GetXml(c.Context(), companyID, id)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// Update godoc
// @Summary      Editar rascunho de NFS-e
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true  "ID da NFS-e"
// @Param        body  body  dto.UpdateNfseRequest  true  "Campos a alterar"
// @Success      200   {object}  dto.NfseResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/nfse/{id} [put]
func (h *NfseHandler) Update(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id obrigatório"})
	}
	var in dto.UpdateNfseRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	out, err := h.svc.Update(c.Context(), companyID, id, in)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// Delete godoc
// @Summary      Excluir rascunho de NFS-e
// @Tags         nfse
// @Param        id  path  string  true  "ID da NFS-e"
// @Success      204
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/nfse/{id} [delete]
func (h *NfseHandler) Delete(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id obrigatório"})
	}
	if err := h.svc.Delete(c.Context(), companyID, id); err != nil {
		return fiscalError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Send godoc
// @Summary      Enviar NFS-e à prefeitura (ou simular)
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Param        id    path  string                 true   "ID da NFS-e"
// @Param        body  body  dto.EnviarNfseRequest  false  "Parâmetros do envio"
// @Success      200   {object}  dto.NfseResponse
// @Failure      422   {object}  dto.ErrorResponse
// @Router       /api/nfse/{id}/enviar [post]
func (h *NfseHandler) Send(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id obrigatório"})
	}
	var in dto.EnviarNfseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
		}
	}
	out, err := h.svc.Send(c.Context(), companyID, id, in)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// Cancel godoc
// @Summary      Cancelar NFS-e autorizada
// @Tags         nfse
// @Accept       json
// @Produce      json
// @Param        id    path  string                   true   "ID da NFS-e"
// @Param        body  body  dto.CancelarNfseRequest  false  "Parâmetros do cancelamento"
// @Success      200   {object}  dto.NfseResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/nfse/{id}/cancelar [post]
func (h *NfseHandler) Cancel(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id obrigatório"})
	}
	var in dto.CancelarNfseRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
		}
	}
	out, err := h.svc.Cancel(c.Context(), companyID, id, in)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// ConsultarRps godoc
// @Summary      Consultar NFS-e por RPS junto à prefeitura
// @Tags         nfse
// @Produce      json
// @Param        id  path  string  true  "ID da NFS-e"
// @Success      200
// @Router       /api/nfse/{id}/consulta [get]
func (h *NfseHandler) ConsultarRps(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_ID", Message: "id obrigatório"})
	}
	out, err := h.svc.ConsultarPorRps(c.Context(), companyID, id)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// ConsultarLote godoc
// @Summary      Consultar lote por protocolo junto à prefeitura
// @Tags         nfse
// @Produce      json
// @Param        protocolo  path  string  true  "Protocolo do lote"
// @Success      200
// @Router       /api/nfse/lote/{protocolo} [get]
func (h *NfseHandler) ConsultarLote(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	protocolo := c.Params("protocolo")
	if protocolo == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_PROTOCOLO", Message: "protocolo obrigatório"})
	}
	out, err := h.svc.ConsultarLote(c.Context(), companyID, protocolo)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}
