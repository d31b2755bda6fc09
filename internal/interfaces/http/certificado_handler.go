package http

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/dto"
	"github.com/jhoicas/nfse-api/internal/application/fiscal"
)

// CertificadoHandler trata o certificado digital A1 e o perfil fiscal da empresa.
type CertificadoHandler struct {
	svc *fiscal.CertificadoService
}

func NewCertificadoHandler(svc *fiscal.CertificadoService) *CertificadoHandler {
	return &CertificadoHandler{svc: svc}
}

// Upload godoc
// @Summary      Enviar certificado digital A1 (.pfx/.p12)
// @Tags         certificado
// @Accept       multipart/form-data
// @Produce      json
// @Param        certificado  formData  file    true  "Arquivo .pfx ou .p12"
// @Param        senha        formData  string  true  "Senha do certificado"
// @Success      200  {object}  dto.CertificadoStatusResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/certificado [post]
func (h *CertificadoHandler) Upload(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	fileHeader, err := c.FormFile("certificado")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_FILE", Message: "arquivo 'certificado' obrigatório"})
	}
	senha := c.FormValue("senha")
	if senha == "" {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "MISSING_SENHA", Message: "campo 'senha' obrigatório"})
	}

	f, err := fileHeader.Open()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_FILE", Message: "não foi possível ler o arquivo"})
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_FILE", Message: "não foi possível ler o arquivo"})
	}

	out, err := h.svc.Upload(c.Context(), companyID, fileHeader.Filename, data, senha)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// Status godoc
// @Summary      Situação do certificado digital da empresa
// @Tags         certificado
// @Produce      json
// @Success      200  {object}  dto.CertificadoStatusResponse
// @Router       /api/certificado [get]
func (h *CertificadoHandler) Status(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.svc.Status(c.Context(), companyID)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// Remove godoc
// @Summary      Remover o certificado digital da empresa
// @Tags         certificado
// @Success      204
// @Router       /api/certificado [delete]
func (h *CertificadoHandler) Remove(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	if err := h.svc.Remove(c.Context(), companyID); err != nil {
		return fiscalError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// DadosFiscais godoc
// @Summary      Obter o perfil fiscal da empresa
// @Tags         certificado
// @Produce      json
// @Success      200  {object}  dto.DadosFiscaisResponse
// @Router       /api/dados-fiscais [get]
func (h *CertificadoHandler) DadosFiscais(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	out, err := h.svc.DadosFiscais(c.Context(), companyID)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}

// AtualizarDadosFiscais godoc
// @Summary      Atualizar o perfil fiscal da empresa
// @Tags         certificado
// @Accept       json
// @Produce      json
// @Param        body  body  dto.DadosFiscaisRequest  true  "Campos a alterar"
// @Success      200   {object}  dto.DadosFiscaisResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Router       /api/dados-fiscais [put]
func (h *CertificadoHandler) AtualizarDadosFiscais(c *fiber.Ctx) error {
	companyID := GetCompanyID(c)
	if companyID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"})
	}
	var in dto.DadosFiscaisRequest
	if err := c.BodyParser(&in); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "INVALID_BODY", Message: "corpo inválido"})
	}
	out, err := h.svc.AtualizarDadosFiscais(c.Context(), companyID, in)
	if err != nil {
		return fiscalError(c, err)
	}
	return c.JSON(out)
}
