package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/nfse-api/internal/application/fiscal"
)

// RouterDeps dependências para o router.
type RouterDeps struct {
	NfseService        *fiscal.NfseService
	CertificadoService *fiscal.CertificadoService
	JWTSecret          string
}

// Router registra as rotas da API. Toda a emissão é protegida por
// Bearer Token; o companyID vem sempre do token (multi-tenant).
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rotas protegidas (requerem Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	// NFS-e (protegido)
	nfse := protected.Group("/nfse")
	nfseHandler := NewNfseHandler(deps.NfseService)
	nfse.Post("/", nfseHandler.Create)
	nfse.Get("/", nfseHandler.List)
	nfse.Get("/lote/:protocolo", nfseHandler.ConsultarLote)
	nfse.Get("/:id", nfseHandler.GetByID)
	nfse.Get("/:id/xml", nfseHandler.GetXml)
	nfse.Put("/:id", nfseHandler.Update)
	nfse.Delete("/:id", nfseHandler.Delete)
	nfse.Post("/:id/enviar", nfseHandler.Send)
	nfse.Post("/:id/cancelar", nfseHandler.Cancel)
	nfse.Get("/:id/consulta", nfseHandler.ConsultarRps)

	// Certificado digital e perfil fiscal (protegido)
	certHandler := NewCertificadoHandler(deps.CertificadoService)
	cert := protected.Group("/certificado")
	cert.Post("/", certHandler.Upload)
	cert.Get("/", certHandler.Status)
	cert.Delete("/", certHandler.Remove)

	dadosFiscais := protected.Group("/dados-fiscais")
	dadosFiscais.Get("/", certHandler.DadosFiscais)
	dadosFiscais.Put("/", certHandler.AtualizarDadosFiscais)
}
