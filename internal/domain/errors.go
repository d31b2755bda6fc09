package domain

import "errors"

// Erros de domínio (sem dependências externas).
var (
	ErrNotFound            = errors.New("recurso não encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("não autorizado")
	ErrForbidden           = errors.New("acesso negado")
	ErrConflict            = errors.New("conflito com o estado atual")
	ErrDadosFiscais        = errors.New("dados fiscais incompletos: configure CNPJ e inscrição municipal")
	ErrCertificadoAusente  = errors.New("nenhum certificado digital configurado")
	ErrCertificadoInvalido = errors.New("certificado digital inválido ou expirado")
	ErrNumeroAusente       = errors.New("NFS-e sem número atribuído pela prefeitura")
	ErrRejeitada           = errors.New("pedido rejeitado pela prefeitura")
	ErrRespostaAmbigua     = errors.New("resposta da prefeitura inconclusiva; verifique manualmente antes de reenviar")
)
