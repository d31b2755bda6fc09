// Cliente SOAP 1.1 do ISS Net Goiânia. O canal exige TLS mútuo com o mesmo
// certificado A1 que assina os XMLs; fora de produção a cadeia do servidor
// de homologação não valida, então a verificação fica só no ambiente
// produtivo.

package nfse

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/crypto/pkcs12"
)

// Ambientes suportados.
const (
	EnvProducao    = "producao"
	EnvHomologacao = "homologacao"
)

// Endpoints do ISS Net Goiânia.
const (
	endpointProducao    = "https://nfse.goiania.go.gov.br/ws/nfse.asmx"
	endpointHomologacao = "https://homologacao.nfse.goiania.go.gov.br/ws/nfse.asmx"
)

// Operações do contrato ABRASF. O SOAPAction é sempre namespace + "/" + operação.
const (
	OpRecepcionarLoteRps = "RecepcionarLoteRps"
	OpConsultarNfseRps   = "ConsultarNfseRps"
	OpConsultarLoteRps   = "ConsultarLoteRps"
	OpCancelarNfse       = "CancelarNfse"
)

const (
	soapTimeout     = 30 * time.Second
	maxResponseSize = 1 << 20 // respostas da prefeitura são pequenas; 1MB é teto folgado
)

// Erros de transporte. ErrConfigTLS indica problema local de configuração
// do canal; ErrComunicacao indica falha de rede ou timeout já com o canal
// montado. Nos dois casos nenhum estado de documento deve mudar.
var (
	ErrConfigTLS   = errors.New("nfse: falha ao configurar canal TLS mútuo")
	ErrComunicacao = errors.New("nfse: falha de comunicação com a prefeitura")
)

// ClientConfig parametriza o canal por empresa: cada envio usa o
// certificado da empresa emissora.
type ClientConfig struct {
	Environment         string // EnvProducao ou EnvHomologacao
	CertificatePFX      []byte
	CertificatePassword string
}

// SOAPClient envia envelopes SOAP 1.1 para o webservice municipal.
type SOAPClient struct {
	httpClient *http.Client
	endpoint   string
}

// NewSOAPClient monta o canal mTLS a partir do PFX da empresa. Erros aqui
// são sempre ErrConfigTLS: certificado ilegível, senha errada, ambiente
// desconhecido.
func NewSOAPClient(cfg ClientConfig) (*SOAPClient, error) {
	endpoint := endpointHomologacao
	switch cfg.Environment {
	case EnvProducao:
		endpoint = endpointProducao
	case EnvHomologacao, "":
	default:
		return nil, fmt.Errorf("%w: ambiente desconhecido %q", ErrConfigTLS, cfg.Environment)
	}

	priv, cert, err := pkcs12.Decode(cfg.CertificatePFX, cfg.CertificatePassword)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigTLS, err)
	}
	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  priv,
		Leaf:        cert,
	}

	tlsConfig := &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		// A cadeia do servidor de homologação não fecha com as ACs públicas.
		InsecureSkipVerify: cfg.Environment != EnvProducao,
	}

	return &SOAPClient{
		endpoint: endpoint,
		httpClient: &http.Client{
			Timeout: soapTimeout,
			Transport: &http.Transport{
				TLSClientConfig: tlsConfig,
			},
		},
	}, nil
}

// Send embala payload no envelope SOAP 1.1 e posta no endpoint com o
// SOAPAction da operação. Devolve o corpo bruto mesmo em status não-2xx:
// a prefeitura responde erro de negócio com HTTP 500 e corpo útil, e quem
// classifica é o interpretador de resposta.
func (c *SOAPClient) Send(ctx context.Context, payload []byte, operation string) ([]byte, error) {
	envelope := buildEnvelope(payload, operation)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(envelope))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrComunicacao, err)
	}
	req.Header.Set("Content-Type", `text/xml; charset=utf-8`)
	req.Header.Set("SOAPAction", NamespaceABRASF+"/"+operation)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrComunicacao, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %v", ErrComunicacao, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("%w: lendo resposta: %v", ErrComunicacao, err)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: resposta vazia (HTTP %d)", ErrComunicacao, resp.StatusCode)
	}
	return body, nil
}

// buildEnvelope monta o envelope SOAP 1.1 com o documento ABRASF já
// assinado embutido no elemento da operação.
func buildEnvelope(payload []byte, operation string) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="utf-8"?>`)
	buf.WriteString(`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/"`)
	buf.WriteString(` xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"`)
	buf.WriteString(` xmlns:xsd="http://www.w3.org/2001/XMLSchema">`)
	buf.WriteString(`<soap:Body>`)
	buf.WriteString(`<` + operation + ` xmlns="` + NamespaceABRASF + `">`)
	buf.Write(payload)
	buf.WriteString(`</` + operation + `>`)
	buf.WriteString(`</soap:Body>`)
	buf.WriteString(`</soap:Envelope>`)
	return buf.Bytes()
}
