package nfse

import (
	"fmt"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// Outcome classifica a resposta do webservice em três destinos. O corpo que
// não traz nem NFS-e nem mensagens de erro é Ambíguo e vai para o operador
// decidir, nunca é tratado como sucesso silencioso.
type Outcome string

const (
	OutcomeAceita    Outcome = "ACEITA"
	OutcomeRejeitada Outcome = "REJEITADA"
	OutcomeAmbigua   Outcome = "AMBIGUA"
)

// WSResult é a leitura semântica da resposta SOAP da prefeitura.
type WSResult struct {
	Outcome           Outcome
	Numero            string
	CodigoVerificacao string
	Protocolo         string
	DataEmissao       *time.Time
	Erros             []string
	Raw               string
}

// Mensagem devolve os erros no formato de exibição, separados por "; ".
func (r *WSResult) Mensagem() string {
	return strings.Join(r.Erros, "; ")
}

// ParseResposta interpreta o corpo SOAP devolvido pelo ISS Net. A busca é
// por nome local, indiferente a prefixo de namespace, porque cada provedor
// prefixa o envelope de um jeito.
//
// Regras, na ordem:
//  1. Fault SOAP vira rejeição com "faultcode: faultstring".
//  2. ListaMensagemRetorno presente vira rejeição "{Codigo}: {Mensagem}".
//  3. InfNfse presente vira aceite com número, código de verificação,
//     protocolo e data de emissão.
//  4. Confirmação de cancelamento vira aceite sem campos de NFS-e.
//  5. Nada disso: resultado ambíguo.
func ParseResposta(raw []byte) (*WSResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(raw); err != nil {
		return nil, fmt.Errorf("nfse: resposta não é XML válido: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("nfse: resposta vazia")
	}

	result := &WSResult{Raw: string(raw)}

	if fault := findLocal(root, "Fault"); fault != nil {
		code := textLocal(fault, "faultcode")
		msg := textLocal(fault, "faultstring")
		if msg == "" {
			msg = "falha SOAP sem descrição"
		}
		result.Outcome = OutcomeRejeitada
		result.Erros = append(result.Erros, strings.TrimSpace(code+": "+msg))
		return result, nil
	}

	if erros := collectMensagens(root); len(erros) > 0 {
		result.Outcome = OutcomeRejeitada
		result.Erros = erros
		return result, nil
	}

	if inf := findLocal(root, "InfNfse"); inf != nil {
		result.Outcome = OutcomeAceita
		result.Numero = textLocal(inf, "Numero")
		result.CodigoVerificacao = textLocal(inf, "CodigoVerificacao")
		result.Protocolo = firstNonEmpty(textLocal(inf, "Protocolo"), textLocal(root, "Protocolo"))
		if dt := textLocal(inf, "DataEmissao"); dt != "" {
			result.DataEmissao = parseDataEmissao(dt)
		}
		return result, nil
	}

	if findLocal(root, "RetCancelamento") != nil || findLocal(root, "NfseCancelamento") != nil ||
		findLocal(root, "Confirmacao") != nil {
		result.Outcome = OutcomeAceita
		return result, nil
	}

	result.Outcome = OutcomeAmbigua
	return result, nil
}

// collectMensagens junta todos os MensagemRetorno do corpo no formato
// "{Codigo}: {Mensagem}", um por entrada, na ordem em que aparecem.
func collectMensagens(root *etree.Element) []string {
	var out []string
	walk(root, func(el *etree.Element) {
		if el.Tag != "MensagemRetorno" {
			return
		}
		codigo := textLocal(el, "Codigo")
		msg := textLocal(el, "Mensagem")
		if codigo == "" && msg == "" {
			return
		}
		out = append(out, strings.TrimSpace(codigo+": "+msg))
	})
	return out
}

func parseDataEmissao(raw string) *time.Time {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}
	return nil
}

func walk(el *etree.Element, fn func(*etree.Element)) {
	fn(el)
	for _, child := range el.ChildElements() {
		walk(child, fn)
	}
}

// findLocal busca em profundidade pelo nome local da tag.
func findLocal(el *etree.Element, tag string) *etree.Element {
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findLocal(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func textLocal(el *etree.Element, tag string) string {
	found := findLocal(el, tag)
	if found == nil {
		return ""
	}
	return strings.TrimSpace(found.Text())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
