// Assinatura digital enveloped dos documentos ABRASF (RPS e pedido de
// cancelamento). A assinatura entra como irmã do elemento referenciado,
// dentro do mesmo contêiner, com KeyInfo carregando o certificado A1.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/sha1" // algoritmo fixado pelo validador municipal
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"

	"github.com/beevik/etree"
	dsig "github.com/russellhaering/goxmldsig"
	"github.com/ucarion/c14n"

	infranfse "github.com/jhoicas/nfse-api/internal/infrastructure/nfse"
)

// Service assina e confere XMLs no perfil XML-DSig exigido pelo ISS Net.
type Service struct{}

// NewService cria o serviço de assinatura.
func NewService() *Service {
	return &Service{}
}

// Sign assina o elemento identificado por referenceID dentro de xmlBytes e
// devolve o documento com a <Signature> anexada ao contêiner do elemento.
// Falha de assinatura é fatal: ou sai o documento completo assinado, ou
// nada (nunca um XML meio assinado).
func (s *Service) Sign(xmlBytes []byte, bundle *infranfse.CertificateBundle, referenceID string) ([]byte, error) {
	if bundle == nil || bundle.PrivateKey == nil || len(bundle.Raw) == 0 {
		return nil, fmt.Errorf("signer: bundle de certificado incompleto")
	}
	if referenceID == "" {
		return nil, fmt.Errorf("signer: referenceID vazio")
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("signer: XML inválido: %w", err)
	}

	target := findByID(doc.Root(), referenceID)
	if target == nil {
		return nil, fmt.Errorf("signer: elemento com Id=%q não encontrado", referenceID)
	}

	canonicalizer := dsig.MakeC14N10RecCanonicalizer()

	// Digest do elemento referenciado (C14N 2001 + SHA-1).
	canonTarget, err := canonicalizer.Canonicalize(target)
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao canonicalizar elemento: %w", err)
	}
	digest := sha1.Sum(canonTarget)
	digestB64 := base64.StdEncoding.EncodeToString(digest[:])

	sigEl := etree.NewElement("Signature")
	sigEl.CreateAttr("xmlns", NamespaceXMLDSig)

	signedInfoEl := sigEl.CreateElement("SignedInfo")
	signedInfoEl.CreateElement("CanonicalizationMethod").
		CreateAttr("Algorithm", AlgCanonicalization)
	signedInfoEl.CreateElement("SignatureMethod").
		CreateAttr("Algorithm", AlgSignatureRSASHA1)

	refEl := signedInfoEl.CreateElement("Reference")
	refEl.CreateAttr("URI", "#"+referenceID)
	transformsEl := refEl.CreateElement("Transforms")
	transformsEl.CreateElement("Transform").
		CreateAttr("Algorithm", AlgTransformEnvelope)
	transformsEl.CreateElement("Transform").
		CreateAttr("Algorithm", AlgCanonicalization)
	refEl.CreateElement("DigestMethod").
		CreateAttr("Algorithm", AlgDigestSHA1)
	refEl.CreateElement("DigestValue").SetText(digestB64)

	// Assina o SignedInfo canonicalizado.
	canonSignedInfo, err := canonicalizer.Canonicalize(signedInfoEl)
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao canonicalizar SignedInfo: %w", err)
	}
	hashed := sha1.Sum(canonSignedInfo)
	sigBytes, err := rsa.SignPKCS1v15(nil, bundle.PrivateKey, crypto.SHA1, hashed[:])
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao assinar SignedInfo: %w", err)
	}
	sigEl.CreateElement("SignatureValue").
		SetText(base64.StdEncoding.EncodeToString(sigBytes))

	keyInfoEl := sigEl.CreateElement("KeyInfo")
	keyInfoEl.CreateElement("X509Data").
		CreateElement("X509Certificate").
		SetText(base64.StdEncoding.EncodeToString(bundle.Raw))

	// A assinatura fica no contêiner do elemento referenciado. Se o Id está
	// na raiz, entra como filha da própria raiz (enveloped).
	container := target.Parent()
	if container == nil {
		container = target
	}
	container.AddChild(sigEl)

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("signer: erro ao serializar documento assinado: %w", err)
	}
	return out, nil
}

// SignBatch assina docs na ordem recebida com referências rps1..rpsN.
// Qualquer falha aborta o lote inteiro.
func (s *Service) SignBatch(docs [][]byte, bundle *infranfse.CertificateBundle) ([][]byte, error) {
	out := make([][]byte, 0, len(docs))
	for i, doc := range docs {
		signed, err := s.Sign(doc, bundle, fmt.Sprintf("rps%d", i+1))
		if err != nil {
			return nil, fmt.Errorf("signer: documento %d do lote: %w", i+1, err)
		}
		out = append(out, signed)
	}
	return out, nil
}

// Verify confere a assinatura enveloped de signedXML usando o certificado
// embutido no KeyInfo. Documento sem assinatura, com Signature incompleta,
// com assinatura inválida ou digest divergente retorna (false, nil); erro
// fica reservado para entrada que nem chega a ser XML analisável.
func (s *Service) Verify(signedXML []byte) (bool, error) {
	// Normalização estrutural: entrada que não canonicaliza não é XML.
	if _, err := canonicalizeXML(signedXML); err != nil {
		return false, fmt.Errorf("signer: XML inválido: %w", err)
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return false, fmt.Errorf("signer: XML inválido: %w", err)
	}

	sigEl := findByTag(doc.Root(), "Signature")
	if sigEl == nil {
		return false, nil
	}
	signedInfoEl := childByTag(sigEl, "SignedInfo")
	if signedInfoEl == nil {
		return false, nil
	}

	certB64 := textOf(findByTag(sigEl, "X509Certificate"))
	sigValB64 := textOf(childByTag(sigEl, "SignatureValue"))
	digestB64 := textOf(findByTag(signedInfoEl, "DigestValue"))
	refEl := findByTag(signedInfoEl, "Reference")
	if certB64 == "" || sigValB64 == "" || digestB64 == "" || refEl == nil {
		return false, nil
	}

	certDER, err := base64.StdEncoding.DecodeString(certB64)
	if err != nil {
		return false, nil
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return false, nil
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return false, nil
	}

	refID := refEl.SelectAttrValue("URI", "")
	if len(refID) < 2 || refID[0] != '#' {
		return false, nil
	}
	target := findByID(doc.Root(), refID[1:])
	if target == nil {
		return false, nil
	}

	canonicalizer := dsig.MakeC14N10RecCanonicalizer()

	// Confere o SignedInfo antes de destacar a assinatura da árvore.
	canonSignedInfo, err := canonicalizer.Canonicalize(signedInfoEl)
	if err != nil {
		return false, fmt.Errorf("signer: erro ao canonicalizar SignedInfo: %w", err)
	}
	hashed := sha1.Sum(canonSignedInfo)
	sigBytes, err := base64.StdEncoding.DecodeString(sigValB64)
	if err != nil {
		return false, nil
	}
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA1, hashed[:], sigBytes); err != nil {
		return false, nil
	}

	// Transform enveloped: remove a assinatura antes de recalcular o digest.
	if p := sigEl.Parent(); p != nil {
		p.RemoveChild(sigEl)
	}
	for {
		inner := findByTag(target, "Signature")
		if inner == nil {
			break
		}
		inner.Parent().RemoveChild(inner)
	}

	canonTarget, err := canonicalizer.Canonicalize(target)
	if err != nil {
		return false, fmt.Errorf("signer: erro ao canonicalizar elemento referenciado: %w", err)
	}
	digest := sha1.Sum(canonTarget)
	if base64.StdEncoding.EncodeToString(digest[:]) != digestB64 {
		return false, nil
	}

	return true, nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	return c14n.Canonicalize(dec)
}

func findByID(el *etree.Element, id string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.SelectAttrValue("Id", "") == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	if el == nil {
		return nil
	}
	if el.Tag == tag {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByTag(child, tag); found != nil {
			return found
		}
	}
	return nil
}

func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == tag {
			return child
		}
	}
	return nil
}

func textOf(el *etree.Element) string {
	if el == nil {
		return ""
	}
	return el.Text()
}
