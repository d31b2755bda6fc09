package signer

// Algoritmos exigidos pelo validador do ISS Net (XML-DSig de primeira
// geração). SHA-1 e RSA-SHA1 são obrigatórios no convênio: trocar por
// SHA-256 faz a prefeitura rejeitar o lote.
const (
	NamespaceXMLDSig = "http://www.w3.org/2000/09/xmldsig#"

	AlgCanonicalization  = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	AlgSignatureRSASHA1  = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgDigestSHA1        = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgTransformEnvelope = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
)
