// Constantes para firma XAdES-BES (Ficha Técnica de Comprobantes Electrónicos, SRI).

package signer

import (
	"crypto"
	"fmt"
	"strings"
)

// Namespaces y algoritmos XMLDSig / XAdES.
const (
	NamespaceDS        = "http://www.w3.org/2000/09/xmldsig#"
	NamespaceXAdES     = "http://uri.etsi.org/01903/v1.3.2#"
	AlgC14N            = "http://www.w3.org/TR/2001/REC-xml-c14n-20010315"
	TransformEnveloped = "http://www.w3.org/2000/09/xmldsig#enveloped-signature"
	TypeSignedProps    = "http://uri.etsi.org/01903#SignedProperties"

	AlgRSASHA1   = "http://www.w3.org/2000/09/xmldsig#rsa-sha1"
	AlgSHA1      = "http://www.w3.org/2000/09/xmldsig#sha1"
	AlgRSASHA256 = "http://www.w3.org/2001/04/xmldsig-more#rsa-sha256"
	AlgSHA256    = "http://www.w3.org/2001/04/xmlenc#sha256"
)

// ID del elemento raíz al que apunta la Reference (debe coincidir con el id del comprobante).
const DocumentElementID = "comprobante"

// Algorithm perfil de digest/firma.
type Algorithm string

const (
	// AlgorithmSHA1 perfil exigido por la ficha técnica del SRI.
	AlgorithmSHA1   Algorithm = "sha1"
	AlgorithmSHA256 Algorithm = "sha256"
)

// ParseAlgorithm interpreta el valor de configuración; vacío es SHA1.
func ParseAlgorithm(s string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(s))) {
	case "", AlgorithmSHA1:
		return AlgorithmSHA1, nil
	case AlgorithmSHA256:
		return AlgorithmSHA256, nil
	}
	return "", fmt.Errorf("algoritmo de firma no soportado: %q", s)
}

func (a Algorithm) hash() crypto.Hash {
	if a == AlgorithmSHA256 {
		return crypto.SHA256
	}
	return crypto.SHA1
}

func (a Algorithm) digestURI() string {
	if a == AlgorithmSHA256 {
		return AlgSHA256
	}
	return AlgSHA1
}

func (a Algorithm) signatureURI() string {
	if a == AlgorithmSHA256 {
		return AlgRSASHA256
	}
	return AlgRSASHA1
}

// hashForURI resuelve el hash de un Algorithm de DigestMethod o SignatureMethod.
func hashForURI(uri string) (crypto.Hash, bool) {
	switch uri {
	case AlgSHA1, AlgRSASHA1:
		return crypto.SHA1, true
	case AlgSHA256, AlgRSASHA256:
		return crypto.SHA256, true
	}
	return 0, false
}
