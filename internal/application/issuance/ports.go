package issuance

import (
	"crypto/tls"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri/signer"
)

// Serializer produce el XML canónico (sin firma) del comprobante.
type Serializer interface {
	Build(doc entity.Comprobante) ([]byte, error)
}

// CertificateDecoder convierte el material almacenado (p12 + password) en un certificado con llave.
type CertificateDecoder func(material []byte, password string) (tls.Certificate, error)

// RIDERenderer genera la representación impresa (PDF) a partir del registro persistido.
type RIDERenderer interface {
	Render(doc *entity.IssuedDocument) ([]byte, error)
}

// SignatureVerifier comprueba la firma de un XML ya firmado.
type SignatureVerifier func(signedXML []byte) (*signer.VerifyResult, error)
