// Servicio de firma digital XAdES-BES para comprobantes electrónicos del SRI.
// Agrega <ds:Signature> como último hijo del elemento raíz (firma enveloped).

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	_ "crypto/sha1"
	_ "crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/ucarion/c14n"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/pkg/sri"
)

// DigitalSignatureService implementa la firma XAdES-BES y agrega el nodo al XML.
// No guarda estado entre llamadas: es seguro para uso concurrente.
type DigitalSignatureService struct {
	alg   Algorithm
	now   func() time.Time
	newID func() string
}

// Option configura el servicio.
type Option func(*DigitalSignatureService)

// WithAlgorithm selecciona el perfil SHA1 (por defecto) o SHA256.
func WithAlgorithm(a Algorithm) Option {
	return func(s *DigitalSignatureService) { s.alg = a }
}

// WithClock fija el reloj usado para SigningTime.
func WithClock(now func() time.Time) Option {
	return func(s *DigitalSignatureService) { s.now = now }
}

// WithIDGenerator fija el generador de sufijos de los Id de la firma.
func WithIDGenerator(f func() string) Option {
	return func(s *DigitalSignatureService) { s.newID = f }
}

// NewDigitalSignatureService crea el servicio.
func NewDigitalSignatureService(opts ...Option) *DigitalSignatureService {
	s := &DigitalSignatureService{alg: AlgorithmSHA1, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Algorithm perfil configurado.
func (s *DigitalSignatureService) Algorithm() Algorithm { return s.alg }

// Sign implementa pkg/sri.Signer. El XML de entrada no se modifica.
func (s *DigitalSignatureService) Sign(xmlBytes []byte, cert tls.Certificate) ([]byte, error) {
	if len(bytes.TrimSpace(xmlBytes)) == 0 {
		return nil, fmt.Errorf("%w: XML vacío", domain.ErrSigning)
	}
	priv, ok := cert.PrivateKey.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: el certificado debe incluir llave privada RSA", domain.ErrSigning)
	}
	x509Cert := cert.Leaf
	if x509Cert == nil {
		if len(cert.Certificate) == 0 {
			return nil, fmt.Errorf("%w: certificado sin cadena", domain.ErrSigning)
		}
		var err error
		if x509Cert, err = x509.ParseCertificate(cert.Certificate[0]); err != nil {
			return nil, fmt.Errorf("%w: parsear certificado: %v", domain.ErrSigning, err)
		}
	}

	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(xmlBytes); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", domain.ErrSigning, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", domain.ErrSigning)
	}
	if root.SelectAttrValue("id", "") != DocumentElementID {
		return nil, fmt.Errorf("%w: el elemento raíz debe tener id=%q", domain.ErrSigning, DocumentElementID)
	}
	if signatureChild(root) != nil {
		return nil, fmt.Errorf("%w: el comprobante ya está firmado", domain.ErrSigning)
	}

	h := s.alg.hash()

	// 1) Digest del comprobante (C14N). Reference URI="#comprobante"
	docDigest, err := digestElement(root, h)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar comprobante: %v", domain.ErrSigning, err)
	}

	suffix := s.newID()
	ids := signatureIDs{
		signature:   "Signature-" + suffix,
		signedProps: "Signature-" + suffix + "-SignedProperties",
		reference:   "Reference-ID-" + suffix,
		keyInfo:     "Certificate-" + suffix,
		object:      "Signature-" + suffix + "-Object",
		value:       "SignatureValue-" + suffix,
	}

	// 2) SignedProperties: SigningTime, SigningCertificate, DataObjectFormat
	signingTime := s.now().Format("2006-01-02T15:04:05-07:00")
	certDigest, issuerName, serial := CertDigestAndIssuerSerial(x509Cert, h)
	signedPropsXML := s.buildSignedProperties(ids, signingTime, certDigest, issuerName, serial)
	propsDigest, err := digestXML([]byte(signedPropsXML), h)
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedProperties: %v", domain.ErrSigning, err)
	}

	// 3) SignedInfo y SignatureValue
	signedInfoXML := s.buildSignedInfo(ids, docDigest, propsDigest)
	canonicalSignedInfo, err := canonicalizeXML([]byte(signedInfoXML))
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedInfo: %v", domain.ErrSigning, err)
	}
	hh := h.New()
	hh.Write(canonicalSignedInfo)
	signatureValue, err := rsa.SignPKCS1v15(nil, priv, h, hh.Sum(nil))
	if err != nil {
		return nil, fmt.Errorf("%w: firmar SignedInfo: %v", domain.ErrSigning, err)
	}

	signatureXML := s.buildFullSignature(ids, signedInfoXML, base64.StdEncoding.EncodeToString(signatureValue), x509Cert, &priv.PublicKey, signedPropsXML)

	// 4) Agregar ds:Signature como último hijo de la raíz
	sigDoc := etree.NewDocument()
	if err := sigDoc.ReadFromString(signatureXML); err != nil {
		return nil, fmt.Errorf("%w: parsear Signature: %v", domain.ErrSigning, err)
	}
	root.AddChild(sigDoc.Root())
	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("%w: escribir XML firmado: %v", domain.ErrSigning, err)
	}
	return out, nil
}

type signatureIDs struct {
	signature   string
	signedProps string
	reference   string
	keyInfo     string
	object      string
	value       string
}

// nsDecls se repiten en SignedInfo y SignedProperties: C14N inclusivo de un
// subconjunto incluye los namespaces heredados de ds:Signature.
const nsDecls = ` xmlns:ds="` + NamespaceDS + `" xmlns:xades="` + NamespaceXAdES + `"`

func (s *DigitalSignatureService) buildSignedProperties(ids signatureIDs, signingTime, certDigestB64, issuerName, serial string) string {
	var sb strings.Builder
	sb.WriteString(`<xades:SignedProperties` + nsDecls + ` Id="` + ids.signedProps + `">`)
	sb.WriteString(`<xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SigningTime>` + signingTime + `</xades:SigningTime>`)
	sb.WriteString(`<xades:SigningCertificate><xades:Cert><xades:CertDigest>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + s.alg.digestURI() + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + certDigestB64 + `</ds:DigestValue></xades:CertDigest>`)
	sb.WriteString(`<xades:IssuerSerial><ds:X509IssuerName>` + escapeXML(issuerName) + `</ds:X509IssuerName>`)
	sb.WriteString(`<ds:X509SerialNumber>` + serial + `</ds:X509SerialNumber></xades:IssuerSerial>`)
	sb.WriteString(`</xades:Cert></xades:SigningCertificate>`)
	sb.WriteString(`</xades:SignedSignatureProperties>`)
	sb.WriteString(`<xades:SignedDataObjectProperties>`)
	sb.WriteString(`<xades:DataObjectFormat ObjectReference="#` + ids.reference + `">`)
	sb.WriteString(`<xades:Description>contenido comprobante</xades:Description>`)
	sb.WriteString(`<xades:MimeType>text/xml</xades:MimeType>`)
	sb.WriteString(`</xades:DataObjectFormat></xades:SignedDataObjectProperties>`)
	sb.WriteString(`</xades:SignedProperties>`)
	return sb.String()
}

func (s *DigitalSignatureService) buildSignedInfo(ids signatureIDs, docDigestB64, propsDigestB64 string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:SignedInfo` + nsDecls + ` Id="Signature-SignedInfo-` + ids.signature + `">`)
	sb.WriteString(`<ds:CanonicalizationMethod Algorithm="` + AlgC14N + `"></ds:CanonicalizationMethod>`)
	sb.WriteString(`<ds:SignatureMethod Algorithm="` + s.alg.signatureURI() + `"></ds:SignatureMethod>`)
	// Reference 1: el comprobante
	sb.WriteString(`<ds:Reference Id="` + ids.reference + `" URI="#` + DocumentElementID + `">`)
	sb.WriteString(`<ds:Transforms><ds:Transform Algorithm="` + TransformEnveloped + `"></ds:Transform>`)
	sb.WriteString(`<ds:Transform Algorithm="` + AlgC14N + `"></ds:Transform></ds:Transforms>`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + s.alg.digestURI() + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + docDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	// Reference 2: SignedProperties
	sb.WriteString(`<ds:Reference Type="` + TypeSignedProps + `" URI="#` + ids.signedProps + `">`)
	sb.WriteString(`<ds:DigestMethod Algorithm="` + s.alg.digestURI() + `"></ds:DigestMethod>`)
	sb.WriteString(`<ds:DigestValue>` + propsDigestB64 + `</ds:DigestValue>`)
	sb.WriteString(`</ds:Reference>`)
	sb.WriteString(`</ds:SignedInfo>`)
	return sb.String()
}

func (s *DigitalSignatureService) buildFullSignature(ids signatureIDs, signedInfoXML, signatureValueB64 string, cert *x509.Certificate, pub *rsa.PublicKey, signedPropsXML string) string {
	var sb strings.Builder
	sb.WriteString(`<ds:Signature` + nsDecls + ` Id="` + ids.signature + `">`)
	sb.WriteString(signedInfoXML)
	sb.WriteString(`<ds:SignatureValue Id="` + ids.value + `">` + signatureValueB64 + `</ds:SignatureValue>`)
	sb.WriteString(`<ds:KeyInfo Id="` + ids.keyInfo + `"><ds:X509Data><ds:X509Certificate>`)
	sb.WriteString(base64.StdEncoding.EncodeToString(cert.Raw))
	sb.WriteString(`</ds:X509Certificate></ds:X509Data>`)
	sb.WriteString(`<ds:KeyValue><ds:RSAKeyValue>`)
	sb.WriteString(`<ds:Modulus>` + base64.StdEncoding.EncodeToString(pub.N.Bytes()) + `</ds:Modulus>`)
	sb.WriteString(`<ds:Exponent>` + base64.StdEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()) + `</ds:Exponent>`)
	sb.WriteString(`</ds:RSAKeyValue></ds:KeyValue></ds:KeyInfo>`)
	sb.WriteString(`<ds:Object Id="` + ids.object + `">`)
	sb.WriteString(`<xades:QualifyingProperties Target="#` + ids.signature + `">`)
	sb.WriteString(signedPropsXML)
	sb.WriteString(`</xades:QualifyingProperties></ds:Object>`)
	sb.WriteString(`</ds:Signature>`)
	return sb.String()
}

// canonicalizeXML C14N inclusivo sin comentarios. Descarta el prólogo <?xml?>.
func canonicalizeXML(data []byte) ([]byte, error) {
	data = bytes.TrimSpace(data)
	if bytes.HasPrefix(data, []byte("<?xml")) {
		if end := bytes.Index(data, []byte("?>")); end >= 0 {
			data = bytes.TrimSpace(data[end+2:])
		}
	}
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

func digestXML(data []byte, h crypto.Hash) (string, error) {
	canonical, err := canonicalizeXML(data)
	if err != nil {
		return "", err
	}
	hh := h.New()
	hh.Write(canonical)
	return base64.StdEncoding.EncodeToString(hh.Sum(nil)), nil
}

// digestElement serializa una copia del elemento como documento independiente y calcula su digest.
func digestElement(el *etree.Element, h crypto.Hash) (string, error) {
	tmp := etree.NewDocument()
	tmp.SetRoot(el.Copy())
	raw, err := tmp.WriteToBytes()
	if err != nil {
		return "", err
	}
	return digestXML(raw, h)
}

// signatureChild devuelve el ds:Signature hijo directo del elemento, si existe.
func signatureChild(el *etree.Element) *etree.Element {
	for _, child := range el.ChildElements() {
		if child.Tag == "Signature" {
			return child
		}
	}
	return nil
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	return s
}

var _ sri.Signer = (*DigitalSignatureService)(nil)
