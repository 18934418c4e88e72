package signer

import (
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/beevik/etree"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
)

// VerifyResult datos de una firma verificada.
type VerifyResult struct {
	Certificate *x509.Certificate
	SigningTime string
	Algorithm   string // URI de SignatureMethod
}

// Verify comprueba una firma XAdES-BES enveloped producida por Sign (o por otro
// firmador con el mismo perfil): recalcula los digests de cada Reference y valida
// SignatureValue con el certificado de KeyInfo. No valida la cadena de confianza.
func Verify(signedXML []byte) (*VerifyResult, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(signedXML); err != nil {
		return nil, fmt.Errorf("%w: parsear XML: %v", domain.ErrInvalidSignature, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: documento sin raíz", domain.ErrInvalidSignature)
	}
	sig := signatureChild(root)
	if sig == nil {
		return nil, fmt.Errorf("%w: el comprobante no tiene ds:Signature", domain.ErrInvalidSignature)
	}
	signedInfo := childByTag(sig, "SignedInfo")
	if signedInfo == nil {
		return nil, fmt.Errorf("%w: falta SignedInfo", domain.ErrInvalidSignature)
	}

	cert, err := keyInfoCertificate(sig)
	if err != nil {
		return nil, err
	}
	pub, ok := cert.PublicKey.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("%w: el certificado no tiene llave pública RSA", domain.ErrInvalidSignature)
	}

	// 1) SignatureValue sobre SignedInfo canonicalizado
	method := childByTag(signedInfo, "SignatureMethod")
	if method == nil {
		return nil, fmt.Errorf("%w: falta SignatureMethod", domain.ErrInvalidSignature)
	}
	methodURI := method.SelectAttrValue("Algorithm", "")
	h, ok := hashForURI(methodURI)
	if !ok {
		return nil, fmt.Errorf("%w: SignatureMethod no soportado %q", domain.ErrInvalidSignature, methodURI)
	}
	canonical, err := canonicalizeXML(standalone(signedInfo, sig))
	if err != nil {
		return nil, fmt.Errorf("%w: canonicalizar SignedInfo: %v", domain.ErrInvalidSignature, err)
	}
	valueEl := childByTag(sig, "SignatureValue")
	if valueEl == nil {
		return nil, fmt.Errorf("%w: falta SignatureValue", domain.ErrInvalidSignature)
	}
	value, err := decodeBase64(valueEl.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: SignatureValue: %v", domain.ErrInvalidSignature, err)
	}
	hh := h.New()
	hh.Write(canonical)
	if err := rsa.VerifyPKCS1v15(pub, h, hh.Sum(nil), value); err != nil {
		return nil, fmt.Errorf("%w: SignatureValue no corresponde a SignedInfo", domain.ErrInvalidSignature)
	}

	// 2) Digest de cada Reference
	rootID := root.SelectAttrValue("id", "")
	coversDocument := false
	for _, ref := range signedInfo.ChildElements() {
		if ref.Tag != "Reference" {
			continue
		}
		uri := ref.SelectAttrValue("URI", "")
		if !strings.HasPrefix(uri, "#") {
			return nil, fmt.Errorf("%w: Reference con URI no soportada %q", domain.ErrInvalidSignature, uri)
		}
		dm := childByTag(ref, "DigestMethod")
		dv := childByTag(ref, "DigestValue")
		if dm == nil || dv == nil {
			return nil, fmt.Errorf("%w: Reference %s incompleta", domain.ErrInvalidSignature, uri)
		}
		dh, ok := hashForURI(dm.SelectAttrValue("Algorithm", ""))
		if !ok {
			return nil, fmt.Errorf("%w: DigestMethod no soportado en %s", domain.ErrInvalidSignature, uri)
		}

		var got string
		switch target := uri[1:]; {
		case rootID != "" && target == rootID:
			unsigned := root.Copy()
			unsigned.RemoveChild(signatureChild(unsigned))
			got, err = digestElement(unsigned, dh)
			coversDocument = true
		default:
			el := findByID(sig, target)
			if el == nil {
				return nil, fmt.Errorf("%w: Reference a elemento inexistente %s", domain.ErrInvalidSignature, uri)
			}
			got, err = digestXML(standalone(el, sig), dh)
		}
		if err != nil {
			return nil, fmt.Errorf("%w: canonicalizar %s: %v", domain.ErrInvalidSignature, uri, err)
		}
		if got != strings.TrimSpace(dv.Text()) {
			return nil, fmt.Errorf("%w: digest de %s no coincide", domain.ErrInvalidSignature, uri)
		}
	}
	if !coversDocument {
		return nil, fmt.Errorf("%w: la firma no referencia al comprobante", domain.ErrInvalidSignature)
	}

	res := &VerifyResult{Certificate: cert, Algorithm: methodURI}
	if st := findByTag(sig, "SigningTime"); st != nil {
		res.SigningTime = st.Text()
	}
	return res, nil
}

func keyInfoCertificate(sig *etree.Element) (*x509.Certificate, error) {
	el := findByTag(sig, "X509Certificate")
	if el == nil {
		return nil, fmt.Errorf("%w: KeyInfo sin X509Certificate", domain.ErrInvalidSignature)
	}
	der, err := decodeBase64(el.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: X509Certificate: %v", domain.ErrInvalidSignature, err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, fmt.Errorf("%w: X509Certificate: %v", domain.ErrInvalidSignature, err)
	}
	return cert, nil
}

// standalone serializa una copia del elemento con las declaraciones de namespace
// heredadas de ds:Signature, tal como las ve C14N inclusivo dentro del documento.
func standalone(el, sig *etree.Element) []byte {
	c := el.Copy()
	for _, a := range sig.Attr {
		if a.Space == "xmlns" && c.SelectAttr(a.FullKey()) == nil {
			c.CreateAttr(a.FullKey(), a.Value)
		}
	}
	tmp := etree.NewDocument()
	tmp.SetRoot(c)
	raw, _ := tmp.WriteToBytes()
	return raw
}

func childByTag(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
	}
	return nil
}

func findByTag(el *etree.Element, tag string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.Tag == tag {
			return c
		}
		if found := findByTag(c, tag); found != nil {
			return found
		}
	}
	return nil
}

func findByID(el *etree.Element, id string) *etree.Element {
	for _, c := range el.ChildElements() {
		if c.SelectAttrValue("Id", "") == id {
			return c
		}
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func decodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
}
