// Carga de certificado desde .p12 (PKCS#12) o par PEM.

package signer

import (
	"bytes"
	"crypto"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"
	"os"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
)

// DecodeCertificate interpreta el material de un certificado de firma: PKCS#12
// protegido con password (con o sin la cadena de la entidad certificadora) o, como
// alternativa de desarrollo, certificado y llave en PEM.
// Cualquier falla (material corrupto, password incorrecto, llave no RSA) es domain.ErrSigning.
func DecodeCertificate(material []byte, password string) (tls.Certificate, error) {
	if len(material) == 0 {
		return tls.Certificate{}, fmt.Errorf("%w: material de certificado vacío", domain.ErrSigning)
	}
	if bytes.Contains(material, []byte("-----BEGIN")) {
		cert, err := tls.X509KeyPair(material, material)
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("%w: cargar PEM: %v", domain.ErrSigning, err)
		}
		return withRSALeaf(cert)
	}
	priv, leaf, chain, err := gopkcs12.DecodeChain(material, password)
	if err != nil {
		if errors.Is(err, gopkcs12.ErrIncorrectPassword) {
			return tls.Certificate{}, fmt.Errorf("%w: contraseña del certificado incorrecta", domain.ErrSigning)
		}
		return tls.Certificate{}, fmt.Errorf("%w: decodificar p12: %v", domain.ErrSigning, err)
	}
	// Hoja primero; la cadena se conserva pero la firma sólo referencia la hoja.
	der := make([][]byte, 0, 1+len(chain))
	der = append(der, leaf.Raw)
	for _, ca := range chain {
		der = append(der, ca.Raw)
	}
	return withRSALeaf(tls.Certificate{
		Certificate: der,
		PrivateKey:  priv,
		Leaf:        leaf,
	})
}

// LoadFromP12 carga certificado y llave privada desde un archivo .p12/.pfx.
func LoadFromP12(path, password string) (tls.Certificate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("leer p12: %w", err)
	}
	return DecodeCertificate(data, password)
}

func withRSALeaf(cert tls.Certificate) (tls.Certificate, error) {
	if _, ok := cert.PrivateKey.(*rsa.PrivateKey); !ok {
		return tls.Certificate{}, fmt.Errorf("%w: el certificado debe incluir llave privada RSA", domain.ErrSigning)
	}
	if cert.Leaf == nil {
		leaf, err := x509.ParseCertificate(cert.Certificate[0])
		if err != nil {
			return tls.Certificate{}, fmt.Errorf("%w: parsear certificado: %v", domain.ErrSigning, err)
		}
		cert.Leaf = leaf
	}
	return cert, nil
}

// CertDigestAndIssuerSerial devuelve el digest del certificado (Base64), el emisor y el serial decimal para XAdES.
func CertDigestAndIssuerSerial(cert *x509.Certificate, h crypto.Hash) (digestB64 string, issuerName string, serial string) {
	hh := h.New()
	hh.Write(cert.Raw)
	digestB64 = base64.StdEncoding.EncodeToString(hh.Sum(nil))
	issuerName = cert.Issuer.String()
	serial = cert.SerialNumber.String()
	return digestB64, issuerName, serial
}
