package testutil

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"sync"
	"testing"
	"time"

	gopkcs12 "software.sslmate.com/src/go-pkcs12"
)

// P12Password contraseña de los .p12 generados para pruebas.
const P12Password = "clave-de-prueba"

var (
	certOnce sync.Once
	certKey  *rsa.PrivateKey
	certLeaf *x509.Certificate
	certErr  error
)

// generate crea una sola vez un certificado autofirmado RSA 2048 (generar la llave es lento).
func generate() (*rsa.PrivateKey, *x509.Certificate, error) {
	certOnce.Do(func() {
		certKey, certErr = rsa.GenerateKey(rand.Reader, 2048)
		if certErr != nil {
			return
		}
		tmpl := &x509.Certificate{
			SerialNumber: big.NewInt(20240305),
			Subject: pkix.Name{
				CommonName:   "DISTRIBUIDORA DEL PACIFICO S.A.",
				Organization: []string{"Entidad de Certificación de Prueba"},
				Country:      []string{"EC"},
				SerialNumber: SupplierRUC,
			},
			NotBefore:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			NotAfter:    time.Date(2034, 1, 1, 0, 0, 0, 0, time.UTC),
			KeyUsage:    x509.KeyUsageDigitalSignature | x509.KeyUsageContentCommitment,
			ExtKeyUsage: []x509.ExtKeyUsage{x509.ExtKeyUsageEmailProtection},
		}
		der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &certKey.PublicKey, certKey)
		if err != nil {
			certErr = err
			return
		}
		certLeaf, certErr = x509.ParseCertificate(der)
	})
	return certKey, certLeaf, certErr
}

// Certificate devuelve el certificado de prueba listo para firmar.
func Certificate(t testing.TB) tls.Certificate {
	t.Helper()
	key, leaf, err := generate()
	if err != nil {
		t.Fatalf("generar certificado de prueba: %v", err)
	}
	return tls.Certificate{Certificate: [][]byte{leaf.Raw}, PrivateKey: key, Leaf: leaf}
}

// P12 empaqueta el certificado de prueba como PKCS#12 protegido con password.
func P12(t testing.TB, password string) []byte {
	t.Helper()
	key, leaf, err := generate()
	if err != nil {
		t.Fatalf("generar certificado de prueba: %v", err)
	}
	data, err := gopkcs12.Legacy.Encode(key, leaf, nil, password)
	if err != nil {
		t.Fatalf("codificar p12: %v", err)
	}
	return data
}

// CA entidad certificadora de prueba que emite el certificado de P12WithChain.
func CA(t testing.TB) (*x509.Certificate, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generar llave de CA: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "AUTORIDAD DE CERTIFICACION SUBCA-1 PRUEBA", Country: []string{"EC"}},
		NotBefore:             time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC),
		NotAfter:              time.Date(2040, 1, 1, 0, 0, 0, 0, time.UTC),
		KeyUsage:              x509.KeyUsageCertSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("crear CA: %v", err)
	}
	ca, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsear CA: %v", err)
	}
	return ca, key
}

// P12WithChain empaqueta la llave de prueba con un certificado emitido por la CA
// de prueba e incluye la CA en el archivo, como los .p12 que entregan las entidades
// certificadoras.
func P12WithChain(t testing.TB, password string) (p12 []byte, leaf, ca *x509.Certificate) {
	t.Helper()
	key, self, err := generate()
	if err != nil {
		t.Fatalf("generar certificado de prueba: %v", err)
	}
	ca, caKey := CA(t)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(20240306),
		Subject:      self.Subject,
		NotBefore:    self.NotBefore,
		NotAfter:     self.NotAfter,
		KeyUsage:     self.KeyUsage,
		ExtKeyUsage:  self.ExtKeyUsage,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, ca, &key.PublicKey, caKey)
	if err != nil {
		t.Fatalf("emitir certificado: %v", err)
	}
	leaf, err = x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parsear certificado: %v", err)
	}
	p12, err = gopkcs12.Legacy.Encode(key, leaf, []*x509.Certificate{ca}, password)
	if err != nil {
		t.Fatalf("codificar p12: %v", err)
	}
	return p12, leaf, ca
}

// PEM devuelve certificado y llave concatenados en PEM.
func PEM(t testing.TB) []byte {
	t.Helper()
	key, leaf, err := generate()
	if err != nil {
		t.Fatalf("generar certificado de prueba: %v", err)
	}
	out := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: leaf.Raw})
	out = append(out, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})...)
	return out
}
