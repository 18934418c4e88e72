package signer_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri/signer"
	"github.com/jhoicas/comprobantes-sri/internal/testutil"
)

func TestDecodeCertificate_P12(t *testing.T) {
	cert, err := signer.DecodeCertificate(testutil.P12(t, testutil.P12Password), testutil.P12Password)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, "DISTRIBUIDORA DEL PACIFICO S.A.", cert.Leaf.Subject.CommonName)
}

func TestDecodeCertificate_P12ConCadena(t *testing.T) {
	material, leaf, ca := testutil.P12WithChain(t, testutil.P12Password)

	cert, err := signer.DecodeCertificate(material, testutil.P12Password)
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, leaf.SerialNumber, cert.Leaf.SerialNumber, "la hoja es el certificado con llave privada")
	require.Len(t, cert.Certificate, 2)
	assert.Equal(t, leaf.Raw, cert.Certificate[0])
	assert.Equal(t, ca.Raw, cert.Certificate[1])

	_, err = signer.DecodeCertificate(material, "otra")
	assert.True(t, errors.Is(err, domain.ErrSigning))
}

func TestDecodeCertificate_P12ConCadenaFirmaYVerifica(t *testing.T) {
	material, leaf, _ := testutil.P12WithChain(t, testutil.P12Password)
	cert, err := signer.DecodeCertificate(material, testutil.P12Password)
	require.NoError(t, err)

	unsigned, err := sri.NewXMLBuilderService().Build(testutil.SampleGuia())
	require.NoError(t, err)
	signed, err := signer.NewDigitalSignatureService().Sign(unsigned, cert)
	require.NoError(t, err)

	res, err := signer.Verify(signed)
	require.NoError(t, err)
	assert.Equal(t, leaf.SerialNumber, res.Certificate.SerialNumber)
}

func TestDecodeCertificate_PasswordIncorrecto(t *testing.T) {
	_, err := signer.DecodeCertificate(testutil.P12(t, testutil.P12Password), "otra")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSigning))
}

func TestDecodeCertificate_MaterialInvalido(t *testing.T) {
	_, err := signer.DecodeCertificate(nil, "")
	assert.True(t, errors.Is(err, domain.ErrSigning))

	_, err = signer.DecodeCertificate([]byte("no es un p12"), "x")
	assert.True(t, errors.Is(err, domain.ErrSigning))
}

func TestDecodeCertificate_PEM(t *testing.T) {
	cert, err := signer.DecodeCertificate(testutil.PEM(t), "")
	require.NoError(t, err)
	require.NotNil(t, cert.Leaf)
	assert.Equal(t, testutil.SupplierRUC, cert.Leaf.Subject.SerialNumber)
}

func TestDecodeCertificate_LlaveNoRSA(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	tmpl := &x509.Certificate{SerialNumber: testutil.Certificate(t).Leaf.SerialNumber}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)

	material := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	material = append(material, pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})...)
	_, err = signer.DecodeCertificate(material, "")
	assert.True(t, errors.Is(err, domain.ErrSigning))
}

func TestLoadFromP12(t *testing.T) {
	path := filepath.Join(t.TempDir(), "firma.p12")
	require.NoError(t, os.WriteFile(path, testutil.P12(t, testutil.P12Password), 0o600))

	cert, err := signer.LoadFromP12(path, testutil.P12Password)
	require.NoError(t, err)
	assert.NotNil(t, cert.PrivateKey)

	_, err = signer.LoadFromP12(filepath.Join(t.TempDir(), "no-existe.p12"), "")
	assert.Error(t, err)
}
