package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-sri/internal/testutil"
)

func writeP12(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "firma.p12")
	require.NoError(t, os.WriteFile(path, testutil.P12(t, testutil.P12Password), 0o600))
	return path
}

func TestRun_CertificadoCorrecto(t *testing.T) {
	var out bytes.Buffer
	now := testutil.Certificate(t).Leaf.NotBefore.Add(24 * time.Hour)
	code := run([]string{"-path", writeP12(t), "-password", testutil.P12Password, "-ruc", testutil.SupplierRUC}, &out, now)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "DISTRIBUIDORA DEL PACIFICO")
	assert.Contains(t, out.String(), "corresponde al RUC")
}

func TestRun_Fallas(t *testing.T) {
	path := writeP12(t)
	now := testutil.Certificate(t).Leaf.NotBefore.Add(24 * time.Hour)
	cases := []struct {
		name string
		args []string
		code int
		msg  string
	}{
		{"sin ruta", []string{"-path", ""}, 2, "indique -path"},
		{"archivo inexistente", []string{"-path", filepath.Join(t.TempDir(), "nada.p12")}, 1, "ERROR DE ARCHIVO"},
		{"contraseña incorrecta", []string{"-path", path, "-password", "otra"}, 1, "CONTRASEÑA"},
		{"otro RUC", []string{"-path", path, "-password", testutil.P12Password, "-ruc", "1790012345001"}, 1, "no menciona el RUC"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			assert.Equal(t, tc.code, run(tc.args, &out, now))
			assert.Contains(t, out.String(), tc.msg)
		})
	}
}

func TestReport_Vencido(t *testing.T) {
	cert := testutil.Certificate(t)
	var out bytes.Buffer
	assert.Equal(t, 1, report(&out, cert, "", cert.Leaf.NotAfter.Add(time.Hour)))
	assert.Contains(t, out.String(), "vencido")
}

func TestRun_P12ConCadena(t *testing.T) {
	material, leaf, _ := testutil.P12WithChain(t, testutil.P12Password)
	path := filepath.Join(t.TempDir(), "firma-con-cadena.p12")
	require.NoError(t, os.WriteFile(path, material, 0o600))

	var out bytes.Buffer
	code := run([]string{"-path", path, "-password", testutil.P12Password, "-ruc", testutil.SupplierRUC}, &out, leaf.NotBefore.Add(24*time.Hour))

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "1 certificado(s) de la entidad certificadora")
	assert.Contains(t, out.String(), "AUTORIDAD DE CERTIFICACION SUBCA-1 PRUEBA")
}
