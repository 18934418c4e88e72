package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-sri/internal/application/dto"
	"github.com/jhoicas/comprobantes-sri/internal/application/issuance"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/memory"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/pdf"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri/signer"
	apphttp "github.com/jhoicas/comprobantes-sri/internal/interfaces/http"
	"github.com/jhoicas/comprobantes-sri/internal/testutil"
	pkgjwt "github.com/jhoicas/comprobantes-sri/pkg/jwt"
)

const (
	testJWTSecret = "test-secret-key-for-unit-tests"
	otherRUC      = "1790012345001"
	noCertRUC     = "1791234567001"
)

func buildTestApp(t *testing.T) *fiber.App {
	t.Helper()
	store := memory.NewIssuedDocumentRepository()
	certs := memory.NewDigitalCertRepository()
	for _, owner := range []string{testutil.SupplierRUC, otherRUC} {
		certs.Add(&entity.DigitalCert{
			Owner:    owner,
			Material: testutil.P12(t, testutil.P12Password),
			Password: testutil.P12Password,
		})
	}
	pipeline := issuance.NewPipeline(sri.NewXMLBuilderService(), certs, signer.DecodeCertificate,
		signer.NewDigitalSignatureService(), store, zerolog.Nop())
	lifecycle := issuance.NewLifecycleService(store, pdf.NewRIDEGenerator(), zerolog.Nop())

	app := fiber.New()
	app.Use(apphttp.RequestLogger(zerolog.Nop()))
	apphttp.Router(app, apphttp.RouterDeps{Pipeline: pipeline, Lifecycle: lifecycle, JWTSecret: testJWTSecret})
	return app
}

func bearer(t *testing.T, ruc string) string {
	t.Helper()
	tok, err := pkgjwt.Generate(testJWTSecret, "u-1", ruc, "emisor", "test", 60)
	require.NoError(t, err)
	return "Bearer " + tok
}

func guiaRequest(ruc string) dto.CreateGuiaRemisionRequest {
	return dto.CreateGuiaRemisionRequest{
		InfoTributaria: dto.InfoTributariaRequest{
			Ambiente: "2", TipoEmision: "1", RazonSocial: "DISTRIBUIDORA DEL PACIFICO S.A.",
			RUC: ruc, Estab: "001", PtoEmi: "001", Secuencial: "000000123",
			DirMatriz: "Av. 9 de Octubre 100, Guayaquil", CodigoNumerico: "12345678",
		},
		DirPartida:                      "Bodega central",
		RazonSocialTransportista:        "TRANSPORTES ANDINOS CIA. LTDA.",
		TipoIdentificacionTransportista: "04",
		RUCTransportista:                "1790012345001",
		FechaIniTransporte:              "05/03/2024",
		FechaFinTransporte:              "07/03/2024",
		Placa:                           "GBA-1234",
		Destinatarios: []dto.DestinatarioRequest{{
			IdentificacionDestinatario: "0912345678",
			RazonSocialDestinatario:    "Ferretería El Martillo",
			DirDestinatario:            "Calle Sucre 210, Quito",
			MotivoTraslado:             "Venta",
			Detalles:                   []dto.DetalleGuiaRequest{{Descripcion: "Cemento 50kg", Cantidad: decimal.RequireFromString("2.5")}},
		}},
	}
}

func do(t *testing.T, app *fiber.App, method, path, auth string, body any) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, ok := body.([]byte)
		if !ok {
			var err error
			raw, err = json.Marshal(body)
			require.NoError(t, err)
		}
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestCicloCompleto(t *testing.T) {
	app := buildTestApp(t)
	auth := bearer(t, testutil.SupplierRUC)

	resp := do(t, app, http.MethodPost, "/api/v1/guias-remision", auth, guiaRequest(testutil.SupplierRUC))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	issued := decode[dto.IssueResponse](t, resp)
	assert.Equal(t, testutil.GuiaAccessKey, issued.ClaveAcceso, "la clave se deriva de los campos del comprobante")
	key := issued.ClaveAcceso

	resp = do(t, app, http.MethodGet, "/api/v1/comprobantes/"+key, auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/xml")
	xml, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Contains(t, string(xml), "<ds:Signature")

	resp = do(t, app, http.MethodGet, "/api/v1/comprobantes/"+key+"/ride", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	ride, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, bytes.HasPrefix(ride, []byte("%PDF")))

	resp = do(t, app, http.MethodGet, "/api/v1/comprobantes/"+key+"/verify", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	verified := decode[dto.VerifyResponse](t, resp)
	assert.True(t, verified.Valid)
	assert.Contains(t, verified.Certificate, "DISTRIBUIDORA DEL PACIFICO")

	resp = do(t, app, http.MethodGet, "/api/v1/emisores/"+testutil.SupplierRUC+"/comprobantes", auth, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, []string{key}, decode[dto.ComprobanteListResponse](t, resp).Comprobantes)

	resp = do(t, app, http.MethodDelete, "/api/v1/comprobantes/"+key, auth, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = do(t, app, http.MethodDelete, "/api/v1/comprobantes/"+key, auth, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "la segunda eliminación no encuentra el registro")

	resp = do(t, app, http.MethodGet, "/api/v1/comprobantes/"+key+"/ride", auth, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateGuia_Duplicada(t *testing.T) {
	app := buildTestApp(t)
	auth := bearer(t, testutil.SupplierRUC)

	resp := do(t, app, http.MethodPost, "/api/v1/guias-remision", auth, guiaRequest(testutil.SupplierRUC))
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = do(t, app, http.MethodPost, "/api/v1/guias-remision", auth, guiaRequest(testutil.SupplierRUC))
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	body := decode[dto.ErrorResponse](t, resp)
	assert.Equal(t, "DUPLICATE", body.Code)
	assert.Equal(t, string(issuance.StateSigned), body.State, "falló después de firmar")
}

func TestCreateGuia_Errores(t *testing.T) {
	app := buildTestApp(t)

	sinPlaca := guiaRequest(testutil.SupplierRUC)
	sinPlaca.Placa = ""
	fechaMala := guiaRequest(testutil.SupplierRUC)
	fechaMala.FechaIniTransporte = "2024-03-05"
	claveMala := guiaRequest(testutil.SupplierRUC)
	claveMala.InfoTributaria.ClaveAcceso = testutil.GuiaAccessKey[:48] + "9"

	cases := []struct {
		name   string
		auth   string
		body   any
		status int
		code   string
	}{
		{"sin token", "", guiaRequest(testutil.SupplierRUC), http.StatusUnauthorized, "MISSING_TOKEN"},
		{"token inválido", "Bearer x.y.z", guiaRequest(testutil.SupplierRUC), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"RUC de otro emisor", bearer(t, otherRUC), guiaRequest(testutil.SupplierRUC), http.StatusForbidden, "FORBIDDEN"},
		{"cuerpo inválido", bearer(t, testutil.SupplierRUC), []byte("{"), http.StatusBadRequest, "INVALID_BODY"},
		{"fecha mal formada", bearer(t, testutil.SupplierRUC), fechaMala, http.StatusBadRequest, "VALIDATION"},
		{"falta placa", bearer(t, testutil.SupplierRUC), sinPlaca, http.StatusUnprocessableEntity, "SERIALIZATION"},
		{"clave con verificador incorrecto", bearer(t, testutil.SupplierRUC), claveMala, http.StatusBadRequest, "INVALID_ACCESS_KEY"},
		{"emisor sin certificado", bearer(t, noCertRUC), guiaRequest(noCertRUC), http.StatusNotFound, "CERTIFICATE_NOT_FOUND"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := do(t, app, http.MethodPost, "/api/v1/guias-remision", tc.auth, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decode[dto.ErrorResponse](t, resp).Code)
		})
	}
}

func TestComprobanteDeOtroEmisor(t *testing.T) {
	app := buildTestApp(t)
	resp := do(t, app, http.MethodPost, "/api/v1/guias-remision", bearer(t, otherRUC), guiaRequest(otherRUC))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	key := decode[dto.IssueResponse](t, resp).ClaveAcceso

	auth := bearer(t, testutil.SupplierRUC)
	for _, path := range []string{"/api/v1/comprobantes/" + key, "/api/v1/comprobantes/" + key + "/ride"} {
		resp = do(t, app, http.MethodGet, path, auth, nil)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode, path)
	}
	resp = do(t, app, http.MethodDelete, "/api/v1/comprobantes/"+key, auth, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = do(t, app, http.MethodGet, "/api/v1/emisores/"+otherRUC+"/comprobantes", auth, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestGet_ClaveMalFormada(t *testing.T) {
	app := buildTestApp(t)
	resp := do(t, app, http.MethodGet, "/api/v1/comprobantes/123", bearer(t, testutil.SupplierRUC), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "INVALID_ACCESS_KEY", decode[dto.ErrorResponse](t, resp).Code)
}

func TestList_VacioNoEsNull(t *testing.T) {
	app := buildTestApp(t)
	resp := do(t, app, http.MethodGet, "/api/v1/emisores/"+testutil.SupplierRUC+"/comprobantes", bearer(t, testutil.SupplierRUC), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.True(t, strings.Contains(string(raw), `"comprobantes":[]`), string(raw))
}

func TestCreateFactura(t *testing.T) {
	app := buildTestApp(t)
	f := testutil.SampleFactura()
	req := dto.CreateFacturaRequest{
		InfoTributaria: dto.InfoTributariaRequest{
			Ambiente: f.InfoTributaria.Ambiente, TipoEmision: f.InfoTributaria.TipoEmision,
			RazonSocial: f.InfoTributaria.RazonSocial, RUC: f.InfoTributaria.RUC,
			Estab: f.InfoTributaria.Estab, PtoEmi: f.InfoTributaria.PtoEmi, Secuencial: f.InfoTributaria.Secuencial,
			DirMatriz: f.InfoTributaria.DirMatriz, CodigoNumerico: f.InfoTributaria.CodigoNumerico,
		},
		FechaEmision:                "05/03/2024",
		TipoIdentificacionComprador: f.InfoFactura.TipoIdentificacionComprador,
		RazonSocialComprador:        f.InfoFactura.RazonSocialComprador,
		IdentificacionComprador:     f.InfoFactura.IdentificacionComprador,
		TotalSinImpuestos:           f.InfoFactura.TotalSinImpuestos,
		ImporteTotal:                f.InfoFactura.ImporteTotal,
		TotalConImpuestos:           []dto.TotalImpuestoRequest{{Codigo: "2", CodigoPorcentaje: "4", BaseImponible: decimal.NewFromInt(100), Valor: decimal.NewFromInt(15)}},
		Pagos:                       []dto.PagoRequest{{FormaPago: "01", Total: decimal.NewFromInt(115)}},
		Detalles: []dto.DetalleFacturaRequest{{
			Descripcion: "Cemento 50kg", Cantidad: decimal.NewFromInt(10), PrecioUnitario: decimal.NewFromInt(10),
			PrecioTotalSinImpuesto: decimal.NewFromInt(100),
			Impuestos: []dto.ImpuestoRequest{{Codigo: "2", CodigoPorcentaje: "4", Tarifa: decimal.NewFromInt(15),
				BaseImponible: decimal.NewFromInt(100), Valor: decimal.NewFromInt(15)}},
		}},
	}
	resp := do(t, app, http.MethodPost, "/api/v1/facturas", bearer(t, testutil.SupplierRUC), req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, testutil.FacturaAccessKey, decode[dto.IssueResponse](t, resp).ClaveAcceso)
}
