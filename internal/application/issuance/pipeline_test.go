package issuance_test

import (
	"context"
	"crypto/tls"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-sri/internal/application/issuance"
	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/memory"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/sri/signer"
	"github.com/jhoicas/comprobantes-sri/internal/testutil"
	pkgsri "github.com/jhoicas/comprobantes-sri/pkg/sri"
)

type fixture struct {
	pipeline  *issuance.Pipeline
	lifecycle *issuance.LifecycleService
	store     *memory.IssuedDocumentRepo
	certs     *memory.DigitalCertRepo
}

func fixedSigner() *signer.DigitalSignatureService {
	return signer.NewDigitalSignatureService(
		signer.WithClock(func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }),
		signer.WithIDGenerator(func() string { return "test" }),
	)
}

func newFixture(t *testing.T, s pkgsri.Signer, withCert bool) *fixture {
	t.Helper()
	store := memory.NewIssuedDocumentRepository()
	certs := memory.NewDigitalCertRepository()
	if withCert {
		certs.Add(&entity.DigitalCert{
			Owner:    testutil.SupplierRUC,
			Material: testutil.P12(t, testutil.P12Password),
			Password: testutil.P12Password,
		})
	}
	return &fixture{
		pipeline:  issuance.NewPipeline(sri.NewXMLBuilderService(), certs, signer.DecodeCertificate, s, store, zerolog.Nop()),
		lifecycle: issuance.NewLifecycleService(store, nil, zerolog.Nop()),
		store:     store,
		certs:     certs,
	}
}

// failingSigner simula un firmador que siempre falla.
type failingSigner struct{}

func (failingSigner) Sign([]byte, tls.Certificate) ([]byte, error) {
	return nil, errors.New("token criptográfico no disponible")
}

func assertNothingPersisted(t *testing.T, f *fixture) {
	t.Helper()
	keys, err := f.store.FindActiveBySupplier(context.Background(), testutil.SupplierRUC)
	require.NoError(t, err)
	assert.Empty(t, keys, "no debe quedar ningún registro")
}

func TestIssue_GuiaRemision(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedSigner(), true)

	key, err := f.pipeline.Issue(ctx, testutil.SampleGuia())
	require.NoError(t, err)
	assert.Equal(t, testutil.GuiaAccessKey, key)

	rec, err := f.store.FindActiveByKey(ctx, key)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, entity.StatusCreated, rec.InternalStatus)
	assert.False(t, rec.IsDeleted)
	assert.Equal(t, entity.CodDocGuiaRemision, rec.DocumentType)
	assert.Equal(t, entity.VersionGuiaRemision, rec.SRIVersion)
	assert.Equal(t, "001-001-000000123", rec.DocumentNumber)
	assert.Equal(t, "1790012345001", rec.ShipperRUC)
	assert.Equal(t, "GBA-1234", rec.RegistrationNumber)
	require.Len(t, rec.Consignees, 2)
	assert.Equal(t, "0912345678", rec.Consignees[0].ConsigneeNumber)
	assert.Equal(t, "DAU-2024-0001", rec.Consignees[1].CustomDocNumber)

	_, err = signer.Verify([]byte(rec.XMLContent))
	assert.NoError(t, err, "el XML persistido debe verificar")
}

func TestIssue_PersisteExactamenteLoFirmado(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedSigner(), true)

	key, err := f.pipeline.Issue(ctx, testutil.SampleGuia())
	require.NoError(t, err)

	unsigned, err := sri.NewXMLBuilderService().Build(testutil.SampleGuia())
	require.NoError(t, err)
	expected, err := fixedSigner().Sign(unsigned, testutil.Certificate(t))
	require.NoError(t, err)

	xml, err := f.lifecycle.GetXML(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, expected, xml)
}

func TestIssue_DerivaClaveDeAcceso(t *testing.T) {
	f := newFixture(t, fixedSigner(), true)
	g := testutil.SampleGuia()
	g.InfoTributaria.ClaveAcceso = ""

	key, err := f.pipeline.Issue(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, testutil.GuiaAccessKey, key)
	assert.Equal(t, key, g.InfoTributaria.ClaveAcceso)
}

func TestIssue_FallaNoDejaLaClaveDerivada(t *testing.T) {
	f := newFixture(t, fixedSigner(), false)
	g := testutil.SampleGuia()
	g.InfoTributaria.ClaveAcceso = ""

	_, err := f.pipeline.Issue(context.Background(), g)
	require.Error(t, err)
	var issueErr *issuance.Error
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, testutil.GuiaAccessKey, issueErr.AccessKey, "el error informa la clave derivada")
	assert.Empty(t, g.InfoTributaria.ClaveAcceso, "el comprobante de entrada no se modifica")
}

func TestIssue_FacturaConMontoNoRepresentable(t *testing.T) {
	f := newFixture(t, fixedSigner(), true)
	fac := testutil.SampleFactura()
	fac.InfoFactura.ImporteTotal = decimal.RequireFromString("10.005")

	_, err := f.pipeline.Issue(context.Background(), fac)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSerialization))
	var issueErr *issuance.Error
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, issuance.StateBuilt, issueErr.State)
	assertNothingPersisted(t, f)
}

func TestIssue_Factura(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedSigner(), true)

	key, err := f.pipeline.Issue(ctx, testutil.SampleFactura())
	require.NoError(t, err)
	assert.Equal(t, testutil.FacturaAccessKey, key)

	rec, err := f.store.FindActiveByKey(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, "0912345678", rec.BuyerID)
	assert.True(t, decimal.NewFromInt(115).Equal(rec.TotalAmount))
	assert.Empty(t, rec.Consignees)
}

func TestIssue_ClaveInvalida(t *testing.T) {
	cases := map[string]string{
		"dígito verificador": testutil.GuiaAccessKey[:48] + "2",
		"longitud":           testutil.GuiaAccessKey[:40],
		"otro tipo":          testutil.FacturaAccessKey,
	}
	for name, key := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, fixedSigner(), true)
			g := testutil.SampleGuia()
			g.InfoTributaria.ClaveAcceso = key

			_, err := f.pipeline.Issue(context.Background(), g)
			require.Error(t, err)
			assert.True(t, errors.Is(err, domain.ErrInvalidAccessKey))
			var issueErr *issuance.Error
			require.True(t, errors.As(err, &issueErr))
			assert.Equal(t, issuance.StateBuilt, issueErr.State)
			assertNothingPersisted(t, f)
		})
	}
}

func TestIssue_ErrorDeSerializacion(t *testing.T) {
	f := newFixture(t, fixedSigner(), true)
	g := testutil.SampleGuia()
	g.Destinatarios = nil

	_, err := f.pipeline.Issue(context.Background(), g)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSerialization))
	var issueErr *issuance.Error
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, issuance.StateBuilt, issueErr.State)
	assert.Equal(t, testutil.GuiaAccessKey, issueErr.AccessKey)
	assertNothingPersisted(t, f)
}

func TestIssue_SinCertificado(t *testing.T) {
	f := newFixture(t, fixedSigner(), false)

	_, err := f.pipeline.Issue(context.Background(), testutil.SampleGuia())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCertificateNotFound))
	var issueErr *issuance.Error
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, issuance.StateSerialized, issueErr.State)
	assert.Equal(t, testutil.SupplierRUC, issueErr.RUC)
	assertNothingPersisted(t, f)
}

// unavailableCerts simula un proveedor de certificados caído.
type unavailableCerts struct{}

func (unavailableCerts) FindByOwner(context.Context, string) ([]*entity.DigitalCert, error) {
	return nil, errors.New("conexión rechazada")
}

var _ repository.DigitalCertRepository = unavailableCerts{}

func TestIssue_ProveedorDeCertificadosNoDisponible(t *testing.T) {
	store := memory.NewIssuedDocumentRepository()
	p := issuance.NewPipeline(sri.NewXMLBuilderService(), unavailableCerts{}, signer.DecodeCertificate, fixedSigner(), store, zerolog.Nop())

	_, err := p.Issue(context.Background(), testutil.SampleGuia())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence), "falla transitoria, reintentable")
	assert.False(t, errors.Is(err, domain.ErrSigning))
	assert.False(t, errors.Is(err, domain.ErrCertificateNotFound))
	assert.Contains(t, err.Error(), "conexión rechazada")
	var issueErr *issuance.Error
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, issuance.StateSerialized, issueErr.State)

	keys, err := store.FindActiveBySupplier(context.Background(), testutil.SupplierRUC)
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestIssue_UsaElPrimerCertificado(t *testing.T) {
	f := newFixture(t, fixedSigner(), true)
	f.certs.Add(&entity.DigitalCert{Owner: testutil.SupplierRUC, Material: []byte("corrupto")})

	_, err := f.pipeline.Issue(context.Background(), testutil.SampleGuia())
	assert.NoError(t, err, "el segundo certificado no se consulta")
}

func TestIssue_PasswordIncorrecto(t *testing.T) {
	f := newFixture(t, fixedSigner(), false)
	f.certs.Add(&entity.DigitalCert{
		Owner:    testutil.SupplierRUC,
		Material: testutil.P12(t, testutil.P12Password),
		Password: "equivocado",
	})

	_, err := f.pipeline.Issue(context.Background(), testutil.SampleGuia())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSigning))
	assertNothingPersisted(t, f)
}

func TestIssue_FallaDeFirmaNoPersiste(t *testing.T) {
	f := newFixture(t, failingSigner{}, true)

	_, err := f.pipeline.Issue(context.Background(), testutil.SampleGuia())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrSigning))
	assert.Contains(t, err.Error(), "token criptográfico")
	assertNothingPersisted(t, f)
}

func TestIssue_Duplicado(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, fixedSigner(), true)

	_, err := f.pipeline.Issue(ctx, testutil.SampleGuia())
	require.NoError(t, err)
	_, err = f.pipeline.Issue(ctx, testutil.SampleGuia())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrPersistence))
	assert.True(t, errors.Is(err, domain.ErrDuplicate))
	var issueErr *issuance.Error
	require.True(t, errors.As(err, &issueErr))
	assert.Equal(t, issuance.StateSigned, issueErr.State)
}

func TestIssue_ConcurrenteMismaClave(t *testing.T) {
	f := newFixture(t, signer.NewDigitalSignatureService(), true)
	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, dup := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.pipeline.Issue(context.Background(), testutil.SampleGuia())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if errors.Is(err, domain.ErrDuplicate) {
				dup++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ok, "sólo una emisión concurrente queda activa")
	assert.Equal(t, 7, dup)
}

func TestIssue_Nil(t *testing.T) {
	f := newFixture(t, fixedSigner(), true)
	_, err := f.pipeline.Issue(context.Background(), nil)
	assert.True(t, errors.Is(err, domain.ErrSerialization))
}
