package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/infrastructure/memory"
)

func record(key, supplier string) *entity.IssuedDocument {
	return &entity.IssuedDocument{
		AccessKey:      key,
		DocumentType:   entity.CodDocGuiaRemision,
		SupplierID:     supplier,
		XMLContent:     "<guiaRemision/>",
		InternalStatus: entity.StatusCreated,
		Consignees:     []entity.Consignee{{ConsigneeNumber: "0912345678"}, {ConsigneeNumber: "1712345678"}},
	}
}

func TestSave_RechazaDuplicadoActivo(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIssuedDocumentRepository()

	require.NoError(t, repo.Save(ctx, record("k1", "s1")))
	err := repo.Save(ctx, record("k1", "s1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrDuplicate))
}

func TestSave_PermiteReusarClaveEliminada(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIssuedDocumentRepository()
	doc := record("k1", "s1")
	require.NoError(t, repo.Save(ctx, doc))
	require.NoError(t, repo.MarkDeleted(ctx, doc))

	assert.NoError(t, repo.Save(ctx, record("k1", "s1")), "la unicidad aplica solo a registros activos")
}

func TestFindActiveByKey(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIssuedDocumentRepository()
	doc := record("k1", "s1")
	require.NoError(t, repo.Save(ctx, doc))
	assert.NotEmpty(t, doc.ID)

	found, err := repo.FindActiveByKey(ctx, "k1")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, doc.ID, found.ID)
	require.Len(t, found.Consignees, 2)
	assert.Equal(t, "0912345678", found.Consignees[0].ConsigneeNumber, "se conserva el orden de destinatarios")

	found.XMLContent = "alterado"
	again, _ := repo.FindActiveByKey(ctx, "k1")
	assert.Equal(t, "<guiaRemision/>", again.XMLContent, "el repositorio entrega copias")

	missing, err := repo.FindActiveByKey(ctx, "nada")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestMarkDeleted_DosVeces(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIssuedDocumentRepository()
	doc := record("k1", "s1")
	require.NoError(t, repo.Save(ctx, doc))

	require.NoError(t, repo.MarkDeleted(ctx, doc))
	assert.True(t, doc.IsDeleted)
	assert.True(t, errors.Is(repo.MarkDeleted(ctx, doc), domain.ErrNotFound))

	found, err := repo.FindActiveByKey(ctx, "k1")
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestFindActiveBySupplier_OrdenYVacio(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIssuedDocumentRepository()
	for _, k := range []string{"k3", "k1", "k2"} {
		require.NoError(t, repo.Save(ctx, record(k, "s1")))
	}
	require.NoError(t, repo.Save(ctx, record("otro", "s2")))

	keys, err := repo.FindActiveBySupplier(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"k3", "k1", "k2"}, keys)

	empty, err := repo.FindActiveBySupplier(ctx, "sin-documentos")
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestSave_Concurrente_UnaSolaClaveActiva(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewIssuedDocumentRepository()
	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- repo.Save(ctx, record("misma", "s1"))
		}()
	}
	wg.Wait()
	close(errs)

	ok := 0
	for err := range errs {
		if err == nil {
			ok++
		} else {
			assert.True(t, errors.Is(err, domain.ErrDuplicate), fmt.Sprint(err))
		}
	}
	assert.Equal(t, 1, ok)
}

func TestDigitalCertRepo(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewDigitalCertRepository()

	none, err := repo.FindByOwner(ctx, "0999999999001")
	require.NoError(t, err)
	assert.Empty(t, none)

	repo.Add(&entity.DigitalCert{Owner: "0999999999001", Material: []byte("a")})
	repo.Add(&entity.DigitalCert{Owner: "0999999999001", Material: []byte("b")})
	certs, err := repo.FindByOwner(ctx, "0999999999001")
	require.NoError(t, err)
	require.Len(t, certs, 2)
	assert.Equal(t, []byte("a"), certs[0].Material)
	assert.NotEmpty(t, certs[0].ID)
}
