// Package memory implementa los puertos de persistencia en memoria, para
// desarrollo local (STORE_BACKEND=memory) y pruebas.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
)

var _ repository.IssuedDocumentRepository = (*IssuedDocumentRepo)(nil)

// IssuedDocumentRepo guarda los registros en orden de inserción. La unicidad de
// la clave activa se comprueba bajo el mismo lock que la inserción.
type IssuedDocumentRepo struct {
	mu   sync.RWMutex
	docs []*entity.IssuedDocument
}

// NewIssuedDocumentRepository crea el repositorio vacío.
func NewIssuedDocumentRepository() *IssuedDocumentRepo {
	return &IssuedDocumentRepo{}
}

// Save persiste una copia del registro.
func (r *IssuedDocumentRepo) Save(ctx context.Context, doc *entity.IssuedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.AccessKey == doc.AccessKey && !d.IsDeleted {
			return fmt.Errorf("clave de acceso %s ya registrada: %w", doc.AccessKey, domain.ErrDuplicate)
		}
	}
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	for i := range doc.Consignees {
		if doc.Consignees[i].ID == "" {
			doc.Consignees[i].ID = uuid.New().String()
		}
	}
	r.docs = append(r.docs, clone(doc))
	return nil
}

// FindActiveByKey devuelve nil, nil si no hay registro activo.
func (r *IssuedDocumentRepo) FindActiveByKey(ctx context.Context, accessKey string) (*entity.IssuedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, d := range r.docs {
		if d.AccessKey == accessKey && !d.IsDeleted {
			return clone(d), nil
		}
	}
	return nil, nil
}

// FindActiveBySupplier lista claves activas en orden de creación.
func (r *IssuedDocumentRepo) FindActiveBySupplier(ctx context.Context, supplierID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	keys := []string{}
	for _, d := range r.docs {
		if d.SupplierID == supplierID && !d.IsDeleted {
			keys = append(keys, d.AccessKey)
		}
	}
	return keys, nil
}

// MarkDeleted marca el registro activo con ese ID como eliminado.
func (r *IssuedDocumentRepo) MarkDeleted(ctx context.Context, doc *entity.IssuedDocument) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.docs {
		if d.ID == doc.ID && !d.IsDeleted {
			d.IsDeleted = true
			d.UpdatedAt = time.Now()
			doc.IsDeleted = true
			doc.UpdatedAt = d.UpdatedAt
			return nil
		}
	}
	return fmt.Errorf("comprobante %s: %w", doc.AccessKey, domain.ErrNotFound)
}

func clone(d *entity.IssuedDocument) *entity.IssuedDocument {
	c := *d
	c.Consignees = append([]entity.Consignee(nil), d.Consignees...)
	return &c
}
