package repository

import (
	"context"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
)

// IssuedDocumentRepository define el puerto de persistencia de comprobantes emitidos.
type IssuedDocumentRepository interface {
	// Save persiste el registro y sus destinatarios. Debe rechazar con
	// domain.ErrDuplicate una clave de acceso que ya exista activa.
	Save(ctx context.Context, doc *entity.IssuedDocument) error
	// FindActiveByKey devuelve nil, nil si no hay registro activo con esa clave.
	FindActiveByKey(ctx context.Context, accessKey string) (*entity.IssuedDocument, error)
	// FindActiveBySupplier lista las claves activas del emisor en orden de creación.
	FindActiveBySupplier(ctx context.Context, supplierID string) ([]string, error)
	// MarkDeleted marca el registro como eliminado (nunca se borra la fila).
	MarkDeleted(ctx context.Context, doc *entity.IssuedDocument) error
}
