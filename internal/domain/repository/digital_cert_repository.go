package repository

import (
	"context"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
)

// DigitalCertRepository puerto de consulta de certificados de firma.
type DigitalCertRepository interface {
	// FindByOwner devuelve los certificados del RUC (puede ser vacío).
	FindByOwner(ctx context.Context, owner string) ([]*entity.DigitalCert, error)
}
