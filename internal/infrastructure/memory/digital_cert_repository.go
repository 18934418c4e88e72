package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
)

var _ repository.DigitalCertRepository = (*DigitalCertRepo)(nil)

// DigitalCertRepo certificados por RUC del titular.
type DigitalCertRepo struct {
	mu    sync.RWMutex
	certs map[string][]*entity.DigitalCert
}

// NewDigitalCertRepository crea el repositorio vacío.
func NewDigitalCertRepository() *DigitalCertRepo {
	return &DigitalCertRepo{certs: map[string][]*entity.DigitalCert{}}
}

// Add registra un certificado para su titular.
func (r *DigitalCertRepo) Add(cert *entity.DigitalCert) {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.certs[cert.Owner] = append(r.certs[cert.Owner], cert)
}

// FindByOwner devuelve los certificados en orden de registro.
func (r *DigitalCertRepo) FindByOwner(ctx context.Context, owner string) ([]*entity.DigitalCert, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]*entity.DigitalCert(nil), r.certs[owner]...), nil
}
