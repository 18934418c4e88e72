package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
)

var _ repository.DigitalCertRepository = (*DigitalCertRepo)(nil)

// DigitalCertRepo lectura de certificados de firma por RUC.
type DigitalCertRepo struct {
	q Querier
}

func NewDigitalCertRepository(q Querier) *DigitalCertRepo {
	return &DigitalCertRepo{q: q}
}

// Add registra un certificado (usado para sembrar el certificado de desarrollo).
func (r *DigitalCertRepo) Add(ctx context.Context, cert *entity.DigitalCert) error {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now().UTC()
	}
	const query = `
		INSERT INTO digital_certs (id, owner, material, password, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.q.Exec(ctx, query, cert.ID, cert.Owner, cert.Material, cert.Password, cert.CreatedAt); err != nil {
		return fmt.Errorf("insert digital cert: %w", err)
	}
	return nil
}

// FindByOwner devuelve los certificados del titular, el más antiguo primero.
func (r *DigitalCertRepo) FindByOwner(ctx context.Context, owner string) ([]*entity.DigitalCert, error) {
	const query = `
		SELECT id, owner, material, password, created_at
		FROM digital_certs
		WHERE owner = $1
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list digital certs: %w", err)
	}
	defer rows.Close()

	var list []*entity.DigitalCert
	for rows.Next() {
		var c entity.DigitalCert
		if err := rows.Scan(&c.ID, &c.Owner, &c.Material, &c.Password, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan digital cert: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}
