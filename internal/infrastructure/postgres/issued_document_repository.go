package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/internal/domain/repository"
)

var _ repository.IssuedDocumentRepository = (*IssuedDocumentRepo)(nil)

// IssuedDocumentRepo implementación PostgreSQL de IssuedDocumentRepository.
// La unicidad de la clave activa la garantiza el índice parcial
// ux_issued_documents_active_key, no una lectura previa.
type IssuedDocumentRepo struct {
	q Querier
}

// NewIssuedDocumentRepository construye el adaptador. Pasar pool o tx (Querier).
func NewIssuedDocumentRepository(q Querier) *IssuedDocumentRepo {
	return &IssuedDocumentRepo{q: q}
}

// Save inserta cabecera y destinatarios en una sola transacción.
func (r *IssuedDocumentRepo) Save(ctx context.Context, doc *entity.IssuedDocument) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	doc.UpdatedAt = now
	if doc.InternalStatus == "" {
		doc.InternalStatus = entity.StatusCreated
	}

	var total any
	if doc.BuyerID != "" {
		total = doc.TotalAmount
	}

	return runInTx(ctx, r.q, func(tx pgx.Tx) error {
		const query = `
			INSERT INTO issued_documents (id, access_key, document_type, sri_version, xml_content,
			                              supplier_id, document_number, issue_date, internal_status, is_deleted,
			                              shipper_ruc, registration_number, buyer_id, total_amount,
			                              created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, FALSE, $10, $11, $12, $13, $14, $15)`
		_, err := tx.Exec(ctx, query,
			doc.ID, doc.AccessKey, doc.DocumentType, doc.SRIVersion, doc.XMLContent,
			doc.SupplierID, doc.DocumentNumber, doc.IssueDate, doc.InternalStatus,
			nullIfEmpty(doc.ShipperRUC), nullIfEmpty(doc.RegistrationNumber), nullIfEmpty(doc.BuyerID), total,
			doc.CreatedAt, doc.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: clave de acceso %s ya registrada", domain.ErrDuplicate, doc.AccessKey)
			}
			return fmt.Errorf("insert issued document: %w", err)
		}

		const detail = `
			INSERT INTO issued_document_consignees (id, issued_document_id, position, consignee_number,
			                                        custom_doc_number, reference_doc_cod, reference_doc_number,
			                                        reference_doc_auth_number)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		for i := range doc.Consignees {
			c := &doc.Consignees[i]
			if c.ID == "" {
				c.ID = uuid.New().String()
			}
			if _, err := tx.Exec(ctx, detail,
				c.ID, doc.ID, i, c.ConsigneeNumber,
				nullIfEmpty(c.CustomDocNumber), nullIfEmpty(c.ReferenceDocCod),
				nullIfEmpty(c.ReferenceDocNumber), nullIfEmpty(c.ReferenceDocAuthNumber),
			); err != nil {
				return fmt.Errorf("insert consignee %d: %w", i, err)
			}
		}
		return nil
	})
}

// FindActiveByKey obtiene el registro activo con sus destinatarios. nil, nil si no existe.
func (r *IssuedDocumentRepo) FindActiveByKey(ctx context.Context, accessKey string) (*entity.IssuedDocument, error) {
	const query = `
		SELECT id, access_key, document_type, sri_version, xml_content,
		       supplier_id, document_number, issue_date, internal_status, is_deleted,
		       shipper_ruc, registration_number, buyer_id, total_amount,
		       created_at, updated_at
		FROM issued_documents
		WHERE access_key = $1 AND NOT is_deleted`
	var (
		doc                          entity.IssuedDocument
		shipper, registration, buyer *string
		total                        decimal.NullDecimal
	)
	err := r.q.QueryRow(ctx, query, accessKey).Scan(
		&doc.ID, &doc.AccessKey, &doc.DocumentType, &doc.SRIVersion, &doc.XMLContent,
		&doc.SupplierID, &doc.DocumentNumber, &doc.IssueDate, &doc.InternalStatus, &doc.IsDeleted,
		&shipper, &registration, &buyer, &total,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get issued document: %w", err)
	}
	doc.ShipperRUC = derefStr(shipper)
	doc.RegistrationNumber = derefStr(registration)
	doc.BuyerID = derefStr(buyer)
	if total.Valid {
		doc.TotalAmount = total.Decimal
	}

	consignees, err := r.consignees(ctx, doc.ID)
	if err != nil {
		return nil, err
	}
	doc.Consignees = consignees
	return &doc, nil
}

func (r *IssuedDocumentRepo) consignees(ctx context.Context, documentID string) ([]entity.Consignee, error) {
	const query = `
		SELECT id, consignee_number, custom_doc_number, reference_doc_cod,
		       reference_doc_number, reference_doc_auth_number
		FROM issued_document_consignees
		WHERE issued_document_id = $1
		ORDER BY position`
	rows, err := r.q.Query(ctx, query, documentID)
	if err != nil {
		return nil, fmt.Errorf("list consignees: %w", err)
	}
	defer rows.Close()

	var list []entity.Consignee
	for rows.Next() {
		var c entity.Consignee
		var customDoc, refCod, refNumber, refAuth *string
		if err := rows.Scan(&c.ID, &c.ConsigneeNumber, &customDoc, &refCod, &refNumber, &refAuth); err != nil {
			return nil, fmt.Errorf("scan consignee: %w", err)
		}
		c.CustomDocNumber = derefStr(customDoc)
		c.ReferenceDocCod = derefStr(refCod)
		c.ReferenceDocNumber = derefStr(refNumber)
		c.ReferenceDocAuthNumber = derefStr(refAuth)
		list = append(list, c)
	}
	return list, rows.Err()
}

// FindActiveBySupplier lista las claves activas del emisor en orden de creación.
func (r *IssuedDocumentRepo) FindActiveBySupplier(ctx context.Context, supplierID string) ([]string, error) {
	const query = `
		SELECT access_key FROM issued_documents
		WHERE supplier_id = $1 AND NOT is_deleted
		ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, supplierID)
	if err != nil {
		return nil, fmt.Errorf("list issued documents: %w", err)
	}
	defer rows.Close()

	keys := []string{}
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan access key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// MarkDeleted marca is_deleted sólo si la fila sigue activa.
func (r *IssuedDocumentRepo) MarkDeleted(ctx context.Context, doc *entity.IssuedDocument) error {
	const query = `
		UPDATE issued_documents
		SET is_deleted = TRUE, updated_at = $2
		WHERE id = $1 AND NOT is_deleted`
	now := time.Now().UTC()
	tag, err := r.q.Exec(ctx, query, doc.ID, now)
	if err != nil {
		return fmt.Errorf("soft delete issued document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	doc.IsDeleted = true
	doc.UpdatedAt = now
	return nil
}
