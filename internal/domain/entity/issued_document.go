package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Estados internos del comprobante emitido.
const (
	StatusCreated    = "CREATED"    // Firmado y persistido
	StatusReceived   = "RECEIVED"   // Recibido por el SRI
	StatusAuthorized = "AUTHORIZED" // Autorizado por el SRI
	StatusRejected   = "REJECTED"   // Devuelto por el SRI
	StatusVoid       = "VOID"       // Anulado
)

// IssuedDocument registro persistido de un comprobante emitido.
// Después de creado, la única mutación permitida es IsDeleted = true: el XML
// firmado y la clave de acceso son inmutables.
type IssuedDocument struct {
	ID             string
	AccessKey      string
	DocumentType   string
	SRIVersion     string
	XMLContent     string // XML firmado, exactamente como lo devolvió el firmador
	SupplierID     string // RUC del emisor
	DocumentNumber string // 001-001-000000123
	IssueDate      time.Time
	InternalStatus string
	IsDeleted      bool
	CreatedAt      time.Time
	UpdatedAt      time.Time

	// Guía de remisión
	ShipperRUC         string
	RegistrationNumber string // placa
	Consignees         []Consignee

	// Factura
	BuyerID     string
	TotalAmount decimal.Decimal
}

// Consignee fila de destinatario asociada a una guía emitida (orden de inserción).
type Consignee struct {
	ID                     string
	ConsigneeNumber        string // identificación del destinatario
	CustomDocNumber        string // documento aduanero único
	ReferenceDocCod        string
	ReferenceDocNumber     string
	ReferenceDocAuthNumber string
}
