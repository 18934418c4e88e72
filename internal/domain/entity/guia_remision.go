package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// VersionGuiaRemision versión del esquema XSD de guía de remisión.
const VersionGuiaRemision = "1.1.0"

// GuiaRemision comprobante de traslado de mercadería (codDoc 06).
type GuiaRemision struct {
	InfoTributaria InfoTributaria

	DirEstablecimiento              string
	DirPartida                      string
	RazonSocialTransportista        string
	TipoIdentificacionTransportista string
	RUCTransportista                string
	RISE                            string
	ObligadoContabilidad            string // SI / NO
	ContribuyenteEspecial           string
	FechaIniTransporte              time.Time
	FechaFinTransporte              time.Time
	Placa                           string

	// Destinatarios en el orden en que se agregaron; la firma cubre ese orden.
	Destinatarios []Destinatario
	InfoAdicional []CampoAdicional
}

// Destinatario receptor de la mercadería; pertenece exclusivamente a su guía.
type Destinatario struct {
	IdentificacionDestinatario string
	RazonSocialDestinatario    string
	DirDestinatario            string
	MotivoTraslado             string
	DocAduaneroUnico           string
	CodEstabDestino            string
	Ruta                       string
	CodDocSustento             string
	NumDocSustento             string
	NumAutDocSustento          string
	FechaEmisionDocSustento    *time.Time
	Detalles                   []DetalleGuia
}

// DetalleGuia ítem trasladado a un destinatario.
type DetalleGuia struct {
	CodigoInterno   string
	CodigoAdicional string
	Descripcion     string
	Cantidad        decimal.Decimal
}

// AddDestinatario agrega un destinatario al final de la lista.
func (g *GuiaRemision) AddDestinatario(d Destinatario) {
	g.Destinatarios = append(g.Destinatarios, d)
}

func (g *GuiaRemision) Info() *InfoTributaria { return &g.InfoTributaria }
func (g *GuiaRemision) DocumentType() string { return CodDocGuiaRemision }
func (g *GuiaRemision) SchemaVersion() string { return VersionGuiaRemision }
func (g *GuiaRemision) AccessKeyDate() time.Time { return g.FechaIniTransporte }
func (g *GuiaRemision) SupplierID() string { return g.InfoTributaria.RUC }

var _ Comprobante = (*GuiaRemision)(nil)
