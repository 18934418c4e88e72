package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// VersionFactura versión del esquema XSD de factura.
const VersionFactura = "1.1.0"

// Factura comprobante de venta (codDoc 01).
type Factura struct {
	InfoTributaria InfoTributaria
	InfoFactura    InfoFactura
	Detalles       []DetalleFactura
	InfoAdicional  []CampoAdicional
}

// InfoFactura datos de cabecera propios de la factura.
type InfoFactura struct {
	FechaEmision                time.Time
	DirEstablecimiento          string
	ContribuyenteEspecial       string
	ObligadoContabilidad        string
	TipoIdentificacionComprador string
	RazonSocialComprador        string
	IdentificacionComprador     string
	DireccionComprador          string
	TotalSinImpuestos           decimal.Decimal
	TotalDescuento              decimal.Decimal
	TotalConImpuestos           []TotalImpuesto
	Propina                     decimal.Decimal
	ImporteTotal                decimal.Decimal
	Moneda                      string
	Pagos                       []Pago
}

// TotalImpuesto total agregado por código de impuesto.
type TotalImpuesto struct {
	Codigo           string
	CodigoPorcentaje string
	BaseImponible    decimal.Decimal
	Valor            decimal.Decimal
}

// Pago forma de pago de la factura.
type Pago struct {
	FormaPago    string
	Total        decimal.Decimal
	Plazo        string
	UnidadTiempo string
}

// DetalleFactura línea de la factura.
type DetalleFactura struct {
	CodigoPrincipal        string
	CodigoAuxiliar         string
	Descripcion            string
	Cantidad               decimal.Decimal
	PrecioUnitario         decimal.Decimal
	Descuento              decimal.Decimal
	PrecioTotalSinImpuesto decimal.Decimal
	Impuestos              []Impuesto
}

// Impuesto impuesto aplicado a una línea.
type Impuesto struct {
	Codigo           string
	CodigoPorcentaje string
	Tarifa           decimal.Decimal
	BaseImponible    decimal.Decimal
	Valor            decimal.Decimal
}

func (f *Factura) Info() *InfoTributaria { return &f.InfoTributaria }
func (f *Factura) DocumentType() string { return CodDocFactura }
func (f *Factura) SchemaVersion() string { return VersionFactura }
func (f *Factura) AccessKeyDate() time.Time { return f.InfoFactura.FechaEmision }
func (f *Factura) SupplierID() string { return f.InfoTributaria.RUC }

var _ Comprobante = (*Factura)(nil)
