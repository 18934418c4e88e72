package entity

import "time"

// Códigos de tipo de comprobante (Ficha Técnica SRI, tabla 3).
const (
	CodDocFactura      = "01"
	CodDocGuiaRemision = "06"
)

// Comprobante es el contrato común de todos los comprobantes electrónicos que
// se serializan, firman y persisten (factura, guía de remisión, ...).
type Comprobante interface {
	Info() *InfoTributaria
	// DocumentType devuelve el código de documento (codDoc).
	DocumentType() string
	// SchemaVersion devuelve la versión del XSD del SRI (atributo version del XML).
	SchemaVersion() string
	// AccessKeyDate es la fecha que se codifica en las posiciones 1-8 de la clave de acceso.
	AccessKeyDate() time.Time
	// SupplierID identifica al emisor dueño del comprobante (RUC).
	SupplierID() string
}

// InfoTributaria cabecera tributaria común a todos los comprobantes.
type InfoTributaria struct {
	Ambiente        string // 1 = Pruebas, 2 = Producción
	TipoEmision     string // 1 = Emisión normal
	RazonSocial     string
	NombreComercial string
	RUC             string // 13 dígitos
	ClaveAcceso     string // 49 dígitos; vacía = se deriva al emitir
	CodDoc          string
	Estab           string // 3 dígitos
	PtoEmi          string // 3 dígitos
	Secuencial      string // 9 dígitos
	DirMatriz       string
	CodigoNumerico  string // 8 dígitos, elegido por el emisor
}

// DocumentNumber devuelve el número legible del comprobante (001-001-000000123).
func (i *InfoTributaria) DocumentNumber() string {
	return i.Estab + "-" + i.PtoEmi + "-" + i.Secuencial
}

// CampoAdicional par nombre/valor de infoAdicional.
type CampoAdicional struct {
	Nombre string
	Valor  string
}
