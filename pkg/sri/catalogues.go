// Package sri contiene catálogos y validaciones alineados a la Ficha Técnica de
// Comprobantes Electrónicos Esquema Offline del SRI (Ecuador) v2.x.
package sri

// =============================================================================
// Tabla 4 - Ambiente
// =============================================================================

const (
	EnvironmentPruebas    = "1" // Pruebas
	EnvironmentProduccion = "2" // Producción
)

// =============================================================================
// Tabla 2 - Tipo de emisión
// =============================================================================

const EmissionTypeNormal = "1" // Emisión normal

// ValidEnvironments ambientes aceptados en infoTributaria.
var ValidEnvironments = map[string]bool{
	EnvironmentPruebas:    true,
	EnvironmentProduccion: true,
}

// =============================================================================
// Tabla 6 - Tipo de identificación del comprador / transportista
// =============================================================================

const (
	IdentificationTypeRUC             = "04" // RUC
	IdentificationTypeCedula          = "05" // Cédula
	IdentificationTypePasaporte       = "06" // Pasaporte
	IdentificationTypeConsumidorFinal = "07" // Venta a consumidor final
	IdentificationTypeExterior        = "08" // Identificación del exterior
)

// ValidIdentificationTypes tipos de identificación aceptados.
var ValidIdentificationTypes = map[string]bool{
	IdentificationTypeRUC:             true,
	IdentificationTypeCedula:          true,
	IdentificationTypePasaporte:       true,
	IdentificationTypeConsumidorFinal: true,
	IdentificationTypeExterior:        true,
}

// =============================================================================
// Tabla 16 - Impuestos
// =============================================================================

const (
	TaxCodeIVA  = "2" // IVA
	TaxCodeICE  = "3" // ICE
	TaxCodeIRBP = "5" // IRBPNR
)

// Tabla 17 - Tarifas de IVA (códigos de uso frecuente).
const (
	IVARate0        = "0"  // 0%
	IVARate12       = "2"  // 12%
	IVARate14       = "3"  // 14%
	IVARate15       = "4"  // 15%
	IVARate5        = "5"  // 5%
	IVANoObjeto     = "6"  // No objeto de impuesto
	IVAExento       = "7"  // Exento de IVA
	IVADiferenciado = "8"  // IVA diferenciado
	IVARate13       = "10" // 13%
)

// =============================================================================
// Tabla 24 - Formas de pago
// =============================================================================

const (
	PaymentSinSistemaFinanciero = "01" // Sin utilización del sistema financiero
	PaymentDebitoCuenta         = "16" // Tarjeta de débito
	PaymentDineroElectronico    = "17" // Dinero electrónico
	PaymentTarjetaPrepago       = "18" // Tarjeta prepago
	PaymentTarjetaCredito       = "19" // Tarjeta de crédito
	PaymentOtrosSistemaFinanc   = "20" // Otros con utilización del sistema financiero
	PaymentEndosoTitulos        = "21" // Endoso de títulos
)

// ValidPaymentForms formas de pago aceptadas en infoFactura/pagos.
var ValidPaymentForms = map[string]bool{
	PaymentSinSistemaFinanciero: true, PaymentDebitoCuenta: true,
	PaymentDineroElectronico: true, PaymentTarjetaPrepago: true,
	PaymentTarjetaCredito: true, PaymentOtrosSistemaFinanc: true,
	PaymentEndosoTitulos: true,
}

// Tabla 3 - Tipos de documentos de sustento de la guía.
const (
	SupportDocFactura     = "01"
	SupportDocLiquidacion = "03"
	SupportDocNotaCredito = "04"
	SupportDocNotaDebito  = "05"
)

// Monedas.
const CurrencyDolar = "DOLAR"
