// Package testutil reúne comprobantes y certificados de prueba compartidos por
// los tests de varios paquetes.
package testutil

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
)

// Claves de acceso válidas de los comprobantes de ejemplo (dígito verificador calculado a mano).
const (
	SupplierRUC      = "0999999999001"
	GuiaAccessKey    = "0503202406099999999900120010010000001231234567811"
	FacturaAccessKey = "0503202401099999999900120010010000000451234567814"
)

// IssueDate fecha de emisión de los ejemplos (05/03/2024).
var IssueDate = time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)

func infoTributaria(codDoc, secuencial, key string) entity.InfoTributaria {
	return entity.InfoTributaria{
		Ambiente:        "2",
		TipoEmision:     "1",
		RazonSocial:     "DISTRIBUIDORA DEL PACIFICO S.A.",
		NombreComercial: "DISPACIFICO",
		RUC:             SupplierRUC,
		ClaveAcceso:     key,
		CodDoc:          codDoc,
		Estab:           "001",
		PtoEmi:          "001",
		Secuencial:      secuencial,
		DirMatriz:       "Av. 9 de Octubre 100, Guayaquil",
		CodigoNumerico:  "12345678",
	}
}

// SampleGuia guía de remisión completa con dos destinatarios.
func SampleGuia() *entity.GuiaRemision {
	sustento := IssueDate
	return &entity.GuiaRemision{
		InfoTributaria:                  infoTributaria(entity.CodDocGuiaRemision, "000000123", GuiaAccessKey),
		DirEstablecimiento:              "Km 5 vía a Daule",
		DirPartida:                      "Bodega central, Km 5 vía a Daule",
		RazonSocialTransportista:        "TRANSPORTES ANDINOS CIA. LTDA.",
		TipoIdentificacionTransportista: "04",
		RUCTransportista:                "1790012345001",
		ObligadoContabilidad:            "SI",
		FechaIniTransporte:              IssueDate,
		FechaFinTransporte:              IssueDate.AddDate(0, 0, 2),
		Placa:                           "GBA-1234",
		Destinatarios: []entity.Destinatario{
			{
				IdentificacionDestinatario: "0912345678",
				RazonSocialDestinatario:    "Ferretería El Martillo",
				DirDestinatario:            "Calle Sucre 210, Quito",
				MotivoTraslado:             "Venta",
				CodEstabDestino:            "001",
				CodDocSustento:             "01",
				NumDocSustento:             "001-001-000000045",
				FechaEmisionDocSustento:    &sustento,
				Detalles: []entity.DetalleGuia{
					{CodigoInterno: "CEM-50", Descripcion: "Cemento 50kg", Cantidad: decimal.RequireFromString("2.5")},
				},
			},
			{
				IdentificacionDestinatario: "1712345678",
				RazonSocialDestinatario:    "Constructora Sierra",
				DirDestinatario:            "Av. Amazonas 1500, Quito",
				MotivoTraslado:             "Consignación",
				DocAduaneroUnico:           "DAU-2024-0001",
				Detalles: []entity.DetalleGuia{
					{CodigoInterno: "VAR-12", Descripcion: "Varilla 12mm", Cantidad: decimal.NewFromInt(40)},
				},
			},
		},
		InfoAdicional: []entity.CampoAdicional{{Nombre: "email", Valor: "logistica@dispacifico.ec"}},
	}
}

// SampleFactura factura con una línea gravada con IVA 15%.
func SampleFactura() *entity.Factura {
	return &entity.Factura{
		InfoTributaria: infoTributaria(entity.CodDocFactura, "000000045", FacturaAccessKey),
		InfoFactura: entity.InfoFactura{
			FechaEmision:                IssueDate,
			DirEstablecimiento:          "Km 5 vía a Daule",
			ObligadoContabilidad:        "SI",
			TipoIdentificacionComprador: "05",
			RazonSocialComprador:        "Ferretería El Martillo",
			IdentificacionComprador:     "0912345678",
			TotalSinImpuestos:           decimal.NewFromInt(100),
			TotalDescuento:              decimal.Zero,
			TotalConImpuestos: []entity.TotalImpuesto{
				{Codigo: "2", CodigoPorcentaje: "4", BaseImponible: decimal.NewFromInt(100), Valor: decimal.NewFromInt(15)},
			},
			Propina:      decimal.Zero,
			ImporteTotal: decimal.NewFromInt(115),
			Moneda:       "DOLAR",
			Pagos:        []entity.Pago{{FormaPago: "01", Total: decimal.NewFromInt(115)}},
		},
		Detalles: []entity.DetalleFactura{
			{
				CodigoPrincipal:        "CEM-50",
				Descripcion:            "Cemento 50kg",
				Cantidad:               decimal.NewFromInt(10),
				PrecioUnitario:         decimal.NewFromInt(10),
				Descuento:              decimal.Zero,
				PrecioTotalSinImpuesto: decimal.NewFromInt(100),
				Impuestos: []entity.Impuesto{
					{Codigo: "2", CodigoPorcentaje: "4", Tarifa: decimal.NewFromInt(15), BaseImponible: decimal.NewFromInt(100), Valor: decimal.NewFromInt(15)},
				},
			},
		},
	}
}
