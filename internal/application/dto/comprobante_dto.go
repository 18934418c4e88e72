package dto

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
)

// DateLayout formato de fechas del SRI (dd/mm/aaaa) en requests y XML.
const DateLayout = "02/01/2006"

// InfoTributariaRequest cabecera común. ClaveAcceso vacía = se deriva al emitir.
type InfoTributariaRequest struct {
	Ambiente        string `json:"ambiente"`
	TipoEmision     string `json:"tipo_emision"`
	RazonSocial     string `json:"razon_social"`
	NombreComercial string `json:"nombre_comercial,omitempty"`
	RUC             string `json:"ruc"`
	ClaveAcceso     string `json:"clave_acceso,omitempty"`
	Estab           string `json:"estab"`
	PtoEmi          string `json:"pto_emi"`
	Secuencial      string `json:"secuencial"`
	DirMatriz       string `json:"dir_matriz"`
	CodigoNumerico  string `json:"codigo_numerico"`
}

// CampoAdicionalRequest par nombre/valor de infoAdicional.
type CampoAdicionalRequest struct {
	Nombre string `json:"nombre"`
	Valor  string `json:"valor"`
}

// CreateGuiaRemisionRequest body para POST /api/v1/guias-remision.
type CreateGuiaRemisionRequest struct {
	InfoTributaria                  InfoTributariaRequest   `json:"info_tributaria"`
	DirEstablecimiento              string                  `json:"dir_establecimiento,omitempty"`
	DirPartida                      string                  `json:"dir_partida"`
	RazonSocialTransportista        string                  `json:"razon_social_transportista"`
	TipoIdentificacionTransportista string                  `json:"tipo_identificacion_transportista"`
	RUCTransportista                string                  `json:"ruc_transportista"`
	RISE                            string                  `json:"rise,omitempty"`
	ObligadoContabilidad            string                  `json:"obligado_contabilidad,omitempty"`
	ContribuyenteEspecial           string                  `json:"contribuyente_especial,omitempty"`
	FechaIniTransporte              string                  `json:"fecha_ini_transporte"` // dd/mm/aaaa
	FechaFinTransporte              string                  `json:"fecha_fin_transporte"`
	Placa                           string                  `json:"placa"`
	Destinatarios                   []DestinatarioRequest   `json:"destinatarios"`
	InfoAdicional                   []CampoAdicionalRequest `json:"info_adicional,omitempty"`
}

// DestinatarioRequest receptor de la mercadería.
type DestinatarioRequest struct {
	IdentificacionDestinatario string               `json:"identificacion_destinatario"`
	RazonSocialDestinatario    string               `json:"razon_social_destinatario"`
	DirDestinatario            string               `json:"dir_destinatario"`
	MotivoTraslado             string               `json:"motivo_traslado"`
	DocAduaneroUnico           string               `json:"doc_aduanero_unico,omitempty"`
	CodEstabDestino            string               `json:"cod_estab_destino,omitempty"`
	Ruta                       string               `json:"ruta,omitempty"`
	CodDocSustento             string               `json:"cod_doc_sustento,omitempty"`
	NumDocSustento             string               `json:"num_doc_sustento,omitempty"`
	NumAutDocSustento          string               `json:"num_aut_doc_sustento,omitempty"`
	FechaEmisionDocSustento    string               `json:"fecha_emision_doc_sustento,omitempty"`
	Detalles                   []DetalleGuiaRequest `json:"detalles"`
}

// DetalleGuiaRequest ítem trasladado.
type DetalleGuiaRequest struct {
	CodigoInterno   string          `json:"codigo_interno,omitempty"`
	CodigoAdicional string          `json:"codigo_adicional,omitempty"`
	Descripcion     string          `json:"descripcion"`
	Cantidad        decimal.Decimal `json:"cantidad"`
}

// CreateFacturaRequest body para POST /api/v1/facturas.
type CreateFacturaRequest struct {
	InfoTributaria              InfoTributariaRequest   `json:"info_tributaria"`
	FechaEmision                string                  `json:"fecha_emision"` // dd/mm/aaaa
	DirEstablecimiento          string                  `json:"dir_establecimiento,omitempty"`
	ContribuyenteEspecial       string                  `json:"contribuyente_especial,omitempty"`
	ObligadoContabilidad        string                  `json:"obligado_contabilidad,omitempty"`
	TipoIdentificacionComprador string                  `json:"tipo_identificacion_comprador"`
	RazonSocialComprador        string                  `json:"razon_social_comprador"`
	IdentificacionComprador     string                  `json:"identificacion_comprador"`
	DireccionComprador          string                  `json:"direccion_comprador,omitempty"`
	TotalSinImpuestos           decimal.Decimal         `json:"total_sin_impuestos"`
	TotalDescuento              decimal.Decimal         `json:"total_descuento"`
	TotalConImpuestos           []TotalImpuestoRequest  `json:"total_con_impuestos"`
	Propina                     decimal.Decimal         `json:"propina"`
	ImporteTotal                decimal.Decimal         `json:"importe_total"`
	Moneda                      string                  `json:"moneda,omitempty"`
	Pagos                       []PagoRequest           `json:"pagos"`
	Detalles                    []DetalleFacturaRequest `json:"detalles"`
	InfoAdicional               []CampoAdicionalRequest `json:"info_adicional,omitempty"`
}

// TotalImpuestoRequest total agregado por impuesto.
type TotalImpuestoRequest struct {
	Codigo           string          `json:"codigo"`
	CodigoPorcentaje string          `json:"codigo_porcentaje"`
	BaseImponible    decimal.Decimal `json:"base_imponible"`
	Valor            decimal.Decimal `json:"valor"`
}

// PagoRequest forma de pago.
type PagoRequest struct {
	FormaPago    string          `json:"forma_pago"`
	Total        decimal.Decimal `json:"total"`
	Plazo        string          `json:"plazo,omitempty"`
	UnidadTiempo string          `json:"unidad_tiempo,omitempty"`
}

// DetalleFacturaRequest línea de factura.
type DetalleFacturaRequest struct {
	CodigoPrincipal        string            `json:"codigo_principal,omitempty"`
	CodigoAuxiliar         string            `json:"codigo_auxiliar,omitempty"`
	Descripcion            string            `json:"descripcion"`
	Cantidad               decimal.Decimal   `json:"cantidad"`
	PrecioUnitario         decimal.Decimal   `json:"precio_unitario"`
	Descuento              decimal.Decimal   `json:"descuento"`
	PrecioTotalSinImpuesto decimal.Decimal   `json:"precio_total_sin_impuesto"`
	Impuestos              []ImpuestoRequest `json:"impuestos"`
}

// ImpuestoRequest impuesto de una línea.
type ImpuestoRequest struct {
	Codigo           string          `json:"codigo"`
	CodigoPorcentaje string          `json:"codigo_porcentaje"`
	Tarifa           decimal.Decimal `json:"tarifa"`
	BaseImponible    decimal.Decimal `json:"base_imponible"`
	Valor            decimal.Decimal `json:"valor"`
}

// IssueResponse respuesta de emisión.
type IssueResponse struct {
	ClaveAcceso string `json:"clave_acceso"`
}

// ComprobanteListResponse claves activas de un emisor.
type ComprobanteListResponse struct {
	RUC          string   `json:"ruc"`
	Comprobantes []string `json:"comprobantes"`
}

// VerifyResponse resultado de la verificación de firma.
type VerifyResponse struct {
	Valid        bool   `json:"valid"`
	Algorithm    string `json:"algorithm,omitempty"`
	SigningTime  string `json:"signing_time,omitempty"`
	Certificate  string `json:"certificate,omitempty"` // subject del firmante
	SerialNumber string `json:"serial_number,omitempty"`
}

func (r InfoTributariaRequest) toEntity(codDoc string) entity.InfoTributaria {
	return entity.InfoTributaria{
		Ambiente:        r.Ambiente,
		TipoEmision:     r.TipoEmision,
		RazonSocial:     r.RazonSocial,
		NombreComercial: r.NombreComercial,
		RUC:             r.RUC,
		ClaveAcceso:     r.ClaveAcceso,
		CodDoc:          codDoc,
		Estab:           r.Estab,
		PtoEmi:          r.PtoEmi,
		Secuencial:      r.Secuencial,
		DirMatriz:       r.DirMatriz,
		CodigoNumerico:  r.CodigoNumerico,
	}
}

func camposAdicionales(in []CampoAdicionalRequest) []entity.CampoAdicional {
	out := make([]entity.CampoAdicional, 0, len(in))
	for _, c := range in {
		out = append(out, entity.CampoAdicional{Nombre: c.Nombre, Valor: c.Valor})
	}
	return out
}

// parseDate convierte dd/mm/aaaa. Vacío devuelve la fecha cero (el serializador
// la reporta si era obligatoria).
func parseDate(field, s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %s debe tener formato dd/mm/aaaa, se recibió %q", domain.ErrInvalidInput, field, s)
	}
	return t, nil
}

// ToEntity mapea el request a la guía de dominio.
func (r CreateGuiaRemisionRequest) ToEntity() (*entity.GuiaRemision, error) {
	ini, err := parseDate("fecha_ini_transporte", r.FechaIniTransporte)
	if err != nil {
		return nil, err
	}
	fin, err := parseDate("fecha_fin_transporte", r.FechaFinTransporte)
	if err != nil {
		return nil, err
	}
	g := &entity.GuiaRemision{
		InfoTributaria:                  r.InfoTributaria.toEntity(entity.CodDocGuiaRemision),
		DirEstablecimiento:              r.DirEstablecimiento,
		DirPartida:                      r.DirPartida,
		RazonSocialTransportista:        r.RazonSocialTransportista,
		TipoIdentificacionTransportista: r.TipoIdentificacionTransportista,
		RUCTransportista:                r.RUCTransportista,
		RISE:                            r.RISE,
		ObligadoContabilidad:            r.ObligadoContabilidad,
		ContribuyenteEspecial:           r.ContribuyenteEspecial,
		FechaIniTransporte:              ini,
		FechaFinTransporte:              fin,
		Placa:                           r.Placa,
		InfoAdicional:                   camposAdicionales(r.InfoAdicional),
	}
	for i, d := range r.Destinatarios {
		dest := entity.Destinatario{
			IdentificacionDestinatario: d.IdentificacionDestinatario,
			RazonSocialDestinatario:    d.RazonSocialDestinatario,
			DirDestinatario:            d.DirDestinatario,
			MotivoTraslado:             d.MotivoTraslado,
			DocAduaneroUnico:           d.DocAduaneroUnico,
			CodEstabDestino:            d.CodEstabDestino,
			Ruta:                       d.Ruta,
			CodDocSustento:             d.CodDocSustento,
			NumDocSustento:             d.NumDocSustento,
			NumAutDocSustento:          d.NumAutDocSustento,
		}
		if d.FechaEmisionDocSustento != "" {
			f, err := parseDate(fmt.Sprintf("destinatarios[%d].fecha_emision_doc_sustento", i), d.FechaEmisionDocSustento)
			if err != nil {
				return nil, err
			}
			dest.FechaEmisionDocSustento = &f
		}
		for _, det := range d.Detalles {
			dest.Detalles = append(dest.Detalles, entity.DetalleGuia{
				CodigoInterno:   det.CodigoInterno,
				CodigoAdicional: det.CodigoAdicional,
				Descripcion:     det.Descripcion,
				Cantidad:        det.Cantidad,
			})
		}
		g.AddDestinatario(dest)
	}
	return g, nil
}

// ToEntity mapea el request a la factura de dominio.
func (r CreateFacturaRequest) ToEntity() (*entity.Factura, error) {
	fecha, err := parseDate("fecha_emision", r.FechaEmision)
	if err != nil {
		return nil, err
	}
	f := &entity.Factura{
		InfoTributaria: r.InfoTributaria.toEntity(entity.CodDocFactura),
		InfoFactura: entity.InfoFactura{
			FechaEmision:                fecha,
			DirEstablecimiento:          r.DirEstablecimiento,
			ContribuyenteEspecial:       r.ContribuyenteEspecial,
			ObligadoContabilidad:        r.ObligadoContabilidad,
			TipoIdentificacionComprador: r.TipoIdentificacionComprador,
			RazonSocialComprador:        r.RazonSocialComprador,
			IdentificacionComprador:     r.IdentificacionComprador,
			DireccionComprador:          r.DireccionComprador,
			TotalSinImpuestos:           r.TotalSinImpuestos,
			TotalDescuento:              r.TotalDescuento,
			Propina:                     r.Propina,
			ImporteTotal:                r.ImporteTotal,
			Moneda:                      r.Moneda,
		},
		InfoAdicional: camposAdicionales(r.InfoAdicional),
	}
	for _, t := range r.TotalConImpuestos {
		f.InfoFactura.TotalConImpuestos = append(f.InfoFactura.TotalConImpuestos, entity.TotalImpuesto{
			Codigo:           t.Codigo,
			CodigoPorcentaje: t.CodigoPorcentaje,
			BaseImponible:    t.BaseImponible,
			Valor:            t.Valor,
		})
	}
	for _, p := range r.Pagos {
		f.InfoFactura.Pagos = append(f.InfoFactura.Pagos, entity.Pago{
			FormaPago:    p.FormaPago,
			Total:        p.Total,
			Plazo:        p.Plazo,
			UnidadTiempo: p.UnidadTiempo,
		})
	}
	for _, d := range r.Detalles {
		line := entity.DetalleFactura{
			CodigoPrincipal:        d.CodigoPrincipal,
			CodigoAuxiliar:         d.CodigoAuxiliar,
			Descripcion:            d.Descripcion,
			Cantidad:               d.Cantidad,
			PrecioUnitario:         d.PrecioUnitario,
			Descuento:              d.Descuento,
			PrecioTotalSinImpuesto: d.PrecioTotalSinImpuesto,
		}
		for _, imp := range d.Impuestos {
			line.Impuestos = append(line.Impuestos, entity.Impuesto{
				Codigo:           imp.Codigo,
				CodigoPorcentaje: imp.CodigoPorcentaje,
				Tarifa:           imp.Tarifa,
				BaseImponible:    imp.BaseImponible,
				Valor:            imp.Valor,
			})
		}
		f.Detalles = append(f.Detalles, line)
	}
	return f, nil
}
