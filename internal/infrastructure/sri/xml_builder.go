// Package sri implementa la serialización XML de comprobantes electrónicos del
// SRI (Ecuador) según los XSD de la Ficha Técnica (offline).
package sri

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/jhoicas/comprobantes-sri/internal/domain"
	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/pkg/sri"
)

// RootElementID valor del atributo id del elemento raíz; la Reference de la firma apunta a "#comprobante".
const RootElementID = "comprobante"

const dateLayout = "02/01/2006"

// XMLBuilderService construye el XML del comprobante (sin firma).
// La salida es determinista: mismos datos producen los mismos bytes.
type XMLBuilderService struct{}

// NewXMLBuilderService crea el servicio.
func NewXMLBuilderService() *XMLBuilderService {
	return &XMLBuilderService{}
}

// Build genera el XML del comprobante. Cualquier campo obligatorio faltante o texto
// que no sea UTF-8 válido devuelve domain.ErrSerialization.
func (s *XMLBuilderService) Build(doc entity.Comprobante) ([]byte, error) {
	if doc == nil || doc.Info() == nil {
		return nil, fmt.Errorf("%w: comprobante vacío", domain.ErrSerialization)
	}
	var buf bytes.Buffer
	w := &xmlWriter{enc: xml.NewEncoder(&buf)}
	w.enc.Indent("", "  ")
	w.token(xml.ProcInst{Target: "xml", Inst: []byte(`version="1.0" encoding="UTF-8"`)})

	switch d := doc.(type) {
	case *entity.GuiaRemision:
		s.writeGuiaRemision(w, d)
	case *entity.Factura:
		s.writeFactura(w, d)
	default:
		return nil, fmt.Errorf("%w: tipo de comprobante no soportado %q", domain.ErrSerialization, doc.DocumentType())
	}
	if w.err != nil {
		return nil, w.err
	}
	if err := w.enc.Flush(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
	return buf.Bytes(), nil
}

func (s *XMLBuilderService) writeGuiaRemision(w *xmlWriter, g *entity.GuiaRemision) {
	root := w.openRoot("guiaRemision", g.SchemaVersion())
	writeInfoTributaria(w, &g.InfoTributaria, g.DocumentType())

	w.open("infoGuiaRemision")
	w.optional("dirEstablecimiento", g.DirEstablecimiento)
	w.required("dirPartida", g.DirPartida)
	w.required("razonSocialTransportista", g.RazonSocialTransportista)
	w.required("tipoIdentificacionTransportista", g.TipoIdentificacionTransportista)
	w.required("rucTransportista", g.RUCTransportista)
	w.optional("rise", g.RISE)
	w.optional("obligadoContabilidad", g.ObligadoContabilidad)
	w.optional("contribuyenteEspecial", g.ContribuyenteEspecial)
	w.date("fechaIniTransporte", g.FechaIniTransporte)
	w.date("fechaFinTransporte", g.FechaFinTransporte)
	w.required("placa", g.Placa)
	w.close("infoGuiaRemision")

	if len(g.Destinatarios) == 0 {
		w.fail("destinatarios")
	}
	w.open("destinatarios")
	for i := range g.Destinatarios {
		writeDestinatario(w, &g.Destinatarios[i])
	}
	w.close("destinatarios")

	writeInfoAdicional(w, g.InfoAdicional)
	w.token(root.End())
}

func writeDestinatario(w *xmlWriter, d *entity.Destinatario) {
	w.open("destinatario")
	w.required("identificacionDestinatario", d.IdentificacionDestinatario)
	w.required("razonSocialDestinatario", d.RazonSocialDestinatario)
	w.required("dirDestinatario", d.DirDestinatario)
	w.required("motivoTraslado", d.MotivoTraslado)
	w.optional("docAduaneroUnico", d.DocAduaneroUnico)
	w.optional("codEstabDestino", d.CodEstabDestino)
	w.optional("ruta", d.Ruta)
	w.optional("codDocSustento", d.CodDocSustento)
	w.optional("numDocSustento", d.NumDocSustento)
	w.optional("numAutDocSustento", d.NumAutDocSustento)
	if d.FechaEmisionDocSustento != nil {
		w.date("fechaEmisionDocSustento", *d.FechaEmisionDocSustento)
	}
	if len(d.Detalles) == 0 {
		w.fail("destinatario.detalles")
	}
	w.open("detalles")
	for _, det := range d.Detalles {
		w.open("detalle")
		w.optional("codigoInterno", det.CodigoInterno)
		w.optional("codigoAdicional", det.CodigoAdicional)
		w.required("descripcion", det.Descripcion)
		w.quantity("cantidad", det.Cantidad)
		w.close("detalle")
	}
	w.close("detalles")
	w.close("destinatario")
}

func (s *XMLBuilderService) writeFactura(w *xmlWriter, f *entity.Factura) {
	root := w.openRoot("factura", f.SchemaVersion())
	writeInfoTributaria(w, &f.InfoTributaria, f.DocumentType())

	inf := &f.InfoFactura
	w.open("infoFactura")
	w.date("fechaEmision", inf.FechaEmision)
	w.optional("dirEstablecimiento", inf.DirEstablecimiento)
	w.optional("contribuyenteEspecial", inf.ContribuyenteEspecial)
	w.optional("obligadoContabilidad", inf.ObligadoContabilidad)
	w.required("tipoIdentificacionComprador", inf.TipoIdentificacionComprador)
	w.required("razonSocialComprador", inf.RazonSocialComprador)
	w.required("identificacionComprador", inf.IdentificacionComprador)
	w.optional("direccionComprador", inf.DireccionComprador)
	w.money("totalSinImpuestos", inf.TotalSinImpuestos)
	w.money("totalDescuento", inf.TotalDescuento)
	w.open("totalConImpuestos")
	for _, t := range inf.TotalConImpuestos {
		w.open("totalImpuesto")
		w.required("codigo", t.Codigo)
		w.required("codigoPorcentaje", t.CodigoPorcentaje)
		w.money("baseImponible", t.BaseImponible)
		w.money("valor", t.Valor)
		w.close("totalImpuesto")
	}
	w.close("totalConImpuestos")
	w.money("propina", inf.Propina)
	w.money("importeTotal", inf.ImporteTotal)
	moneda := inf.Moneda
	if moneda == "" {
		moneda = sri.CurrencyDolar
	}
	w.required("moneda", moneda)
	if len(inf.Pagos) > 0 {
		w.open("pagos")
		for _, p := range inf.Pagos {
			w.open("pago")
			w.required("formaPago", p.FormaPago)
			w.money("total", p.Total)
			w.optional("plazo", p.Plazo)
			w.optional("unidadTiempo", p.UnidadTiempo)
			w.close("pago")
		}
		w.close("pagos")
	}
	w.close("infoFactura")

	if len(f.Detalles) == 0 {
		w.fail("detalles")
	}
	w.open("detalles")
	for _, d := range f.Detalles {
		w.open("detalle")
		w.optional("codigoPrincipal", d.CodigoPrincipal)
		w.optional("codigoAuxiliar", d.CodigoAuxiliar)
		w.required("descripcion", d.Descripcion)
		w.quantity("cantidad", d.Cantidad)
		w.quantity("precioUnitario", d.PrecioUnitario)
		w.money("descuento", d.Descuento)
		w.money("precioTotalSinImpuesto", d.PrecioTotalSinImpuesto)
		w.open("impuestos")
		for _, imp := range d.Impuestos {
			w.open("impuesto")
			w.required("codigo", imp.Codigo)
			w.required("codigoPorcentaje", imp.CodigoPorcentaje)
			w.money("tarifa", imp.Tarifa)
			w.money("baseImponible", imp.BaseImponible)
			w.money("valor", imp.Valor)
			w.close("impuesto")
		}
		w.close("impuestos")
		w.close("detalle")
	}
	w.close("detalles")

	writeInfoAdicional(w, f.InfoAdicional)
	w.token(root.End())
}

// writeInfoTributaria cabecera común. codDoc sale del tipo del comprobante, no del dato de entrada.
func writeInfoTributaria(w *xmlWriter, it *entity.InfoTributaria, codDoc string) {
	if it.RUC != "" {
		if err := sri.ValidateRUC(it.RUC); err != nil && w.err == nil {
			w.err = fmt.Errorf("%w: ruc: %v", domain.ErrSerialization, err)
		}
	}
	w.open("infoTributaria")
	w.required("ambiente", it.Ambiente)
	w.required("tipoEmision", it.TipoEmision)
	w.required("razonSocial", it.RazonSocial)
	w.optional("nombreComercial", it.NombreComercial)
	w.required("ruc", it.RUC)
	w.required("claveAcceso", it.ClaveAcceso)
	w.required("codDoc", codDoc)
	w.required("estab", it.Estab)
	w.required("ptoEmi", it.PtoEmi)
	w.required("secuencial", it.Secuencial)
	w.required("dirMatriz", it.DirMatriz)
	w.close("infoTributaria")
}

func writeInfoAdicional(w *xmlWriter, campos []entity.CampoAdicional) {
	if len(campos) == 0 {
		return
	}
	w.open("infoAdicional")
	for _, c := range campos {
		nombre := w.text("campoAdicional.nombre", c.Nombre)
		if strings.TrimSpace(nombre) == "" || strings.ContainsAny(nombre, "\t\n") {
			w.fail("campoAdicional.nombre")
		}
		start := xml.StartElement{
			Name: xml.Name{Local: "campoAdicional"},
			Attr: []xml.Attr{{Name: xml.Name{Local: "nombre"}, Value: nombre}},
		}
		w.token(start)
		w.token(xml.CharData(w.text("campoAdicional", c.Valor)))
		w.token(start.End())
	}
	w.close("infoAdicional")
}

// xmlWriter envuelve el encoder y conserva el primer error.
type xmlWriter struct {
	enc *xml.Encoder
	err error
}

func (w *xmlWriter) token(t xml.Token) {
	if w.err != nil {
		return
	}
	if err := w.enc.EncodeToken(t); err != nil {
		w.err = fmt.Errorf("%w: %v", domain.ErrSerialization, err)
	}
}

func (w *xmlWriter) openRoot(local, version string) xml.StartElement {
	root := xml.StartElement{
		Name: xml.Name{Local: local},
		Attr: []xml.Attr{
			{Name: xml.Name{Local: "id"}, Value: RootElementID},
			{Name: xml.Name{Local: "version"}, Value: version},
		},
	}
	w.token(root)
	return root
}

func (w *xmlWriter) open(local string) {
	w.token(xml.StartElement{Name: xml.Name{Local: local}})
}

func (w *xmlWriter) close(local string) {
	w.token(xml.EndElement{Name: xml.Name{Local: local}})
}

func (w *xmlWriter) element(local, value string) {
	w.open(local)
	w.token(xml.CharData(value))
	w.close(local)
}

// required escribe el elemento; vacío o sólo espacios es un error.
func (w *xmlWriter) required(local, value string) {
	v := w.text(local, value)
	if strings.TrimSpace(v) == "" {
		w.fail(local)
		return
	}
	w.element(local, v)
}

// optional omite el elemento cuando no hay valor (nunca se emite vacío).
func (w *xmlWriter) optional(local, value string) {
	v := w.text(local, value)
	if strings.TrimSpace(v) == "" {
		return
	}
	w.element(local, v)
}

func (w *xmlWriter) date(local string, t time.Time) {
	if t.IsZero() {
		w.fail(local)
		return
	}
	w.element(local, t.Format(dateLayout))
}

// text normaliza a NFC y elimina \r para que el XML firmado sobreviva un reparseo.
func (w *xmlWriter) text(field, s string) string {
	if !utf8.ValidString(s) {
		if w.err == nil {
			w.err = fmt.Errorf("%w: %s no es UTF-8 válido", domain.ErrSerialization, field)
		}
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r", "")
	for _, r := range s {
		if !isXMLChar(r) {
			if w.err == nil {
				w.err = fmt.Errorf("%w: %s contiene el carácter no permitido %U", domain.ErrSerialization, field, r)
			}
			return ""
		}
	}
	return s
}

func (w *xmlWriter) fail(field string) {
	if w.err == nil {
		w.err = fmt.Errorf("%w: falta el campo obligatorio %s", domain.ErrSerialization, field)
	}
}

// isXMLChar rango Char de XML 1.0.
func isXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		r >= 0x20 && r <= 0xD7FF ||
		r >= 0xE000 && r <= 0xFFFD ||
		r >= 0x10000 && r <= 0x10FFFF
}

// Decimales que admite el esquema del SRI.
const (
	moneyPlaces    = 2
	quantityPlaces = 6
)

// money escribe un monto con dos decimales; nunca redondea.
func (w *xmlWriter) money(local string, d decimal.Decimal) {
	if w.exceedsPlaces(local, d, moneyPlaces) {
		return
	}
	w.element(local, d.StringFixed(moneyPlaces))
}

// quantity escribe cantidades y precios unitarios (hasta seis decimales); nunca redondea.
func (w *xmlWriter) quantity(local string, d decimal.Decimal) {
	if w.exceedsPlaces(local, d, quantityPlaces) {
		return
	}
	w.element(local, d.String())
}

// exceedsPlaces registra ErrSerialization si d no se representa con places decimales.
func (w *xmlWriter) exceedsPlaces(local string, d decimal.Decimal, places int32) bool {
	if d.Equal(d.Truncate(places)) {
		return false
	}
	if w.err == nil {
		w.err = fmt.Errorf("%w: %s=%s admite como máximo %d decimales", domain.ErrSerialization, local, d.String(), places)
	}
	return true
}
