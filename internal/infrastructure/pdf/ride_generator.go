// Package pdf genera el RIDE (Representación Impresa del Documento
// Electrónico) a partir del XML firmado que quedó persistido.
//
// Layout de la página A4:
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Razón Social + RUC  │  Tipo + N° + Ambiente         │
//	│  CLAVE DE ACCESO: código de barras Code128 + dígitos         │
//	│  ─────────────────────────────────────────────────────────  │
//	│  Guía: transportista, placa, fechas de transporte            │
//	│  Factura: comprador                                          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: destinatarios y detalles / líneas de la factura      │
//	│  TOTALES (factura)                                           │
//	│  ─────────────────────────────────────────────────────────  │
//	│  Información adicional + fecha de firma                      │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"

	"github.com/beevik/etree"
	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/code"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/jhoicas/comprobantes-sri/internal/domain/entity"
	"github.com/jhoicas/comprobantes-sri/pkg/sri"
)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ── Generator ─────────────────────────────────────────────────────────────────

// RIDEGenerator implementa issuance.RIDERenderer usando Maroto v2.
type RIDEGenerator struct{}

func NewRIDEGenerator() *RIDEGenerator { return &RIDEGenerator{} }

// Render lee el XML almacenado y devuelve los bytes del PDF.
func (g *RIDEGenerator) Render(doc *entity.IssuedDocument) ([]byte, error) {
	data, err := readRIDE(doc.XMLContent)
	if err != nil {
		return nil, err
	}

	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(data.Title+" "+data.Number, true).
		WithAuthor(data.RazonSocial, true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(data))
	m.AddRows(accessKeyRows(data)...)
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	switch data.CodDoc {
	case entity.CodDocGuiaRemision:
		m.AddRows(transportRows(data)...)
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		for _, d := range data.Consignees {
			m.AddRows(consigneeRows(d)...)
		}
	case entity.CodDocFactura:
		m.AddRows(buyerRow(data))
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(tableHeaderRow())
		m.AddRows(tableDetailRows(data.Lines)...)
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(totalsRow(data))
	}

	m.AddRows(line.NewRow(3))
	m.AddRows(line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.3}))
	m.AddRows(footerRows(data)...)

	pdf, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar RIDE: %w", err)
	}
	return pdf.GetBytes(), nil
}

// ── Lectura del XML ───────────────────────────────────────────────────────────

type rideData struct {
	CodDoc      string
	Title       string
	RazonSocial string
	RUC         string
	DirMatriz   string
	Number      string
	AccessKey   string
	Environment string
	SigningTime string
	Additional  [][2]string // campoAdicional nombre/valor

	// Guía
	Carrier    string
	CarrierRUC string
	Plate      string
	Departure  string
	StartDate  string
	EndDate    string
	Consignees []rideConsignee

	// Factura
	Buyer      string
	BuyerID    string
	IssueDate  string
	Lines      []rideLine
	Subtotal   string
	Total      string
}

type rideConsignee struct {
	ID         string
	Name       string
	Address    string
	Reason     string
	SupportDoc string
	Items      []rideLine
}

type rideLine struct {
	Quantity    string
	Description string
	UnitPrice   string
	Total       string
}

func readRIDE(xmlContent string) (*rideData, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(xmlContent); err != nil {
		return nil, fmt.Errorf("pdf: leer XML: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("pdf: XML sin elemento raíz")
	}
	info := root.SelectElement("infoTributaria")
	if info == nil {
		return nil, fmt.Errorf("pdf: falta infoTributaria")
	}

	d := &rideData{
		CodDoc:      childText(info, "codDoc"),
		RazonSocial: childText(info, "razonSocial"),
		RUC:         childText(info, "ruc"),
		DirMatriz:   childText(info, "dirMatriz"),
		Number:      childText(info, "estab") + "-" + childText(info, "ptoEmi") + "-" + childText(info, "secuencial"),
		AccessKey:   childText(info, "claveAcceso"),
		Environment: "PRUEBAS",
	}
	if childText(info, "ambiente") == sri.EnvironmentProduccion {
		d.Environment = "PRODUCCIÓN"
	}
	if st := root.FindElement(".//SigningTime"); st != nil {
		d.SigningTime = st.Text()
	}

	switch d.CodDoc {
	case entity.CodDocGuiaRemision:
		d.Title = "GUÍA DE REMISIÓN"
		g := root.SelectElement("infoGuiaRemision")
		if g == nil {
			return nil, fmt.Errorf("pdf: falta infoGuiaRemision")
		}
		d.Carrier = childText(g, "razonSocialTransportista")
		d.CarrierRUC = childText(g, "rucTransportista")
		d.Plate = childText(g, "placa")
		d.Departure = childText(g, "dirPartida")
		d.StartDate = childText(g, "fechaIniTransporte")
		d.EndDate = childText(g, "fechaFinTransporte")
		for _, dest := range root.FindElements("./destinatarios/destinatario") {
			c := rideConsignee{
				ID:         childText(dest, "identificacionDestinatario"),
				Name:       childText(dest, "razonSocialDestinatario"),
				Address:    childText(dest, "dirDestinatario"),
				Reason:     childText(dest, "motivoTraslado"),
				SupportDoc: childText(dest, "numDocSustento"),
			}
			for _, det := range dest.FindElements("./detalles/detalle") {
				c.Items = append(c.Items, rideLine{
					Quantity:    childText(det, "cantidad"),
					Description: childText(det, "descripcion"),
				})
			}
			d.Consignees = append(d.Consignees, c)
		}
	case entity.CodDocFactura:
		d.Title = "FACTURA"
		f := root.SelectElement("infoFactura")
		if f == nil {
			return nil, fmt.Errorf("pdf: falta infoFactura")
		}
		d.Buyer = childText(f, "razonSocialComprador")
		d.BuyerID = childText(f, "identificacionComprador")
		d.IssueDate = childText(f, "fechaEmision")
		d.Subtotal = childText(f, "totalSinImpuestos")
		d.Total = childText(f, "importeTotal")
		for _, det := range root.FindElements("./detalles/detalle") {
			d.Lines = append(d.Lines, rideLine{
				Quantity:    childText(det, "cantidad"),
				Description: childText(det, "descripcion"),
				UnitPrice:   childText(det, "precioUnitario"),
				Total:       childText(det, "precioTotalSinImpuesto"),
			})
		}
	default:
		return nil, fmt.Errorf("pdf: tipo de comprobante %q no soportado", d.CodDoc)
	}

	for _, campo := range root.FindElements("./infoAdicional/campoAdicional") {
		d.Additional = append(d.Additional, [2]string{campo.SelectAttrValue("nombre", ""), campo.Text()})
	}
	return d, nil
}

func childText(e *etree.Element, tag string) string {
	if c := e.SelectElement(tag); c != nil {
		return c.Text()
	}
	return ""
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(d *rideData) core.Row {
	return row.New(20).Add(
		col.New(7).Add(
			text.New(d.RazonSocial, props.Text{
				Style: fontstyle.Bold, Size: 12, Color: colorPrimary, Top: 1,
			}),
			text.New("RUC: "+d.RUC, props.Text{Size: 9, Top: 9, Color: colorGray}),
			text.New("Dir. Matriz: "+nonEmpty(d.DirMatriz, "-"), props.Text{Size: 8, Top: 14, Color: colorGray}),
		),
		col.New(5).Add(
			text.New(d.Title, props.Text{
				Style: fontstyle.Bold, Size: 9, Align: align.Right, Color: colorPrimary, Top: 1,
			}),
			text.New("No. "+d.Number, props.Text{
				Style: fontstyle.Bold, Size: 11, Align: align.Right, Top: 7,
			}),
			text.New("Ambiente: "+d.Environment+"   Emisión: NORMAL", props.Text{
				Size: 8, Align: align.Right, Top: 14, Color: colorGray,
			}),
		),
	)
}

// accessKeyRows: la clave de acceso también es el número de autorización.
func accessKeyRows(d *rideData) []core.Row {
	return []core.Row{
		row.New(5).Add(col.New(12).Add(
			text.New("NÚMERO DE AUTORIZACIÓN / CLAVE DE ACCESO", props.Text{
				Style: fontstyle.Bold, Size: 7, Color: colorPrimary, Top: 1,
			}),
		)),
		row.New(14).Add(col.New(12).Add(code.NewBar(d.AccessKey, props.Barcode{
			Percent: 90,
			Center:  true,
		}))),
		row.New(5).Add(col.New(12).Add(
			text.New(d.AccessKey, props.Text{Size: 7, Align: align.Center, Top: 1}),
		)),
	}
}

func transportRows(d *rideData) []core.Row {
	field := func(label, value string, top float64) core.Component {
		return text.New(label+": "+nonEmpty(value, "-"), props.Text{Size: 8, Top: top})
	}
	return []core.Row{
		row.New(20).Add(
			col.New(7).Add(
				text.New("TRANSPORTISTA", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
				field("Razón social", d.Carrier, 6),
				field("RUC / CI", d.CarrierRUC, 10),
				field("Punto de partida", d.Departure, 14),
			),
			col.New(5).Add(
				field("Placa", d.Plate, 6),
				field("Inicio transporte", d.StartDate, 10),
				field("Fin transporte", d.EndDate, 14),
			),
		),
	}
}

func consigneeRows(c rideConsignee) []core.Row {
	rows := []core.Row{
		row.New(16).Add(col.New(12).Add(
			text.New("DESTINATARIO: "+c.Name+"  ("+c.ID+")", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New("Dirección: "+nonEmpty(c.Address, "-"), props.Text{Size: 8, Top: 6}),
			text.New("Motivo: "+nonEmpty(c.Reason, "-")+"   Doc. sustento: "+nonEmpty(c.SupportDoc, "-"), props.Text{
				Size: 8, Top: 10, Color: colorGray,
			}),
		)),
	}
	for _, it := range c.Items {
		rows = append(rows, row.New(6).Add(
			col.New(2).Add(text.New(it.Quantity, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(10).Add(text.New(it.Description, props.Text{Size: 8, Top: 1, Left: 1})),
		))
	}
	return append(rows, row.New(2))
}

func buyerRow(d *rideData) core.Row {
	return row.New(14).Add(
		col.New(12).Add(
			text.New("COMPRADOR", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
			text.New(d.Buyer, props.Text{Style: fontstyle.Bold, Size: 10, Top: 6}),
			text.New(fmt.Sprintf("Identificación: %s   |   Fecha de emisión: %s", d.BuyerID, d.IssueDate),
				props.Text{Size: 8, Top: 11, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Cant.", 1, align.Center),
		h("Descripción", 6, align.Left),
		h("P. Unitario", 2, align.Right),
		h("Subtotal", 3, align.Right),
	)
}

func tableDetailRows(lines []rideLine) []core.Row {
	result := make([]core.Row, 0, len(lines))
	for _, l := range lines {
		result = append(result, row.New(7).Add(
			col.New(1).Add(text.New(l.Quantity, props.Text{Size: 8, Align: align.Center, Top: 1})),
			col.New(6).Add(text.New(l.Description, props.Text{Size: 8, Top: 1, Left: 1})),
			col.New(2).Add(text.New("$"+l.UnitPrice, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
			col.New(3).Add(text.New("$"+l.Total, props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1})),
		))
	}
	return result
}

func totalsRow(d *rideData) core.Row {
	return row.New(14).Add(
		col.New(6),
		col.New(3).Add(
			text.New("Subtotal sin impuestos:", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2}),
			text.New("VALOR TOTAL:", props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 2, Top: 6}),
		),
		col.New(3).Add(
			text.New("$"+d.Subtotal, props.Text{Size: 9, Align: align.Right, Right: 1}),
			text.New("$"+d.Total, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right, Color: colorPrimary, Right: 1, Top: 6}),
		),
	)
}

func footerRows(d *rideData) []core.Row {
	rows := []core.Row{
		row.New(6).Add(col.New(12).Add(
			text.New("INFORMACIÓN ADICIONAL", props.Text{Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1}),
		)),
	}
	for _, kv := range d.Additional {
		rows = append(rows, row.New(5).Add(
			col.New(3).Add(text.New(kv[0], props.Text{Style: fontstyle.Bold, Size: 8, Top: 1})),
			col.New(9).Add(text.New(kv[1], props.Text{Size: 8, Top: 1})),
		))
	}
	if d.SigningTime != "" {
		rows = append(rows, row.New(6).Add(col.New(12).Add(
			text.New("Firmado electrónicamente: "+d.SigningTime, props.Text{Size: 7, Color: colorGray, Top: 2}),
		)))
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}
