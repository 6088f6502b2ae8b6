package invoice

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/shopspring/decimal"
)

// Page geometry in points (A4)
const (
	marginLeft   = 50.0
	contentRight = 545.0
	contentWidth = contentRight - marginLeft

	servicesTop     = 220.0
	serviceAdvance  = 34.0
	serviceBreakY   = 700.0
	continuationTop = 50.0

	descWidth      = 360.0
	descLineHeight = 12.0
	sideColumn     = 420.0

	imageWidth   = 240.0
	imageHeight  = 140.0
	imagesPerRow = 2
	imageSpacing = 20.0
	imageRowGap  = 12.0
	imageBottom  = 780.0

	footerTaglineY = 780.0
	footerPageY    = 792.0

	// nothing but the footer is drawn below this line
	contentBottom = footerTaglineY - 10
)

// Branding is the shop identity printed on every document
type Branding struct {
	ShopName string
	Tagline  string
	// LogoPath is optional; a missing or unreadable logo is left out
	LogoPath string
}

// ImageSource resolves a service's image references, dropping the ones
// that cannot be loaded and keeping the rest in reference order.
type ImageSource interface {
	ResolveAll(ctx context.Context, refs []string) []Image
}

// RenderMeta carries the per-document values that do not come from the rows
type RenderMeta struct {
	Date time.Time
	// Reference is printed under the date when set
	Reference string
}

// PlacedImage records where an image ended up
type PlacedImage struct {
	ServiceID int64
	Ref       string
	Page      int
	X, Y      float64
}

// Document is a rendered invoice
type Document struct {
	Content []byte
	Pages   int
	Total   decimal.Decimal
	Images  []PlacedImage
}

// Renderer lays out invoices with go-pdf/fpdf
type Renderer struct {
	branding Branding
	images   ImageSource
	maxLogo  int64
	logger   Logger
}

// NewRenderer creates a renderer
func NewRenderer(branding Branding, images ImageSource, logger Logger) *Renderer {
	return &Renderer{
		branding: branding,
		images:   images,
		maxLogo:  5 << 20,
		logger:   logger,
	}
}

// page holds the cursor state while one document is laid out
type page struct {
	pdf    *fpdf.Fpdf
	tr     func(string) string
	y      float64
	logger Logger
	doc    *Document
}

// Render lays out rows into a single document. Client and moto details
// come from the first row; rows are printed in the order given.
func (r *Renderer) Render(ctx context.Context, rows []models.InvoiceRow, meta RenderMeta) (*Document, error) {
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	if meta.Date.IsZero() {
		meta.Date = time.Now()
	}

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetMargins(marginLeft, continuationTop, marginLeft)
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetCreationDate(meta.Date)
	pdf.SetModificationDate(meta.Date)
	pdf.SetCreator(r.branding.ShopName, true)
	pdf.SetTitle("Factura "+r.branding.ShopName, true)
	pdf.AddPage()

	p := &page{
		pdf:    pdf,
		tr:     pdf.UnicodeTranslatorFromDescriptor(""),
		logger: r.logger,
		doc:    &Document{Total: decimal.Zero},
	}

	r.header(p, rows[0], meta)

	p.y = servicesTop
	p.text(marginLeft, p.y-14, contentWidth, 12, "B", 0, "Detalle de servicios")

	for idx, row := range rows {
		svc := row.Service
		p.doc.Total = p.doc.Total.Add(svc.Cost)

		if p.y+serviceAdvance > contentBottom {
			p.newPage()
		}
		top, startPage := p.y, p.pdf.PageNo()

		p.text(sideColumn, top, contentRight-sideColumn, 9, "", 0x44, "Fecha: "+LocalizeDate(svc.Date))
		p.text(sideColumn, top+14, contentRight-sideColumn, 10, "", 0, "Precio: $ "+svc.Cost.StringFixed(2))
		p.description(fmt.Sprintf("%d. %s", idx+1, orDash(svc.Description)))

		p.y += 4
		if p.pdf.PageNo() == startPage && p.y < top+serviceAdvance {
			p.y = top + serviceAdvance
		}

		// a page holding nothing but the footer is never emitted
		if p.y > serviceBreakY && idx < len(rows)-1 {
			p.newPage()
		}

		if refs := svc.ImageRefs(); len(refs) > 0 {
			p.imageGrid(svc.ID, r.images.ResolveAll(ctx, refs))
		}
	}

	p.totals()
	r.footers(p)

	if err := pdf.Error(); err != nil {
		return nil, &RenderError{Stage: "layout", Err: err}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{Stage: "layout", Err: err}
	}

	p.doc.Content = buf.Bytes()
	p.doc.Pages = pdf.PageCount()
	return p.doc, nil
}

func (r *Renderer) header(p *page, first models.InvoiceRow, meta RenderMeta) {
	if r.branding.LogoPath != "" {
		if logo, err := LoadImageFile(r.branding.LogoPath, r.maxLogo); err == nil {
			p.pdf.SetFillColor(0xdd, 0xdd, 0xdd)
			p.pdf.Rect(marginLeft, 45, 120, 72, "F")
			p.drawImage("logo", logo, 60, 55, 100, 0)
		} else {
			r.logger.Info("Invoice logo not drawn", "path", r.branding.LogoPath, "reason", err.Error())
		}
	}

	p.text(190, 55, contentRight-190, 20, "B", 0, r.branding.ShopName)
	p.text(190, 80, contentRight-190, 10, "", 0, "Fecha: "+LocalizeDate(meta.Date))
	if meta.Reference != "" {
		p.text(190, 95, contentRight-190, 9, "", 0x55, "Factura: "+meta.Reference)
	}

	p.pdf.SetDrawColor(0xee, 0xee, 0xee)
	p.pdf.Line(marginLeft, 125, contentRight, 125)

	p.text(marginLeft, 135, 280, 11, "B", 0, "Cliente:")
	p.text(marginLeft, 152, 300, 10, "", 0, orDash(first.Client.Name))
	p.text(marginLeft, 168, 300, 9, "", 0x55, "Teléfono: "+orDash(first.Client.Phone))
	p.text(marginLeft, 182, 300, 9, "", 0x55, "Dirección: "+orDash(first.Client.Address))

	p.text(360, 135, contentRight-360, 11, "B", 0, "Moto:")
	p.text(360, 152, contentRight-360, 10, "", 0, orDash(first.Moto.Brand)+" "+orDash(first.Moto.Model))
	p.text(360, 168, contentRight-360, 9, "", 0x55, "Placa: "+orDash(first.Moto.Plate))
}

// imageGrid draws images two per row below the current service. Only
// images that were actually drawn take a slot.
func (p *page) imageGrid(serviceID int64, images []Image) {
	col := 0
	for _, img := range images {
		if col == 0 && p.y+imageHeight+20 > imageBottom {
			p.newPage()
		}
		x := marginLeft + float64(col)*(imageWidth+imageSpacing)
		if !p.drawImage("img:"+img.Ref, img, x, p.y, imageWidth, imageHeight) {
			continue
		}
		p.doc.Images = append(p.doc.Images, PlacedImage{
			ServiceID: serviceID,
			Ref:       img.Ref,
			Page:      p.pdf.PageNo(),
			X:         x,
			Y:         p.y,
		})
		col++
		if col >= imagesPerRow {
			col = 0
			p.y += imageHeight + imageRowGap
		}
	}
	if col != 0 {
		p.y += imageHeight + imageRowGap
	}
}

// description writes the wrapped service text from the cursor down. Lines
// that would reach the footer band continue at the top of a new page.
func (p *page) description(s string) {
	for _, line := range p.pdf.SplitLines([]byte(p.tr(s)), descWidth) {
		if p.y+descLineHeight > contentBottom {
			p.newPage()
		}
		p.pdf.SetFont("Helvetica", "", 10)
		p.pdf.SetTextColor(0, 0, 0)
		p.pdf.SetXY(marginLeft, p.y)
		p.pdf.CellFormat(descWidth, descLineHeight, string(line), "", 0, "L", false, 0, "")
		p.y += descLineHeight
	}
}

func (p *page) totals() {
	// keep the totals block clear of the footer
	if p.y+30 > contentBottom {
		p.newPage()
	}
	p.pdf.SetDrawColor(0xdd, 0xdd, 0xdd)
	p.pdf.Line(360, p.y+4, contentRight, p.y+4)
	p.text(360, p.y+12, 90, 12, "B", 0, "Total:")
	p.text(450, p.y+8, contentRight-450, 16, "B", 0, "$ "+p.doc.Total.StringFixed(2))
}

// footers stamps every page once the final page count is known
func (r *Renderer) footers(p *page) {
	total := p.pdf.PageCount()
	for i := 1; i <= total; i++ {
		p.pdf.SetPage(i)
		p.pdf.SetFont("Helvetica", "", 8)
		p.pdf.SetTextColor(0x77, 0x77, 0x77)
		p.pdf.SetXY(marginLeft, footerTaglineY)
		p.pdf.CellFormat(contentWidth, 10, p.tr(r.branding.Tagline), "", 0, "C", false, 0, "")
		p.pdf.SetXY(marginLeft, footerPageY)
		p.pdf.CellFormat(contentWidth, 10, p.tr(fmt.Sprintf("Página %d de %d", i, total)), "", 0, "C", false, 0, "")
	}
}

func (p *page) newPage() {
	p.pdf.AddPage()
	p.y = continuationTop
}

// drawImage embeds img and reports whether it made it onto the page. A
// decode failure is cleared so the rest of the document still renders.
func (p *page) drawImage(name string, img Image, x, y, w, h float64) bool {
	opts := fpdf.ImageOptions{ImageType: img.Type}
	p.pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(img.Data))
	if err := p.pdf.Error(); err != nil {
		p.pdf.ClearError()
		p.logger.Info("Skipping undecodable invoice image", "ref", img.Ref, "reason", err.Error())
		return false
	}
	p.pdf.ImageOptions(name, x, y, w, h, false, opts, 0, "")
	if err := p.pdf.Error(); err != nil {
		p.pdf.ClearError()
		p.logger.Info("Skipping invoice image", "ref", img.Ref, "reason", err.Error())
		return false
	}
	return true
}

// text writes one line with its top edge at y
func (p *page) text(x, y, w, size float64, style string, gray int, s string) {
	p.pdf.SetFont("Helvetica", style, size)
	p.pdf.SetTextColor(gray, gray, gray)
	p.pdf.SetXY(x, y)
	p.pdf.CellFormat(w, size*1.2, p.tr(s), "", 0, "L", false, 0, "")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
