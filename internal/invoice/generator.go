package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moreiraracing/taller-motos/internal/models"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// RowSource loads the joined service, moto and client rows to bill
type RowSource interface {
	InvoiceRowsByService(ctx context.Context, serviceID int64) ([]models.InvoiceRow, error)
	InvoiceRowsByMoto(ctx context.Context, motoID int64) ([]models.InvoiceRow, error)
	InvoiceRowsByServices(ctx context.Context, serviceIDs []int64) ([]models.InvoiceRow, error)
}

// LineWriter appends invoice ledger lines
type LineWriter interface {
	Create(ctx context.Context, line *models.InvoiceLine) error
}

// DocumentRenderer lays rows out into a document
type DocumentRenderer interface {
	Render(ctx context.Context, rows []models.InvoiceRow, meta RenderMeta) (*Document, error)
}

// Request asks for one invoice document
type Request struct {
	Selector  Selector
	Reference string
}

// Result describes a generated invoice
type Result struct {
	// Name is the stored file name, e.g. historial2.pdf
	Name string
	// Path is the stored location, as recorded on every line
	Path     string
	Document *Document
	Lines    []models.InvoiceLine
}

// Generator runs the invoice pipeline: load rows, render, store the
// document, then record one ledger line per billed service.
type Generator struct {
	rows     RowSource
	renderer DocumentRenderer
	store    DocumentStore
	lines    LineWriter
	logger   Logger
	now      func() time.Time
}

// NewGenerator creates a Generator
func NewGenerator(rows RowSource, renderer DocumentRenderer, store DocumentStore, lines LineWriter, logger Logger) *Generator {
	return &Generator{
		rows:     rows,
		renderer: renderer,
		store:    store,
		lines:    lines,
		logger:   logger,
		now:      time.Now,
	}
}

// Generate produces one document for the selected services.
//
// Errors match ErrInvalidRequest, ErrNotFound, *RenderError or
// *PersistenceError. With a *PersistenceError the document has already been
// stored and the returned Result is non-nil so it can still be delivered.
func (g *Generator) Generate(ctx context.Context, req Request) (*Result, error) {
	sel, err := normalize(req.Selector)
	if err != nil {
		return nil, err
	}

	rows, err := g.fetch(ctx, sel)
	if err != nil {
		g.logger.Error("Failed to load invoice rows", "selector", sel.String(), "error", err)
		return nil, fmt.Errorf("load invoice rows: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, sel)
	}

	today := g.now()
	doc, err := g.renderer.Render(ctx, rows, RenderMeta{Date: today, Reference: req.Reference})
	if err != nil {
		g.logger.Error("Failed to render invoice", "selector", sel.String(), "error", err)
		var renderErr *RenderError
		if errors.As(err, &renderErr) {
			return nil, err
		}
		return nil, &RenderError{Stage: "layout", Err: err}
	}

	name, path, err := storeDocument(g.store, doc.Content, g.now, g.logger)
	if err != nil {
		g.logger.Error("Failed to store invoice", "selector", sel.String(), "error", err)
		return nil, &RenderError{Stage: "store", Err: err}
	}

	result := &Result{Name: name, Path: path, Document: doc}

	// The document exists now; a client hanging up must not leave the
	// ledger half written.
	ledgerCtx := context.WithoutCancel(ctx)
	billed := today.Format("2006-01-02")
	for _, row := range rows {
		line := models.InvoiceLine{
			ServiceID:    row.Service.ID,
			Date:         billed,
			Total:        row.Service.Cost,
			DocumentPath: path,
		}
		if err := g.lines.Create(ledgerCtx, &line); err != nil {
			g.logger.Error("Invoice ledger incomplete",
				"document", path,
				"service_id", row.Service.ID,
				"written", len(result.Lines),
				"expected", len(rows),
				"error", err)
			return result, &PersistenceError{ServiceID: row.Service.ID, Written: result.Lines, Err: err}
		}
		result.Lines = append(result.Lines, line)
	}

	g.logger.Info("Invoice generated",
		"selector", sel.String(),
		"document", path,
		"services", len(rows),
		"pages", doc.Pages,
		"total", doc.Total.StringFixed(2))

	return result, nil
}

func (g *Generator) fetch(ctx context.Context, sel Selector) ([]models.InvoiceRow, error) {
	switch s := sel.(type) {
	case BySingleService:
		return g.rows.InvoiceRowsByService(ctx, s.ServiceID)
	case ByMoto:
		return g.rows.InvoiceRowsByMoto(ctx, s.MotoID)
	case ByServiceList:
		return g.rows.InvoiceRowsByServices(ctx, s.ServiceIDs)
	default:
		return nil, invalidf("unsupported selector %T", sel)
	}
}
