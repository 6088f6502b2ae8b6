package http

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/moreiraracing/taller-motos/internal/invoice"
)

const (
	ledgerErrorHeader = "X-Invoice-Ledger-Error"
	xlsxContentType   = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// InvoiceRequest selects the services to bill. Exactly one of serviceId,
// motoId or serviceIds is used, in that priority; the id_servicio, id_moto
// and id_servicios keys are accepted as well.
type InvoiceRequest struct {
	invoice.SelectorRequest
	// Reference is printed on the document when set
	Reference string `json:"reference"`
}

// GenerateInvoice handles POST /invoices and answers with the PDF
func (h *Handlers) GenerateInvoice(c *gin.Context) {
	var req InvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid request body",
			Detail:  err.Error(),
		})
		return
	}

	sel, err := req.Selector()
	if err != nil {
		badRequest(c, err)
		return
	}

	res, err := h.deps.Invoices.Generate(c.Request.Context(), invoice.Request{
		Selector:  sel,
		Reference: req.Reference,
	})

	status := http.StatusOK
	var persistErr *invoice.PersistenceError
	switch {
	case err == nil:
	case errors.Is(err, invoice.ErrInvalidRequest):
		badRequest(c, err)
		return
	case errors.Is(err, invoice.ErrNotFound):
		c.JSON(http.StatusNotFound, Response{
			Success: false,
			Error:   "no services found for the given criteria",
		})
		return
	case errors.As(err, &persistErr) && res != nil && res.Document != nil:
		// the document exists and is delivered, but the request failed
		h.logger.Error("Invoice delivered with incomplete ledger",
			"document", res.Name,
			"request_id", c.GetString("request_id"),
			"error", err)
		c.Header(ledgerErrorHeader, persistErr.Error())
		status = http.StatusInternalServerError
	default:
		h.logger.Error("Invoice generation failed",
			"selector", sel.String(),
			"request_id", c.GetString("request_id"),
			"error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "error generating invoice",
			Detail:  err.Error(),
		})
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, res.Name))
	c.Header("X-Invoice-Name", res.Name)
	c.Header("X-Invoice-Total", res.Document.Total.StringFixed(2))
	c.Header("X-Invoice-Pages", strconv.Itoa(res.Document.Pages))
	c.Data(status, "application/pdf", res.Document.Content)
}

// ListInvoices handles GET /invoices, optionally filtered by ?document=<name>
func (h *Handlers) ListInvoices(c *gin.Context) {
	document := ""
	if name := c.Query("document"); name != "" {
		document = h.deps.Documents.Path(filepath.Base(name))
	}

	lines, err := h.deps.Ledger.List(c.Request.Context(), document)
	if err != nil {
		h.internalError(c, "error fetching invoices", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: lines})
}

// ExportInvoices handles GET /invoices/export.xlsx
func (h *Handlers) ExportInvoices(c *gin.Context) {
	lines, err := h.deps.Ledger.List(c.Request.Context(), "")
	if err != nil {
		h.internalError(c, "error fetching invoices", err)
		return
	}

	var buf bytes.Buffer
	if err := invoice.ExportLedger(&buf, lines); err != nil {
		h.internalError(c, "error exporting invoices", err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="facturas.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// documentName returns the :name parameter when it names a stored document
func (h *Handlers) documentName(c *gin.Context) (string, bool) {
	name := c.Param("name")
	if name == "" || name != filepath.Base(name) || !h.deps.Documents.Exists(name) {
		notFound(c, "document")
		return "", false
	}
	return name, true
}

// DownloadInvoice handles GET /invoices/files/:name
func (h *Handlers) DownloadInvoice(c *gin.Context) {
	name, ok := h.documentName(c)
	if !ok {
		return
	}
	c.FileAttachment(h.deps.Documents.Path(name), name)
}

// PreviewInvoice handles GET /invoices/files/:name/preview?page=N
func (h *Handlers) PreviewInvoice(c *gin.Context) {
	name, ok := h.documentName(c)
	if !ok {
		return
	}

	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil {
		badRequest(c, errors.New("page must be an integer"))
		return
	}

	png, pages, err := invoice.PreviewPage(h.deps.Documents.Path(name), page)
	if err != nil {
		if errors.Is(err, invoice.ErrInvalidRequest) {
			badRequest(c, err)
			return
		}
		h.internalError(c, "error rendering preview", err)
		return
	}

	c.Header("X-Page-Count", strconv.Itoa(pages))
	c.Data(http.StatusOK, "image/png", png)
}
