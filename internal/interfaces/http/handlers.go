package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/moreiraracing/taller-motos/internal/cloudinary"
	"github.com/moreiraracing/taller-motos/internal/config"
	"github.com/moreiraracing/taller-motos/internal/invoice"
	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/moreiraracing/taller-motos/internal/repository"
	"github.com/moreiraracing/taller-motos/pkg/database"
)

// ClientStore persists clients
type ClientStore interface {
	Create(ctx context.Context, client *models.Client) error
	GetByID(ctx context.Context, id int64) (*models.Client, error)
	List(ctx context.Context) ([]*models.Client, error)
	Update(ctx context.Context, id int64, u repository.ClientUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// MotoStore persists motos
type MotoStore interface {
	Create(ctx context.Context, moto *models.Moto) error
	GetByID(ctx context.Context, id int64) (*models.Moto, error)
	List(ctx context.Context) ([]*models.Moto, error)
	Update(ctx context.Context, id int64, u repository.MotoUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// ServiceStore persists services
type ServiceStore interface {
	Create(ctx context.Context, svc *models.Service) error
	GetByID(ctx context.Context, id int64) (*models.Service, error)
	List(ctx context.Context) ([]*models.Service, error)
	Update(ctx context.Context, id int64, u repository.ServiceUpdate) (int64, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

// InvoiceLedger reads recorded invoice lines
type InvoiceLedger interface {
	List(ctx context.Context, document string) ([]*models.InvoiceLine, error)
}

// InvoiceGenerator runs the invoice pipeline
type InvoiceGenerator interface {
	Generate(ctx context.Context, req invoice.Request) (*invoice.Result, error)
}

// FileStore is a directory of named files
type FileStore interface {
	Path(name string) string
	Exists(name string) bool
	SaveFile(name string, content []byte) (string, error)
}

// ImageUploader pushes images to a remote host
type ImageUploader interface {
	Enabled() bool
	Sign(params map[string]string) (*cloudinary.Signature, error)
	Upload(ctx context.Context, filename string, content []byte, folder string) (*cloudinary.UploadResult, error)
}

// DBChecker runs diagnostic queries
type DBChecker interface {
	Query(ctx context.Context, query string, args ...interface{}) ([]database.Row, error)
}

// Dependencies are the collaborators the handlers call into
type Dependencies struct {
	Clients  ClientStore
	Motos    MotoStore
	Services ServiceStore
	Ledger   InvoiceLedger
	Invoices InvoiceGenerator
	// Documents holds generated invoice PDFs
	Documents FileStore
	// Uploads is the public uploads directory
	Uploads  FileStore
	Uploader ImageUploader
	DB       DBChecker
	Features config.Features
	// MaxUploadSize caps image uploads in bytes
	MaxUploadSize int64
	// RemoteFolder is the Cloudinary folder uploads are placed under
	RemoteFolder string
}

// Handlers contains all HTTP request handlers
type Handlers struct {
	deps   Dependencies
	logger Logger
}

// NewHandlers creates a new Handlers instance
func NewHandlers(deps Dependencies, logger Logger) *Handlers {
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = 5 << 20
	}
	if deps.RemoteFolder == "" {
		deps.RemoteFolder = defaultRemoteFolder
	}
	return &Handlers{
		deps:   deps,
		logger: logger,
	}
}

// Response represents a standard JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	Version   string `json:"version"`
}

// HealthCheck handles GET /health
func (h *Handlers) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, Response{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Version:   "1.0.0",
		},
	})
}

// DBCheck handles GET /db-check
func (h *Handlers) DBCheck(c *gin.Context) {
	rows, err := h.deps.DB.Query(c.Request.Context(), "SELECT 1 AS ok")
	if err != nil {
		h.logger.Error("Database check failed", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "database unreachable",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    rows,
	})
}

// Features handles GET /features
func (h *Handlers) Features(c *gin.Context) {
	c.JSON(http.StatusOK, h.deps.Features)
}

// CloudinarySign handles GET /cloudinary-sign
func (h *Handlers) CloudinarySign(c *gin.Context) {
	if !h.deps.Features.CloudinaryEnabled || h.deps.Uploader == nil {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "Cloudinary not configured",
		})
		return
	}

	params := map[string]string{}
	if folder := c.Query("folder"); folder != "" {
		params["folder"] = folder
	}

	sig, err := h.deps.Uploader.Sign(params)
	if err != nil {
		h.logger.Error("Failed to sign Cloudinary request", "error", err)
		c.JSON(http.StatusInternalServerError, Response{
			Success: false,
			Error:   "could not generate signature",
			Detail:  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, sig)
}

// parseID reads a positive :id path parameter, answering 400 otherwise
func (h *Handlers) parseID(c *gin.Context) (int64, bool) {
	idStr := c.Param("id")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, Response{
			Success: false,
			Error:   "invalid id",
		})
		return 0, false
	}
	return id, true
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   err.Error(),
	})
}

func notFound(c *gin.Context, what string) {
	c.JSON(http.StatusNotFound, Response{
		Success: false,
		Error:   what + " not found",
	})
}

func (h *Handlers) internalError(c *gin.Context, msg string, err error) {
	h.logger.Error(msg, "path", c.Request.URL.Path, "request_id", c.GetString("request_id"), "error", err)
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   msg,
	})
}
