package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/moreiraracing/taller-motos/internal/repository"
	"github.com/moreiraracing/taller-motos/pkg/utils"
)

// ServiceRequest is the body of service create and update calls, sent as
// JSON or as multipart form fields alongside an optional "image" file
type ServiceRequest struct {
	MotoID      *int64           `json:"moto_id"`
	Description *string          `json:"description"`
	Date        *string          `json:"date"`
	Cost        *decimal.Decimal `json:"cost"`
	Completed   *bool            `json:"completed"`
	// ImagePath replaces the stored list when present; an empty string clears it
	ImagePath *string `json:"image_path"`
}

func isMultipart(c *gin.Context) bool {
	return c.ContentType() == "multipart/form-data"
}

// bindServiceRequest reads the request body in either encoding
func bindServiceRequest(c *gin.Context) (*ServiceRequest, error) {
	var req ServiceRequest
	if !isMultipart(c) {
		if err := c.ShouldBindJSON(&req); err != nil {
			return nil, err
		}
		return &req, nil
	}

	if v, ok := c.GetPostForm("moto_id"); ok {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, errors.New("moto_id must be integer")
		}
		req.MotoID = &id
	}
	if v, ok := c.GetPostForm("description"); ok {
		req.Description = &v
	}
	if v, ok := c.GetPostForm("date"); ok {
		req.Date = &v
	}
	if v, ok := c.GetPostForm("cost"); ok {
		cost, err := decimal.NewFromString(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.New("cost must be a number")
		}
		req.Cost = &cost
	}
	if v, ok := c.GetPostForm("completed"); ok {
		done, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return nil, errors.New("completed must be a boolean")
		}
		req.Completed = &done
	}
	if v, ok := c.GetPostForm("image_path"); ok {
		req.ImagePath = &v
	}
	return &req, nil
}

func (r *ServiceRequest) validate(create bool) error {
	if create {
		if r.MotoID == nil {
			return errors.New("moto_id is required")
		}
		if r.Description == nil {
			return errors.New("description is required")
		}
		if r.Date == nil {
			return errors.New("date is required")
		}
		if r.Cost == nil {
			return errors.New("cost is required")
		}
	}
	if r.MotoID != nil {
		if err := utils.ValidateID("moto_id", *r.MotoID); err != nil {
			return err
		}
	}
	if r.Description != nil {
		*r.Description = utils.SanitizeString(*r.Description)
		if err := utils.ValidateRequired("description", *r.Description); err != nil {
			return err
		}
	}
	if r.Date != nil {
		*r.Date = strings.TrimSpace(*r.Date)
		if err := utils.ValidateISODate("date", *r.Date); err != nil {
			return err
		}
		// the column holds the calendar date only
		*r.Date = (*r.Date)[:10]
	}
	if r.Cost != nil {
		if err := utils.ValidateCost(*r.Cost); err != nil {
			return err
		}
	}
	if r.ImagePath != nil {
		*r.ImagePath = strings.Join(models.SplitImageRefs(*r.ImagePath), ",")
	}
	return nil
}

// ListServices handles GET /services
func (h *Handlers) ListServices(c *gin.Context) {
	services, err := h.deps.Services.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "error fetching services", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: services})
}

// GetService handles GET /services/:id
func (h *Handlers) GetService(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	svc, err := h.deps.Services.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "error fetching service", err)
		return
	}
	if svc == nil {
		notFound(c, "service")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: svc})
}

// serviceImage validates and stores the optional uploaded photo. It answers
// the request itself and returns ok=false when the upload is rejected.
func (h *Handlers) serviceImage(c *gin.Context) (ref string, ok bool) {
	if !isMultipart(c) {
		return "", true
	}
	if !h.deps.Features.UploadEnabled {
		c.JSON(http.StatusServiceUnavailable, Response{
			Success: false,
			Error:   "server is not accepting file uploads",
		})
		return "", false
	}

	file, err := h.readUpload(c, "image")
	if err != nil {
		h.uploadError(c, err)
		return "", false
	}
	if file == nil {
		return "", true
	}
	if !isAllowedImage(file.Content) {
		h.uploadError(c, errNotAnImage)
		return "", false
	}

	ref, err = h.storeServiceImage(c, file)
	if err != nil {
		h.internalError(c, "error storing image", err)
		return "", false
	}
	return ref, true
}

// CreateService handles POST /services
func (h *Handlers) CreateService(c *gin.Context) {
	req, err := bindServiceRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := req.validate(true); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	moto, err := h.deps.Motos.GetByID(ctx, *req.MotoID)
	if err != nil {
		h.internalError(c, "error fetching moto", err)
		return
	}
	if moto == nil {
		badRequest(c, fmt.Errorf("moto %d does not exist", *req.MotoID))
		return
	}

	image, ok := h.serviceImage(c)
	if !ok {
		return
	}

	svc := &models.Service{
		MotoID:      *req.MotoID,
		Description: *req.Description,
		Date:        *req.Date,
		Cost:        *req.Cost,
	}
	if req.Completed != nil {
		svc.Completed = *req.Completed
	}
	if req.ImagePath != nil {
		svc.ImagePath = *req.ImagePath
	}
	if image != "" {
		svc.ImagePath = models.JoinImageRefs(svc.ImagePath, image)
	}

	if err := h.deps.Services.Create(ctx, svc); err != nil {
		h.internalError(c, "error inserting service", err)
		return
	}

	h.logger.Info("Service created", "service_id", svc.ID, "moto_id", svc.MotoID, "images", len(svc.ImageRefs()))

	created, err := h.deps.Services.GetByID(ctx, svc.ID)
	if err != nil || created == nil {
		created = svc
	}
	c.JSON(http.StatusCreated, Response{Success: true, Data: created})
}

// UpdateService handles PUT /services/:id. An uploaded image is appended to
// the stored list, or to image_path when the request sets it.
func (h *Handlers) UpdateService(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	req, err := bindServiceRequest(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := req.validate(false); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	existing, err := h.deps.Services.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "error fetching service", err)
		return
	}
	if existing == nil {
		notFound(c, "service")
		return
	}

	image, ok := h.serviceImage(c)
	if !ok {
		return
	}

	n, err := h.deps.Services.Update(ctx, id, repository.ServiceUpdate{
		MotoID:      req.MotoID,
		Description: req.Description,
		Date:        req.Date,
		Cost:        req.Cost,
		Completed:   req.Completed,
		ImagePath:   req.ImagePath,
		AppendImage: image,
	})
	if err != nil {
		h.internalError(c, "error updating service", err)
		return
	}
	if n == 0 {
		notFound(c, "service")
		return
	}

	updated, err := h.deps.Services.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "error fetching service", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: updated})
}

// DeleteService handles DELETE /services/:id
func (h *Handlers) DeleteService(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	n, err := h.deps.Services.Delete(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "error deleting service", err)
		return
	}
	if n == 0 {
		notFound(c, "service")
		return
	}
	h.logger.Info("Service deleted", "service_id", id)
	c.JSON(http.StatusOK, Response{Success: true})
}
