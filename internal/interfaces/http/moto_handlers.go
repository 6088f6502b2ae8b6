package http

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/moreiraracing/taller-motos/internal/repository"
	"github.com/moreiraracing/taller-motos/pkg/utils"
)

// MotoRequest is the body of moto create and update calls
type MotoRequest struct {
	ClientID *int64  `json:"client_id"`
	Brand    *string `json:"brand"`
	Model    *string `json:"model"`
	Year     *int64  `json:"year"`
	Plate    *string `json:"plate"`
}

func (r *MotoRequest) validate(create bool) error {
	if r.ClientID != nil || create {
		var id int64
		if r.ClientID != nil {
			id = *r.ClientID
		}
		if err := utils.ValidateID("client_id", id); err != nil {
			return err
		}
	}
	required := map[string]*string{"brand": r.Brand, "model": r.Model}
	for _, field := range []string{"brand", "model"} {
		v := required[field]
		if v == nil && !create {
			continue
		}
		value := ""
		if v != nil {
			*v = utils.SanitizeString(*v)
			value = *v
		}
		if err := utils.ValidateRequired(field, value); err != nil {
			return err
		}
	}
	if r.Year != nil && (*r.Year < 1900 || *r.Year > 2100) {
		return fmt.Errorf("year out of range: %d", *r.Year)
	}
	if r.Plate != nil {
		*r.Plate = utils.SanitizeString(*r.Plate)
	}
	return nil
}

// ListMotos handles GET /motos
func (h *Handlers) ListMotos(c *gin.Context) {
	motos, err := h.deps.Motos.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "error fetching motos", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: motos})
}

// GetMoto handles GET /motos/:id
func (h *Handlers) GetMoto(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	moto, err := h.deps.Motos.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "error fetching moto", err)
		return
	}
	if moto == nil {
		notFound(c, "moto")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: moto})
}

// CreateMoto handles POST /motos
func (h *Handlers) CreateMoto(c *gin.Context) {
	var req MotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.validate(true); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	owner, err := h.deps.Clients.GetByID(ctx, *req.ClientID)
	if err != nil {
		h.internalError(c, "error fetching client", err)
		return
	}
	if owner == nil {
		badRequest(c, fmt.Errorf("client %d does not exist", *req.ClientID))
		return
	}

	moto := &models.Moto{
		ClientID: *req.ClientID,
		Brand:    *req.Brand,
		Model:    *req.Model,
	}
	if req.Year != nil {
		y := int(*req.Year)
		moto.Year = &y
	}
	if req.Plate != nil {
		moto.Plate = *req.Plate
	}

	if err := h.deps.Motos.Create(ctx, moto); err != nil {
		h.internalError(c, "error inserting moto", err)
		return
	}
	moto.ClientName = owner.Name

	h.logger.Info("Moto created", "moto_id", moto.ID, "client_id", moto.ClientID)
	c.JSON(http.StatusCreated, Response{Success: true, Data: moto})
}

// UpdateMoto handles PUT /motos/:id
func (h *Handlers) UpdateMoto(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req MotoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := req.validate(false); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	n, err := h.deps.Motos.Update(ctx, id, repository.MotoUpdate{
		ClientID: req.ClientID,
		Brand:    req.Brand,
		Model:    req.Model,
		Year:     req.Year,
		Plate:    req.Plate,
	})
	if err != nil {
		h.internalError(c, "error updating moto", err)
		return
	}
	if n == 0 {
		notFound(c, "moto")
		return
	}

	moto, err := h.deps.Motos.GetByID(ctx, id)
	if err != nil {
		h.internalError(c, "error fetching moto", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: moto})
}

// DeleteMoto handles DELETE /motos/:id
func (h *Handlers) DeleteMoto(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	n, err := h.deps.Motos.Delete(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "error deleting moto", err)
		return
	}
	if n == 0 {
		notFound(c, "moto")
		return
	}
	h.logger.Info("Moto deleted", "moto_id", id)
	c.JSON(http.StatusOK, Response{Success: true})
}
