package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moreiraracing/taller-motos/internal/models"
	"github.com/moreiraracing/taller-motos/internal/repository"
	"github.com/moreiraracing/taller-motos/pkg/utils"
)

// ClientRequest is the body of client create and update calls
type ClientRequest struct {
	Name    *string `json:"name"`
	Phone   *string `json:"phone"`
	Address *string `json:"address"`
}

func (r *ClientRequest) sanitize() {
	for _, f := range []*string{r.Name, r.Phone, r.Address} {
		if f != nil {
			*f = utils.SanitizeString(*f)
		}
	}
}

// ListClients handles GET /clients
func (h *Handlers) ListClients(c *gin.Context) {
	clients, err := h.deps.Clients.List(c.Request.Context())
	if err != nil {
		h.internalError(c, "error fetching clients", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: clients})
}

// GetClient handles GET /clients/:id
func (h *Handlers) GetClient(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	client, err := h.deps.Clients.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "error fetching client", err)
		return
	}
	if client == nil {
		notFound(c, "client")
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: client})
}

// CreateClient handles POST /clients
func (h *Handlers) CreateClient(c *gin.Context) {
	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.sanitize()

	name := ""
	if req.Name != nil {
		name = *req.Name
	}
	if err := utils.ValidateRequired("name", name); err != nil {
		badRequest(c, err)
		return
	}

	client := &models.Client{Name: name}
	if req.Phone != nil {
		client.Phone = *req.Phone
	}
	if req.Address != nil {
		client.Address = *req.Address
	}

	if err := h.deps.Clients.Create(c.Request.Context(), client); err != nil {
		h.internalError(c, "error inserting client", err)
		return
	}

	h.logger.Info("Client created", "client_id", client.ID)
	c.JSON(http.StatusCreated, Response{Success: true, Data: client})
}

// UpdateClient handles PUT /clients/:id
func (h *Handlers) UpdateClient(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	var req ClientRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	req.sanitize()

	if req.Name != nil {
		if err := utils.ValidateRequired("name", *req.Name); err != nil {
			badRequest(c, err)
			return
		}
	}

	n, err := h.deps.Clients.Update(c.Request.Context(), id, repository.ClientUpdate{
		Name:    req.Name,
		Phone:   req.Phone,
		Address: req.Address,
	})
	if err != nil {
		h.internalError(c, "error updating client", err)
		return
	}
	if n == 0 {
		notFound(c, "client")
		return
	}

	client, err := h.deps.Clients.GetByID(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "error fetching client", err)
		return
	}
	c.JSON(http.StatusOK, Response{Success: true, Data: client})
}

// DeleteClient handles DELETE /clients/:id. Motos and services of the
// client go with it.
func (h *Handlers) DeleteClient(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}
	n, err := h.deps.Clients.Delete(c.Request.Context(), id)
	if err != nil {
		h.internalError(c, "error deleting client", err)
		return
	}
	if n == 0 {
		notFound(c, "client")
		return
	}
	h.logger.Info("Client deleted", "client_id", id)
	c.JSON(http.StatusOK, Response{Success: true})
}
