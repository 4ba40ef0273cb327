package identity

import (
	"context"

	"github.com/gin-gonic/gin"

	"peercall/internal/service/identity"
	"peercall/pkg/response"
)

// Registrar is the identity operation the handler needs
type Registrar interface {
	Register(ctx context.Context, handle string) (*identity.RegisterOutput, error)
}

// Handler handles identity HTTP requests
type Handler struct {
	identityService Registrar
}

// NewHandler creates a new identity handler
func NewHandler(identityService Registrar) *Handler {
	return &Handler{
		identityService: identityService,
	}
}

// RegisterRequest represents a registration request
type RegisterRequest struct {
	Handle string `json:"handle"`
}

// RegisterResponse carries the durable id for the handle
type RegisterResponse struct {
	ID string `json:"id"`
}

// Register returns the durable id for a handle, creating it on first use
// POST /register
func (h *Handler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Invalid request body")
		return
	}

	output, err := h.identityService.Register(c.Request.Context(), req.Handle)
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, RegisterResponse{ID: output.ID})
}
