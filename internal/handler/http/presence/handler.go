package presence

import (
	"context"

	"github.com/gin-gonic/gin"

	"peercall/pkg/response"
)

// Tracker records heartbeats and answers liveness queries
type Tracker interface {
	Ping(ctx context.Context, id string) error
	IsOnline(ctx context.Context, id string) (bool, error)
}

// Handler handles presence HTTP requests
type Handler struct {
	presenceService Tracker
}

// NewHandler creates a new presence handler
func NewHandler(presenceService Tracker) *Handler {
	return &Handler{
		presenceService: presenceService,
	}
}

// PingRequest represents a heartbeat
type PingRequest struct {
	ID string `json:"id"`
}

// OnlineResponse answers a liveness query
type OnlineResponse struct {
	Online bool `json:"online"`
}

// Ping records a heartbeat
// POST /presence/ping
func (h *Handler) Ping(c *gin.Context) {
	var req PingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Invalid request body")
		return
	}

	if err := h.presenceService.Ping(c.Request.Context(), req.ID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Acknowledge(c)
}

// Online reports whether a peer sent a heartbeat within the presence window
// GET /presence/online?id=
func (h *Handler) Online(c *gin.Context) {
	online, err := h.presenceService.IsOnline(c.Request.Context(), c.Query("id"))
	if err != nil {
		response.FromError(c, err)
		return
	}

	response.OK(c, OnlineResponse{Online: online})
}
