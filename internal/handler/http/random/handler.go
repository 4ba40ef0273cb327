// Package random serves the random-partner matchmaking routes.
package random

import (
	"context"

	"github.com/gin-gonic/gin"

	"peercall/pkg/response"
)

// Pool is the matchmaking pool
type Pool interface {
	Join(ctx context.Context, id string) error
	PickPartner(ctx context.Context, exclude string) (string, bool)
	Leave(ctx context.Context, id string)
}

// Handler handles matchmaking HTTP requests
type Handler struct {
	pool Pool
}

// NewHandler creates a new matchmaking handler
func NewHandler(pool Pool) *Handler {
	return &Handler{pool: pool}
}

// PoolRequest carries the id joining or leaving the pool
type PoolRequest struct {
	ID string `json:"id"`
}

// MatchResponse carries the chosen partner; ID is null when nobody is waiting
type MatchResponse struct {
	ID *string `json:"id"`
}

// Register adds the caller to the pool
// POST /random/register
func (h *Handler) Register(c *gin.Context) {
	var req PoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "Invalid request body")
		return
	}

	if err := h.pool.Join(c.Request.Context(), req.ID); err != nil {
		response.FromError(c, err)
		return
	}

	response.Acknowledge(c)
}

// Match picks a random waiting peer other than the caller
// GET /random/match?id=
func (h *Handler) Match(c *gin.Context) {
	var resp MatchResponse
	if id, ok := h.pool.PickPartner(c.Request.Context(), c.Query("id")); ok {
		resp.ID = &id
	}
	response.OK(c, resp)
}

// Unregister removes the caller from the pool. It always succeeds.
// POST /random/unregister
func (h *Handler) Unregister(c *gin.Context) {
	var req PoolRequest
	_ = c.ShouldBindJSON(&req)

	h.pool.Leave(c.Request.Context(), req.ID)
	response.Acknowledge(c)
}
