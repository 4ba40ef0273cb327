package random

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"peercall/internal/service/matchmaking"
)

func setupRouter() (*gin.Engine, *matchmaking.Service) {
	gin.SetMode(gin.TestMode)
	pool := matchmaking.NewService(nil)
	h := NewHandler(pool)

	r := gin.New()
	r.POST("/random/register", h.Register)
	r.GET("/random/match", h.Match)
	r.POST("/random/unregister", h.Unregister)
	return r, pool
}

func serve(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMatchFlow(t *testing.T) {
	r, _ := setupRouter()

	require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/random/register", `{"id":"A"}`).Code)
	require.Equal(t, http.StatusOK, serve(r, http.MethodPost, "/random/register", `{"id":"B"}`).Code)

	w := serve(r, http.MethodGet, "/random/match?id=A", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"id":"B"}`, w.Body.String())

	w = serve(r, http.MethodPost, "/random/unregister", `{"id":"B"}`)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())

	w = serve(r, http.MethodGet, "/random/match?id=A", "")
	assert.JSONEq(t, `{"id":null}`, w.Body.String())
}

func TestMatch_WithoutID(t *testing.T) {
	r, _ := setupRouter()
	serve(r, http.MethodPost, "/random/register", `{"id":"A"}`)

	w := serve(r, http.MethodGet, "/random/match", "")

	assert.JSONEq(t, `{"id":"A"}`, w.Body.String())
}

func TestRegister_MissingID(t *testing.T) {
	r, pool := setupRouter()

	w := serve(r, http.MethodPost, "/random/register", `{}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, 0, pool.Size())
}

func TestUnregister_AlwaysSucceeds(t *testing.T) {
	r, _ := setupRouter()

	w := serve(r, http.MethodPost, "/random/unregister", `not json`)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
}
