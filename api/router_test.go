package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/beka-birhanu/vinom-wager/api/i"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

type pingController struct{}

func (pingController) RegisterPublic(r *gin.RouterGroup) {
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
}

func (pingController) RegisterProtected(r *gin.RouterGroup) {
	r.GET("/secret", func(c *gin.Context) { c.String(http.StatusOK, "secret") })
}

func TestRouterHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	denyAll := func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }
	h := NewRouter(Config{
		BaseURL:                 "/api",
		Controllers:             []i.Controller{pingController{}},
		AuthorizationMiddleware: denyAll,
	}).Handler()

	serve := func(path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec
	}

	rec := serve("/api/v1/ping")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "pong", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve("/api/v1/secret").Code)
	assert.Equal(t, http.StatusNotFound, serve("/api/v1/missing").Code)
}
