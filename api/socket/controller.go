// Package socketapi mounts the realtime channel on the HTTP router.
package socketapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Server serves one realtime connection per request.
type Server interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

// SocketController exposes the websocket endpoint.
type SocketController struct {
	server Server
}

// NewSocketController creates a SocketController for s.
func NewSocketController(s Server) *SocketController {
	return &SocketController{server: s}
}

// RegisterPublic registers public routes.
func (sc *SocketController) RegisterPublic(route *gin.RouterGroup) {
	route.GET("/ws", func(ctx *gin.Context) {
		sc.server.ServeWS(ctx.Writer, ctx.Request)
	})
}

// RegisterProtected registers protected routes.
func (sc *SocketController) RegisterProtected(route *gin.RouterGroup) {}
