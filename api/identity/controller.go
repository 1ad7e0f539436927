package identity

import (
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/beka-birhanu/vinom-wager/service/i"
	"github.com/gin-gonic/gin"
)

// IdentityServer issues operator access tokens.
type IdentityServer struct {
	tokenizer   i.Tokenizer
	operatorKey string
	ttl         time.Duration
}

// NewIdentityServer creates a new IdentityServer that accepts operatorKey and issues tokens valid for ttl.
func NewIdentityServer(t i.Tokenizer, operatorKey string, ttl time.Duration) *IdentityServer {
	return &IdentityServer{
		tokenizer:   t,
		operatorKey: operatorKey,
		ttl:         ttl,
	}
}

// RegisterPublic registers public routes.
func (c *IdentityServer) RegisterPublic(route *gin.RouterGroup) {
	auth := route.Group("/auth")
	{
		auth.POST("/token", c.token)
	}
}

// RegisterProtected registers privileged routes.
func (c *IdentityServer) RegisterProtected(route *gin.RouterGroup) {
}

// token handles operator sign in.
func (c *IdentityServer) token(ctx *gin.Context) {
	var request TokenRequest

	if err := ctx.ShouldBind(&request); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if c.operatorKey == "" || subtle.ConstantTimeCompare([]byte(request.Key), []byte(c.operatorKey)) != 1 {
		ctx.JSON(http.StatusUnauthorized, gin.H{"error": "invalid operator key"})
		return
	}

	token, err := c.tokenizer.Generate(request.Subject, c.ttl)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error while issuing token"})
		return
	}

	ctx.JSON(http.StatusOK, &TokenResponse{Token: token, ExpiresIn: int64(c.ttl / time.Second)})
}
