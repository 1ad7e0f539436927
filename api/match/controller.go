package matchapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	dmn "github.com/beka-birhanu/vinom-wager/domain"
	"github.com/beka-birhanu/vinom-wager/service/i"
	"github.com/gin-gonic/gin"
)

const (
	historyTimeout = 2 * time.Second
	maxHistory     = 100
)

// ConnectionCounter reports the number of live realtime connections.
type ConnectionCounter interface {
	Connected() int
}

// MatchController serves matchmaker state and match history.
type MatchController struct {
	stats       i.MatchmakerStats
	history     i.MatchHistory
	connections ConnectionCounter
}

// NewMatchController initializes a MatchController.
func NewMatchController(s i.MatchmakerStats, h i.MatchHistory, c ConnectionCounter) (*MatchController, error) {
	if s == nil || h == nil || c == nil {
		return nil, errors.New("stats, history and connection counter are required")
	}
	return &MatchController{
		stats:       s,
		history:     h,
		connections: c,
	}, nil
}

// RegisterPublic registers public routes.
func (mc *MatchController) RegisterPublic(route *gin.RouterGroup) {
	route.GET("/health", mc.health)
}

// RegisterProtected registers protected routes.
func (mc *MatchController) RegisterProtected(route *gin.RouterGroup) {
	route.GET("/queue", mc.queue)
	matches := route.Group("/matches")
	{
		matches.GET("/:id", mc.matchByID)
	}
	route.GET("/players/:address/matches", mc.playerHistory)
}

func (mc *MatchController) health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, &HealthResponse{
		Status:        "ok",
		Queue:         mc.stats.QueueLen(),
		ActiveMatches: len(mc.stats.ActiveMatches()),
		Connections:   mc.connections.Connected(),
	})
}

func (mc *MatchController) queue(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, &QueueResponse{
		Queue:   mc.stats.QueuedAddresses(),
		Matches: mc.stats.ActiveMatches(),
	})
}

// matchByID returns the stored outcome of a match. Match ids contain a "|" and must be URL escaped.
func (mc *MatchController) matchByID(ctx *gin.Context) {
	timeoutCtx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	record, err := mc.history.ByID(timeoutCtx, ctx.Param("id"))
	if err != nil {
		if errors.Is(err, dmn.ErrRecordNotFound) {
			ctx.JSON(http.StatusNotFound, gin.H{"error": "match not found"})
			return
		}
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error while loading match"})
		return
	}

	ctx.JSON(http.StatusOK, record)
}

func (mc *MatchController) playerHistory(ctx *gin.Context) {
	limit, err := strconv.ParseInt(ctx.DefaultQuery("limit", "20"), 10, 64)
	if err != nil || limit <= 0 || limit > maxHistory {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "limit must be between 1 and 100"})
		return
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, historyTimeout)
	defer cancel()

	address := ctx.Param("address")
	records, err := mc.history.ByPlayer(timeoutCtx, address, limit)
	if err != nil {
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "error while loading matches"})
		return
	}

	ctx.JSON(http.StatusOK, &HistoryResponse{Address: address, Matches: records})
}
