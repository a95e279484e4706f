// Package httpapi is the small administrative HTTP surface that sits
// alongside the WebSocket transport: a disconnect sweep for the player
// grace-period timer, liveness/readiness probes, and the Prometheus
// scrape endpoint. Grounded on the teacher's cmd/v1/session/main.go
// gin+cors wiring and internal/v1/health/handler.go's liveness/readiness
// shape (the SFU check has no analogue here and is dropped; Mongo/Redis
// checks take its place).
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gameerrors"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/metrics"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/middleware"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/types"
)

// PlayerSweeper is the subset of the player service the sweep endpoint
// depends on: find every player whose disconnect grace period has
// elapsed, and detach each one from its room.
type PlayerSweeper interface {
	GetDisconnected(ctx context.Context, cutoff time.Time) ([]types.Player, error)
	DisconnectPlayer(ctx context.Context, roomID types.RoomID, nickname string, graceSeconds int, now time.Time) (*types.Player, error)
}

// RoomCounter is the subset of the room service the sweep endpoint needs
// to keep player counts in sync with players it actually removes.
type RoomCounter interface {
	Get(ctx context.Context, roomID types.RoomID) (*types.Room, error)
	UpdatePlayerCount(ctx context.Context, room *types.Room, delta int) error
}

// RedisPinger checks backplane connectivity for the readiness probe.
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// RateLimiter is the subset of ratelimit.RateLimiter the admin surface
// applies to its routes. Optional: a nil RateLimiter in Deps leaves the
// surface unthrottled.
type RateLimiter interface {
	AdminMiddleware() gin.HandlerFunc
}

// Deps composes everything the admin surface needs.
type Deps struct {
	Players      PlayerSweeper
	Rooms        RoomCounter
	Redis        RedisPinger
	Mongo        *mongo.Database
	GraceSeconds int
	Now          func() time.Time
	Limiter      RateLimiter
}

// NewRouter builds the gin engine: panic recovery, correlation ids, CORS,
// the Prometheus /metrics endpoint, the two health probes, and the
// disconnect sweep. allowedOrigins configures
// CORS the same way the teacher's ALLOWED_ORIGINS env var does.
func NewRouter(deps Deps, allowedOrigins []string) *gin.Engine {
	if deps.Now == nil {
		deps.Now = time.Now
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CorrelationID())

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins
	router.Use(cors.New(corsConfig))

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/health/live", deps.liveness)
	router.GET("/health/ready", deps.readiness)

	sweepRoute := router.Group("/")
	if deps.Limiter != nil {
		sweepRoute.Use(deps.Limiter.AdminMiddleware())
	}
	sweepRoute.PUT("/player:disconnect", deps.sweep)

	return router
}

type livenessResponse struct {
	Status string `json:"status"`
}

func (d *Deps) liveness(c *gin.Context) {
	c.JSON(http.StatusOK, livenessResponse{Status: "alive"})
}

type readinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (d *Deps) readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	checks := make(map[string]string)
	healthy := true

	if d.Redis != nil {
		if err := d.Redis.Ping(ctx); err != nil {
			checks["redis"] = "unhealthy"
			healthy = false
		} else {
			checks["redis"] = "healthy"
		}
	}

	if d.Mongo != nil {
		if err := d.Mongo.Client().Ping(ctx, nil); err != nil {
			checks["mongo"] = "unhealthy"
			healthy = false
		} else {
			checks["mongo"] = "healthy"
		}
	}

	status := http.StatusOK
	resp := readinessResponse{Status: "ready", Checks: checks}
	if !healthy {
		status = http.StatusServiceUnavailable
		resp.Status = "unavailable"
	}
	c.JSON(status, resp)
}

type sweepResponse struct {
	RemovedPlayerIDs []types.PlayerID `json:"removed_player_ids"`
}

// sweep runs the admin disconnect sweep: every player whose
// disconnected_at predates the grace window is detached from its room,
// and the room's player count is decremented for each one actually
// removed. Players still within grace are left untouched.
func (d *Deps) sweep(c *gin.Context) {
	ctx := c.Request.Context()
	now := d.Now()
	cutoff := now.Add(-time.Duration(d.GraceSeconds) * time.Second)

	stale, err := d.Players.GetDisconnected(ctx, cutoff)
	if err != nil {
		respondError(c, err)
		return
	}

	var removed []types.PlayerID
	for _, p := range stale {
		if !p.InRoom() {
			continue
		}
		roomID := p.RoomID

		detached, err := d.Players.DisconnectPlayer(ctx, roomID, p.Nickname, d.GraceSeconds, now)
		if err != nil {
			respondError(c, err)
			return
		}
		if detached.InRoom() {
			continue
		}

		room, err := d.Rooms.Get(ctx, roomID)
		if err != nil {
			respondError(c, err)
			return
		}
		if err := d.Rooms.UpdatePlayerCount(ctx, room, -1); err != nil {
			respondError(c, err)
			return
		}
		removed = append(removed, detached.PlayerID)
		metrics.PlayersDisconnectedSweep.Inc()
	}

	c.JSON(http.StatusOK, sweepResponse{RemovedPlayerIDs: removed})
}

func respondError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := gameerrors.ServerErrorCode
	if coded, ok := err.(gameerrors.Coded); ok {
		status = http.StatusBadRequest
		code = coded.Code()
	}
	c.JSON(status, gin.H{"code": code, "message": err.Error()})
}
