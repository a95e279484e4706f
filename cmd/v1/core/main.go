// Command core runs the banter-bus-core-api game-session server: the
// WebSocket transport, the admin HTTP surface (sweep/health/metrics), and
// every domain service backing them, wired together per §4.7/§5.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/hmajid2301/banter-bus-core-api/internal/v1/bus"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/catalog"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/config"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/dispatch"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/fibbingit"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/gamestate"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/handlers"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/httpapi"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/lobby"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/logging"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/player"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/ratelimit"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/room"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/store"
	"github.com/hmajid2301/banter-bus-core-api/internal/v1/transport"
)

func main() {
	for _, path := range []string{".env", "../../../.env", "../../.env"} {
		if err := godotenv.Load(path); err == nil {
			slog.Info("loaded environment from file", "path", path)
			break
		}
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	if err := logging.Initialize(cfg.LogLevel == "debug"); err != nil {
		slog.Error("failed to initialize logger", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := store.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
	if err != nil {
		slog.Error("failed to connect to mongo", "error", err)
		os.Exit(1)
	}

	redisAddr := fmt.Sprintf("%s:%s", cfg.MessageQueueHost, cfg.MessageQueuePort)
	busService, err := bus.NewService(redisAddr, cfg.MessageQueuePassword)
	if err != nil {
		slog.Error("failed to connect to redis backplane", "error", err)
		os.Exit(1)
	}
	defer busService.Close()

	catalogClient := catalog.NewClient(managementAPIBaseURL(cfg))
	engine := fibbingit.Engine{QuestionsPerRound: cfg.QuestionsPerRound}

	roomRepo := store.NewRoomRepo(db)
	playerRepo := store.NewPlayerRepo(db)
	gameStateRepo := store.NewGameStateRepo(db)

	playerSvc := player.New(playerRepo)
	roomSvc := room.New(roomRepo, nil)
	gameStateSvc := gamestate.New(gameStateRepo, engine)
	roomSvc.SetGameState(gameStateSvc)
	lobbySvc := lobby.New(playerSvc, roomSvc, gameStateSvc, catalogClient, engine)

	disp := dispatch.New()
	deps := handlers.NewDeps(roomSvc, playerSvc, gameStateSvc, lobbySvc, engine, cfg.DisconnectTimerInSeconds)
	handlers.Register(disp, deps)

	hub := transport.NewHub(disp.Dispatch, deps.DisconnectHook(), cfg.AllowedOrigins)
	hub.SetBus(busService)
	disp.SetHub(hub)
	deps.SetHub(hub)

	limiter, err := ratelimit.NewRateLimiter(cfg, busService.Client())
	if err != nil {
		slog.Error("failed to initialize rate limiter", "error", err)
		os.Exit(1)
	}

	router := httpapi.NewRouter(httpapi.Deps{
		Players:      playerSvc,
		Rooms:        roomSvc,
		Redis:        busService,
		Mongo:        db,
		GraceSeconds: cfg.DisconnectTimerInSeconds,
		Limiter:      limiter,
	}, cfg.AllowedOrigins)

	wsGroup := router.Group("/ws")
	wsGroup.Use(func(c *gin.Context) {
		if !limiter.CheckWebSocket(c) {
			return
		}
		c.Next()
	})
	wsGroup.GET("/connect", hub.ServeWS)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		slog.Info("banter-bus-core-api starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server exited")
}

func managementAPIBaseURL(cfg *config.Config) string {
	if cfg.ManagementAPIPort == "" {
		return cfg.ManagementAPIURL
	}
	return fmt.Sprintf("%s:%s", cfg.ManagementAPIURL, cfg.ManagementAPIPort)
}
