package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/invitapp/guestlist-server/internal/api"
	"github.com/invitapp/guestlist-server/internal/config"
	"github.com/invitapp/guestlist-server/internal/repository"
	"github.com/invitapp/guestlist-server/internal/service"
	"github.com/invitapp/guestlist-server/internal/utils"
	"github.com/invitapp/guestlist-server/internal/ws"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg := config.LoadConfig()

	logger, err := utils.NewLogger(cfg.Log.Level, cfg.Log.Format, "guestlist-server")
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up database connection
	db, err := config.SetupDatabase(cfg)
	if err != nil {
		logger.Fatal("Failed to set up database", zap.Error(err))
	}
	defer db.Close()

	// Create repository
	repo := repository.NewPostgresRepository(db)

	// Subscribe to the guests change channel
	listener, err := repository.NewChangeListener(cfg.Database.GetDSN(), config.GuestsChannel, logger)
	if err != nil {
		logger.Fatal("Failed to subscribe to change notifications", zap.Error(err))
	}
	defer listener.Close()

	// Create service
	svc := service.NewDefaultService(repo, cfg.Upload, logger)

	// Websocket hub fans reconciled snapshots out to connected clients
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	// Reconciler reloads the snapshot on every change notification
	reconciler := service.NewReconciler(svc, listener.Events(), hub, logger)
	go reconciler.Run(ctx)

	// Create API handler
	handler := api.NewHandler(svc, hub, db, cfg.Upload.MaxBytes, logger)

	// Set up Gin router
	router := gin.Default()
	router.Use(api.CORSMiddleware())

	// Set up routes
	handler.SetupRoutes(router)

	// Start server
	serverAddr := fmt.Sprintf(":%d", cfg.Server.Port)
	server := &http.Server{Addr: serverAddr, Handler: router}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	logger.Info("Starting server", zap.String("addr", serverAddr))
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Fatal("Failed to start server", zap.Error(err))
	}
}
