package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"coindex/internal/api"
	"coindex/internal/auth"
	"coindex/internal/catalog"
	"coindex/internal/composition"
	"coindex/internal/events"
	"coindex/internal/export"
	"coindex/internal/migration"
	"coindex/internal/resolver"
	"coindex/pkg/database"
	"coindex/pkg/utils"
)

func main() {
	var (
		addr      = flag.String("addr", ":8080", "listen address")
		compsPath = flag.String("compositions", "data/compositions.yaml", "composition registry seed")
	)
	flag.Parse()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	if err := migration.Apply(context.Background(), db); err != nil {
		log.Fatalf("db migrate failed: %v", err)
	}

	comps, err := composition.Load(*compsPath)
	if err != nil {
		log.Fatalf("load compositions failed: %v", err)
	}

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})

	hub := events.NewHub()
	router.GET("/ws", events.WSHandler(hub))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Path})
	})

	router.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":     "not_ready",
				"db_error":   err.Error(),
				"ws_clients": hub.Stats().Clients,
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":     "ready",
			"db":         "ok",
			"ws_clients": hub.Stats().Clients,
		})
	})

	coins := catalog.NewCoinRepo(db)
	variants := catalog.NewVariantRepo(db)
	res := resolver.New(variants)
	svc := export.NewService(coins, variants, res, comps)

	handler := api.NewHandler(coins, variants, res, comps, svc, hub)
	handler.RegisterPublic(router.Group("/"))

	authCfg := utils.LoadAuthConfig()
	tokenSvc := auth.TokenService{
		Secret:   []byte(authCfg.JWTSecret),
		Issuer:   authCfg.JWTIssuer,
		Duration: authCfg.JWTDuration,
	}
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc, authCfg.InviteCode)
	authHandler.RegisterRoutes(router.Group("/auth"))

	editor := router.Group("/edit")
	editor.Use(auth.EditorOnly(tokenSvc, authRepo))
	handler.RegisterEditor(editor)

	httpSrv := &http.Server{
		Addr:    *addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("catalog API listening on %s", *addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		log.Printf("shutdown signal received: %s", sig)
	case err := <-errCh:
		log.Printf("server error: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	log.Println("server stopped")
}
