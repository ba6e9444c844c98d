package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/thejas/flightbook/internal/auth"
)

// NewEngine builds the shared gin pipeline: recovery, CORS, then the
// identity middleware for everything under /api.
func NewEngine(verifier auth.Verifier) (*gin.Engine, *gin.RouterGroup) {
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		MaxAge:           12 * time.Hour,
		AllowCredentials: false,
	}))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiGroup := engine.Group("/api")
	apiGroup.Use(auth.Middleware(verifier))
	return engine, apiGroup
}

// Run serves handler on addr and blocks until the context is cancelled or
// the server fails, then shuts down gracefully.
func Run(ctx context.Context, addr string, handler http.Handler, log *logrus.Logger) error {
	server := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- server.ListenAndServe() }()

	log.WithField("address", addr).Info("server listening")

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}
