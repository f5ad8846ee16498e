package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/cropside/feed-engine/internal/auth"
	"github.com/cropside/feed-engine/internal/config"
	"github.com/cropside/feed-engine/internal/metrics"
	"github.com/cropside/feed-engine/pkg/logger"
)

// Server owns the HTTP surface: routing, CORS, token middleware and the
// metrics/health endpoints. All domain behavior lives in the handlers' service
// dependencies.
type Server struct {
	httpServer *http.Server
	log        logger.Logger
}

func NewServer(cfg *config.Config, parser *auth.TokenParser, m *metrics.Metrics, h *Handler, log logger.Logger) *Server {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))
	engine.Use(observe(m))

	engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})))

	v1 := engine.Group("/api/v1")
	v1.Use(authenticate(parser))

	v1.GET("/feed", h.GetFeed)
	v1.POST("/feed/refresh", h.RefreshFeed)

	v1.GET("/stories", h.GetStoryBar)
	v1.POST("/stories", h.PublishStory)
	v1.POST("/stories/:id/view", h.MarkStoryViewed)
	v1.POST("/stories/:id/like", h.ToggleStoryLike)
	v1.GET("/users/:id/stories", h.GetUserStories)

	v1.POST("/posts", h.CreatePost)
	v1.GET("/posts/:id", h.GetPost)
	v1.POST("/posts/:id/like", h.TogglePostLike)
	v1.POST("/posts/:id/save", h.TogglePostSave)
	v1.POST("/posts/:id/best-answer", h.MarkBestAnswer)

	v1.GET("/posts/:id/comments", h.ListComments)
	v1.POST("/posts/:id/comments", h.CreateComment)
	v1.DELETE("/posts/:id/comments/:commentId", h.DeleteComment)
	v1.POST("/posts/:id/comments/:commentId/like", h.ToggleCommentLike)

	v1.POST("/users/:id/follow", h.ToggleFollow)

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.App.Port),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log.WithComponent("APIServer"),
	}
}

func (s *Server) Start() {
	go func() {
		s.log.Info("HTTP server listening", "addr", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("HTTP server stopped unexpectedly", "error", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
