package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/sushistage/internal/config"
	"github.com/vovakirdan/sushistage/internal/core"
)

// NewServer builds the local status and control server.
func NewServer(st *core.Store, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	r := gin.New()
	r.Use(gin.Recovery(), LoggerMiddleware(logger))

	r.GET("/health", func(c *gin.Context) {
		c.String(stdhttp.StatusOK, "ok")
	})

	h := NewRoomHandlers(st, logger)
	api := r.Group("/api")
	api.GET("/rooms", h.ListRooms)
	api.GET("/rooms/:id", h.GetRoom)
	api.GET("/state", h.State)
	api.POST("/login", h.Login)

	member := api.Group("/rooms/:id", IdentityMiddleware(st, logger))
	member.POST("/join", h.JoinRoom)
	member.POST("/leave", h.LeaveRoom)

	return &stdhttp.Server{
		Addr:              cfg.StatusAddr,
		Handler:           r,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}
