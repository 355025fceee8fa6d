package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// Registrar is implemented by every handler in this package.
type Registrar interface {
	Register(router *gin.RouterGroup)
}

// NewRouter builds the gin engine serving /api/v1. Every route behind it
// requires an authenticated caller.
func NewRouter(logger *slog.Logger, handlers ...Registrar) *gin.Engine {
	router := gin.New()
	router.Use(RequestID(), Recover(logger), Observe(logger))

	v1 := router.Group("/api/v1", Auth())
	for _, h := range handlers {
		h.Register(v1)
	}
	return router
}
