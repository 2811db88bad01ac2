package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
)

// NewRouter wires all routes.  The matching engine is deliberately not
// exposed per-layer; clients get the composite screening decision only.
func NewRouter(
	cfg *config.Config,
	h *Handler,
	metrics *prommetrics.Metrics,
	logger logging.Logger,
) *gin.Engine {
	gin.SetMode(ginMode(cfg.Server.Mode))

	r := gin.New()
	r.Use(requestLogger(logger.Named("http")), gin.Recovery())

	r.GET("/healthz", h.Healthz)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/screen", h.Screen)
		v1.POST("/screen/batch", h.ScreenBatch)
		v1.POST("/reload", h.Reload)
		v1.GET("/status", h.Status)
		v1.DELETE("/snapshot", h.InvalidateSnapshot)
	}
	return r
}

func ginMode(mode string) string {
	switch mode {
	case "debug":
		return gin.DebugMode
	case "test":
		return gin.TestMode
	default:
		return gin.ReleaseMode
	}
}
