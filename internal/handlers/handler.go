package handlers

import (
	"fmt"
	"time"

	"rpctail/internal/filter"
	"rpctail/internal/logger"
	"rpctail/internal/metrics"
	"rpctail/internal/tail"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// Tail is the engine surface exposed over HTTP.
type Tail interface {
	View() tail.View
	Pause() error
	Resume() error
	Clear() error
	SetFilter(c filter.Criteria) error
	Subscribe() (<-chan struct{}, func())
}

// Handler wires the HTTP layer to the tail engine and logging.
type Handler struct {
	tail     Tail
	log      *logger.Logger
	metrics  *metrics.HTTP
	gatherer prometheus.Gatherer

	// pushInterval is the /ws cadence when the client asks for none.
	pushInterval time.Duration
}

// NewHandler constructs a new HTTP handler. m and gatherer may be nil; the
// default Prometheus gatherer is used then.
func NewHandler(t Tail, log *logger.Logger, m *metrics.HTTP, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{tail: t, log: log, metrics: m, gatherer: gatherer, pushInterval: defaultInterval}
}

// SetPushInterval changes the default /ws cadence.
func (h *Handler) SetPushInterval(d time.Duration) error {
	if d < MinPushInterval || d > MaxPushInterval {
		return fmt.Errorf("push interval %v out of [%v, %v]", d, MinPushInterval, MaxPushInterval)
	}
	h.pushInterval = d
	return nil
}

// InitRoutes builds and returns the Gin router with all routes registered.
func (h *Handler) InitRoutes() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), h.requestMiddleware)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	// Health endpoint
	router.GET("/health", h.health)

	// Versioned API endpoints
	h.registerAPIRoutes(router)

	// Live view push (HTTP upgrade) on the same port
	router.GET("/ws", h.wsConnect)

	return router
}

func (h *Handler) registerAPIRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		h.registerControlRoutes(api)
		h.registerReadRoutes(api)
	}
}

func (h *Handler) registerControlRoutes(api *gin.RouterGroup) {
	api.POST("/pause", h.pause)
	api.POST("/resume", h.resume)
	api.POST("/clear", h.clear)
	// Body example: {"search":"eth_call","network":"base","outcome":"error"}
	api.PUT("/filter", h.setFilter)
}

func (h *Handler) registerReadRoutes(api *gin.RouterGroup) {
	api.GET("/view", h.getView)
	api.GET("/events", h.getEvents)
	api.GET("/stats", h.getStats)
	api.GET("/networks", h.getNetworks)
}
