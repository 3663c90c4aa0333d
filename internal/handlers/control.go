package handlers

import (
	"errors"
	"net/http"

	"rpctail/internal/filter"
	"rpctail/internal/models"
	"rpctail/internal/tail"

	"github.com/gin-gonic/gin"
)

// Common response/status constants to avoid magic strings and typos.
const (
	statusOK        = "ok"
	statusPaused    = "paused"
	statusResumed   = "resumed"
	statusCleared   = "cleared"
	statusFilterSet = "filter_set"

	errEngineClosed    = "tail engine is not running"
	errEngineCommand   = "command failed"
	errInvalidBodyPref = "invalid body: "
	errStatsPending    = "stats not available yet"
)

// Centralized error logging and response.
func (h *Handler) logAndJSONError(c *gin.Context, httpCode int, userMsg, logKey string, err error, kv ...interface{}) {
	if h.log != nil && err != nil {
		fields := append([]interface{}{"err", err}, kv...)
		h.log.Errorw(logKey, fields...)
	}
	c.JSON(httpCode, gin.H{"error": userMsg})
}

// commandError maps engine errors to HTTP responses.
func (h *Handler) commandError(c *gin.Context, logKey string, err error) {
	if errors.Is(err, tail.ErrClosed) || errors.Is(err, tail.ErrNotStarted) {
		h.logAndJSONError(c, http.StatusServiceUnavailable, errEngineClosed, logKey, err)
		return
	}
	h.logAndJSONError(c, http.StatusInternalServerError, errEngineCommand, logKey, err)
}

// Respond with a status and the resulting engine state.
func (h *Handler) respondWithStatusAndView(c *gin.Context, status string) {
	v := h.tail.View()
	c.JSON(http.StatusOK, gin.H{
		"status":     status,
		"paused":     v.Paused,
		"connection": v.Connection,
		"window":     len(v.Events),
		"criteria":   v.Criteria,
	})
}

// FilterRequest is the payload of PUT /api/v1/filter.
type FilterRequest struct {
	// Case-insensitive match on method, request id and network
	Search string `json:"search" example:"eth_blockNumber"`
	// Exact network slug
	Network string `json:"network" example:"eth-mainnet"`
	// success | error | empty for any
	Outcome string `json:"outcome" example:"error"`
}

// @Summary      Health check
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) health(c *gin.Context) {
	v := h.tail.View()
	c.JSON(http.StatusOK, gin.H{
		"status":     statusOK,
		"session":    v.SessionID,
		"connection": v.Connection,
	})
}

// @Summary      Pause ingestion
// @Description  Increments are dropped and automatic reconnects suppressed until resume. The connection stays open.
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/pause [post]
func (h *Handler) pause(c *gin.Context) {
	if err := h.tail.Pause(); err != nil {
		h.commandError(c, "tail_pause_failed", err)
		return
	}
	h.respondWithStatusAndView(c, statusPaused)
}

// @Summary      Resume ingestion
// @Description  Reconnects immediately when the push channel is not open. Dropped events are not recovered.
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/resume [post]
func (h *Handler) resume(c *gin.Context) {
	if err := h.tail.Resume(); err != nil {
		h.commandError(c, "tail_resume_failed", err)
		return
	}
	h.respondWithStatusAndView(c, statusResumed)
}

// @Summary      Clear window
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/clear [post]
func (h *Handler) clear(c *gin.Context) {
	if err := h.tail.Clear(); err != nil {
		h.commandError(c, "tail_clear_failed", err)
		return
	}
	h.respondWithStatusAndView(c, statusCleared)
}

// @Summary      Set filter criteria
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body   FilterRequest  true  "Criteria; empty fields match everything"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Failure      503   {object}  map[string]string
// @Router       /api/v1/filter [put]
func (h *Handler) setFilter(c *gin.Context) {
	var req FilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": errInvalidBodyPref + err.Error()})
		return
	}
	outcome, err := filter.ParseOutcome(req.Outcome)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	crit := filter.Criteria{Search: req.Search, Network: req.Network, Outcome: outcome}
	if err := h.tail.SetFilter(crit); err != nil {
		h.commandError(c, "tail_set_filter_failed", err)
		return
	}
	h.respondWithStatusAndView(c, statusFilterSet)
}

// viewResponse is the full read model plus the currently visible events.
type viewResponse struct {
	tail.View
	Visible []models.Event `json:"visible"`
}

func newViewResponse(v tail.View) viewResponse {
	return viewResponse{View: v, Visible: v.Filtered()}
}

// @Summary      Current read model
// @Description  Connection state, pause flag, throughput, stats, the full window and the events visible under the current criteria.
// @Tags         view
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/v1/view [get]
func (h *Handler) getView(c *gin.Context) {
	c.JSON(http.StatusOK, newViewResponse(h.tail.View()))
}

// @Summary      Aggregate stats
// @Description  Last good pulled value; error carries the latest pull failure, if any.
// @Tags         view
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Failure      503  {object}  map[string]string
// @Router       /api/v1/stats [get]
func (h *Handler) getStats(c *gin.Context) {
	v := h.tail.View()
	if v.Stats == nil {
		resp := gin.H{"error": errStatsPending}
		if v.StatsError != "" {
			resp["cause"] = v.StatsError
		}
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	resp := gin.H{
		"stats":     v.Stats,
		"updatedAt": v.StatsUpdatedAt,
	}
	if v.StatsError != "" {
		resp["error"] = v.StatsError
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary      Network catalog
// @Tags         view
// @Produce      json
// @Success      200  {object}  map[string]interface{}  "networks"
// @Router       /api/v1/networks [get]
func (h *Handler) getNetworks(c *gin.Context) {
	v := h.tail.View()
	nets := v.Networks
	if nets == nil {
		nets = []models.Network{}
	}
	resp := gin.H{"networks": nets}
	if v.NetworksError != "" {
		resp["error"] = v.NetworksError
	}
	c.JSON(http.StatusOK, resp)
}
