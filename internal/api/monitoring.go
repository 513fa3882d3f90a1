package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"NFTSentinel/internal/service"
)

const stopTimeout = 30 * time.Second

type MonitoringHandler struct {
	Service *service.AlertService
}

func (h *MonitoringHandler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.GET("/monitoring/status", h.status)
	group.POST("/monitoring/start", h.start)
	group.POST("/monitoring/stop", h.stop)
	group.GET("/price-history/:collectionName", h.priceHistory)
	group.GET("/wallet/:userId", h.wallet)
}

func (h *MonitoringHandler) status(c *gin.Context) {
	st, err := h.Service.MonitoringStatus(c.Request.Context())
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, st, nil)
}

func (h *MonitoringHandler) start(c *gin.Context) {
	if err := h.Service.StartMonitoring(); err != nil {
		Error(c, http.StatusInternalServerError, err.Error(), nil)
		return
	}
	h.status(c)
}

func (h *MonitoringHandler) stop(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), stopTimeout)
	defer cancel()
	if err := h.Service.StopMonitoring(ctx); err != nil {
		Error(c, http.StatusGatewayTimeout, "monitor cycle still running: "+err.Error(), nil)
		return
	}
	h.status(c)
}

func (h *MonitoringHandler) priceHistory(c *gin.Context) {
	name := strings.TrimSpace(c.Param("collectionName"))
	limit := intQuery(c, "limit", 24)
	hist, err := h.Service.PriceHistory(c.Request.Context(), name, limit)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, hist, map[string]any{"limit": limit, "count": len(hist.Points)})
}

func (h *MonitoringHandler) wallet(c *gin.Context) {
	w, err := h.Service.Wallet(c.Request.Context(), strings.TrimSpace(c.Param("userId")))
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, w, nil)
}
