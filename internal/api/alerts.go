package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"NFTSentinel/internal/service"
)

type AlertHandler struct {
	Service *service.AlertService
}

func (h *AlertHandler) Register(r *gin.Engine) {
	group := r.Group("/api")
	group.POST("/alerts", h.createAlert)
	group.GET("/alerts/:userId", h.listAlerts)
	group.DELETE("/alerts/:alertId", h.deleteAlert)
	group.GET("/notifications/:userId", h.listNotifications)
	group.POST("/emulate-price", h.emulatePrice)
}

func (h *AlertHandler) createAlert(c *gin.Context) {
	var req service.CreateAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	res, err := h.Service.CreateAlert(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, res, nil)
}

func (h *AlertHandler) listAlerts(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	alerts, err := h.Service.UserAlerts(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, alerts, map[string]any{"count": len(alerts)})
}

func (h *AlertHandler) deleteAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("alertId"), 10, 64)
	if err != nil || id <= 0 {
		Error(c, http.StatusBadRequest, "alert id must be a positive integer", nil)
		return
	}
	if err := h.Service.DeleteAlert(c.Request.Context(), id); err != nil {
		Fail(c, err)
		return
	}
	Ok(c, gin.H{"alertId": id, "deleted": true}, nil)
}

func (h *AlertHandler) listNotifications(c *gin.Context) {
	userID := strings.TrimSpace(c.Param("userId"))
	ns, err := h.Service.UserNotifications(c.Request.Context(), userID)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, ns, map[string]any{"count": len(ns)})
}

func (h *AlertHandler) emulatePrice(c *gin.Context) {
	var req service.EmulatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Error(c, http.StatusBadRequest, "invalid request body: "+err.Error(), nil)
		return
	}
	res, err := h.Service.EmulatePrice(c.Request.Context(), req)
	if err != nil {
		Fail(c, err)
		return
	}
	Ok(c, res, map[string]any{"triggered": len(res.Triggered)})
}
