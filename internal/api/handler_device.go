package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"shutter-control-backend/internal/control"
)

// GetStatus hands the pending command to the device and clears it.
func (h *Handler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"command": h.controller.Poll()})
}

type commandRequest struct {
	Command string `json:"command"`
	Action  string `json:"action"`
}

// PostCommand validates and queues a caller command.
func (h *Handler) PostCommand(c *gin.Context) {
	var req commandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	raw := req.Command
	if raw == "" {
		raw = req.Action
	}

	action, err := h.controller.Dispatch(c.Request.Context(), raw)
	if err != nil {
		reason := h.controller.Messages().Reason(err)
		c.JSON(http.StatusBadRequest, gin.H{
			"accepted": false,
			"success":  false,
			"reason":   reason,
			"error":    reason,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"accepted": true,
		"success":  true,
		"command":  action,
	})
}

type logRequest struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	SourceIP string `json:"source_ip"`
}

// PostLog records a device self-report.
func (h *Handler) PostLog(c *gin.Context) {
	var req logRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.controller.Report(c.Request.Context(), control.Report{
		Status:  req.Status,
		Message: req.Message,
		IP:      req.SourceIP,
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type deviceStatusRequest struct {
	Status   string `json:"status"`
	IP       string `json:"ip"`
	SourceIP string `json:"source_ip"`
}

// PostDeviceStatus records a device heartbeat.
func (h *Handler) PostDeviceStatus(c *gin.Context) {
	var req deviceStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ip := req.IP
	if ip == "" {
		ip = req.SourceIP
	}

	h.controller.Report(c.Request.Context(), control.Report{
		Status:  req.Status,
		Message: h.controller.Messages().HeartbeatMessage(ip, req.Status),
		IP:      ip,
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// GetDeviceStatus returns the last reported device state.
func (h *Handler) GetDeviceStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.controller.Status())
}
