package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"shutter-control-backend/internal/control"
	"shutter-control-backend/internal/model"
	"shutter-control-backend/internal/parse"
	"shutter-control-backend/internal/store"
)

// daysField accepts "1,3,5" or [1,3,5].
type daysField string

func (d *daysField) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*d = daysField(s)
		return nil
	}
	var days []int
	if err := json.Unmarshal(b, &days); err != nil {
		return fmt.Errorf("days must be a comma-separated string or an array of integers")
	}
	parts := make([]string, len(days))
	for i, day := range days {
		parts[i] = strconv.Itoa(day)
	}
	*d = daysField(strings.Join(parts, ","))
	return nil
}

// enabledField accepts true/false as well as the 1/0 stored by older dashboards.
type enabledField bool

func (e *enabledField) UnmarshalJSON(b []byte) error {
	switch strings.TrimSpace(string(b)) {
	case "true", "1":
		*e = true
	case "false", "0":
		*e = false
	default:
		return fmt.Errorf("enabled must be a boolean")
	}
	return nil
}

type scheduleRequest struct {
	Name    string        `json:"name" binding:"required"`
	Time    string        `json:"time"`
	Command string        `json:"command"`
	Days    daysField     `json:"days"`
	Enabled *enabledField `json:"enabled"`
}

// toSchedule validates the request and normalizes time and days.
func (r scheduleRequest) toSchedule() (model.Schedule, error) {
	tod, err := parse.ParseTimeOfDay(r.Time)
	if err != nil {
		return model.Schedule{}, err
	}
	days, err := parse.ParseDays(string(r.Days))
	if err != nil {
		return model.Schedule{}, err
	}
	if _, ok := control.ParseAction(r.Command); !ok {
		return model.Schedule{}, fmt.Errorf("invalid command %q", r.Command)
	}
	return model.Schedule{
		Name:    r.Name,
		Time:    tod.String(),
		Command: r.Command,
		Days:    parse.FormatDays(days),
	}, nil
}

func scheduleID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid schedule id"})
		return 0, false
	}
	return id, true
}

// ListSchedules returns every schedule ordered by time of day.
func (h *Handler) ListSchedules(c *gin.Context) {
	schedules, err := h.store.ListSchedules(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, schedules)
}

// CreateSchedule stores a new schedule, enabled unless stated otherwise.
func (h *Handler) CreateSchedule(c *gin.Context) {
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := req.toSchedule()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.Enabled = req.Enabled == nil || bool(*req.Enabled)

	if err := h.store.CreateSchedule(c.Request.Context(), &s); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.schedulesChanged(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"id": s.ID})
}

// UpdateSchedule replaces a schedule. An omitted enabled flag keeps the
// stored value; an unknown id reports zero changes.
func (h *Handler) UpdateSchedule(c *gin.Context) {
	id, ok := scheduleID(c)
	if !ok {
		return
	}
	var req scheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s, err := req.toSchedule()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	s.ID = id

	if req.Enabled != nil {
		s.Enabled = bool(*req.Enabled)
	} else {
		current, err := h.store.GetSchedule(c.Request.Context(), id)
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"changes": 0})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		s.Enabled = current.Enabled
	}

	changes, err := h.store.UpdateSchedule(c.Request.Context(), &s)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.schedulesChanged(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"changes": changes})
}

// DeleteSchedule removes a schedule.
func (h *Handler) DeleteSchedule(c *gin.Context) {
	id, ok := scheduleID(c)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteSchedule(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.schedulesChanged(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ListTriggers returns the live triggers with their next firing time.
func (h *Handler) ListTriggers(c *gin.Context) {
	c.JSON(http.StatusOK, h.schedules.Triggers())
}
