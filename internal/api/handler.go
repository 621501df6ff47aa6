package api

import (
	"context"
	"log"

	"github.com/SherClockHolmes/webpush-go"

	"shutter-control-backend/internal/control"
	"shutter-control-backend/internal/mw"
	"shutter-control-backend/internal/schedule"
	"shutter-control-backend/internal/store"
)

// Reconciler rebuilds live triggers after schedule mutations.
type Reconciler interface {
	Reconcile(ctx context.Context) (schedule.Result, error)
	Triggers() []schedule.Trigger
}

// schedulesPath prefixes every cached schedule response.
const schedulesPath = "/api/schedules"

// Handler holds shared dependencies for API handlers.
type Handler struct {
	controller *control.Controller
	store      store.Store
	schedules  Reconciler
	cache      *mw.ResponseCache
	webpush    *webpush.Options
}

// NewHandler creates a new API handler. responseCache may be nil.
func NewHandler(controller *control.Controller, s store.Store, schedules Reconciler, responseCache *mw.ResponseCache, webpushOptions *webpush.Options) *Handler {
	return &Handler{
		controller: controller,
		store:      s,
		schedules:  schedules,
		cache:      responseCache,
		webpush:    webpushOptions,
	}
}

// schedulesChanged drops cached schedule responses and rebuilds triggers. A
// failed rebuild keeps the previous triggers and is retried by the
// periodic pass, so it does not fail the request.
func (h *Handler) schedulesChanged(ctx context.Context) {
	if h.cache != nil {
		h.cache.Invalidate(schedulesPath)
	}
	if h.schedules == nil {
		return
	}
	if _, err := h.schedules.Reconcile(ctx); err != nil {
		log.Printf("Error reconciling schedules: %v", err)
	}
}
