package notification

import (
	"context"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"shutter-control-backend/internal/control"
	"shutter-control-backend/internal/model"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Subscriptions is the part of the store the pool needs.
type Subscriptions interface {
	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// WorkerPool delivers shutter events to every browser subscription.
type WorkerPool struct {
	size    int
	jobs    chan control.Event
	subs    Subscriptions
	webpush *webpush.Options
	sender  NotificationSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, subs Subscriptions, webpushOptions *webpush.Options) *WorkerPool {
	if size < 1 {
		size = 1
	}
	return &WorkerPool{
		size:    size,
		jobs:    make(chan control.Event, size*16),
		subs:    subs,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Push worker %d started", id)
	for {
		select {
		case e := <-wp.jobs:
			wp.sendEvent(ctx, e)
		case <-ctx.Done():
			log.Printf("Push worker %d shutting down", id)
			return
		}
	}
}

// Notify queues scheduled firings and device status changes. Manual
// commands are not pushed since the caller already sees the result.
// A full queue drops the event.
func (wp *WorkerPool) Notify(e control.Event) {
	if e.Kind == control.EventCommand && e.Origin != control.OriginSchedule {
		return
	}
	select {
	case wp.jobs <- e:
	default:
		log.Printf("Push queue full, dropping %s event", e.Kind)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan control.Event {
	return wp.jobs
}

func (wp *WorkerPool) sendEvent(ctx context.Context, e control.Event) {
	subscriptions, err := wp.subs.ListPushSubscriptions(ctx)
	if err != nil {
		log.Printf("Error fetching push subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	payload := []byte(payloadFor(e))
	log.Printf("Sending %d notifications for %s event", len(subscriptions), e.Kind)
	for _, sub := range subscriptions {
		wp.sendNotification(ctx, sub, payload)
	}
}

func payloadFor(e control.Event) string {
	if e.Message != "" {
		return e.Message
	}
	if e.Kind == control.EventStatus {
		return string(e.Status)
	}
	return string(e.Action)
}

func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.subs.DeletePushSubscription(ctx, sub.Endpoint); err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
