// Package notify is the boundary to notification delivery. Callers hand over
// a message and move on; storing and delivering it happens off the request
// path, and failures are logged rather than returned.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"civicsync-be/metrics"
	"civicsync-be/models"
)

// Store persists notifications for the in-app inbox.
type Store interface {
	Insert(ctx context.Context, n *models.Notification) error
}

const defaultTimeout = 5 * time.Second

type Dispatcher struct {
	store   Store
	logger  *slog.Logger
	metrics *metrics.Metrics
	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

type Option func(*Dispatcher)

func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) { d.timeout = timeout }
}

func NewDispatcher(store Store, opts ...Option) *Dispatcher {
	d := &Dispatcher{store: store, logger: slog.Default(), timeout: defaultTimeout, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Notify stores the notification in the background. The request context
// only contributes its values; its cancellation does not abort delivery.
func (d *Dispatcher) Notify(ctx context.Context, recipient primitive.ObjectID, title, body string, category models.NotificationCategory, data map[string]string) {
	n := &models.Notification{
		User:      recipient,
		Title:     title,
		Body:      body,
		Category:  category,
		Data:      data,
		CreatedAt: d.now(),
	}
	bg := context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(bg, d.timeout)
		defer cancel()
		if err := d.store.Insert(ctx, n); err != nil {
			d.metrics.NotificationFailed()
			d.logger.Error("failed to store notification",
				"recipient", recipient.Hex(),
				"category", string(category),
				"error", err,
			)
		}
	}()
}

// Wait blocks until every notification handed over so far has been processed.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
