package event

import (
	"context"

	"github.com/Creedyfish/multitenant-backend/prometheus"
)

// Publisher is the publishing contract the metered wrapper decorates
type Publisher interface {
	Publish(ctx context.Context, orgID uint, eventType, dedupKey string, data map[string]interface{}) error
}

// Metered counts publish outcomes around an underlying publisher.
// Requires initialized metrics; wire it at startup only.
type Metered struct {
	next Publisher
}

// NewMetered wraps a publisher with outcome counters
func NewMetered(next Publisher) *Metered {
	return &Metered{next: next}
}

// Publish delegates and records the outcome
func (m *Metered) Publish(ctx context.Context, orgID uint, eventType, dedupKey string, data map[string]interface{}) error {
	err := m.next.Publish(ctx, orgID, eventType, dedupKey, data)
	if err != nil {
		prometheus.EventPublishErrors.Inc()
		return err
	}
	prometheus.EventsPublishedCounter.WithLabelValues(eventType).Inc()
	return nil
}
