package event

import (
	"context"

	pkgkafka "github.com/GabrijelGordic/Suzeraj/pkg/kafka"
)

// Dispatcher is an in-process Publisher that hands each event straight to
// the handlers subscribed to its topic. It stands in for Kafka when the
// broker is disabled but listing changes still have to reach the search
// index. Topics without handlers are dropped.
type Dispatcher struct {
	handlers map[string][]pkgkafka.Handler
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string][]pkgkafka.Handler)}
}

// Subscribe registers h for every topic in topics. It is not safe to call
// concurrently with Publish.
func (d *Dispatcher) Subscribe(h pkgkafka.Handler, topics ...string) {
	for _, t := range topics {
		d.handlers[t] = append(d.handlers[t], h)
	}
}

// Publish runs the topic's handlers in order and stops at the first error.
func (d *Dispatcher) Publish(ctx context.Context, topic string, event *pkgkafka.Event) error {
	for _, h := range d.handlers[topic] {
		if err := h(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
