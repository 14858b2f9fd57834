package mqttclient

import (
	"context"
	"log"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Handler receives the concrete topic a message arrived on plus the message
// itself. A returned error is logged, never propagated into the paho router.
type Handler func(topic string, message mqtt.Message) error

// IConsumer is the subscription surface the ingestion service depends on.
type IConsumer interface {
	ConsumeMessage(ctx context.Context)
	SetHandler(handler Handler)
}

// qosFor picks the subscription QoS per topic filter: sensor readings ride
// at-least-once, status/config updates are last-write-wins and ride QoS 0.
func qosFor(filter string) byte {
	if strings.Contains(filter, "/sensors/") {
		return 1
	}
	return 0
}

// MultiConsumer subscribes one shared client to several topic filters and
// funnels every message through a single handler.
type MultiConsumer struct {
	client  mqtt.Client
	filters []string
	handler Handler
}

func NewMultiConsumer(client mqtt.Client, filters []string, handler Handler) *MultiConsumer {
	return &MultiConsumer{
		client:  client,
		filters: filters,
		handler: handler,
	}
}

func (m *MultiConsumer) SetHandler(handler Handler) {
	m.handler = handler
}

// ConsumeMessage subscribes to all filters and blocks until ctx is done,
// then unsubscribes from everything.
func (m *MultiConsumer) ConsumeMessage(ctx context.Context) {
	for _, filter := range m.filters {
		token := m.client.Subscribe(
			filter,
			qosFor(filter),
			func(_ mqtt.Client, msg mqtt.Message) {
				if m.handler == nil {
					log.Printf("mqtt: no handler set, dropping message on %s", msg.Topic())
					return
				}
				if err := m.handler(msg.Topic(), msg); err != nil {
					log.Printf("mqtt: handler error on %s: %v", msg.Topic(), err)
				}
			},
		)
		token.Wait()
		if token.Error() != nil {
			log.Printf("mqtt: subscribe to %s failed: %v", filter, token.Error())
		} else {
			log.Printf("mqtt: subscribed to %s", filter)
		}
	}

	<-ctx.Done()

	for _, filter := range m.filters {
		m.client.Unsubscribe(filter)
	}
}
