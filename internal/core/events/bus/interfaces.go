package bus

import "time"

// EventBus is a thread-safe, in-process pub/sub bus used to broadcast save and load
// lifecycle notifications.
//
// Handlers subscribe by Event.Type(). Publish delivers synchronously in the caller
// goroutine and joins handler errors. Observers, when registered, receive delivery
// callbacks and enable metrics accounting.
type EventBus interface {
	// Publish delivers the event synchronously to all active subscribers of event.Type().
	Publish(event Event) error
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType string, handler EventHandler) (Subscription, error)
	// Unsubscribe cancels the given Subscription. It is safe to call with nil.
	Unsubscribe(Subscription) error

	// PublishAsync publishes in a separate goroutine and returns a channel that receives
	// the joined error (or nil) once delivery completes; the channel is then closed.
	PublishAsync(event Event) <-chan error

	AddObserver(obs EventBusObserver)
	RemoveObserver(obs EventBusObserver)
	// GetMetrics is only populated while at least one observer is registered.
	GetMetrics() EventBusMetrics
	// Subscribers counts active subscriptions for an event type.
	Subscribers(eventType string) int
}

// Event is an immutable message transported by the EventBus.
type Event interface {
	Type() string
	Source() string
	Timestamp() time.Time
	Data() any
}

type (
	EventHandler func(event Event) error
)

// Subscription represents a registered handler bound to an event type.
type Subscription interface {
	ID() string
	EventType() string
	IsActive() bool
	// Cancel de-registers the handler. Multiple calls are safe.
	Cancel() error
}

// EventBusObserver is notified about deliveries. Observers should return quickly.
type EventBusObserver interface {
	OnPublish(eventType string, event Event)
	OnDelivered(eventType string, handlers int, err error, took time.Duration)
}

type EventBusMetrics struct {
	Published         uint64
	DeliveredHandlers uint64
	Errors            uint64
	SubscribersActive uint64
}
