package events

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const subjectPrefix = "crashula.reports."

type EventType string

const (
	EventTypeReportCreated     EventType = "created"
	EventTypeReportIncremented EventType = "incremented"
	EventTypeReportEdited      EventType = "edited"
)

type Event interface {
	GetType() EventType
}

type ReportEvent struct {
	Type      EventType `json:"-"`
	ReportID  uint      `json:"report_id"`
	UserID    uint      `json:"user_id"`
	Username  string    `json:"username"`
	VersionID uint      `json:"version_id"`
	Title     string    `json:"title"`
	Count     int       `json:"count"`
}

func (e ReportEvent) GetType() EventType {
	return e.Type
}

func Subject(t EventType) string {
	return subjectPrefix + string(t)
}

// Publisher is satisfied by *nats.Conn.
type Publisher interface {
	Publish(subj string, data []byte) error
}

// EventBus publishes events in the background so that a slow or missing
// broker never holds up a request. A nil *EventBus discards every event.
type EventBus struct {
	publisher  Publisher
	eventQueue chan Event
	wg         sync.WaitGroup
	closeOnce  sync.Once
}

func NewEventBus(publisher Publisher) *EventBus {
	eb := &EventBus{
		publisher:  publisher,
		eventQueue: make(chan Event, 100),
	}
	eb.wg.Add(1)
	go eb.run()
	return eb
}

func Connect(url string) (*nats.Conn, error) {
	errorHandler := func(conn *nats.Conn, sub *nats.Subscription, err error) {
		attrs := []any{"error", err, "url", conn.ConnectedUrlRedacted()}
		if sub != nil {
			attrs = append(attrs, "subject", sub.Subject)
		}
		slog.Error("NATS error", attrs...)
	}
	return nats.Connect(url,
		nats.Name("crashula"),
		nats.PingInterval(20*time.Second),
		nats.ErrorHandler(errorHandler),
	)
}

func (eb *EventBus) run() {
	defer eb.wg.Done()
	for event := range eb.eventQueue {
		data, err := json.Marshal(event)
		if err != nil {
			slog.Error("Failed to marshal event", "type", event.GetType(), "error", err)
			continue
		}
		if err := eb.publisher.Publish(Subject(event.GetType()), data); err != nil {
			slog.Error("Failed to publish event", "type", event.GetType(), "error", err)
		}
	}
}

// Publish enqueues the event, dropping it when the queue is full.
func (eb *EventBus) Publish(event Event) {
	if eb == nil {
		return
	}
	select {
	case eb.eventQueue <- event:
	default:
		slog.Warn("Event queue full, dropping event", "type", event.GetType())
	}
}

// Close flushes queued events. Publish must not be called afterwards.
func (eb *EventBus) Close() {
	if eb == nil {
		return
	}
	eb.closeOnce.Do(func() {
		close(eb.eventQueue)
		eb.wg.Wait()
	})
}
