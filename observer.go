package cecontainer

import (
	"context"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Observer is notified of container lifecycle events, formatted as CloudEvents.
type Observer interface {
	// OnEvent is called synchronously from the lifecycle walk. It should
	// return quickly. Errors are logged and never interrupt the walk.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID returns a unique identifier for this observer.
	ObserverID() string
}

// CloudEvent types emitted by the container.
const (
	EventTypeComponentStarted = "com.cecontainer.component.started"
	EventTypeComponentStopped = "com.cecontainer.component.stopped"
	EventTypeComponentFailed  = "com.cecontainer.component.failed"

	EventTypeLevelBuilt = "com.cecontainer.level.built"

	EventTypeContainerStarted    = "com.cecontainer.container.started"
	EventTypeContainerDisposed   = "com.cecontainer.container.disposed"
	EventTypeContainerRolledBack = "com.cecontainer.container.rolledback"
)

const eventSource = "cecontainer"

// FunctionalObserver adapts a function to Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer calling handler for every event.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

// OnEvent calls the handler.
func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

// ObserverID returns the id given at construction.
func (f *FunctionalObserver) ObserverID() string {
	return f.id
}

// NewCloudEvent builds a container event with a time-ordered id.
func NewCloudEvent(eventType string, data map[string]any) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(newEventID())
	event.SetSource(eventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	if data != nil {
		_ = event.SetData(cloudevents.ApplicationJSON, data)
	}
	return event
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

func componentEventData(l *Level, inst *instance, err error) map[string]any {
	data := map[string]any{
		"level": l.id.String(),
		"key":   inst.key.String(),
	}
	if err != nil {
		data["error"] = err.Error()
	}
	return data
}
