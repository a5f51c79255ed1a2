package cecontainer

import "context"

// Option configures a Tree, a Sequencer or a Controller.
type Option func(*settings)

type settings struct {
	logger    Logger
	observers []Observer
}

func newSettings(opts []Option) *settings {
	s := &settings{logger: NopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// WithLogger sets the logger. A nil logger keeps the default no-op logger.
func WithLogger(logger Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObservers adds lifecycle observers.
func WithObservers(observers ...Observer) Option {
	return func(s *settings) {
		s.observers = append(s.observers, observers...)
	}
}

func (s *settings) emit(ctx context.Context, eventType string, data map[string]any) {
	if len(s.observers) == 0 {
		return
	}
	event := NewCloudEvent(eventType, data)
	for _, o := range s.observers {
		if err := o.OnEvent(ctx, event); err != nil {
			s.logger.Warn("Observer failed to handle event", "observer", o.ObserverID(), "eventType", eventType, "error", err)
		}
	}
}
