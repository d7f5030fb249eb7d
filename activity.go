package authstate

import (
	"context"
	"time"
)

// ActivityEventType names what happened to the auth state.
type ActivityEventType string

const (
	ActivityEventSettled         ActivityEventType = "auth.state.settled"
	ActivityEventInitFailure     ActivityEventType = "auth.init.failure"
	ActivityEventSignInSuccess   ActivityEventType = "auth.signin.success"
	ActivityEventSignInFailure   ActivityEventType = "auth.signin.failure"
	ActivityEventSignOutSuccess  ActivityEventType = "auth.signout.success"
	ActivityEventSignOutFailure  ActivityEventType = "auth.signout.failure"
	ActivityEventSessionReceived ActivityEventType = "auth.session.changed"
)

// ActivityEvent describes one settlement or command outcome. Phases are
// the store phases before and after the event.
type ActivityEvent struct {
	EventType  ActivityEventType
	UserID     string
	Email      string
	FromPhase  Phase
	ToPhase    Phase
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink receives store activity. Record runs on the caller's
// goroutine after the state lock is released; errors are only logged.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error { return nil }

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
