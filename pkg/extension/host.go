package extension

import (
	"github.com/inbucket/mtahook/pkg/extension/event"
	"github.com/inbucket/mtahook/pkg/hook"
)

// Host defines the extension points of the hook service.
type Host struct {
	Events *Events
}

// Events defines all the event types supported by the extension host.
//
// Before-events are emitted synchronously when a request arrives at the matching stage. The
// first listener to respond with a non-nil Response decides it, and the remaining listeners
// are not called. Expensive listeners delay the MTA's SMTP transaction.
//
// After-events are emitted once the response has been decided, and are processed
// asynchronously.
type Events struct {
	BeforeConnect EventBroker[hook.Request, hook.Response]
	BeforeEhlo    EventBroker[hook.Request, hook.Response]
	BeforeAuth    EventBroker[hook.Request, hook.Response]
	BeforeMail    EventBroker[hook.Request, hook.Response]
	BeforeRcpt    EventBroker[hook.Request, hook.Response]
	BeforeData    EventBroker[hook.Request, hook.Response]
	AfterResponse AsyncEventBroker[event.Exchange]
}

// Stage returns the before-event broker for a stage, or nil if the stage is unknown.
func (e *Events) Stage(s hook.Stage) *EventBroker[hook.Request, hook.Response] {
	switch s {
	case hook.StageConnect:
		return &e.BeforeConnect
	case hook.StageEhlo:
		return &e.BeforeEhlo
	case hook.StageAuth:
		return &e.BeforeAuth
	case hook.StageMail:
		return &e.BeforeMail
	case hook.StageRcpt:
		return &e.BeforeRcpt
	case hook.StageData:
		return &e.BeforeData
	}
	return nil
}

// NewHost creates a new extension host.
func NewHost() *Host {
	return &Host{Events: &Events{}}
}
