// Package event holds the payloads exchanged with extension listeners.
package event

import (
	"time"

	"github.com/inbucket/mtahook/pkg/hook"
)

// Exchange records a completed request/response cycle.
type Exchange struct {
	ID       string        // ULID assigned when the request was received.
	Received time.Time     // When the request was received.
	Elapsed  time.Duration // Time spent deciding the response.
	Listener string        // Listener that answered, empty when the default action was used.
	Request  hook.Request
	Response hook.Response
}

// Stage of the request that started the exchange.
func (e *Exchange) Stage() hook.Stage {
	return e.Request.Context.Stage
}
