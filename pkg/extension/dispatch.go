package extension

import (
	"expvar"
	"fmt"
	"io"
	"math/rand"
	"sync"
	"time"

	"github.com/inbucket/mtahook/pkg/config"
	"github.com/inbucket/mtahook/pkg/extension/event"
	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/policy"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"
)

var (
	// Raw stat collectors
	expRequestsTotal = new(expvar.Int)
	expUnappliable   = new(expvar.Int)
	expStages        = new(expvar.Map).Init()
	expActions       = new(expvar.Map).Init()
)

func init() {
	m := expvar.NewMap("dispatch")
	m.Set("RequestsTotal", expRequestsTotal)
	m.Set("UnappliableTotal", expUnappliable)
	m.Set("Stages", expStages)
	m.Set("Actions", expActions)
}

// Dispatcher decides the response to each hook request using the listeners registered
// with a Host, falling back to a default action when none of them answers.
type Dispatcher struct {
	host          *Host
	defaultAction hook.Action
	simulate      bool
	logger        zerolog.Logger
	now           func() time.Time

	mu      sync.Mutex // Guards entropy.
	entropy io.Reader
}

// NewDispatcher creates a Dispatcher for the listeners of host.
func NewDispatcher(logger zerolog.Logger, host *Host, conf config.Policy) (*Dispatcher, error) {
	action, err := conf.Action()
	if err != nil {
		return nil, err
	}
	now := time.Now()
	return &Dispatcher{
		host:          host,
		defaultAction: action,
		simulate:      conf.Simulate,
		logger:        logger.With().Str("module", "dispatch").Logger(),
		now:           time.Now,
		entropy:       ulid.Monotonic(rand.New(rand.NewSource(now.UnixNano())), 0),
	}, nil
}

// Dispatch emits the request to the listeners of its stage and returns the response.
// When simulation is enabled, a response whose modifications cannot be applied to the
// request is reported as a *policy.ApplyError instead.
func (d *Dispatcher) Dispatch(req *hook.Request) (*hook.Response, error) {
	received := d.now()
	id := d.newID(received)
	stage := req.Context.Stage
	logger := d.logger.With().Str("id", id).Stringer("stage", stage).Logger()
	expRequestsTotal.Add(1)
	expStages.Add(stage.String(), 1)

	broker := d.host.Events.Stage(stage)
	if broker == nil {
		return nil, fmt.Errorf("no listeners for stage %v", stage)
	}
	res, listener := broker.Emit(req.Clone())
	if res == nil {
		logger.Debug().Msg("No listener responded, using default action")
		res = &hook.Response{Action: d.defaultAction, Modifications: []hook.Modification{}}
	}

	if d.simulate && len(res.Modifications) > 0 {
		if _, err := policy.Apply(req, res.Modifications); err != nil {
			logger.Warn().Err(err).Str("listener", listener).Msg("Rejected unappliable modifications")
			expUnappliable.Add(1)
			return nil, err
		}
	}

	elapsed := d.now().Sub(received)
	expActions.Add(res.Action.String(), 1)
	logger.Info().
		Str("listener", listener).
		Stringer("action", res.Action).
		Int("modifications", len(res.Modifications)).
		Dur("elapsed", elapsed).
		Msg("Decided response")

	// Async listeners get their own copies; the caller keeps req and res.
	d.host.Events.AfterResponse.Emit(&event.Exchange{
		ID:       id,
		Received: received,
		Elapsed:  elapsed,
		Listener: listener,
		Request:  *req.Clone(),
		Response: *res.Clone(),
	})

	return res, nil
}

// Handle decodes a JSON request, dispatches it, and encodes the response.
func (d *Dispatcher) Handle(data []byte) ([]byte, error) {
	req, err := hook.DecodeRequest(data)
	if err != nil {
		return nil, err
	}
	res, err := d.Dispatch(req)
	if err != nil {
		return nil, err
	}
	return hook.EncodeResponse(res)
}

func (d *Dispatcher) newID(t time.Time) string {
	d.mu.Lock()
	defer d.mu.Unlock()

	return ulid.MustNew(ulid.Timestamp(t), d.entropy).String()
}
