package extension_test

import (
	"expvar"
	"strings"
	"testing"

	"github.com/inbucket/mtahook/pkg/config"
	"github.com/inbucket/mtahook/pkg/extension"
	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/policy"
	"github.com/inbucket/mtahook/pkg/test"
	"github.com/oklog/ulid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDispatcher(t *testing.T, host *extension.Host, conf config.Policy) (*extension.Dispatcher, *strings.Builder) {
	t.Helper()
	output := &strings.Builder{}
	d, err := extension.NewDispatcher(zerolog.New(output), host, conf)
	require.NoError(t, err)
	return d, output
}

func TestDispatchDefaultAction(t *testing.T) {
	host := extension.NewHost()
	d, _ := newDispatcher(t, host, config.Policy{DefaultAction: "quarantine"})
	after := host.Events.AfterResponse.AsyncTestListener("test", 1)

	res, err := d.Dispatch(test.Request())
	require.NoError(t, err)
	assert.Equal(t, hook.ActionQuarantine, res.Action)
	assert.Empty(t, res.Modifications)

	ex, err := after()
	require.NoError(t, err)
	assert.Empty(t, ex.Listener)
	assert.Equal(t, hook.StageData, ex.Stage())
	assert.Equal(t, *test.Request(), ex.Request)
	_, err = ulid.Parse(ex.ID)
	assert.NoError(t, err)
}

func TestDispatchRoutesByStage(t *testing.T) {
	host := extension.NewHost()
	host.Events.BeforeRcpt.AddListener("rcpt", func(hook.Request) *hook.Response {
		return hook.Reject(550, "No such user")
	})
	d, output := newDispatcher(t, host, config.Policy{DefaultAction: "accept"})

	req := test.Request()
	res, err := d.Dispatch(req)
	require.NoError(t, err)
	assert.Equal(t, hook.ActionAccept, res.Action, "data stage has no listener")

	req.Context.Stage = hook.StageRcpt
	res, err = d.Dispatch(req)
	require.NoError(t, err)
	assert.Equal(t, hook.ActionReject, res.Action)
	assert.Contains(t, output.String(), `"listener":"rcpt"`)
	assert.Contains(t, output.String(), `"stage":"rcpt"`)
}

func TestDispatchSimulation(t *testing.T) {
	host := extension.NewHost()
	host.Events.BeforeData.AddListener("bad", func(hook.Request) *hook.Response {
		return hook.Accept().WithModifications(hook.NewDeleteHeader(7, "X-Mailer"))
	})

	d, _ := newDispatcher(t, host, config.Policy{DefaultAction: "accept", Simulate: true})
	_, err := d.Dispatch(test.Request())
	assert.ErrorIs(t, err, policy.ErrHeaderIndex)

	d, _ = newDispatcher(t, host, config.Policy{DefaultAction: "accept", Simulate: false})
	res, err := d.Dispatch(test.Request())
	require.NoError(t, err)
	assert.Len(t, res.Modifications, 1)
}

func TestDispatchListenerCannotMutateRequest(t *testing.T) {
	host := extension.NewHost()
	host.Events.BeforeData.AddListener("mutate", func(req hook.Request) *hook.Response {
		req.Message.Headers[0].Value = "changed"
		req.Envelope.To[0].Parameters["orcpt"] = "changed"
		return nil
	})
	d, _ := newDispatcher(t, host, config.Policy{DefaultAction: "accept"})

	req := test.Request()
	_, err := d.Dispatch(req)
	require.NoError(t, err)
	assert.Equal(t, test.Request(), req)
}

func TestDispatchExchangeIsolated(t *testing.T) {
	host := extension.NewHost()
	host.Events.BeforeData.AddListener("tag", func(hook.Request) *hook.Response {
		return hook.Reject(550, "No").WithModifications(
			hook.NewAddRecipient("audit@example.com", hook.Parameters{"NOTIFY": hook.StringPtr("NEVER")}))
	})
	d, _ := newDispatcher(t, host, config.Policy{DefaultAction: "accept"})
	after := host.Events.AfterResponse.AsyncTestListener("test", 1)

	req := test.Request()
	res, err := d.Dispatch(req)
	require.NoError(t, err)
	wantRes := res.Clone()

	// The caller owns req and res once Dispatch returns.
	req.Message.Headers[0].Value = "changed"
	req.Envelope.To[0].Parameters["orcpt"] = "changed"
	*res.Response.Message = "changed"
	res.Modifications[0].(hook.AddRecipient).Parameters["NOTIFY"] = nil

	ex, err := after()
	require.NoError(t, err)
	assert.Equal(t, *test.Request(), ex.Request)
	assert.Equal(t, *wantRes, ex.Response)
}

func TestDispatchUniqueIDs(t *testing.T) {
	host := extension.NewHost()
	d, _ := newDispatcher(t, host, config.Policy{DefaultAction: "accept"})
	after := host.Events.AfterResponse.AsyncTestListener("ids", 3)

	for i := 0; i < 3; i++ {
		_, err := d.Dispatch(test.Request())
		require.NoError(t, err)
	}
	ids := make(map[string]bool)
	for i := 0; i < 3; i++ {
		ex, err := after()
		require.NoError(t, err)
		ids[ex.ID] = true
	}
	assert.Len(t, ids, 3)
}

func TestDispatchHandle(t *testing.T) {
	host := extension.NewHost()
	host.Events.BeforeData.AddListener("spam", func(req hook.Request) *hook.Response {
		if subj, _ := req.Message.Header("Subject"); subj == "Hello, World!" {
			return hook.Accept().WithModifications(hook.NewAddHeader("X-Spam-Status", "No"))
		}
		return nil
	})
	d, _ := newDispatcher(t, host, config.Policy{DefaultAction: "reject", Simulate: true})

	got, err := d.Handle([]byte(test.RequestJSON))
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"action": "accept",
		"modifications": [{"type": "addHeader", "name": "X-Spam-Status", "value": "No"}]
	}`, string(got))

	_, err = d.Handle([]byte(`{"context": null}`))
	assert.ErrorIs(t, err, hook.ErrSchemaViolation)
}

func TestNewDispatcherInvalidAction(t *testing.T) {
	_, err := extension.NewDispatcher(zerolog.Nop(), extension.NewHost(), config.Policy{DefaultAction: "Accept"})
	assert.ErrorIs(t, err, hook.ErrUnknownVariant)
}

func dispatchStat(t *testing.T, names ...string) int64 {
	t.Helper()
	v := expvar.Get("dispatch")
	for _, name := range names {
		m, ok := v.(*expvar.Map)
		require.True(t, ok, "expected map before %q", name)
		v = m.Get(name)
	}
	if v == nil {
		return 0
	}
	return v.(*expvar.Int).Value()
}

func TestDispatchStats(t *testing.T) {
	host := extension.NewHost()
	host.Events.BeforeData.AddListener("bad", func(hook.Request) *hook.Response {
		return hook.Discard().WithModifications(hook.NewDeleteHeader(9, "X"))
	})
	d, _ := newDispatcher(t, host, config.Policy{DefaultAction: "accept", Simulate: true})

	total := dispatchStat(t, "RequestsTotal")
	data := dispatchStat(t, "Stages", "data")
	unappliable := dispatchStat(t, "UnappliableTotal")
	accepted := dispatchStat(t, "Actions", "accept")

	_, err := d.Dispatch(test.Request())
	require.Error(t, err)

	req := test.Request()
	req.Context.Stage = hook.StageMail
	_, err = d.Dispatch(req)
	require.NoError(t, err)

	assert.Equal(t, total+2, dispatchStat(t, "RequestsTotal"))
	assert.Equal(t, data+1, dispatchStat(t, "Stages", "data"))
	assert.Equal(t, unappliable+1, dispatchStat(t, "UnappliableTotal"))
	assert.Equal(t, accepted+1, dispatchStat(t, "Actions", "accept"))
}
