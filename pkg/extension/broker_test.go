package extension_test

import (
	"testing"

	"github.com/inbucket/mtahook/pkg/extension"
	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type requestBroker = extension.EventBroker[hook.Request, hook.Response]

// recorder returns a listener saving the queue ID it was called with, and responding res.
func recorder(got *string, res *hook.Response) func(hook.Request) *hook.Response {
	return func(req hook.Request) *hook.Response {
		*got = req.Context.Queue.ID
		return res
	}
}

func queued(id string) *hook.Request {
	return &hook.Request{Context: hook.Context{Queue: &hook.Queue{ID: id}}}
}

func TestBrokerEmitCallsMultipleListeners(t *testing.T) {
	broker := &requestBroker{}
	var first, second string
	broker.AddListener("1", recorder(&first, nil))
	broker.AddListener("2", recorder(&second, nil))

	res, name := broker.Emit(queued("q1"))
	assert.Nil(t, res)
	assert.Empty(t, name)
	assert.Equal(t, "q1", first)
	assert.Equal(t, "q1", second)
}

func TestBrokerEmitCapturesFirstResult(t *testing.T) {
	broker := &requestBroker{}
	var skipped, answered, unreached string
	broker.AddListener("0", recorder(&skipped, nil))
	broker.AddListener("1", recorder(&answered, hook.Quarantine()))
	broker.AddListener("2", recorder(&unreached, hook.Discard()))

	res, name := broker.Emit(queued("q1"))
	require.NotNil(t, res)
	assert.Equal(t, hook.ActionQuarantine, res.Action)
	assert.Equal(t, "1", name)
	assert.Equal(t, "q1", skipped)
	assert.Equal(t, "q1", answered)
	assert.Empty(t, unreached, "listeners after the first answer are not called")
}

func TestBrokerListenerGetsCopy(t *testing.T) {
	broker := &requestBroker{}
	broker.AddListener("mutate", func(req hook.Request) *hook.Response {
		req.Context.Protocol.Version = 99
		return nil
	})

	req := queued("q1")
	broker.Emit(req)
	assert.Equal(t, uint32(0), req.Context.Protocol.Version)
}

func TestBrokerAddingDuplicateNameReplacesPrevious(t *testing.T) {
	broker := &requestBroker{}
	var first, second string
	broker.AddListener("dup", recorder(&first, nil))
	broker.AddListener("other", recorder(new(string), nil))
	broker.AddListener("dup", recorder(&second, nil))

	broker.Emit(queued("q1"))
	assert.Empty(t, first)
	assert.Equal(t, "q1", second)
	assert.Equal(t, []string{"other", "dup"}, broker.Listeners())
}

func TestBrokerRemovingListenerSuccessful(t *testing.T) {
	broker := &requestBroker{}
	var first, second string
	broker.AddListener("1", recorder(&first, nil))
	broker.AddListener("2", recorder(&second, nil))
	broker.RemoveListener("1")

	broker.Emit(queued("q1"))
	assert.Empty(t, first)
	assert.Equal(t, "q1", second)
	assert.Equal(t, []string{"2"}, broker.Listeners())
}

func TestBrokerRemovingMissingListener(t *testing.T) {
	broker := &requestBroker{}
	broker.RemoveListener("doesn't crash")
	assert.Empty(t, broker.Listeners())
}

func TestHostStageBrokers(t *testing.T) {
	host := extension.NewHost()
	seen := make(map[*requestBroker]bool)
	for _, s := range hook.Stages {
		b := host.Events.Stage(s)
		require.NotNil(t, b, s.String())
		assert.False(t, seen[b], "stage %v shares a broker", s)
		seen[b] = true
	}
	assert.Same(t, &host.Events.BeforeRcpt, host.Events.Stage(hook.StageRcpt))
	assert.Nil(t, host.Events.Stage(hook.Stage(42)))
}
