package luahost

import (
	"net/http"
	"sync"
	"time"

	"github.com/cjoudrey/gluahttp"
	"github.com/cosmotek/loguago"
	json "github.com/inbucket/gopher-json"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
)

// httpTimeout bounds HTTP requests made by scripts.
const httpTimeout = 10 * time.Second

// typeRegistrars install the userdata types and globals every policy script can use.
var typeRegistrars = []func(*lua.LState){
	registerAddressType,
	registerMessageType,
	registerRequestType,
	registerResponseType,
	registerMTAHookTypes,
}

// policyModules returns the loaders for the modules a script may require. Every state
// shares the one HTTP client.
func policyModules(logger zerolog.Logger) map[string]lua.LGFunction {
	client := &http.Client{Timeout: httpTimeout}
	return map[string]lua.LGFunction{
		"http":   gluahttp.NewHttpModule(client).Loader,
		"json":   json.Loader,
		"logger": loguago.NewLogger(logger).Loader,
	}
}

// statePool holds idle LStates that have already run the policy script, so its functions
// are registered on the mtahook global. A state is used by one caller at a time.
type statePool struct {
	mu       sync.Mutex
	script   *lua.FunctionProto
	modules  map[string]lua.LGFunction
	idle     []*lua.LState
	channels map[string]chan lua.LValue
}

func newStatePool(logger zerolog.Logger, script *lua.FunctionProto) *statePool {
	return &statePool{
		script:   script,
		modules:  policyModules(logger),
		channels: make(map[string]chan lua.LValue),
	}
}

// start builds a state and runs the script in it. Lock must be held.
func (p *statePool) start() (*lua.LState, error) {
	ls := lua.NewState()
	for name, loader := range p.modules {
		ls.PreloadModule(name, loader)
	}
	for name, ch := range p.channels {
		ls.SetGlobal(name, lua.LChannel(ch))
	}
	for _, register := range typeRegistrars {
		register(ls)
	}

	ls.Push(ls.NewFunctionFromProto(p.script))
	if err := ls.PCall(0, lua.MultRet, nil); err != nil {
		ls.Close()
		return nil, err
	}
	return ls, nil
}

// getState takes an idle state, starting a new one when none is left.
func (p *statePool) getState() (*lua.LState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	n := len(p.idle)
	if n == 0 {
		return p.start()
	}
	ls := p.idle[n-1]
	p.idle = p.idle[:n-1]
	return ls, nil
}

// putState makes ls available again with an empty stack. Closed states are dropped.
func (p *statePool) putState(ls *lua.LState) {
	if ls.IsClosed() {
		return
	}
	ls.SetTop(0)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, ls)
}

// createChannel adds a buffered channel as global name of every state started from now
// on. Idle states are closed; states checked out at the time keep running without it.
func (p *statePool) createChannel(name string) chan lua.LValue {
	p.mu.Lock()
	defer p.mu.Unlock()

	ch := make(chan lua.LValue, 10)
	p.channels[name] = ch
	for _, ls := range p.idle {
		ls.Close()
	}
	p.idle = nil
	return ch
}
