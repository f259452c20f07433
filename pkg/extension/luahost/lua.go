// Package luahost runs a Lua policy script as an extension listener. Scripts register
// functions on the mtahook global; each before-stage function receives the request and may
// return a response built with the response global.
package luahost

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/inbucket/mtahook/pkg/config"
	"github.com/inbucket/mtahook/pkg/extension"
	"github.com/inbucket/mtahook/pkg/extension/event"
	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/rs/zerolog"
	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

const listenerName = "lua"

// Host of Lua extensions.
type Host struct {
	Functions []string // Functions detected in lua script.
	extHost   *extension.Host
	pool      *statePool
	logger    zerolog.Logger
}

// New constructs a new Lua Host, pre-compiling the source. Returns nil without error if the
// configured script does not exist.
func New(logger zerolog.Logger, conf config.Lua, extHost *extension.Host) (*Host, error) {
	scriptPath := conf.Path
	if scriptPath == "" {
		return nil, nil
	}

	startLog := logger.With().Str("module", "lua").Str("phase", "startup").
		Str("path", scriptPath).Logger()

	// Pre-load, parse, and compile script.
	if fi, err := os.Stat(scriptPath); err != nil {
		startLog.Info().Msg("Script file not found")
		return nil, nil
	} else if fi.IsDir() {
		return nil, fmt.Errorf("lua script %v is a directory", scriptPath)
	}

	startLog.Info().Msg("Loading script")
	file, err := os.Open(scriptPath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return NewFromReader(logger, extHost, bufio.NewReader(file), scriptPath)
}

// NewFromReader constructs a new Lua Host, loading Lua source from the provided reader.
// The provided path is used in logging and error messages.
func NewFromReader(logger zerolog.Logger, extHost *extension.Host, r io.Reader, path string) (*Host, error) {
	// Pre-parse, and compile script.
	chunk, err := parse.Parse(r, path)
	if err != nil {
		return nil, err
	}
	proto, err := lua.Compile(chunk, path)
	if err != nil {
		return nil, err
	}

	// Build the pool and confirm LState is retrievable.
	pool := newStatePool(logger, proto)
	h := &Host{
		extHost: extHost,
		pool:    pool,
		logger:  logger.With().Str("module", "lua").Logger(),
	}
	ls, err := pool.getState()
	if err != nil {
		return nil, err
	}
	defer pool.putState(ls)

	if err := h.wireFunctions(ls); err != nil {
		return nil, err
	}

	return h, nil
}

// CreateChannel creates a channel and places it into the named global variable
// in newly created LStates.
func (h *Host) CreateChannel(name string) chan lua.LValue {
	return h.pool.createChannel(name)
}

// wireFunctions adds a listener to the extension host for each function the script defined.
func (h *Host) wireFunctions(ls *lua.LState) error {
	mh, err := getMTAHook(ls)
	if err != nil {
		return err
	}

	for _, stage := range hook.Stages {
		if mh.Before.Func(stage) == nil {
			continue
		}
		h.Functions = append(h.Functions, "before."+stage.String())
		h.extHost.Events.Stage(stage).AddListener(listenerName, h.handleBefore(stage))
	}

	if mh.After.Response != nil {
		h.Functions = append(h.Functions, "after."+afterResponseFnName)
		h.extHost.Events.AfterResponse.AddListener(listenerName, h.handleAfterResponse)
	}

	h.logger.Debug().Strs("functions", h.Functions).Msg("Wired Lua functions")
	return nil
}

func (h *Host) handleBefore(stage hook.Stage) func(hook.Request) *hook.Response {
	return func(req hook.Request) *hook.Response {
		logger, ls, mh, ok := h.prepareFuncCall("before." + stage.String())
		if !ok {
			return nil
		}
		defer h.pool.putState(ls)

		fn := mh.Before.Func(stage)
		if fn == nil {
			return nil
		}

		// Call lua function.
		logger.Debug().Msg("Calling Lua function")
		if err := ls.CallByParam(
			lua.P{Fn: fn, NRet: 1, Protect: true},
			wrapRequest(ls, &req),
		); err != nil {
			logger.Error().Err(err).Msg("Failed to call Lua function")
			return nil
		}

		lval := ls.Get(1)
		ls.Pop(1)
		logger.Debug().Str("ret", lval.String()).Msg("Lua function returned")

		if lval.Type() == lua.LTNil {
			return nil
		}
		res, err := unwrapResponse(lval)
		if err != nil {
			logger.Error().Err(err).Msg("Bad response from Lua function")
			return nil
		}

		return res
	}
}

func (h *Host) handleAfterResponse(ex event.Exchange) {
	logger, ls, mh, ok := h.prepareFuncCall("after." + afterResponseFnName)
	if !ok {
		return
	}
	defer h.pool.putState(ls)

	if mh.After.Response == nil {
		return
	}

	// Call lua function.
	logger.Debug().Str("id", ex.ID).Msg("Calling Lua function")
	if err := ls.CallByParam(
		lua.P{Fn: mh.After.Response, NRet: 0, Protect: true},
		wrapExchange(ls, &ex),
	); err != nil {
		logger.Error().Err(err).Msg("Failed to call Lua function")
	}
}

// prepareFuncCall returns a function-specific logger, an LState from the pool, and the
// functions registered by the script. When ok is false the caller should return early.
func (h *Host) prepareFuncCall(funcName string) (logger zerolog.Logger, ls *lua.LState,
	mh *MTAHook, ok bool) {
	logger = h.logger.With().Str("function", funcName).Logger()

	ls, err := h.pool.getState()
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get Lua state instance from pool")
		return logger, nil, nil, false
	}

	mh, err = getMTAHook(ls)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to get mtahook object from Lua state")
		h.pool.putState(ls)
		return logger, nil, nil, false
	}

	return logger, ls, mh, true
}

// wrapExchange presents a completed exchange to Lua as a table.
func wrapExchange(ls *lua.LState, ex *event.Exchange) *lua.LTable {
	lt := ls.NewTable()
	lt.RawSetString("id", lua.LString(ex.ID))
	lt.RawSetString("stage", lua.LString(ex.Stage().String()))
	lt.RawSetString("listener", lua.LString(ex.Listener))
	lt.RawSetString("received", lua.LNumber(ex.Received.Unix()))
	lt.RawSetString("elapsed", lua.LNumber(ex.Elapsed.Seconds()))
	lt.RawSetString("request", wrapRequest(ls, &ex.Request))
	lt.RawSetString("response", wrapResponse(ls, &ex.Response))
	return lt
}
