package luahost

import (
	"errors"
	"fmt"

	"github.com/inbucket/mtahook/pkg/hook"
	lua "github.com/yuin/gopher-lua"
)

const (
	mtahookName       = "mtahook"
	mtahookBeforeName = "mtahook_before"
	mtahookAfterName  = "mtahook_after"

	afterResponseFnName = "response"
)

// MTAHook holds the functions a script registered through the mtahook global.
type MTAHook struct {
	Before MTAHookBeforeFuncs
	After  MTAHookAfterFuncs
}

// MTAHookBeforeFuncs holds one function per stage; the result answers the MTA.
type MTAHookBeforeFuncs struct {
	Stages map[hook.Stage]*lua.LFunction
}

// MTAHookAfterFuncs are called once a response has been sent.
type MTAHookAfterFuncs struct {
	Response *lua.LFunction
}

// Func returns the function registered for the stage, or nil.
func (b *MTAHookBeforeFuncs) Func(stage hook.Stage) *lua.LFunction {
	return b.Stages[stage]
}

func registerMTAHookTypes(ls *lua.LState) {
	// mtahook type.
	mt := ls.NewTypeMetatable(mtahookName)
	ls.SetField(mt, "__index", ls.NewFunction(mtahookIndex))

	// mtahook.before type.
	mt = ls.NewTypeMetatable(mtahookBeforeName)
	ls.SetField(mt, "__index", ls.NewFunction(mtahookBeforeIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(mtahookBeforeNewIndex))

	// mtahook.after type.
	mt = ls.NewTypeMetatable(mtahookAfterName)
	ls.SetField(mt, "__index", ls.NewFunction(mtahookAfterIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(mtahookAfterNewIndex))

	// mtahook global.
	ls.SetGlobal(mtahookName, wrapMTAHook(ls, &MTAHook{}))
}

func wrapMTAHook(ls *lua.LState, val *MTAHook) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(mtahookName))

	return ud
}

func wrapMTAHookBefore(ls *lua.LState, val *MTAHookBeforeFuncs) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(mtahookBeforeName))

	return ud
}

func wrapMTAHookAfter(ls *lua.LState, val *MTAHookAfterFuncs) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(mtahookAfterName))

	return ud
}

// getMTAHook fetches the registered functions from the global of a prepared LState.
func getMTAHook(ls *lua.LState) (*MTAHook, error) {
	lv := ls.GetGlobal(mtahookName)
	if lv == nil || lv == lua.LNil {
		return nil, errors.New("mtahook object was nil")
	}

	ud, ok := lv.(*lua.LUserData)
	if !ok {
		return nil, fmt.Errorf("mtahook object was type %s instead of UserData", lv.Type())
	}

	val, ok := ud.Value.(*MTAHook)
	if !ok {
		return nil, fmt.Errorf("mtahook object (%v) could not be cast", ud.Value)
	}

	return val, nil
}

func checkMTAHook(ls *lua.LState, pos int) *MTAHook {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*MTAHook); ok {
		return val
	}
	ls.ArgError(pos, mtahookName+" expected")
	return nil
}

func checkMTAHookBefore(ls *lua.LState, pos int) *MTAHookBeforeFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*MTAHookBeforeFuncs); ok {
		return val
	}
	ls.ArgError(pos, mtahookBeforeName+" expected")
	return nil
}

func checkMTAHookAfter(ls *lua.LState, pos int) *MTAHookAfterFuncs {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*MTAHookAfterFuncs); ok {
		return val
	}
	ls.ArgError(pos, mtahookAfterName+" expected")
	return nil
}

// mtahook getter.
func mtahookIndex(ls *lua.LState) int {
	mh := checkMTAHook(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "before":
		ls.Push(wrapMTAHookBefore(ls, &mh.Before))
	case "after":
		ls.Push(wrapMTAHookAfter(ls, &mh.After))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// mtahook.before getter, stage names match in any case.
func mtahookBeforeIndex(ls *lua.LState) int {
	before := checkMTAHookBefore(ls, 1)
	stage, err := hook.ParseStage(ls.CheckString(2))
	if err != nil {
		ls.Push(lua.LNil)
		return 1
	}

	ls.Push(funcOrNil(before.Func(stage)))
	return 1
}

// mtahook.before setter.
func mtahookBeforeNewIndex(ls *lua.LState) int {
	before := checkMTAHookBefore(ls, 1)
	index := ls.CheckString(2)

	stage, err := hook.ParseStage(index)
	if err != nil {
		ls.RaiseError("invalid mtahook.before index %q", index)
		return 0
	}
	fn := ls.CheckFunction(3)
	if before.Stages == nil {
		before.Stages = make(map[hook.Stage]*lua.LFunction)
	}
	before.Stages[stage] = fn

	return 0
}

// mtahook.after getter.
func mtahookAfterIndex(ls *lua.LState) int {
	after := checkMTAHookAfter(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case afterResponseFnName:
		ls.Push(funcOrNil(after.Response))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// mtahook.after setter.
func mtahookAfterNewIndex(ls *lua.LState) int {
	m := checkMTAHookAfter(ls, 1)
	index := ls.CheckString(2)

	switch index {
	case afterResponseFnName:
		m.Response = ls.CheckFunction(3)
	default:
		ls.RaiseError("invalid mtahook.after index %q", index)
	}

	return 0
}

func funcOrNil(f *lua.LFunction) lua.LValue {
	if f == nil {
		return lua.LNil
	}

	return f
}
