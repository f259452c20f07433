package luahost

import (
	stdjson "encoding/json"

	json "github.com/inbucket/gopher-json"
	"github.com/inbucket/mtahook/pkg/hook"
	lua "github.com/yuin/gopher-lua"
)

const requestName = "request"

func registerRequestType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(requestName)
	ls.SetField(mt, "__index", ls.NewFunction(requestIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(readOnlyNewIndex(requestName)))
}

func wrapRequest(ls *lua.LState, val *hook.Request) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(requestName))

	return ud
}

func checkRequest(ls *lua.LState, pos int) *hook.Request {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*hook.Request); ok {
		return v
	}
	ls.ArgError(pos, requestName+" expected")
	return nil
}

// Gets a field value from the request. The context is presented as a plain table using the
// wire field names, absent optional fields read as nil.
func requestIndex(ls *lua.LState) int {
	req := checkRequest(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "stage":
		ls.Push(lua.LString(req.Context.Stage.String()))
	case "context":
		ls.Push(toLuaValue(ls, req.Context))
	case "envelope":
		if req.Envelope == nil {
			ls.Push(lua.LNil)
			break
		}
		env := ls.NewTable()
		env.RawSetString("from", wrapAddress(ls, &req.Envelope.From))
		to := ls.NewTable()
		for i := range req.Envelope.To {
			to.Append(wrapAddress(ls, &req.Envelope.To[i]))
		}
		env.RawSetString("to", to)
		ls.Push(env)
	case "message":
		if req.Message == nil {
			ls.Push(lua.LNil)
			break
		}
		ls.Push(wrapMessage(ls, req.Message))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// toLuaValue converts v to Lua through its JSON encoding, raising a Lua error on failure.
func toLuaValue(ls *lua.LState, v any) lua.LValue {
	data, err := stdjson.Marshal(v)
	if err != nil {
		ls.RaiseError("encoding %T: %v", v, err)
		return lua.LNil
	}
	lv, err := json.Decode(ls, data)
	if err != nil {
		ls.RaiseError("decoding %T: %v", v, err)
		return lua.LNil
	}
	return lv
}
