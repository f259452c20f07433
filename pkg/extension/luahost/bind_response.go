package luahost

import (
	"fmt"
	"math"

	"github.com/inbucket/mtahook/pkg/hook"
	lua "github.com/yuin/gopher-lua"
)

const (
	responseName = "response"

	defaultRejectStatus  = 550
	defaultRejectMessage = "Rejected by policy"
)

func registerResponseType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(responseName)
	ls.SetGlobal(responseName, mt)

	// Static attributes.
	ls.SetField(mt, "accept", ls.NewFunction(newResponse(hook.ActionAccept)))
	ls.SetField(mt, "discard", ls.NewFunction(newResponse(hook.ActionDiscard)))
	ls.SetField(mt, "quarantine", ls.NewFunction(newResponse(hook.ActionQuarantine)))
	ls.SetField(mt, "reject", ls.NewFunction(newResponse(hook.ActionReject)))

	// Fields and methods.
	ls.SetField(mt, "__index", ls.NewFunction(responseIndex))
}

func newResponse(action hook.Action) func(*lua.LState) int {
	return func(ls *lua.LState) int {
		val := &hook.Response{Action: action}

		if action == hook.ActionReject {
			// Optionally accept status and message.
			status := checkStatus(ls, 1, defaultRejectStatus)
			msg := ls.OptString(2, defaultRejectMessage)
			val.Response = &hook.SMTPResponse{Status: &status, Message: &msg}
		}

		ls.Push(wrapResponse(ls, val))
		return 1
	}
}

func wrapResponse(ls *lua.LState, val *hook.Response) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(responseName))

	return ud
}

func unwrapResponse(lv lua.LValue) (*hook.Response, error) {
	if ud, ok := lv.(*lua.LUserData); ok {
		if v, ok := ud.Value.(*hook.Response); ok {
			return v, nil
		}
	}

	return nil, fmt.Errorf("expected response, got %q", lv.Type().String())
}

func checkResponse(ls *lua.LState, pos int) *hook.Response {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*hook.Response); ok {
		return v
	}
	ls.ArgError(pos, responseName+" expected")
	return nil
}

// Modification and reply methods return the response, so calls can be chained:
// `return response.accept():add_header("X-Spam", "No"):delete_header(3, "X-Mailer")`.
var responseMethods = map[string]lua.LGFunction{
	"change_from":      responseChangeFrom,
	"add_recipient":    responseAddRecipient,
	"delete_recipient": responseDeleteRecipient,
	"replace_contents": responseReplaceContents,
	"add_header":       responseAddHeader,
	"insert_header":    responseInsertHeader,
	"change_header":    responseChangeHeader,
	"delete_header":    responseDeleteHeader,
	"smtp":             responseSMTP,
	"disconnect":       responseDisconnect,
}

func responseIndex(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	field := ls.CheckString(2)

	if fn, ok := responseMethods[field]; ok {
		ls.Push(ls.NewFunction(fn))
		return 1
	}

	switch field {
	case "action":
		ls.Push(lua.LString(r.Action.String()))
	case "status":
		if r.Response != nil && r.Response.Status != nil {
			ls.Push(lua.LNumber(*r.Response.Status))
		} else {
			ls.Push(lua.LNil)
		}
	case "message":
		if r.Response != nil && r.Response.Message != nil {
			ls.Push(lua.LString(*r.Response.Message))
		} else {
			ls.Push(lua.LNil)
		}
	case "modifications":
		ls.Push(toLuaValue(ls, r.Modifications))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// modify appends m and leaves the response on the stack for chaining.
func modify(ls *lua.LState, r *hook.Response, m hook.Modification) int {
	r.Modifications = append(r.Modifications, m)
	ls.Push(ls.Get(1))
	return 1
}

func responseChangeFrom(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewChangeFrom(ls.CheckString(2), checkParameters(ls, 3)))
}

func responseAddRecipient(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewAddRecipient(ls.CheckString(2), checkParameters(ls, 3)))
}

func responseDeleteRecipient(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewDeleteRecipient(ls.CheckString(2)))
}

func responseReplaceContents(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewReplaceContents(ls.CheckString(2)))
}

func responseAddHeader(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewAddHeader(ls.CheckString(2), ls.CheckString(3)))
}

func responseInsertHeader(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewInsertHeader(checkIndex(ls, 2), ls.CheckString(3), ls.CheckString(4)))
}

func responseChangeHeader(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewChangeHeader(checkIndex(ls, 2), ls.CheckString(3), ls.CheckString(4)))
}

func responseDeleteHeader(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	return modify(ls, r, hook.NewDeleteHeader(checkIndex(ls, 2), ls.CheckString(3)))
}

// res:smtp(status [, message [, enhanced_status]]) sets the SMTP reply.
func responseSMTP(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	if r.Response == nil {
		r.Response = &hook.SMTPResponse{}
	}
	status := checkStatus(ls, 2, 0)
	r.Response.Status = &status
	r.Response.Message = optStringPtr(ls, 3)
	r.Response.EnhancedStatus = optStringPtr(ls, 4)
	ls.Push(ls.Get(1))
	return 1
}

// res:disconnect() asks the MTA to close the connection after replying.
func responseDisconnect(ls *lua.LState) int {
	r := checkResponse(ls, 1)
	if r.Response == nil {
		r.Response = &hook.SMTPResponse{}
	}
	r.Response.Disconnect = true
	ls.Push(ls.Get(1))
	return 1
}

// checkIndex reads a zero-based header index.
func checkIndex(ls *lua.LState, pos int) uint32 {
	n := ls.CheckInt64(pos)
	if n < 0 || n > math.MaxUint32 {
		ls.ArgError(pos, "header index out of range")
	}
	return uint32(n)
}

// checkStatus reads an SMTP status code, using def when the argument is absent. A zero
// def makes the argument required.
func checkStatus(ls *lua.LState, pos int, def int64) uint16 {
	var n int64
	if def == 0 {
		n = ls.CheckInt64(pos)
	} else {
		n = ls.OptInt64(pos, def)
	}
	if n < 0 || n > math.MaxUint16 {
		ls.ArgError(pos, "status out of range")
	}
	return uint16(n)
}

func optStringPtr(ls *lua.LState, pos int) *string {
	if ls.Get(pos) == lua.LNil {
		return nil
	}
	s := ls.CheckString(pos)
	return &s
}

// checkParameters converts an optional table of ESMTP parameters. String and number values
// are kept as text, true marks a keyword without a value.
func checkParameters(ls *lua.LState, pos int) hook.Parameters {
	if ls.Get(pos) == lua.LNil {
		return nil
	}
	lt := ls.CheckTable(pos)
	params := hook.Parameters{}
	lt.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			ls.ArgError(pos, "parameter names must be strings")
			return
		}
		switch v := v.(type) {
		case lua.LString, lua.LNumber:
			params[string(key)] = hook.StringPtr(v.String())
		case lua.LBool:
			if v {
				params[string(key)] = nil
			}
		default:
			ls.ArgError(pos, fmt.Sprintf("invalid value for parameter %q", string(key)))
		}
	})
	return params
}
