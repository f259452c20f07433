package luahost

import (
	"strings"

	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/message"
	lua "github.com/yuin/gopher-lua"
)

const messageName = "message"

func registerMessageType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(messageName)
	ls.SetField(mt, "__index", ls.NewFunction(messageIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(readOnlyNewIndex(messageName)))
}

var messageMethods = map[string]lua.LGFunction{
	"header":  messageHeader,
	"headers": messageHeaders,
	"body":    messageBody,
}

func wrapMessage(ls *lua.LState, val *hook.Message) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(messageName))

	return ud
}

func checkMessage(ls *lua.LState, pos int) *hook.Message {
	ud := ls.CheckUserData(pos)
	if v, ok := ud.Value.(*hook.Message); ok {
		return v
	}
	ls.ArgError(pos, messageName+" expected")
	return nil
}

// Gets a field value from the message. This emulates a Lua table, allowing `msg.size`,
// while methods such as `msg:header(name)` are returned as functions.
func messageIndex(ls *lua.LState) int {
	m := checkMessage(ls, 1)
	field := ls.CheckString(2)

	if fn, ok := messageMethods[field]; ok {
		ls.Push(ls.NewFunction(fn))
		return 1
	}

	switch field {
	case "contents":
		ls.Push(lua.LString(m.Contents))
	case "size":
		ls.Push(lua.LNumber(m.Size))
	case "server_headers":
		ls.Push(headerList(ls, m.ServerHeaders, ""))
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// msg:header(name) returns the first value of the named header, or nil.
func messageHeader(ls *lua.LState) int {
	m := checkMessage(ls, 1)
	if v, ok := m.Header(ls.CheckString(2)); ok {
		ls.Push(lua.LString(v))
	} else {
		ls.Push(lua.LNil)
	}
	return 1
}

// msg:headers([name]) returns every header, or those with the given name. Each entry carries
// the zero-based index that header modifications expect.
func messageHeaders(ls *lua.LState) int {
	m := checkMessage(ls, 1)
	ls.Push(headerList(ls, m.Headers, ls.OptString(2, "")))
	return 1
}

func headerList(ls *lua.LState, headers []hook.Header, name string) *lua.LTable {
	lt := ls.NewTable()
	for i, h := range headers {
		if name != "" && !strings.EqualFold(h.Name, name) {
			continue
		}
		entry := ls.NewTable()
		entry.RawSetString("index", lua.LNumber(i))
		entry.RawSetString("name", lua.LString(h.Name))
		entry.RawSetString("value", lua.LString(h.Value))
		lt.Append(entry)
	}
	return lt
}

// msg:body() decodes the MIME structure, returning nil and an error message on failure.
func messageBody(ls *lua.LState) int {
	m := checkMessage(ls, 1)
	body, err := message.ParseBody(m)
	if err != nil {
		ls.Push(lua.LNil)
		ls.Push(lua.LString(err.Error()))
		return 2
	}

	lt := ls.NewTable()
	lt.RawSetString("text", lua.LString(body.Text))
	lt.RawSetString("html", lua.LString(body.HTML))
	lt.RawSetString("safe_html", lua.LString(body.SafeHTML))
	lt.RawSetString("html_text", lua.LString(body.HTMLText))
	lt.RawSetString("links", stringList(ls, body.Links))
	lt.RawSetString("errors", stringList(ls, body.Errors))

	attachments := ls.NewTable()
	for _, a := range body.Attachments {
		at := ls.NewTable()
		at.RawSetString("filename", lua.LString(a.FileName))
		at.RawSetString("content_type", lua.LString(a.ContentType))
		at.RawSetString("size", lua.LNumber(a.Size))
		at.RawSetString("inline", lua.LBool(a.Inline))
		attachments.Append(at)
	}
	lt.RawSetString("attachments", attachments)

	ls.Push(lt)
	return 1
}

func stringList(ls *lua.LState, values []string) *lua.LTable {
	lt := ls.NewTable()
	for _, v := range values {
		lt.Append(lua.LString(v))
	}
	return lt
}
