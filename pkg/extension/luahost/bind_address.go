package luahost

import (
	"github.com/inbucket/mtahook/pkg/hook"
	"github.com/inbucket/mtahook/pkg/policy"
	lua "github.com/yuin/gopher-lua"
)

const addressName = "address"

func registerAddressType(ls *lua.LState) {
	mt := ls.NewTypeMetatable(addressName)
	ls.SetGlobal(addressName, mt)

	// Static attributes.
	ls.SetField(mt, "valid", ls.NewFunction(addressValid))

	// Fields.
	ls.SetField(mt, "__index", ls.NewFunction(addressIndex))
	ls.SetField(mt, "__newindex", ls.NewFunction(readOnlyNewIndex(addressName)))
}

// address.valid(s) reports whether s would pass modification address checks.
func addressValid(ls *lua.LState) int {
	_, err := policy.ParseAddress(ls.CheckString(1))
	ls.Push(lua.LBool(err == nil))
	return 1
}

func wrapAddress(ls *lua.LState, val *hook.Address) *lua.LUserData {
	ud := ls.NewUserData()
	ud.Value = val
	ls.SetMetatable(ud, ls.GetTypeMetatable(addressName))

	return ud
}

func checkAddress(ls *lua.LState, pos int) *hook.Address {
	ud := ls.CheckUserData(pos)
	if val, ok := ud.Value.(*hook.Address); ok {
		return val
	}
	ls.ArgError(pos, addressName+" expected")
	return nil
}

// Gets a field value from an envelope address. The local_part and domain fields are nil
// for the null sender and for addresses that fail to parse.
func addressIndex(ls *lua.LState) int {
	a := checkAddress(ls, 1)
	field := ls.CheckString(2)

	switch field {
	case "address":
		ls.Push(lua.LString(a.Address))
	case "local_part", "domain":
		parsed, err := policy.ParseAddress(a.Address)
		switch {
		case err != nil:
			ls.Push(lua.LNil)
		case field == "domain":
			ls.Push(lua.LString(parsed.Domain))
		default:
			ls.Push(lua.LString(parsed.LocalPart))
		}
	case "params":
		lt := ls.NewTable()
		for k, v := range a.Parameters {
			lt.RawSetString(k, lua.LString(v))
		}
		ls.Push(lt)
	default:
		// Unknown field.
		ls.Push(lua.LNil)
	}

	return 1
}

// readOnlyNewIndex rejects assignments to fields of request bindings.
func readOnlyNewIndex(typeName string) lua.LGFunction {
	return func(ls *lua.LState) int {
		ls.RaiseError("%s is read-only, cannot set %q", typeName, ls.CheckString(2))
		return 0
	}
}
