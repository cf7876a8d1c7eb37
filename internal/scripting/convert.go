package scripting

import (
	"fmt"
	"sort"

	lua "github.com/yuin/gopher-lua"
	"gopkg.in/yaml.v3"
)

// Fields is the value type of script-declared components: a bag of named
// numbers, strings, booleans and nested tables.
type Fields map[string]any

func cloneFields(f Fields) Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = cloneAny(v)
	}
	return out
}

func cloneAny(v any) any {
	switch v := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, x := range v {
			out[k] = cloneAny(x)
		}
		return out
	case Fields:
		return cloneFields(v)
	case []any:
		out := make([]any, len(v))
		for i, x := range v {
			out[i] = cloneAny(x)
		}
		return out
	default:
		return v
	}
}

// plain turns any component value into nested maps, slices and scalars by
// going through its YAML form, so Lua sees the same field names a scene
// file uses.
func plain(v any) (any, error) {
	var node yaml.Node
	if err := node.Encode(v); err != nil {
		return nil, err
	}
	var out any
	if err := node.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// assign decodes src into the value target points at.
func assign(target any, src any) error {
	var node yaml.Node
	if err := node.Encode(src); err != nil {
		return err
	}
	return node.Decode(target)
}

func toLua(L *lua.LState, v any) lua.LValue {
	switch v := v.(type) {
	case nil:
		return lua.LNil
	case bool:
		return lua.LBool(v)
	case string:
		return lua.LString(v)
	case int:
		return lua.LNumber(v)
	case int64:
		return lua.LNumber(v)
	case uint64:
		return lua.LNumber(v)
	case float64:
		return lua.LNumber(v)
	case float32:
		return lua.LNumber(v)
	case map[string]any:
		t := L.NewTable()
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			t.RawSetString(k, toLua(L, v[k]))
		}
		return t
	case Fields:
		return toLua(L, map[string]any(v))
	case []any:
		t := L.CreateTable(len(v), 0)
		for _, x := range v {
			t.Append(toLua(L, x))
		}
		return t
	default:
		return lua.LString(fmt.Sprint(v))
	}
}

func fromLua(v lua.LValue) any {
	switch v := v.(type) {
	case lua.LBool:
		return bool(v)
	case lua.LString:
		return string(v)
	case lua.LNumber:
		return float64(v)
	case *lua.LTable:
		if n := v.Len(); n > 0 && v.MaxN() == n {
			out := make([]any, 0, n)
			for i := 1; i <= n; i++ {
				out = append(out, fromLua(v.RawGetInt(i)))
			}
			return out
		}
		out := make(map[string]any)
		v.ForEach(func(k, x lua.LValue) {
			if ks, ok := k.(lua.LString); ok {
				out[string(ks)] = fromLua(x)
			}
		})
		return out
	default:
		return nil
	}
}
