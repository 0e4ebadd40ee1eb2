package lua

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/tidwall/gjson"
	lua "github.com/yuin/gopher-lua"
)

// ErrInvalidJSON is returned by DecodeJSON for malformed input.
var ErrInvalidJSON = errors.New("lua: invalid JSON")

// nullKey is the registry field holding a state's null sentinel.
const nullKey = "portsdriver.json.null"

// Bridge converts between JSON payloads and Lua values.
type Bridge struct {
	L *lua.LState

	// Null stands for a JSON null inside an array, where nil would leave a
	// hole. Scripts see it as json.null. Bridges on one state share it.
	Null *lua.LUserData
}

// NewBridge creates a new Bridge for the given Lua state.
func NewBridge(L *lua.LState) *Bridge {
	reg := L.Get(lua.RegistryIndex).(*lua.LTable)
	null, ok := reg.RawGetString(nullKey).(*lua.LUserData)
	if !ok {
		null = L.NewUserData()
		reg.RawSetString(nullKey, null)
	}
	return &Bridge{L: L, Null: null}
}

// DecodeJSON parses data into a Lua value. Empty input decodes to nil.
func (b *Bridge) DecodeJSON(data []byte) (lua.LValue, error) {
	if len(data) == 0 {
		return lua.LNil, nil
	}
	if !gjson.ValidBytes(data) {
		return lua.LNil, ErrInvalidJSON
	}
	return b.FromJSON(gjson.ParseBytes(data)), nil
}

// FromJSON converts a parsed JSON value to a Lua value. Array elements that
// are null become b.Null so indexes and length survive. Null object members
// become nil, which drops the key.
func (b *Bridge) FromJSON(r gjson.Result) lua.LValue {
	switch r.Type {
	case gjson.True:
		return lua.LTrue
	case gjson.False:
		return lua.LFalse
	case gjson.Number:
		return lua.LNumber(r.Num)
	case gjson.String:
		return lua.LString(r.Str)
	case gjson.JSON:
		t := b.L.NewTable()
		if r.IsArray() {
			i := 1
			r.ForEach(func(_, v gjson.Result) bool {
				if v.Type == gjson.Null {
					t.RawSetInt(i, b.Null)
				} else {
					t.RawSetInt(i, b.FromJSON(v))
				}
				i++
				return true
			})
			return t
		}
		r.ForEach(func(k, v gjson.Result) bool {
			t.RawSetString(k.Str, b.FromJSON(v))
			return true
		})
		return t
	default:
		return lua.LNil
	}
}

// ToJSON encodes a Lua value as JSON.
func (b *Bridge) ToJSON(lv lua.LValue) ([]byte, error) {
	v, err := b.ToGoValue(lv)
	if err != nil {
		return nil, err
	}
	return json.Marshal(v)
}

// ToGoValue converts a Lua value to a JSON-shaped Go value. Tables become
// slices when their keys are exactly 1..n, maps otherwise.
func (b *Bridge) ToGoValue(lv lua.LValue) (any, error) {
	return b.toGoValueWithVisited(lv, make(map[*lua.LTable]bool))
}

// toGoValueWithVisited converts a Lua value to a Go value, tracking the
// tables on the current path.
func (b *Bridge) toGoValueWithVisited(lv lua.LValue, visited map[*lua.LTable]bool) (any, error) {
	if lv == nil {
		return nil, nil
	}

	switch v := lv.(type) {
	case lua.LBool:
		return bool(v), nil
	case lua.LNumber:
		f := float64(v)
		if math.IsInf(f, 0) || math.IsNaN(f) {
			return nil, fmt.Errorf("lua: cannot encode number %v", f)
		}
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return int64(f), nil
		}
		return f, nil
	case lua.LString:
		return string(v), nil
	case *lua.LTable:
		if visited[v] {
			return nil, errors.New("lua: cannot encode circular table")
		}
		visited[v] = true
		defer delete(visited, v)
		return b.tableToGoWithVisited(v, visited)
	case *lua.LNilType:
		return nil, nil
	case *lua.LUserData:
		if v == b.Null {
			return nil, nil
		}
		return nil, fmt.Errorf("lua: cannot encode %s", lv.Type())
	default:
		return nil, fmt.Errorf("lua: cannot encode %s", lv.Type())
	}
}

// tableToGoWithVisited converts a Lua table to a slice or map.
func (b *Bridge) tableToGoWithVisited(t *lua.LTable, visited map[*lua.LTable]bool) (any, error) {
	// Sequential integer keys starting at 1 make an array.
	isArray := true
	maxN, count := 0, 0
	t.ForEach(func(k, _ lua.LValue) {
		count++
		if kn, ok := k.(lua.LNumber); ok {
			n := int(kn)
			if float64(n) == float64(kn) && n > 0 {
				if n > maxN {
					maxN = n
				}
				return
			}
		}
		isArray = false
	})

	if isArray && maxN > 0 && count == maxN {
		arr := make([]any, maxN)
		for i := 1; i <= maxN; i++ {
			v, err := b.toGoValueWithVisited(t.RawGetInt(i), visited)
			if err != nil {
				return nil, err
			}
			arr[i-1] = v
		}
		return arr, nil
	}

	m := make(map[string]any, count)
	var err error
	t.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		var key string
		switch kv := k.(type) {
		case lua.LString:
			key = string(kv)
		case lua.LNumber:
			key = strconv.FormatFloat(float64(kv), 'f', -1, 64)
		default:
			err = fmt.Errorf("lua: cannot encode %s key", k.Type())
			return
		}
		var gv any
		if gv, err = b.toGoValueWithVisited(v, visited); err == nil {
			m[key] = gv
		}
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}
