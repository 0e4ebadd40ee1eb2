package lua

import (
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Sandbox restricts Lua execution to safe operations.
type Sandbox struct {
	L      *lua.LState
	bridge *Bridge
	logger *zap.Logger

	modules map[string]lua.LGFunction
}

// NewSandbox creates a new sandbox for the Lua state.
func NewSandbox(L *lua.LState, bridge *Bridge, logger *zap.Logger) *Sandbox {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Sandbox{
		L:      L,
		bridge: bridge,
		logger: logger,
	}
	s.modules = map[string]lua.LGFunction{
		"string": s.global("string"),
		"table":  s.global("table"),
		"math":   s.global("math"),
		"json":   s.openJSON,
	}
	return s
}

// Install sets up the sandbox restrictions.
func (s *Sandbox) Install() {
	// Each of these loads code from outside the plugin script.
	dangerousFuncs := []string{
		"dofile",
		"loadfile",
		"load",
		"loadstring",
	}
	for _, name := range dangerousFuncs {
		s.L.SetGlobal(name, lua.LNil)
	}

	s.installSafePrint()
	s.installSafeRequire()
}

// installSafePrint routes print to the logger.
func (s *Sandbox) installSafePrint() {
	s.L.SetGlobal("print", s.L.NewFunction(func(L *lua.LState) int {
		parts := make([]string, 0, L.GetTop())
		for i := 1; i <= L.GetTop(); i++ {
			parts = append(parts, L.ToStringMeta(L.Get(i)).String())
		}
		s.logger.Info(strings.Join(parts, "\t"), zap.String("source", L.Where(1)))
		return 0
	}))
}

// installSafeRequire replaces require with a lookup of the modules the
// sandbox provides. Nothing is ever loaded from disk.
func (s *Sandbox) installSafeRequire() {
	loaded := s.L.NewTable()

	s.L.SetGlobal("require", s.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)

		if mod := loaded.RawGetString(name); mod != lua.LNil {
			L.Push(mod)
			return 1
		}

		open, ok := s.modules[name]
		if !ok {
			L.RaiseError("module %q is not available (have %s)", name, strings.Join(s.moduleNames(), ", "))
			return 0
		}

		L.Push(L.NewFunction(open))
		L.Call(0, 1)
		mod := L.Get(-1)
		loaded.RawSetString(name, mod)
		return 1
	}))
}

func (s *Sandbox) moduleNames() []string {
	names := make([]string, 0, len(s.modules))
	for name := range s.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *Sandbox) global(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(L.GetGlobal(name))
		return 1
	}
}

// openJSON builds the json module.
func (s *Sandbox) openJSON(L *lua.LState) int {
	mod := L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"encode": func(L *lua.LState) int {
			data, err := s.bridge.ToJSON(L.CheckAny(1))
			if err != nil {
				L.RaiseError("json.encode: %s", err.Error())
				return 0
			}
			L.Push(lua.LString(data))
			return 1
		},
		"decode": func(L *lua.LState) int {
			v, err := s.bridge.DecodeJSON([]byte(L.CheckString(1)))
			if err != nil {
				L.RaiseError("json.decode: %s", err.Error())
				return 0
			}
			L.Push(v)
			return 1
		},
	})
	mod.RawSetString("null", s.bridge.Null)
	L.Push(mod)
	return 1
}
