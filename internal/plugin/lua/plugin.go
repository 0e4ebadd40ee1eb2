package lua

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"

	lua "github.com/yuin/gopher-lua"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

const inboundTypeName = "portsdriver.inbound"

// Plugin is a handler table defined by a Lua script.
type Plugin struct {
	name     string
	state    *State
	handlers map[string]*lua.LFunction
}

// LoadPlugin runs the script at path in a new state and collects the
// handler table it returns.
func LoadPlugin(path string, opts ...StateOption) (*Plugin, error) {
	return load(filepath.Base(path), opts, func(s *State) (lua.LValue, error) {
		return s.DoFile(path)
	})
}

// LoadPluginString is LoadPlugin for a script held in memory.
func LoadPluginString(name, src string, opts ...StateOption) (*Plugin, error) {
	return load(name, opts, func(s *State) (lua.LValue, error) {
		return s.DoString(src)
	})
}

func load(name string, opts []StateOption, run func(*State) (lua.LValue, error)) (*Plugin, error) {
	state := NewState(opts...)
	installInbound(state.L)

	ret, err := run(state)
	if err != nil {
		_ = state.Close()
		return nil, fmt.Errorf("lua: load %s: %w", name, err)
	}

	tbl, ok := ret.(*lua.LTable)
	if !ok {
		_ = state.Close()
		return nil, fmt.Errorf("%w: %s returned %s", ErrNotATable, name, ret.Type())
	}

	handlers := make(map[string]*lua.LFunction)
	tbl.ForEach(func(k, v lua.LValue) {
		if err != nil {
			return
		}
		tag, isString := k.(lua.LString)
		fn, isFunc := v.(*lua.LFunction)
		if !isString || !isFunc || tag == "" {
			err = fmt.Errorf("%w: %s: %s = %s", ErrInvalidHandler, name, k.String(), v.Type())
			return
		}
		handlers[string(tag)] = fn
	})
	if err != nil {
		_ = state.Close()
		return nil, err
	}

	return &Plugin{name: name, state: state, handlers: handlers}, nil
}

// Name returns the script name.
func (p *Plugin) Name() string {
	return p.name
}

// Tags returns the tags the script handles, sorted.
func (p *Plugin) Tags() []string {
	tags := make([]string, 0, len(p.handlers))
	for tag := range p.handlers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Table returns the script's handlers as a dispatcher table. Install*
// functions are called with the inbound port only; every other handler
// also receives the decoded payload.
func (p *Plugin) Table() dispatcher.Table {
	table := make(dispatcher.Table, len(p.handlers))
	for tag, fn := range p.handlers {
		tag, fn := tag, fn
		table[tag] = func(in port.Sender, payload json.RawMessage) {
			p.call(tag, fn, in, payload)
		}
	}
	return table
}

func (p *Plugin) call(tag string, fn *lua.LFunction, in port.Sender, payload json.RawMessage) {
	err := p.state.Call(fn, func(L *lua.LState) ([]lua.LValue, error) {
		args := []lua.LValue{newInbound(L, in)}
		if dispatcher.IsInstallTag(tag) {
			return args, nil
		}
		v, err := p.state.Bridge().DecodeJSON(payload)
		if err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return append(args, v), nil
	})
	if err != nil {
		panic(&CallError{Script: p.name, Tag: tag, Err: err})
	}
}

// Close releases the script's Lua state.
func (p *Plugin) Close() error {
	return p.state.Close()
}

// installInbound registers the metatable of inbound port values.
func installInbound(L *lua.LState) {
	mt := L.NewTypeMetatable(inboundTypeName)
	L.SetField(mt, "__index", L.SetFuncs(L.NewTable(), map[string]lua.LGFunction{
		"send": inboundSend,
	}))
}

func newInbound(L *lua.LState, in port.Sender) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = in
	L.SetMetatable(ud, L.GetTypeMetatable(inboundTypeName))
	return ud
}

// inboundSend implements inbound:send(tag, value).
func inboundSend(L *lua.LState) int {
	ud := L.CheckUserData(1)
	in, ok := ud.Value.(port.Sender)
	if !ok {
		L.ArgError(1, "inbound expected")
		return 0
	}
	tag := L.CheckString(2)

	var payload []byte
	if v := L.Get(3); v != lua.LNil {
		data, err := NewBridge(L).ToJSON(v)
		if err != nil {
			L.RaiseError("send %s: %s", tag, err.Error())
			return 0
		}
		payload = data
	}

	in.Send(message.Raw(tag, payload))
	return 0
}
