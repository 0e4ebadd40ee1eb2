package lua

import (
	"context"
	"fmt"
	"sync"
	"time"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// DefaultExecutionTimeout bounds a single script run or handler call.
const DefaultExecutionTimeout = 5 * time.Second

// State wraps gopher-lua with a sandbox and serialized access.
//
// gopher-lua's LState is not goroutine-safe. Every operation goes through
// Do, which holds the state's mutex for the duration of the call.
type State struct {
	L *lua.LState

	mu sync.Mutex

	executionTimeout time.Duration
	logger           *zap.Logger

	sandbox *Sandbox
	bridge  *Bridge

	closed bool
}

// StateOption configures a State.
type StateOption func(*State)

// WithExecutionTimeout sets the timeout for each Lua run. Zero disables it.
func WithExecutionTimeout(d time.Duration) StateOption {
	return func(s *State) {
		s.executionTimeout = d
	}
}

// WithLogger sets the logger print writes to.
func WithLogger(logger *zap.Logger) StateOption {
	return func(s *State) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewState creates a new sandboxed Lua state.
func NewState(opts ...StateOption) *State {
	state := &State{
		executionTimeout: DefaultExecutionTimeout,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		opt(state)
	}
	state.logger = state.logger.Named("lua")

	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})
	state.L = L
	openSafeLibraries(L)

	state.bridge = NewBridge(L)
	state.sandbox = NewSandbox(L, state.bridge, state.logger)
	state.sandbox.Install()

	return state
}

// openSafeLibraries opens only safe Lua standard libraries.
func openSafeLibraries(L *lua.LState) {
	// print, type, pairs, ipairs, pcall, ...
	lua.OpenBase(L)

	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// io, os, debug and package stay closed.
}

// Do runs fn with exclusive access to the Lua state, under the execution
// timeout. Go panics inside fn are returned as errors.
func (s *State) Do(fn func(L *lua.LState) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStateClosed
	}
	if s.executionTimeout <= 0 {
		return doWithRecovery(s.L, fn)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.executionTimeout)
	defer cancel()
	s.L.SetContext(ctx)
	defer s.L.RemoveContext()

	err := doWithRecovery(s.L, fn)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %v", ErrExecutionTimeout, err)
	}
	return err
}

func doWithRecovery(L *lua.LState, fn func(L *lua.LState) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("lua panic: %v", r)
		}
	}()
	return fn(L)
}

// DoFile executes a Lua file and returns its first result.
func (s *State) DoFile(path string) (lua.LValue, error) {
	return s.exec(func(L *lua.LState) (*lua.LFunction, error) {
		return L.LoadFile(path)
	})
}

// DoString executes a Lua chunk and returns its first result.
func (s *State) DoString(code string) (lua.LValue, error) {
	return s.exec(func(L *lua.LState) (*lua.LFunction, error) {
		return L.LoadString(code)
	})
}

func (s *State) exec(load func(L *lua.LState) (*lua.LFunction, error)) (lua.LValue, error) {
	ret := lua.LValue(lua.LNil)
	err := s.Do(func(L *lua.LState) error {
		fn, err := load(L)
		if err != nil {
			return err
		}
		L.Push(fn)
		if err := L.PCall(0, 1, nil); err != nil {
			return err
		}
		ret = L.Get(-1)
		L.Pop(1)
		return nil
	})
	return ret, err
}

// Call calls fn with the values args builds. args runs under the state lock
// so it may allocate Lua values.
func (s *State) Call(fn *lua.LFunction, args func(L *lua.LState) ([]lua.LValue, error)) error {
	return s.Do(func(L *lua.LState) error {
		var values []lua.LValue
		if args != nil {
			var err error
			if values, err = args(L); err != nil {
				return err
			}
		}
		L.Push(fn)
		for _, v := range values {
			L.Push(v)
		}
		return L.PCall(len(values), 0, nil)
	})
}

// Bridge returns the value converter bound to this state. Its methods must
// be called from inside Do.
func (s *State) Bridge() *Bridge {
	return s.bridge
}

// Sandbox returns the sandbox installed on this state.
func (s *State) Sandbox() *Sandbox {
	return s.sandbox
}

// IsClosed returns true if the state has been closed.
func (s *State) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases all resources associated with the Lua state.
// After Close is called, all other methods will return ErrStateClosed.
func (s *State) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.L.Close()
	s.closed = true
	return nil
}
