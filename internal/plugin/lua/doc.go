// Package lua runs Lua scripts as driver plugins.
//
// This package wraps the gopher-lua library to provide:
//   - Sandboxed Lua state management
//   - JSON payload conversion between Go and Lua
//   - Handler tables built from a script's return value
//   - Execution timeouts
//
// # Plugins
//
// A plugin script returns a table mapping message tags to functions:
//
//	return {
//	    Ping = function(inbound, payload)
//	        inbound:send("Pong", { seen = payload })
//	    end,
//	    InstallGreeting = function(inbound)
//	        inbound:send("Greeting", "hello")
//	    end,
//	}
//
// Load it and hand its table to the dispatcher:
//
//	p, err := lua.LoadPlugin("plugins/ping.lua", lua.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	d.Install(pair.Outbound(), pair.Sender(), builtins, p.Table())
//
// Payloads arrive as Lua values: objects become tables with string keys,
// arrays become sequences, null becomes nil. Values passed to inbound:send
// are converted back to JSON the same way.
//
// # Sandbox
//
// The Sandbox restricts Lua code execution by:
//   - Opening only the base, table, string and math libraries
//   - Removing dofile, loadfile, load and loadstring
//   - Replacing require with a lookup of built-in modules only
//   - Routing print to the structured logger
//
// The "json" module is available through require and offers json.encode
// and json.decode.
//
// # Errors
//
// A Lua error raised inside a handler is not returned; it panics with a
// *CallError so the dispatcher treats it like any other handler fault.
package lua
