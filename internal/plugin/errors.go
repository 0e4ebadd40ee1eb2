package plugin

import "errors"

// Errors returned while locating scripts.
var (
	// ErrNoEntryPoint indicates a plugin directory has no init.lua or
	// plugin.lua.
	ErrNoEntryPoint = errors.New("plugin: no entry point found")

	// ErrNotAScript indicates a file path without the .lua extension.
	ErrNotAScript = errors.New("plugin: not a Lua script")
)
