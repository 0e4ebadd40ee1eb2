// Package plugin assembles the handler tables a dispatcher is installed
// with: the built-in table first, then each configured Lua script in order,
// so scripts override built-ins tag by tag.
//
// Script paths may name files or directories. A directory contributes its
// *.lua files in name order, and each subdirectory holding an init.lua (or
// plugin.lua) contributes that entry point:
//
//	plugins/
//	├── 10-analytics.lua
//	├── 20-theme.lua
//	└── uploads/
//	    └── init.lua
//
// Usage:
//
//	set := plugin.NewSet(plugin.WithLogger(logger))
//	if err := set.Load(cfg.Plugins.Scripts...); err != nil {
//	    return err
//	}
//	defer set.Close()
//
//	d.Install(pair.Outbound(), pair.Sender(), set.Tables(builtins)...)
package plugin
