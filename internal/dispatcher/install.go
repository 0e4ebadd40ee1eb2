package dispatcher

import "strings"

// InstallPrefix marks a tag as an install-time hook.
const InstallPrefix = "Install"

// IsInstallTag returns true if tag names an install hook.
func IsInstallTag(tag string) bool {
	return strings.HasPrefix(tag, InstallPrefix)
}

// Hook is an install hook found in a plugin table.
type Hook struct {
	// Plugin is the index of the plugin in the order given to Install.
	Plugin int

	// Tag is the hook's tag.
	Tag string

	// Handler is invoked once with the inbound sender and a nil payload.
	Handler Handler
}

// InstallHooks lists the install hooks of plugins in the order Install runs
// them: plugins in supplied order, then each plugin's tags in lexical order.
// Every plugin's hooks are listed, including those whose tag a later plugin
// redefines.
func InstallHooks(plugins ...Table) []Hook {
	var hooks []Hook
	for i, p := range plugins {
		for _, tag := range p.Tags() {
			if IsInstallTag(tag) {
				hooks = append(hooks, Hook{Plugin: i, Tag: tag, Handler: p[tag]})
			}
		}
	}
	return hooks
}
