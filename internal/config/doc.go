// Package config provides configuration management for portsdriver.
//
// Configuration is resolved in layers, later layers overriding earlier:
//
//  1. Built-in defaults (Default)
//  2. A configuration file, TOML or YAML by extension
//  3. Environment variables prefixed with PORTSDRIVER_
//
// The result is validated before it is returned.
//
// # Usage
//
//	cfg, err := config.Load("portsdriver.toml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// # File Format
//
//	[server]
//	addr = ":8080"
//	path = "/ws"
//	allowed_origins = ["https://app.example.com"]
//
//	[storage]
//	backend = "bolt"
//	path = "/var/lib/portsdriver/storage.db"
//
//	[plugins]
//	scripts = ["plugins"]
//
// # Environment
//
// Every setting has a variable named after its section and key, for example
// PORTSDRIVER_SERVER_ADDR, PORTSDRIVER_STORAGE_BACKEND or
// PORTSDRIVER_PLUGINS_SCRIPTS (comma separated).
package config
