// Package main is the entry point for the portsdriver server.
package main

import (
	"github.com/alecthomas/kong"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI defines the command-line interface.
type CLI struct {
	Config string `name:"config" short:"c" help:"Path to configuration file (.toml, .yaml)" type:"path"`

	Serve   ServeCmd   `cmd:"" default:"1" help:"Serve the driver over WebSocket"`
	Check   CheckCmd   `cmd:"" help:"Load configuration and plugins, then print the routable tags"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("portsdriver"),
		kong.Description("Message-dispatch bridge between Elm ports and host capabilities"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli)
	ctx.FatalIfErrorf(err)
}
