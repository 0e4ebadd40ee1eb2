package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dshills/portsdriver/internal/builtin"
	"github.com/dshills/portsdriver/internal/config"
	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/document"
	"github.com/dshills/portsdriver/internal/filesource"
	"github.com/dshills/portsdriver/internal/logging"
	"github.com/dshills/portsdriver/internal/plugin"
	"github.com/dshills/portsdriver/internal/port"
	"github.com/dshills/portsdriver/internal/storage"
)

// CheckCmd validates a deployment without serving it.
type CheckCmd struct {
	Scripts []string `arg:"" optional:"" help:"Extra plugin scripts or directories, loaded after the configured ones" type:"path"`
}

func (c *CheckCmd) Run(cli *CLI) error {
	return c.check(cli.Config, os.Stdout)
}

// check installs every plugin into a throwaway dispatcher, so install
// hooks run against an in-memory host.
func (c *CheckCmd) check(configPath string, w io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return err
	}

	set := plugin.NewSet(
		plugin.WithLogger(logger),
		plugin.WithExecutionTimeout(time.Duration(cfg.Plugins.TimeoutMS)*time.Millisecond),
	)
	defer set.Close()

	scripts := append(append([]string{}, cfg.Plugins.Scripts...), c.Scripts...)
	if err := set.Load(scripts...); err != nil {
		return err
	}

	hub := storage.NewHub(storage.NewMemory())
	defer hub.Close()

	builtins := builtin.New(builtin.Deps{
		Logger:   logger,
		Document: document.New(),
		Files:    filesource.NewRegistry(cfg.Files.Root),
		Storage:  hub.Session(),
	})
	defer builtins.Close()

	d := dispatcher.New(dispatcher.DefaultConfig(), dispatcher.WithLogger(logger))
	if err := d.Install(nil, port.Discard, set.Tables(builtins.Table())...); err != nil {
		return err
	}

	for _, p := range set.Plugins() {
		fmt.Fprintf(w, "plugin %s: %d handlers\n", p.Name(), len(p.Tags()))
	}
	for _, tag := range d.Tags() {
		fmt.Fprintln(w, tag)
	}
	return nil
}
