//go:build js && wasm

package browser

import (
	"context"
	"fmt"
	"syscall/js"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/builtin"
	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/plugin/lua"
	"github.com/dshills/portsdriver/internal/port"
)

// Script is a Lua plugin embedded in the page.
type Script struct {
	Name   string
	Source string
}

// Options configure Install.
type Options struct {
	Logger *zap.Logger

	// Scripts are loaded after the built-ins, in order.
	Scripts []Script

	// Plugins are Go handler tables merged after the scripts.
	Plugins []dispatcher.Table

	// Dispatcher defaults to dispatcher.DefaultConfig().
	Dispatcher *dispatcher.Config

	// BufferSize sizes the channel pair.
	BufferSize int
}

// Driver is the driver installed on one application.
type Driver struct {
	pair       *port.Pair
	ports      *Ports
	builtins   *builtin.Builtins
	scripts    []*lua.Plugin
	dispatcher *dispatcher.Dispatcher
	logger     *zap.Logger

	cancel context.CancelFunc
	done   chan struct{}
}

// Install binds the driver to app and starts dispatching. It may be called
// once per application.
func Install(app js.Value, opts Options) (*Driver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := dispatcher.DefaultConfig()
	if opts.Dispatcher != nil {
		cfg = *opts.Dispatcher
	}

	d := &Driver{
		pair:   port.NewPair(opts.BufferSize),
		logger: logger,
		done:   make(chan struct{}),
	}

	for _, s := range opts.Scripts {
		p, err := lua.LoadPluginString(s.Name, s.Source, lua.WithLogger(logger.With(zap.String("script", s.Name))))
		if err != nil {
			d.closeScripts()
			return nil, err
		}
		d.scripts = append(d.scripts, p)
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.builtins = builtin.New(builtin.Deps{
		Logger:   logger,
		Document: NewDocument(),
		Files:    NewFiles(),
		Storage:  NewLocalStorage(),
		Context:  ctx,
	})

	tables := []dispatcher.Table{d.builtins.Table()}
	for _, p := range d.scripts {
		tables = append(tables, p.Table())
	}
	tables = append(tables, opts.Plugins...)

	d.dispatcher = dispatcher.New(cfg, dispatcher.WithLogger(logger))
	if err := d.dispatcher.Install(d.pair.Outbound(), d.pair.Sender(), tables...); err != nil {
		d.release()
		return nil, err
	}

	ports, err := BindPorts(app, d.pair, logger)
	if err != nil {
		d.release()
		return nil, err
	}
	d.ports = ports

	go d.run(ctx)
	logger.Info("driver installed", zap.Strings("tags", d.dispatcher.Tags()))
	return d, nil
}

func (d *Driver) run(ctx context.Context) {
	defer close(d.done)
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic, driver stopped", zap.Any("panic", r))
		}
	}()
	if err := d.dispatcher.Run(ctx); err != nil && ctx.Err() == nil {
		d.logger.Error("dispatch loop stopped", zap.Error(err))
	}
}

// Done is closed when the dispatch loop ends.
func (d *Driver) Done() <-chan struct{} {
	return d.done
}

// Tags returns the routable tags.
func (d *Driver) Tags() []string {
	return d.dispatcher.Tags()
}

// Close unbinds the ports and stops dispatching.
func (d *Driver) Close() {
	d.ports.Release()
	d.release()
	<-d.done
	d.builtins.Wait()
	d.closeScripts()
}

func (d *Driver) release() {
	d.builtins.Close()
	d.cancel()
	d.pair.Close()
}

func (d *Driver) closeScripts() {
	for _, p := range d.scripts {
		if err := p.Close(); err != nil {
			d.logger.Warn("closing script", zap.String("script", p.Name()), zap.Error(err))
		}
	}
}

// ScriptsFromPage collects <script type="text/x-lua"> elements. A script's
// data-name attribute, else its id, names it.
func ScriptsFromPage() []Script {
	nodes := js.Global().Get("document").Call("querySelectorAll", `script[type="text/x-lua"]`)
	n := nodes.Get("length").Int()

	scripts := make([]Script, 0, n)
	for i := 0; i < n; i++ {
		el := nodes.Call("item", i)
		name := el.Call("getAttribute", "data-name")
		if !truthy(name) || name.String() == "" {
			name = el.Get("id")
		}
		label := fmt.Sprintf("script-%d", i)
		if truthy(name) && name.String() != "" {
			label = name.String()
		}
		scripts = append(scripts, Script{Name: label, Source: el.Get("textContent").String()})
	}
	return scripts
}
