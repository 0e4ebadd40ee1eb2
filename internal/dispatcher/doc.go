// Package dispatcher routes tagged messages from a hosting application to
// plugin handlers.
//
// The dispatcher is the core of the driver. Plugins are plain tables mapping
// a message tag to a handler; the dispatcher merges them, runs their install
// hooks once, then consumes the application's outbound stream and invokes the
// matching handler for every message.
//
// # Tables
//
// A Table maps tags to handlers:
//
//	logPlugin := dispatcher.Table{
//	    "Log": func(in port.Sender, payload json.RawMessage) {
//	        logger.Info("app", zap.ByteString("payload", payload))
//	    },
//	}
//
// Merge combines tables in order. When two tables define the same tag the
// later one wins silently, so user plugins listed after the built-ins override
// them.
//
// # Install hooks
//
// Tags beginning with "Install" are lifecycle hooks rather than message
// handlers. Install calls each of them exactly once, with the inbound sender
// and a nil payload, before any message is dispatched. Hooks run per plugin
// in supplied order and, within a plugin, in lexical tag order. A hook that
// panics aborts Install; the panic is not recovered.
//
// # Lifecycle
//
// A Dispatcher is Uninstalled until Install succeeds and Installed afterwards.
// Install is one-shot: a second call returns ErrAlreadyInstalled instead of
// subscribing twice.
//
//	d := dispatcher.New(dispatcher.DefaultConfig(), dispatcher.WithLogger(logger))
//	if err := d.Install(pair.Outbound(), pair.Sender(), builtins, userPlugin); err != nil {
//	    return err
//	}
//	return d.Run(ctx)
//
// Run dispatches messages strictly one after another; each handler returns
// before the next message is read. Handlers that start asynchronous work
// (file reads, storage listeners) reply later through the inbound sender.
//
// Messages whose tag has no handler go to the fallback, which logs them by
// default.
//
// # Metrics
//
// With Config.EnableMetrics the dispatcher counts dispatches, fallbacks and
// recovered panics per tag and keeps a latency histogram for each handler.
// Config.SlowThreshold logs individual handlers that overrun it.
package dispatcher
