//go:build js && wasm

// Command portsdriver-wasm installs the driver on window.app when loaded as
// WebAssembly. Lua plugins are read from <script type="text/x-lua"> elements
// and window.portsdriverLogLevel sets the log level.
package main

import (
	"fmt"
	"os"
	"syscall/js"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/host/browser"
	"github.com/dshills/portsdriver/internal/logging"
)

func main() {
	level := "info"
	if v := js.Global().Get("portsdriverLogLevel"); v.Type() == js.TypeString {
		level = v.String()
	}
	logger, err := logging.New(level, "console")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	app := js.Global().Get("app")
	if app.IsUndefined() || app.IsNull() {
		logger.Fatal("window.app is not defined")
	}

	cfg := dispatcher.DefaultConfig().WithPanicRecovery(true)
	driver, err := browser.Install(app, browser.Options{
		Logger:     logger,
		Scripts:    browser.ScriptsFromPage(),
		Dispatcher: &cfg,
	})
	if err != nil {
		logger.Fatal("install failed", zap.Error(err))
	}

	<-driver.Done()
}
