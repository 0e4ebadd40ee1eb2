//go:build js && wasm

// Package browser hosts the driver inside a web page compiled to
// WebAssembly. It binds the application's output and input ports, the
// document title, a style element, window.localStorage and file inputs.
//
// Callbacks registered with JavaScript run on the browser event loop, so
// nothing here waits for a JavaScript event from inside one.
package browser
