// Package builtin provides the driver's built-in plugin: logging, document
// title and stylesheet updates, file reads and local storage.
//
// Each handler decodes its payload into a message.Command and performs one
// side effect through an injected collaborator, so the plugin runs against
// a real browser, a remote page or an in-memory model alike:
//
//	b := builtin.New(builtin.Deps{
//	    Logger:   logger,
//	    Document: doc,
//	    Files:    files,
//	    Storage:  hub.Session(),
//	})
//	defer b.Close()
//	d.Install(pair.Outbound(), pair.Sender(), b.Table(), userPlugin)
//
// Handlers whose collaborator is nil are left out of the table, so their
// messages reach the dispatcher's fallback.
package builtin
