// Package message defines the tagged envelope exchanged between a hosting
// application and the driver, and the closed set of commands the built-in
// handlers understand.
//
// Every message has the JSON shape
//
//	{"tag": "SetTitle", "payload": "Inbox (3)"}
//
// The tag selects a handler; the payload is opaque to the dispatcher and is
// handed to the handler byte-for-byte. Built-in handlers turn the payload into
// one of the Command variants with Decode:
//
//	cmd, err := message.Decode(msg)
//	switch c := cmd.(type) {
//	case message.SetTitle:
//	    doc.SetTitle(c.Title)
//	case message.UpdateCss:
//	    ...
//	}
//
// Tags outside the closed set decode to ErrUnknownTag; they belong to
// caller-supplied plugins.
package message
