// Package ws hosts driver sessions over WebSocket.
//
// Each connection is one hosting application instance: it gets its own
// channel pair, dispatcher, document model, file selections and storage
// session, and its own copy of the configured Lua plugins. Storage is
// shared between connections through the server's hub, so a write in one
// session reaches the storage listeners of the others.
//
// Frames are JSON text messages with a "kind" field.
//
// Client to server:
//
//	{"kind":"message","message":{"tag":"SetTitle","payload":"Inbox"}}
//	{"kind":"select","id":"upload","files":["reports/q3.csv"]}
//
// Server to client:
//
//	{"kind":"session","id":"6f1c..."}
//	{"kind":"message","message":{"tag":"LocalStorageGetItem","payload":{...}}}
//	{"kind":"dom","op":{"kind":"title","value":"Inbox"}}
//	{"kind":"error","error":"..."}
package ws
