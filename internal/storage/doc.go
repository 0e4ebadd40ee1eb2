// Package storage provides the persistent key/value store behind the
// LocalStorage* messages.
//
// A Backend holds the data: NewMemory for tests and ephemeral servers,
// OpenBolt for a single-file database, OpenDir for a directory with one file
// per key. A Hub shares one backend between sessions the way a browser shares
// an origin's localStorage between tabs: a change made through one session is
// announced to the subscribers of every other session, never to its own.
//
//	hub := storage.NewHub(backend, storage.WithLogger(logger))
//	tab := hub.Session()
//	cancel := tab.Subscribe(func(c storage.Change) { ... })
//	defer cancel()
//
// The directory backend can also watch for edits made by other processes and
// announce them to every session.
package storage
