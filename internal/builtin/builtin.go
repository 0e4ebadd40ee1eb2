package builtin

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/dispatcher"
	"github.com/dshills/portsdriver/internal/filesource"
	"github.com/dshills/portsdriver/internal/localstore"
	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

// StyleElementID is the id of the style element UpdateCss maintains.
const StyleElementID = "elm-ports-driver-css"

// Document receives title and stylesheet updates.
type Document interface {
	SetTitle(title string)
	UpsertStyle(id, css string)
}

// FileSource supplies files for FileRead* messages.
type FileSource interface {
	// Files returns the files selected on an element.
	Files(elementID string) ([]filesource.File, bool)

	// Resolve returns the file a direct reference names.
	Resolve(ref string) (filesource.File, error)
}

// Deps are the collaborators the handlers act on.
type Deps struct {
	Logger   *zap.Logger
	Document Document
	Files    FileSource
	Storage  localstore.Store

	// Context scopes storage calls. Defaults to context.Background().
	Context context.Context

	// MaxFileSize bounds file reads in bytes. Zero means no limit.
	MaxFileSize int64

	// ListenerBuffer is the number of storage changes a listener queues
	// while the application is not reading. Further changes are dropped.
	// Defaults to DefaultListenerBuffer.
	ListenerBuffer int
}

// DefaultListenerBuffer is the default Deps.ListenerBuffer.
const DefaultListenerBuffer = 256

// Builtins holds the state shared by the built-in handlers.
type Builtins struct {
	deps   Deps
	logger *zap.Logger
	app    *zap.Logger

	reads sync.WaitGroup

	mu       sync.Mutex
	cancels  []func()
	detached bool
}

// New creates the built-in plugin.
func New(deps Deps) *Builtins {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if deps.Context == nil {
		deps.Context = context.Background()
	}
	if deps.ListenerBuffer <= 0 {
		deps.ListenerBuffer = DefaultListenerBuffer
	}
	return &Builtins{
		deps:   deps,
		logger: logger.Named("builtin"),
		app:    logger.Named("app"),
	}
}

// Plugin returns the built-in handler table for deps.
func Plugin(deps Deps) dispatcher.Table {
	return New(deps).Table()
}

// Table returns the handler table. Tags whose collaborator is missing are
// omitted.
func (b *Builtins) Table() dispatcher.Table {
	table := make(dispatcher.Table)
	for _, tag := range message.BuiltinTags() {
		if !b.available(tag) {
			continue
		}
		tag := tag
		table[tag] = func(in port.Sender, payload json.RawMessage) {
			b.handle(in, tag, payload)
		}
	}
	return table
}

func (b *Builtins) available(tag string) bool {
	switch tag {
	case message.TagSetTitle, message.TagUpdateCss:
		return b.deps.Document != nil
	case message.TagLocalStorageGetItem, message.TagLocalStorageSetItem,
		message.TagLocalStorageRemoveItem, message.TagInstallLocalStorageListener:
		return b.deps.Storage != nil
	}
	if message.IsFileRead(tag) {
		return b.deps.Files != nil
	}
	return true
}

// handle decodes the payload into its command and performs it.
func (b *Builtins) handle(in port.Sender, tag string, payload json.RawMessage) {
	cmd, err := message.DecodePayload(tag, payload)
	if err != nil {
		b.logger.Warn("invalid payload", zap.String("tag", tag), zap.Error(err))
		return
	}

	switch c := cmd.(type) {
	case message.Log:
		b.app.Info("log", zap.ByteString("payload", c.Payload))
	case message.SetTitle:
		b.deps.Document.SetTitle(c.Title)
	case message.UpdateCss:
		b.deps.Document.UpsertStyle(StyleElementID, c.CSS)
	case message.FileRead:
		b.readFile(in, c)
	case message.LocalStorageGetItem:
		b.getItem(in, c)
	case message.LocalStorageSetItem:
		if err := b.deps.Storage.Set(b.deps.Context, c.Key, c.Value); err != nil {
			b.logger.Error("local storage set failed", zap.String("key", c.Key), zap.Error(err))
		}
	case message.LocalStorageRemoveItem:
		if err := b.deps.Storage.Remove(b.deps.Context, c.Key); err != nil {
			b.logger.Error("local storage remove failed", zap.String("key", c.Key), zap.Error(err))
		}
	case message.InstallLocalStorageListener:
		b.listen(in)
	default:
		b.logger.Error("unhandled command", zap.String("tag", cmd.Tag()))
	}
}

// Wait blocks until in-flight file reads have replied.
func (b *Builtins) Wait() {
	b.reads.Wait()
}

// Close cancels storage listeners. Replies already in flight may still be
// sent; callers that need quiescence call Wait after Close.
func (b *Builtins) Close() {
	b.mu.Lock()
	cancels := b.cancels
	b.cancels = nil
	b.detached = true
	b.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
}
