package builtin

import (
	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/localstore"
	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

func (b *Builtins) getItem(in port.Sender, c message.LocalStorageGetItem) {
	var value *string
	v, ok, err := b.deps.Storage.Get(b.deps.Context, c.Key)
	switch {
	case err != nil:
		b.logger.Error("local storage get failed", zap.String("key", c.Key), zap.Error(err))
	case ok:
		value = &v
	}

	reply, err := message.StorageItem(c.Key, value)
	if err != nil {
		b.logger.Error("encode reply", zap.String("tag", c.Tag()), zap.Error(err))
		return
	}
	in.Send(reply)
}

// listen forwards storage changes made elsewhere as LocalStorageChange
// messages until Close. Changes are queued and sent from a goroutine of
// their own, so a slow application never holds up the session that wrote.
func (b *Builtins) listen(in port.Sender) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.detached {
		return
	}

	queue := make(chan message.Message, b.deps.ListenerBuffer)
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case msg := <-queue:
				in.Send(msg)
			case <-stop:
				return
			}
		}
	}()

	unsubscribe := b.deps.Storage.Subscribe(func(c localstore.Change) {
		msg, err := message.StorageChange(c.Key, c.Value)
		if err != nil {
			b.logger.Error("encode change", zap.String("key", c.Key), zap.Error(err))
			return
		}
		select {
		case queue <- msg:
		default:
			b.logger.Warn("storage listener queue full, dropping change",
				zap.String("key", c.Key), zap.Int("buffer", cap(queue)))
		}
	})
	b.cancels = append(b.cancels, func() {
		unsubscribe()
		close(stop)
	})
}
