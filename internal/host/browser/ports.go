//go:build js && wasm

package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"syscall/js"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

// ErrNoPorts indicates the application does not expose the expected ports.
var ErrNoPorts = errors.New("browser: app.ports.output and app.ports.input are required")

// Ports connects app.ports to a channel pair.
type Ports struct {
	output js.Value
	input  js.Value
	json   js.Value
	logger *zap.Logger

	subscriber js.Func
}

// BindPorts subscribes to app.ports.output, feeding pair's outbound stream,
// and forwards pair's inbound stream to app.ports.input until the pair
// closes.
func BindPorts(app js.Value, pair *port.Pair, logger *zap.Logger) (*Ports, error) {
	ports := app.Get("ports")
	if !truthy(ports) {
		return nil, ErrNoPorts
	}
	output, input := ports.Get("output"), ports.Get("input")
	if !truthy(output) || !truthy(input) {
		return nil, ErrNoPorts
	}

	p := &Ports{
		output: output,
		input:  input,
		json:   js.Global().Get("JSON"),
		logger: logger.Named("ports"),
	}
	p.subscriber = js.FuncOf(func(this js.Value, args []js.Value) any {
		if len(args) == 0 {
			return nil
		}
		msg, err := p.decode(args[0])
		if err != nil {
			p.logger.Warn("dropping malformed message", zap.Error(err))
			return nil
		}
		// The dispatcher drains the buffer without waiting on JavaScript.
		pair.Emit(msg)
		return nil
	})
	output.Call("subscribe", p.subscriber)

	go p.forward(pair)
	return p, nil
}

func (p *Ports) decode(v js.Value) (message.Message, error) {
	var msg message.Message
	raw := p.json.Call("stringify", v).String()
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return msg, err
	}
	if msg.Tag == "" {
		return msg, fmt.Errorf("message without tag: %s", raw)
	}
	return msg, nil
}

func (p *Ports) forward(pair *port.Pair) {
	for {
		select {
		case msg := <-pair.Inbound():
			p.send(msg)
		case <-pair.Done():
			return
		}
	}
}

func (p *Ports) send(msg message.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		p.logger.Error("encode message", zap.String("tag", msg.Tag), zap.Error(err))
		return
	}
	if err := catch(func() {
		p.input.Call("send", p.json.Call("parse", string(data)))
	}); err != nil {
		p.logger.Error("input port rejected message", zap.String("tag", msg.Tag), zap.Error(err))
	}
}

// Release unsubscribes from the output port.
func (p *Ports) Release() {
	if unsubscribe := p.output.Get("unsubscribe"); truthy(unsubscribe) {
		p.output.Call("unsubscribe", p.subscriber)
	}
	p.subscriber.Release()
}

func truthy(v js.Value) bool {
	return !v.IsUndefined() && !v.IsNull()
}

// catch converts a JavaScript exception raised during fn into an error.
func catch(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if jsErr, ok := r.(js.Error); ok {
				err = jsErr
				return
			}
			err = fmt.Errorf("%v", r)
		}
	}()
	fn()
	return nil
}
