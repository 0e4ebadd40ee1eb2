package message

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Command is one of the built-in message kinds. The set is closed: only the
// types in this file implement it.
type Command interface {
	// Tag returns the tag the command was decoded from.
	Tag() string

	command()
}

// Log writes its payload as a diagnostic.
type Log struct {
	Payload json.RawMessage
}

// SetTitle sets the document title.
type SetTitle struct {
	Title string
}

// UpdateCss creates or replaces the driver's stylesheet.
type UpdateCss struct {
	CSS string
}

// FileRead reads the first file selected on an element, or a file reference.
type FileRead struct {
	Encoding Encoding

	// ID is the element id the reply is correlated with.
	ID string

	// FileRef, when set, names the file directly instead of looking up the
	// files selected on element ID.
	FileRef string
}

// LocalStorageGetItem reads a key.
type LocalStorageGetItem struct {
	Key string
}

// LocalStorageSetItem writes a key.
type LocalStorageSetItem struct {
	Key   string
	Value string
}

// LocalStorageRemoveItem deletes a key.
type LocalStorageRemoveItem struct {
	Key string
}

// InstallLocalStorageListener subscribes to storage changes made elsewhere.
type InstallLocalStorageListener struct{}

func (Log) Tag() string                         { return TagLog }
func (SetTitle) Tag() string                    { return TagSetTitle }
func (UpdateCss) Tag() string                   { return TagUpdateCss }
func (c FileRead) Tag() string                  { return c.Encoding.Tag() }
func (LocalStorageGetItem) Tag() string         { return TagLocalStorageGetItem }
func (LocalStorageSetItem) Tag() string         { return TagLocalStorageSetItem }
func (LocalStorageRemoveItem) Tag() string      { return TagLocalStorageRemoveItem }
func (InstallLocalStorageListener) Tag() string { return TagInstallLocalStorageListener }

func (Log) command()                         {}
func (SetTitle) command()                    {}
func (UpdateCss) command()                   {}
func (FileRead) command()                    {}
func (LocalStorageGetItem) command()         {}
func (LocalStorageSetItem) command()         {}
func (LocalStorageRemoveItem) command()      {}
func (InstallLocalStorageListener) command() {}

// Decode converts a message into its built-in command.
// It returns ErrUnknownTag for tags outside the built-in set and an error
// wrapping ErrInvalidPayload when the payload has the wrong shape.
func Decode(msg Message) (Command, error) {
	return DecodePayload(msg.Tag, msg.Payload)
}

// DecodePayload is Decode for a tag and payload held separately.
func DecodePayload(tag string, payload []byte) (Command, error) {
	if len(payload) > 0 && !gjson.ValidBytes(payload) {
		return nil, fmt.Errorf("%w: %s: malformed JSON", ErrInvalidPayload, tag)
	}
	p := gjson.ParseBytes(payload)

	switch tag {
	case TagLog:
		return Log{Payload: json.RawMessage(payload)}, nil

	case TagSetTitle:
		s, err := stringPayload(tag, p)
		if err != nil {
			return nil, err
		}
		return SetTitle{Title: s}, nil

	case TagUpdateCss:
		s, err := stringPayload(tag, p)
		if err != nil {
			return nil, err
		}
		return UpdateCss{CSS: s}, nil

	case TagFileReadAsDataURL, TagFileReadAsTextFile, TagFileReadAsArrayBuffer:
		enc, _ := EncodingForTag(tag)
		return decodeFileRead(tag, enc, p)

	case TagLocalStorageGetItem:
		key, err := stringPayload(tag, p)
		if err != nil {
			return nil, err
		}
		return LocalStorageGetItem{Key: key}, nil

	case TagLocalStorageSetItem:
		if !p.IsObject() {
			return nil, fmt.Errorf("%w: %s: expected {key, value}", ErrInvalidPayload, tag)
		}
		key := p.Get("key")
		if key.Type != gjson.String {
			return nil, fmt.Errorf("%w: %s: key must be a string", ErrInvalidPayload, tag)
		}
		return LocalStorageSetItem{Key: key.Str, Value: storageValue(p.Get("value"))}, nil

	case TagLocalStorageRemoveItem:
		key, err := stringPayload(tag, p)
		if err != nil {
			return nil, err
		}
		return LocalStorageRemoveItem{Key: key}, nil

	case TagInstallLocalStorageListener:
		return InstallLocalStorageListener{}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnknownTag, tag)
}

func decodeFileRead(tag string, enc Encoding, p gjson.Result) (Command, error) {
	switch {
	case p.Type == gjson.String:
		if p.Str == "" {
			return nil, fmt.Errorf("%w: %s: empty element id", ErrInvalidPayload, tag)
		}
		return FileRead{Encoding: enc, ID: p.Str}, nil
	case p.IsObject():
		id := p.Get("id")
		if id.Type != gjson.String || id.Str == "" {
			return nil, fmt.Errorf("%w: %s: id must be a non-empty string", ErrInvalidPayload, tag)
		}
		ref := p.Get("fileRef")
		if ref.Exists() && ref.Type != gjson.String {
			return nil, fmt.Errorf("%w: %s: fileRef must be a string", ErrInvalidPayload, tag)
		}
		return FileRead{Encoding: enc, ID: id.Str, FileRef: ref.Str}, nil
	}
	return nil, fmt.Errorf("%w: %s: expected element id or {id, fileRef}", ErrInvalidPayload, tag)
}

func stringPayload(tag string, p gjson.Result) (string, error) {
	if p.Type != gjson.String {
		return "", fmt.Errorf("%w: %s: expected string", ErrInvalidPayload, tag)
	}
	return p.Str, nil
}

// storageValue coerces a JSON value to the string a key/value store holds:
// strings are kept, anything else is stored as its JSON text.
func storageValue(v gjson.Result) string {
	if v.Type == gjson.String {
		return v.Str
	}
	if !v.Exists() {
		return "null"
	}
	return v.Raw
}
