package message

import (
	"github.com/tidwall/sjson"
)

// FileContents builds the reply to a successful file read. contents is the
// already encoded representation: a data URL, the text, or base64 bytes.
func FileContents(enc Encoding, id, contents, filename string) (Message, error) {
	var (
		payload []byte
		err     error
	)
	if payload, err = sjson.SetBytes(payload, "id", id); err != nil {
		return Message{}, err
	}
	if payload, err = sjson.SetBytes(payload, "contents", contents); err != nil {
		return Message{}, err
	}
	if payload, err = sjson.SetBytes(payload, "filename", filename); err != nil {
		return Message{}, err
	}
	return Raw(enc.Tag(), payload), nil
}

// FileError builds the reply sent when a file read fails.
func FileError(enc Encoding, id, filename string, cause error) (Message, error) {
	var (
		payload []byte
		err     error
	)
	fields := []struct{ path, value string }{
		{"id", id},
		{"encoding", enc.String()},
		{"filename", filename},
		{"error", cause.Error()},
	}
	for _, f := range fields {
		if payload, err = sjson.SetBytes(payload, f.path, f.value); err != nil {
			return Message{}, err
		}
	}
	return Raw(TagFileReadError, payload), nil
}

// StorageItem builds the reply to LocalStorageGetItem. A nil value encodes
// as null, the way a missing key reads in the browser.
func StorageItem(key string, value *string) (Message, error) {
	payload, err := keyValue(key, value)
	if err != nil {
		return Message{}, err
	}
	return Raw(TagLocalStorageGetItem, payload), nil
}

// StorageChange builds a LocalStorageChange notification. A nil value means
// the key was removed.
func StorageChange(key string, value *string) (Message, error) {
	payload, err := keyValue(key, value)
	if err != nil {
		return Message{}, err
	}
	return Raw(TagLocalStorageChange, payload), nil
}

func keyValue(key string, value *string) ([]byte, error) {
	payload, err := sjson.SetBytes(nil, "key", key)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return sjson.SetRawBytes(payload, "value", []byte("null"))
	}
	return sjson.SetBytes(payload, "value", *value)
}
