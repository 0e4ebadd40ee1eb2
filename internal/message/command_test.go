package message_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/portsdriver/internal/message"
)

func TestDecodeBuiltins(t *testing.T) {
	tests := []struct {
		name    string
		tag     string
		payload string
		want    message.Command
	}{
		{"log object", message.TagLog, `{"a":1}`, message.Log{Payload: json.RawMessage(`{"a":1}`)}},
		{"title", message.TagSetTitle, `"Inbox"`, message.SetTitle{Title: "Inbox"}},
		{"css", message.TagUpdateCss, `"body{margin:0}"`, message.UpdateCss{CSS: "body{margin:0}"}},
		{"file by element", message.TagFileReadAsDataURL, `"upload"`,
			message.FileRead{Encoding: message.DataURL, ID: "upload"}},
		{"file by ref", message.TagFileReadAsTextFile, `{"id":"upload","fileRef":"notes.txt"}`,
			message.FileRead{Encoding: message.Text, ID: "upload", FileRef: "notes.txt"}},
		{"file by id object", message.TagFileReadAsArrayBuffer, `{"id":"upload"}`,
			message.FileRead{Encoding: message.ArrayBuffer, ID: "upload"}},
		{"get", message.TagLocalStorageGetItem, `"k"`, message.LocalStorageGetItem{Key: "k"}},
		{"set string", message.TagLocalStorageSetItem, `{"key":"k","value":"v"}`,
			message.LocalStorageSetItem{Key: "k", Value: "v"}},
		{"set number", message.TagLocalStorageSetItem, `{"key":"k","value":42}`,
			message.LocalStorageSetItem{Key: "k", Value: "42"}},
		{"set missing value", message.TagLocalStorageSetItem, `{"key":"k"}`,
			message.LocalStorageSetItem{Key: "k", Value: "null"}},
		{"remove", message.TagLocalStorageRemoveItem, `"k"`, message.LocalStorageRemoveItem{Key: "k"}},
		{"listener", message.TagInstallLocalStorageListener, ``, message.InstallLocalStorageListener{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, err := message.Decode(message.Raw(tt.tag, []byte(tt.payload)))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
			assert.Equal(t, tt.tag, cmd.Tag())
		})
	}
}

func TestDecodeInvalidPayload(t *testing.T) {
	tests := []struct {
		tag     string
		payload string
	}{
		{message.TagSetTitle, `42`},
		{message.TagUpdateCss, `{"css":"x"}`},
		{message.TagFileReadAsDataURL, `""`},
		{message.TagFileReadAsDataURL, `{"fileRef":"a.txt"}`},
		{message.TagFileReadAsDataURL, `{"id":"x","fileRef":3}`},
		{message.TagLocalStorageGetItem, `null`},
		{message.TagLocalStorageSetItem, `"k"`},
		{message.TagLocalStorageSetItem, `{"key":1,"value":"v"}`},
		{message.TagSetTitle, `{"unterminated`},
	}

	for _, tt := range tests {
		t.Run(tt.tag+" "+tt.payload, func(t *testing.T) {
			_, err := message.Decode(message.Raw(tt.tag, []byte(tt.payload)))
			assert.ErrorIs(t, err, message.ErrInvalidPayload)
		})
	}
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := message.Decode(message.Raw("Resize", []byte(`{"w":1}`)))
	assert.ErrorIs(t, err, message.ErrUnknownTag)
}

func TestEncodingTags(t *testing.T) {
	for _, enc := range []message.Encoding{message.DataURL, message.Text, message.ArrayBuffer} {
		got, ok := message.EncodingForTag(enc.Tag())
		require.True(t, ok)
		assert.Equal(t, enc, got)
		assert.True(t, message.IsFileRead(enc.Tag()))
	}
	assert.False(t, message.IsFileRead(message.TagLog))
	assert.Equal(t, "FileReadAsTextFile", message.Text.Tag())
}
