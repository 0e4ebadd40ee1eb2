package builtin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/portsdriver/internal/filesource"
	"github.com/dshills/portsdriver/internal/message"
	"github.com/dshills/portsdriver/internal/port"
)

// ErrFileTooLarge indicates a file exceeds Deps.MaxFileSize.
var ErrFileTooLarge = errors.New("builtin: file exceeds size limit")

// readFile starts an asynchronous read of the first file on the element, or
// of the referenced file, and returns immediately. The reply carries the
// request tag on success and FileReadError on failure. A missing element
// produces a diagnostic and no reply.
func (b *Builtins) readFile(in port.Sender, c message.FileRead) {
	var file filesource.File

	if c.FileRef != "" {
		f, err := b.deps.Files.Resolve(c.FileRef)
		if err != nil {
			b.logger.Warn("could not resolve file reference",
				zap.String("id", c.ID), zap.String("ref", c.FileRef), zap.Error(err))
			b.replyError(in, c, c.FileRef, err)
			return
		}
		file = f
	} else {
		files, ok := b.deps.Files.Files(c.ID)
		if !ok {
			b.logger.Warn("could not find node with id", zap.String("id", c.ID))
			return
		}
		if len(files) == 0 {
			b.logger.Warn("no file selected", zap.String("id", c.ID))
			return
		}
		// Only the first file is read.
		file = files[0]
	}

	b.reads.Add(1)
	go func() {
		defer b.reads.Done()

		data, err := b.load(file)
		if err != nil {
			b.logger.Warn("file read failed",
				zap.String("id", c.ID), zap.String("filename", file.Name), zap.Error(err))
			b.replyError(in, c, file.Name, err)
			return
		}

		reply, err := message.FileContents(c.Encoding, c.ID, encode(c.Encoding, file.Name, data), file.Name)
		if err != nil {
			b.logger.Error("encode reply", zap.String("tag", c.Tag()), zap.Error(err))
			return
		}
		in.Send(reply)
	}()
}

func (b *Builtins) load(file filesource.File) ([]byte, error) {
	if file.Open == nil {
		return nil, fmt.Errorf("open %s: no content", file.Name)
	}
	rc, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r io.Reader = rc
	if limit := b.deps.MaxFileSize; limit > 0 {
		r = io.LimitReader(rc, limit+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if limit := b.deps.MaxFileSize; limit > 0 && int64(len(data)) > limit {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

func (b *Builtins) replyError(in port.Sender, c message.FileRead, filename string, cause error) {
	reply, err := message.FileError(c.Encoding, c.ID, filename, cause)
	if err != nil {
		b.logger.Error("encode reply", zap.String("tag", message.TagFileReadError), zap.Error(err))
		return
	}
	in.Send(reply)
}

// encode renders file contents the way the matching FileReader method does.
// Array buffers travel as base64 since JSON has no byte type.
func encode(enc message.Encoding, name string, data []byte) string {
	switch enc {
	case message.DataURL:
		return "data:" + mediaType(name, data) + ";base64," + base64.StdEncoding.EncodeToString(data)
	case message.Text:
		return strings.ToValidUTF8(string(data), "�")
	default:
		return base64.StdEncoding.EncodeToString(data)
	}
}

// mediaType guesses from the extension, then from the content.
func mediaType(name string, data []byte) string {
	mt := mime.TypeByExtension(filepath.Ext(name))
	if mt == "" {
		if len(data) == 0 {
			return "application/octet-stream"
		}
		mt = http.DetectContentType(data)
	}
	mt, _, _ = strings.Cut(mt, ";")
	return strings.TrimSpace(mt)
}
