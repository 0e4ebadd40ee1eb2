package message

// Built-in tags.
const (
	TagLog                         = "Log"
	TagSetTitle                    = "SetTitle"
	TagUpdateCss                   = "UpdateCss"
	TagFileReadAsDataURL           = "FileReadAsDataURL"
	TagFileReadAsTextFile          = "FileReadAsTextFile"
	TagFileReadAsArrayBuffer       = "FileReadAsArrayBuffer"
	TagLocalStorageGetItem         = "LocalStorageGetItem"
	TagLocalStorageSetItem         = "LocalStorageSetItem"
	TagLocalStorageRemoveItem      = "LocalStorageRemoveItem"
	TagInstallLocalStorageListener = "InstallLocalStorageListener"
)

// Reply-only tags.
const (
	TagLocalStorageChange = "LocalStorageChange"
	TagFileReadError      = "FileReadError"
)

// fileReadPrefix is shared by the three file-read tags.
const fileReadPrefix = "FileRead"

// Encoding is the representation a file read produces.
type Encoding uint8

const (
	// DataURL produces a base64 data: URL.
	DataURL Encoding = iota
	// Text produces the file contents as a string.
	Text
	// ArrayBuffer produces the raw bytes.
	ArrayBuffer
)

// String returns the tag suffix for the encoding.
func (e Encoding) String() string {
	switch e {
	case DataURL:
		return "AsDataURL"
	case Text:
		return "AsTextFile"
	case ArrayBuffer:
		return "AsArrayBuffer"
	default:
		return "unknown"
	}
}

// Tag returns the request (and reply) tag for the encoding.
func (e Encoding) Tag() string {
	return fileReadPrefix + e.String()
}

// EncodingForTag returns the encoding selected by a file-read tag.
func EncodingForTag(tag string) (Encoding, bool) {
	switch tag {
	case TagFileReadAsDataURL:
		return DataURL, true
	case TagFileReadAsTextFile:
		return Text, true
	case TagFileReadAsArrayBuffer:
		return ArrayBuffer, true
	}
	return 0, false
}

// BuiltinTags returns every tag handled by a built-in command, in a stable order.
func BuiltinTags() []string {
	return []string{
		TagLog,
		TagSetTitle,
		TagUpdateCss,
		TagFileReadAsDataURL,
		TagFileReadAsTextFile,
		TagFileReadAsArrayBuffer,
		TagLocalStorageGetItem,
		TagLocalStorageSetItem,
		TagLocalStorageRemoveItem,
		TagInstallLocalStorageListener,
	}
}

// IsFileRead reports whether tag names one of the file-read commands.
func IsFileRead(tag string) bool {
	_, ok := EncodingForTag(tag)
	return ok
}
