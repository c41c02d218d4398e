// Package ingestion turns uploaded or fetched job-posting files into clean
// text ready for extraction.
package ingestion

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Accepted document mimetypes.
const (
	MimeTypePlain    = "text/plain"
	MimeTypeMarkdown = "text/markdown"
	MimeTypeHTML     = "text/html"
)

// DefaultMaxFileSizeMB is the default upload limit.
const DefaultMaxFileSizeMB = 10

// AcceptedMimeTypes returns the mimetypes ParseDocument understands.
func AcceptedMimeTypes() []string {
	return []string{MimeTypePlain, MimeTypeMarkdown, MimeTypeHTML}
}

// UnsupportedMimeTypeError is returned for documents of a type that cannot be parsed.
type UnsupportedMimeTypeError struct {
	MimeType string
}

func (e *UnsupportedMimeTypeError) Error() string {
	return fmt.Sprintf("unsupported mimetype %q (accepted: %s)", e.MimeType, strings.Join(AcceptedMimeTypes(), ", "))
}

// FileTooLargeError is returned when a document exceeds the size limit.
type FileTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("document is %d bytes, limit is %d bytes", e.Size, e.Limit)
}

// Document is a parsed document.
type Document struct {
	Text     string
	Metadata *Metadata
}

// DetectMimeType guesses the mimetype from the file extension, falling back
// to content sniffing.
func DetectMimeType(filename string, content []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".txt", ".text":
		return MimeTypePlain
	case ".md", ".markdown":
		return MimeTypeMarkdown
	case ".html", ".htm":
		return MimeTypeHTML
	}
	return normalizeMimeType(http.DetectContentType(content))
}

func normalizeMimeType(mimeType string) string {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(mimeType))
	}
	return mediaType
}

// ParseDocument returns the clean text of content. mimeType may carry
// parameters such as a charset.
func ParseDocument(content []byte, mimeType string) (string, error) {
	return parse(content, normalizeMimeType(mimeType), "")
}

func parse(content []byte, mimeType, source string) (string, error) {
	switch mimeType {
	case MimeTypePlain, MimeTypeMarkdown:
		if !utf8.Valid(content) {
			return "", fmt.Errorf("document is not valid UTF-8 text")
		}
		return CleanText(string(content)), nil
	case MimeTypeHTML:
		return HTMLText(content, source)
	default:
		return "", &UnsupportedMimeTypeError{MimeType: mimeType}
	}
}

// Parse parses content from source, which may be a file path or URL. An empty
// mimeType is detected from the source name and content. A positive maxBytes
// rejects larger documents.
func Parse(content []byte, mimeType, source string, maxBytes int64) (*Document, error) {
	if maxBytes > 0 && int64(len(content)) > maxBytes {
		return nil, &FileTooLargeError{Size: int64(len(content)), Limit: maxBytes}
	}
	if mimeType == "" {
		mimeType = DetectMimeType(source, content)
	}
	mimeType = normalizeMimeType(mimeType)

	text, err := parse(content, mimeType, source)
	if err != nil {
		return nil, err
	}

	meta := NewMetadata(text, source, mimeType, len(content))
	if p := DetectPlatform(source); p != PlatformUnknown {
		meta.Platform = string(p)
	}
	return &Document{Text: text, Metadata: meta}, nil
}

// LoadFile reads and parses the document at path.
func LoadFile(path string, maxBytes int64) (*Document, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %w", err)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if maxBytes > 0 && info.Size() > maxBytes {
		return nil, &FileTooLargeError{Size: info.Size(), Limit: maxBytes}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(content, "", path, maxBytes)
}

// MaxBytes converts a limit in megabytes to bytes. Zero or less means no limit.
func MaxBytes(mb int) int64 {
	if mb <= 0 {
		return 0
	}
	return int64(mb) << 20
}
