package workspace

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

var (
	// ErrOutsideRoot is returned by SafeRead for paths that resolve outside
	// the trusted root.
	ErrOutsideRoot = errors.New("path is outside the project root")
	errNotDir      = errors.New("not a directory")
)

const (
	MaxTextSize  = 5 << 20
	MaxImageSize = 10 << 20
)

// ContentKind is the shape of a SafeRead result.
type ContentKind string

const (
	ContentText        ContentKind = "text"
	ContentImage       ContentKind = "image"
	ContentUnsupported ContentKind = "unsupported"
)

// Content is the typed result of SafeRead. Text is set for text files,
// MIME and DataURL for images, Reason for unsupported files.
type Content struct {
	Kind    ContentKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	MIME    string      `json:"mime,omitempty"`
	DataURL string      `json:"data_url,omitempty"`
	Size    int64       `json:"size"`
	Reason  string      `json:"reason,omitempty"`
}

var imageTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
	".bmp":  "image/bmp",
	".ico":  "image/x-icon",
}

var binaryExtensions = map[string]bool{
	".tiff": true,
	".pdf":  true,
	".zip":  true,
	".rar":  true,
	".7z":   true,
	".mp4":  true,
	".mov":  true,
	".mp3":  true,
	".wav":  true,
}

// SafeRead reads path if it resolves inside root. Binary, oversized and
// NUL-containing files come back as ContentUnsupported, not as errors.
func SafeRead(root, path string) (Content, error) {
	resolved, err := Contain(root, path)
	if err != nil {
		return Content{}, err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return Content{}, err
	}
	if info.IsDir() {
		return unsupported(info.Size(), "is a directory"), nil
	}

	ext := strings.ToLower(filepath.Ext(resolved))
	if mime, ok := imageTypes[ext]; ok {
		if info.Size() > MaxImageSize {
			return unsupported(info.Size(), "image too large"), nil
		}
		data, err := os.ReadFile(resolved)
		if err != nil {
			return Content{}, err
		}
		return Content{
			Kind:    ContentImage,
			MIME:    mime,
			DataURL: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data),
			Size:    info.Size(),
		}, nil
	}
	if binaryExtensions[ext] {
		return unsupported(info.Size(), "binary file type "+ext), nil
	}
	if info.Size() > MaxTextSize {
		return unsupported(info.Size(), "file too large"), nil
	}

	data, err := os.ReadFile(resolved)
	if err != nil {
		return Content{}, err
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return unsupported(info.Size(), "binary content"), nil
	}
	text := string(data)
	if !utf8.ValidString(text) {
		text = strings.ToValidUTF8(text, "�")
	}
	return Content{Kind: ContentText, Text: text, Size: info.Size()}, nil
}

// Contain resolves path against root and fails with ErrOutsideRoot unless
// the result lies strictly inside root.
func Contain(root, path string) (string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(absRoot, path)
	}
	resolved := filepath.Clean(path)
	if !strings.HasPrefix(resolved, absRoot+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideRoot, path)
	}
	return resolved, nil
}

func unsupported(size int64, reason string) Content {
	return Content{Kind: ContentUnsupported, Size: size, Reason: reason}
}
