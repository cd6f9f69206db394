// Package ocr validates uploaded screenshots and turns them into text for the
// support prompt.
package ocr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"path/filepath"
	"strings"
)

// DefaultMaxBytes caps attachment size when no limit is configured.
const DefaultMaxBytes = 10 << 20

var (
	ErrEmpty           = errors.New("attachment is empty")
	ErrTooLarge        = errors.New("attachment is too large")
	ErrUnsupportedType = errors.New("attachment must be a png, jpg or jpeg image")
	ErrInvalidImage    = errors.New("attachment is not a readable image")
)

var allowedExt = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
}

var mimeAliases = map[string]string{
	"image/jpg":   "image/jpeg",
	"image/pjpeg": "image/jpeg",
	"image/x-png": "image/png",
}

// Image is a validated screenshot.
type Image struct {
	Name   string
	MIME   string
	Data   []byte
	Width  int
	Height int
}

// Decode checks that data is a png or jpeg no larger than maxBytes and reads
// its dimensions. declaredMIME may be empty; the sniffed type always wins.
func Decode(name, declaredMIME string, data []byte, maxBytes int64) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooLarge, len(data), maxBytes)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if _, ok := allowedExt[ext]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedType, name)
	}
	if m := normalizeMIME(declaredMIME); m != "" && m != "application/octet-stream" && !isAllowedMIME(m) {
		return nil, fmt.Errorf("%w: declared %s", ErrUnsupportedType, m)
	}

	sniffed := http.DetectContentType(data)
	if !isAllowedMIME(sniffed) {
		return nil, fmt.Errorf("%w: content is %s", ErrUnsupportedType, sniffed)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return &Image{
		Name:   filepath.Base(name),
		MIME:   "image/" + format,
		Data:   data,
		Width:  cfg.Width,
		Height: cfg.Height,
	}, nil
}

func normalizeMIME(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if alias, ok := mimeAliases[m]; ok {
		return alias
	}
	return m
}

func isAllowedMIME(m string) bool {
	switch normalizeMIME(m) {
	case "image/png", "image/jpeg":
		return true
	}
	return false
}
