// Package convert applies the requested output format to a download.
package convert

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/iconidentify/filegrab/internal/config"
	"github.com/iconidentify/filegrab/internal/domain"
)

// Output formats accepted by the download endpoint.
const (
	FormatOriginal = "original"
	FormatMP3      = "mp3"
	FormatMP4      = "mp4"
)

// Input is a download before format handling.
type Input struct {
	Body          io.ReadCloser
	FileName      string
	ContentType   string
	ContentLength int64
}

// Output is what gets sent to the caller.
type Output struct {
	Body          io.ReadCloser
	FileName      string
	ContentType   string
	ContentLength int64 // -1 when unknown

	// Note describes a limitation of the conversion, sent as X-Format-Note.
	Note string
}

// Converter turns an Input into the requested format. Implementations
// take ownership of in.Body.
type Converter interface {
	Name() string
	Convert(ctx context.Context, in *Input, format string) (*Output, error)
}

// New returns the converter selected by cfg.Mode.
func New(cfg config.ConvertConfig) (Converter, error) {
	switch cfg.Mode {
	case config.ConvertModeRename, "":
		return RenameConverter{}, nil
	case config.ConvertModeFFmpeg:
		return NewFFmpegConverter(cfg.FFmpegPath)
	}
	return nil, fmt.Errorf("unknown convert mode %q", cfg.Mode)
}

// NormalizeFormat lower-cases format and maps the empty string to
// FormatOriginal. Unknown formats return domain.ErrUnsupportedFormat.
func NormalizeFormat(format string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(format))
	switch f {
	case "", FormatOriginal:
		return FormatOriginal, nil
	case FormatMP3, FormatMP4:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, format)
}

// Convertible reports whether fileName is a video container that format
// would change.
func Convertible(fileName, format string) bool {
	f, err := NormalizeFormat(format)
	if err != nil || f == FormatOriginal {
		return false
	}
	ext := domain.ExtensionOf(fileName)
	if domain.ClassifyExtension(ext) != domain.FileTypeVideo {
		return false
	}
	return ext != f
}

// TargetName replaces the extension of fileName with format.
func TargetName(fileName, format string) string {
	base := strings.TrimSuffix(fileName, path.Ext(fileName))
	return base + "." + strings.ToLower(format)
}

// ContentTypeFor returns the MIME type of a converted format.
func ContentTypeFor(format string) string {
	switch strings.ToLower(format) {
	case FormatMP3:
		return "audio/mpeg"
	case FormatMP4:
		return "video/mp4"
	}
	return "application/octet-stream"
}

func passThrough(in *Input) *Output {
	return &Output{
		Body:          in.Body,
		FileName:      in.FileName,
		ContentType:   in.ContentType,
		ContentLength: in.ContentLength,
	}
}
