package convert

import (
	"context"
	"errors"
	"io"

	"github.com/iconidentify/filegrab/pkg/ffmpeg"
)

// FFmpegConverter re-encodes convertible downloads with ffmpeg while they
// stream. The output length is unknown in advance.
type FFmpegConverter struct {
	transcoder *ffmpeg.Transcoder
}

// NewFFmpegConverter creates a converter using the ffmpeg binary at path,
// or the one in PATH when path is empty.
func NewFFmpegConverter(path string) (*FFmpegConverter, error) {
	t, err := ffmpeg.NewTranscoder(path)
	if err != nil {
		return nil, err
	}
	return &FFmpegConverter{transcoder: t}, nil
}

// Name implements Converter.
func (c *FFmpegConverter) Name() string { return "ffmpeg" }

// Convert implements Converter.
func (c *FFmpegConverter) Convert(ctx context.Context, in *Input, format string) (*Output, error) {
	f, err := NormalizeFormat(format)
	if err != nil {
		in.Body.Close()
		return nil, err
	}
	if !Convertible(in.FileName, f) {
		return passThrough(in), nil
	}

	encoded, err := c.transcoder.Transcode(ctx, in.Body, f)
	if err != nil {
		in.Body.Close()
		return nil, err
	}

	return &Output{
		Body:          &pipeline{ReadCloser: encoded, source: in.Body},
		FileName:      TargetName(in.FileName, f),
		ContentType:   ContentTypeFor(f),
		ContentLength: -1,
	}, nil
}

// pipeline closes the encoder output and its source together.
type pipeline struct {
	io.ReadCloser
	source io.Closer
}

func (p *pipeline) Close() error {
	// Source first so the stdin copy into ffmpeg unblocks.
	srcErr := p.source.Close()
	return errors.Join(p.ReadCloser.Close(), srcErr)
}
