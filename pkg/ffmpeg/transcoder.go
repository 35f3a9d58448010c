package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
)

// Transcoder re-encodes media streams by piping them through ffmpeg.
type Transcoder struct {
	ffmpegPath string
}

// NewTranscoder creates a transcoder. An empty path looks up ffmpeg in PATH.
func NewTranscoder(path string) (*Transcoder, error) {
	if path == "" {
		path = "ffmpeg"
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &Transcoder{ffmpegPath: resolved}, nil
}

// Path returns the resolved ffmpeg binary.
func (t *Transcoder) Path() string {
	return t.ffmpegPath
}

// Args returns the ffmpeg arguments that read from stdin and write format
// to stdout. Only formats that can be muxed to a non-seekable output are
// supported.
func Args(format string) ([]string, error) {
	args := []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0"}

	switch strings.ToLower(format) {
	case "mp3":
		args = append(args,
			"-vn", // No video
			"-acodec", "libmp3lame",
			"-b:a", "192k",
			"-f", "mp3",
		)
	case "mp4":
		// Fragmented output; a regular mp4 needs to seek back to write moov.
		args = append(args,
			"-c", "copy",
			"-movflags", "frag_keyframe+empty_moov",
			"-f", "mp4",
		)
	default:
		return nil, fmt.Errorf("unsupported output format %q", format)
	}

	return append(args, "pipe:1"), nil
}

// Transcode starts ffmpeg reading from in and returns its output. The
// process is stopped when ctx is done or the returned reader is closed.
func (t *Transcoder) Transcode(ctx context.Context, in io.Reader, format string) (io.ReadCloser, error) {
	args, err := Args(format)
	if err != nil {
		return nil, err
	}

	cmd := exec.CommandContext(ctx, t.ffmpegPath, args...)
	cmd.Stdin = in
	p := &process{cmd: cmd}
	cmd.Stderr = &p.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	p.stdout = stdout

	return p, nil
}

// process is the stdout side of a running ffmpeg.
type process struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer

	once    sync.Once
	waitErr error
}

func (p *process) Read(buf []byte) (int, error) {
	n, err := p.stdout.Read(buf)
	if errors.Is(err, io.EOF) {
		if werr := p.wait(); werr != nil {
			return n, werr
		}
	}
	return n, err
}

func (p *process) Close() error {
	p.stdout.Close()
	if p.cmd.ProcessState == nil && p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	err := p.wait()
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		// Killed on early close
		return nil
	}
	return err
}

func (p *process) wait() error {
	p.once.Do(func() {
		if err := p.cmd.Wait(); err != nil {
			msg := strings.TrimSpace(p.stderr.String())
			if msg != "" {
				p.waitErr = fmt.Errorf("ffmpeg: %w: %s", err, msg)
			} else {
				p.waitErr = fmt.Errorf("ffmpeg: %w", err)
			}
		}
	})
	return p.waitErr
}
