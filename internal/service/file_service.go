package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/iconidentify/filegrab/internal/convert"
	"github.com/iconidentify/filegrab/internal/domain"
	"github.com/iconidentify/filegrab/internal/source"
)

// FileService looks up remote files and opens downloads for them.
type FileService struct {
	registry  *source.Registry
	converter convert.Converter
	logger    *slog.Logger
}

// NewFileService creates a new file service.
func NewFileService(registry *source.Registry, converter convert.Converter, logger *slog.Logger) *FileService {
	return &FileService{
		registry:  registry,
		converter: converter,
		logger:    logger,
	}
}

// DownloadRequest is a request to relay a remote file.
type DownloadRequest struct {
	URL    string
	Format string
}

// Download is an open transfer ready to be relayed to the caller.
type Download struct {
	ID            string
	Body          io.ReadCloser
	FileName      string
	ContentType   string
	ContentLength int64 // -1 when unknown
	Note          string
	Source        string
}

// Close closes the transfer body.
func (d *Download) Close() error {
	return d.Body.Close()
}

// Resolvers returns the names of the configured resolvers in match order.
func (s *FileService) Resolvers() []string {
	return s.registry.Names()
}

// Lookup returns metadata about the file at rawURL without downloading it.
func (s *FileService) Lookup(ctx context.Context, rawURL string) (*domain.FileInfo, error) {
	u, err := domain.ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	res, err := s.registry.Match(u)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	info, err := res.Lookup(ctx, u)
	if err != nil {
		s.logger.Debug("lookup failed",
			"url", u.String(),
			"resolver", res.Name(),
			"error", err,
		)
		return nil, err
	}

	s.logger.Debug("lookup complete",
		"url", u.String(),
		"resolver", res.Name(),
		"file_type", info.FileType,
		"size", info.Size,
		"duration", time.Since(start),
	)

	return info, nil
}

// Open starts the transfer of req.URL in the requested format. The caller
// must close the returned Download.
func (s *FileService) Open(ctx context.Context, req DownloadRequest) (*Download, error) {
	if req.URL == "" {
		return nil, domain.ErrMissingURL
	}
	u, err := domain.ParseURL(req.URL)
	if err != nil {
		return nil, err
	}
	format, err := convert.NormalizeFormat(req.Format)
	if err != nil {
		return nil, err
	}

	res, err := s.registry.Match(u)
	if err != nil {
		return nil, err
	}

	id := uuid.New().String()
	stream, err := res.Open(ctx, u, format)
	if err != nil {
		return nil, err
	}

	dl := &Download{
		ID:            id,
		Body:          stream.Body,
		FileName:      stream.FileName,
		ContentType:   stream.ContentType,
		ContentLength: stream.ContentLength,
		Source:        res.Name(),
	}

	if !stream.Final {
		out, err := s.converter.Convert(ctx, &convert.Input{
			Body:          stream.Body,
			FileName:      stream.FileName,
			ContentType:   stream.ContentType,
			ContentLength: stream.ContentLength,
		}, format)
		if err != nil {
			return nil, fmt.Errorf("convert to %s: %w", format, err)
		}
		dl.Body = out.Body
		dl.FileName = out.FileName
		dl.ContentType = out.ContentType
		dl.ContentLength = out.ContentLength
		dl.Note = out.Note
	}

	s.logger.Info("download started",
		"transfer_id", id,
		"url", u.String(),
		"resolver", res.Name(),
		"format", format,
		"converter", s.converter.Name(),
		"filename", dl.FileName,
		"size", dl.ContentLength,
	)

	return dl, nil
}
