package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/iconidentify/filegrab/internal/domain"
	"github.com/iconidentify/filegrab/internal/history"
)

// Downloader opens a download through the server.
type Downloader interface {
	Download(ctx context.Context, rawURL, format string) (*Transfer, error)
}

// SinkFunc opens the destination of a transfer once its name is known.
type SinkFunc func(t *Transfer) (io.WriteCloser, error)

// Session drives one URL through validation and download, and records
// finished downloads in the history.
type Session struct {
	resolver   *Resolver
	downloader Downloader
	history    *history.Log
	logger     *slog.Logger

	mu       sync.Mutex
	state    domain.DownloadState
	onChange func(domain.DownloadState)
	// resolving is bumped whenever a Resolve starts or the session is
	// reset; a Resolve only applies its outcome while it is still current.
	resolving uint64
}

// NewSession creates an idle session. hist may be nil.
func NewSession(resolver *Resolver, downloader Downloader, hist *history.Log, logger *slog.Logger) *Session {
	return &Session{
		resolver:   resolver,
		downloader: downloader,
		history:    hist,
		logger:     logger,
		state:      domain.DownloadState{Status: domain.DownloadIdle},
	}
}

// OnChange registers fn to be called after every state change.
func (s *Session) OnChange(fn func(domain.DownloadState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// State returns a snapshot of the session.
func (s *Session) State() domain.DownloadState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Reset returns the session to idle and drops any pending lookup.
func (s *Session) Reset() {
	s.resolver.Invalidate()
	s.set(func(st *domain.DownloadState) error {
		s.resolving++
		*st = domain.DownloadState{Status: domain.DownloadIdle}
		return nil
	})
}

// Resolve validates rawURL and looks it up. A failed lookup still leaves
// the session ready with the inferred descriptor.
func (s *Session) Resolve(ctx context.Context, rawURL string) (*domain.FileDescriptor, error) {
	var seq uint64
	if err := s.moveTo(domain.DownloadValidating, func(st *domain.DownloadState) {
		s.resolving++
		seq = s.resolving
		st.Progress = 0
		st.Error = ""
		st.File = nil
	}); err != nil {
		return nil, err
	}

	res, err := s.resolver.Resolve(ctx, rawURL)
	if errors.Is(err, ErrStale) {
		return nil, err
	}
	if err != nil {
		if serr := s.set(func(st *domain.DownloadState) error {
			if s.resolving != seq {
				return ErrStale
			}
			st.Status = domain.DownloadError
			st.Error = errorMessage(err)
			return nil
		}); serr != nil {
			return nil, serr
		}
		return nil, err
	}

	file := *res.Descriptor
	if err := s.set(func(st *domain.DownloadState) error {
		// A newer Resolve or a Reset owns the state now.
		if s.resolving != seq {
			return ErrStale
		}
		if !st.Status.CanTransition(domain.DownloadReady) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, st.Status, domain.DownloadReady)
		}
		st.Status = domain.DownloadReady
		st.File = &file
		return nil
	}); err != nil {
		return nil, err
	}
	return res.Descriptor, nil
}

// Download transfers the resolved file in format and writes it to the
// sink. On success the download is added to the history.
func (s *Session) Download(ctx context.Context, format string, sink SinkFunc) (*domain.HistoryEntry, error) {
	if s.State().Status == domain.DownloadSuccess {
		if err := s.moveTo(domain.DownloadReady, nil); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	if s.state.Status != domain.DownloadReady || s.state.File == nil {
		status := s.state.Status
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: download from %s", domain.ErrInvalidTransition, status)
	}
	// The descriptor is frozen for the rest of the download.
	file := *s.state.File
	s.mu.Unlock()

	if err := s.moveTo(domain.DownloadDownloading, func(st *domain.DownloadState) {
		st.Progress = 0
		st.Error = ""
	}); err != nil {
		return nil, err
	}

	written, fileName, err := s.transfer(ctx, &file, format, sink)
	if err != nil {
		s.fail(err)
		return nil, err
	}

	if err := s.moveTo(domain.DownloadSuccess, func(st *domain.DownloadState) {
		st.Progress = 100
	}); err != nil {
		return nil, err
	}

	s.logger.Info("download saved",
		"url", file.URL,
		"filename", fileName,
		"bytes", written,
	)

	if s.history == nil {
		return nil, nil
	}
	if written > 0 && file.Size == 0 {
		file.Size = written
	}
	entry, err := s.history.Record(ctx, &file, fileName)
	if err != nil {
		// The file is on disk; a history failure must not fail the download.
		s.logger.Warn("failed to record download history", "error", err)
		return nil, nil
	}
	return &entry, nil
}

func (s *Session) transfer(ctx context.Context, file *domain.FileDescriptor, format string, sink SinkFunc) (int64, string, error) {
	t, err := s.downloader.Download(ctx, file.URL, format)
	if err != nil {
		return 0, "", err
	}
	defer t.Close()

	if t.FileName == "" {
		t.FileName = file.Name
	}

	dst, err := sink(t)
	if err != nil {
		return 0, "", fmt.Errorf("open destination: %w", err)
	}

	pw := &progressWriter{total: sizeOf(t, file.Size), report: s.setProgress}
	written, err := io.Copy(io.MultiWriter(dst, pw), t.Body)
	closeErr := dst.Close()
	if err != nil {
		return written, "", fmt.Errorf("%w: %v", domain.ErrStreamInterrupted, err)
	}
	if closeErr != nil {
		return written, "", fmt.Errorf("close destination: %w", closeErr)
	}
	return written, t.FileName, nil
}

func (s *Session) setProgress(pct int) {
	s.set(func(st *domain.DownloadState) error {
		if st.Status != domain.DownloadDownloading || st.Progress == pct {
			return errUnchanged
		}
		st.Progress = pct
		return nil
	})
}

func (s *Session) fail(err error) {
	s.set(func(st *domain.DownloadState) error {
		st.Status = domain.DownloadError
		st.Error = errorMessage(err)
		return nil
	})
}

func (s *Session) moveTo(next domain.DownloadStatus, mutate func(*domain.DownloadState)) error {
	return s.set(func(st *domain.DownloadState) error {
		if !st.Status.CanTransition(next) {
			return fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, st.Status, next)
		}
		st.Status = next
		if mutate != nil {
			mutate(st)
		}
		return nil
	})
}

var errUnchanged = errors.New("unchanged")

// set applies fn under the lock and notifies the observer outside of it.
func (s *Session) set(fn func(*domain.DownloadState) error) error {
	s.mu.Lock()
	if err := fn(&s.state); err != nil {
		s.mu.Unlock()
		if errors.Is(err, errUnchanged) {
			return nil
		}
		return err
	}
	snap := s.snapshotLocked()
	notify := s.onChange
	s.mu.Unlock()

	if notify != nil {
		notify(snap)
	}
	return nil
}

func (s *Session) snapshotLocked() domain.DownloadState {
	snap := s.state
	if s.state.File != nil {
		f := *s.state.File
		snap.File = &f
	}
	return snap
}

func errorMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return err.Error()
}

// progressWriter turns byte counts into whole percentages.
type progressWriter struct {
	total   int64
	written int64
	report  func(pct int)
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if p.total > 0 {
		pct := int(p.written * 100 / p.total)
		if pct > 100 {
			pct = 100
		}
		p.report(pct)
	}
	return len(b), nil
}
