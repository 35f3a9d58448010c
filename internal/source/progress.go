package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// progressReader wraps a transfer body to log progress and abort the
// upstream connection when no data arrives for idleTimeout.
type progressReader struct {
	reader      io.ReadCloser
	cancel      context.CancelFunc
	total       int64
	read        int64
	idleTimeout time.Duration
	idle        *time.Timer
	stalled     bool
	lastLog     time.Time
	logger      *slog.Logger
	url         string
	mu          sync.Mutex
	closed      bool
}

func newProgressReader(r io.ReadCloser, cancel context.CancelFunc, total int64, idleTimeout time.Duration, logger *slog.Logger, url string) *progressReader {
	p := &progressReader{
		reader:      r,
		cancel:      cancel,
		total:       total,
		idleTimeout: idleTimeout,
		lastLog:     time.Now(),
		logger:      logger,
		url:         url,
	}
	if idleTimeout > 0 {
		p.idle = time.AfterFunc(idleTimeout, p.stall)
	}
	return p
}

func (p *progressReader) stall() {
	p.mu.Lock()
	p.stalled = true
	p.mu.Unlock()
	p.cancel()
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)

	p.mu.Lock()
	defer p.mu.Unlock()

	if n > 0 {
		p.read += int64(n)
		if p.idle != nil {
			p.idle.Reset(p.idleTimeout)
		}
		if time.Since(p.lastLog) > 30*time.Second {
			p.logProgress()
			p.lastLog = time.Now()
		}
	}

	if err != nil && err != io.EOF && p.stalled {
		return n, fmt.Errorf("transfer stalled: no data received for %v", p.idleTimeout)
	}

	return n, err
}

func (p *progressReader) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.idle != nil {
		p.idle.Stop()
	}
	if p.read > 0 {
		p.logProgress()
	}
	p.mu.Unlock()

	err := p.reader.Close()
	p.cancel()
	return err
}

func (p *progressReader) logProgress() {
	if p.total > 0 {
		pct := float64(p.read) / float64(p.total) * 100
		p.logger.Info("transfer progress",
			"url", p.url,
			"read_bytes", p.read,
			"total_bytes", p.total,
			"percent", fmt.Sprintf("%.1f%%", pct),
		)
	} else {
		p.logger.Info("transfer progress",
			"url", p.url,
			"read_bytes", p.read,
		)
	}
}
