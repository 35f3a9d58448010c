package client

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/iconidentify/filegrab/internal/domain"
)

// ErrStale is returned by Resolve when a newer Resolve started before this
// one finished. Its result is discarded.
var ErrStale = errors.New("superseded by a newer lookup")

// DefaultDebounce is the quiet period before a burst of input is resolved.
const DefaultDebounce = 500 * time.Millisecond

// Lookup fetches authoritative metadata for a URL.
type Lookup interface {
	FileInfo(ctx context.Context, rawURL string) (*domain.FileInfo, error)
}

// Result is the outcome of one Resolve call.
type Result struct {
	Seq        uint64
	Descriptor *domain.FileDescriptor
	// Info is nil when the lookup failed; Descriptor then holds the guess.
	Info      *domain.FileInfo
	LookupErr error
}

// Resolver derives a FileDescriptor from a URL and refines it with a
// server lookup. Only the result of the most recent call is kept.
type Resolver struct {
	lookup Lookup
	logger *slog.Logger

	mu     sync.Mutex
	seq    uint64
	latest *Result
}

// NewResolver creates a resolver. A nil lookup keeps every result at the
// client-side guess.
func NewResolver(lookup Lookup, logger *slog.Logger) *Resolver {
	return &Resolver{lookup: lookup, logger: logger}
}

// Describe infers a descriptor from the URL alone.
func (r *Resolver) Describe(rawURL string) (*domain.FileDescriptor, error) {
	return domain.DescribeURL(rawURL)
}

// Resolve describes rawURL and refines the guess with the lookup. Lookup
// failures are not errors: the guess is returned with LookupErr set.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*Result, error) {
	seq := r.begin()

	d, err := domain.DescribeURL(rawURL)
	if err != nil {
		if r.isCurrent(seq) {
			return nil, err
		}
		return nil, ErrStale
	}

	res := &Result{Seq: seq, Descriptor: d}
	if r.lookup != nil {
		info, err := r.lookup.FileInfo(ctx, rawURL)
		if err != nil {
			res.LookupErr = err
			r.logger.Debug("lookup failed, keeping inferred metadata",
				"url", rawURL,
				"error", err,
			)
		} else {
			res.Info = info
			d.Refine(info)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if seq != r.seq {
		return nil, ErrStale
	}
	r.latest = res
	return res, nil
}

// Latest returns the result of the most recent Resolve, if it completed.
func (r *Resolver) Latest() (*Result, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.latest == nil || r.latest.Seq != r.seq {
		return nil, false
	}
	return r.latest, true
}

// Invalidate discards any pending or completed result.
func (r *Resolver) Invalidate() {
	r.begin()
}

func (r *Resolver) begin() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	r.latest = nil
	return r.seq
}

func (r *Resolver) isCurrent(seq uint64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return seq == r.seq
}

// Debouncer runs only the last function triggered within a quiet period.
type Debouncer struct {
	delay time.Duration

	mu    sync.Mutex
	timer *time.Timer
}

// NewDebouncer creates a debouncer. delay <= 0 selects DefaultDebounce.
func NewDebouncer(delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay}
}

// Trigger schedules fn after the quiet period, cancelling any function
// scheduled earlier that has not run yet.
func (d *Debouncer) Trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, fn)
}

// Stop cancels the pending function, if any.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}
