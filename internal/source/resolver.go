package source

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/url"
	"sort"

	"github.com/hashicorp/go-multierror"

	"github.com/iconidentify/filegrab/internal/domain"
)

// Resolver turns a URL of one kind of source into metadata and bytes.
type Resolver interface {
	// Name identifies the resolver in logs and health output.
	Name() string

	// Accept returns nil if the resolver can handle u, or the reason it cannot.
	Accept(u *url.URL) error

	// Lookup returns metadata about the resource without transferring it.
	Lookup(ctx context.Context, u *url.URL) (*domain.FileInfo, error)

	// Open starts the transfer. Caller is responsible for closing Stream.Body.
	Open(ctx context.Context, u *url.URL, format string) (*Stream, error)
}

// Stream is an open transfer from a remote source.
type Stream struct {
	Body          io.ReadCloser
	FileName      string
	ContentType   string
	ContentLength int64 // -1 when unknown

	// Final is set when the resolver already produced the requested
	// format, so no extension rewrite must happen afterwards.
	Final bool
}

// Close closes the underlying body.
func (s *Stream) Close() error {
	if s.Body == nil {
		return nil
	}
	return s.Body.Close()
}

// Priorities for Registry.Add; lower means tried earlier.
const (
	PriorityHighest int16 = math.MinInt16
	PriorityDefault int16 = 0
	PriorityLowest  int16 = math.MaxInt16
)

type entry struct {
	resolver Resolver
	priority int16
}

// Registry selects a Resolver for a URL in priority order.
type Registry struct {
	entries []entry
	names   map[string]struct{}
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: make(map[string]struct{})}
}

// Add registers r with the given priority. Names must be unique.
func (r *Registry) Add(res Resolver, priority int16) error {
	if res == nil || res.Name() == "" {
		return fmt.Errorf("invalid resolver")
	}
	if _, ok := r.names[res.Name()]; ok {
		return fmt.Errorf("duplicate resolver %q", res.Name())
	}
	r.names[res.Name()] = struct{}{}
	r.entries = append(r.entries, entry{resolver: res, priority: priority})
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority < r.entries[j].priority
	})
	return nil
}

// MustAdd is like Add but panics on error.
func (r *Registry) MustAdd(res Resolver, priority int16) {
	if err := r.Add(res, priority); err != nil {
		panic(err)
	}
}

// Names returns the registered resolver names in priority order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.entries))
	for _, e := range r.entries {
		names = append(names, e.resolver.Name())
	}
	return names
}

// Match returns the first resolver accepting u. When none does, the
// returned error wraps domain.ErrNoResolver and lists every rejection.
func (r *Registry) Match(u *url.URL) (Resolver, error) {
	var result error
	for _, e := range r.entries {
		err := e.resolver.Accept(u)
		if err == nil {
			return e.resolver, nil
		}
		result = multierror.Append(result, fmt.Errorf("%s: %w", e.resolver.Name(), err))
	}
	if result == nil {
		return nil, domain.ErrNoResolver
	}
	return nil, fmt.Errorf("%w: %s", domain.ErrNoResolver, result.Error())
}
