package source

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/iconidentify/filegrab/internal/config"
	"github.com/iconidentify/filegrab/internal/domain"
)

// DefaultFileName is used when neither the response nor the URL name the file.
const DefaultFileName = "download"

// ProbeResult contains what a header-only request revealed about a URL.
type ProbeResult struct {
	StatusCode    int
	Status        string
	ContentType   string
	ContentLength int64
	LastModified  string
	ETag          string
	Accessible    bool
}

// DirectResolver handles plain http(s) links that point straight at a file.
type DirectResolver struct {
	// client is used for probes with an overall timeout
	client *http.Client
	// streamClient is used for transfers; it only bounds the wait for headers
	streamClient *http.Client
	cfg          config.FetchConfig
	logger       *slog.Logger
}

// NewDirectResolver creates a resolver for direct file links.
func NewDirectResolver(cfg config.FetchConfig, logger *slog.Logger) *DirectResolver {
	streamTransport := http.DefaultTransport.(*http.Transport).Clone()
	streamTransport.ResponseHeaderTimeout = cfg.HeaderTimeout

	return &DirectResolver{
		client: &http.Client{
			Timeout: cfg.ProbeTimeout,
		},
		streamClient: &http.Client{
			Transport: streamTransport,
		},
		cfg:    cfg,
		logger: logger,
	}
}

// Name implements Resolver.
func (d *DirectResolver) Name() string {
	return string(domain.SourceDirect)
}

// Accept implements Resolver. Any http or https URL is accepted.
func (d *DirectResolver) Accept(u *url.URL) error {
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	}
	return fmt.Errorf("unsupported URL scheme %q", u.Scheme)
}

// setBrowserHeaders makes the request look like it comes from a browser,
// since some origins refuse obvious non-browser clients.
func (d *DirectResolver) setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Upgrade-Insecure-Requests", "1")
}

// Probe issues a HEAD request for u.
func (d *DirectResolver) Probe(ctx context.Context, u *url.URL) (*ProbeResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	d.setBrowserHeaders(req)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}
	defer resp.Body.Close()

	return &ProbeResult{
		StatusCode:    resp.StatusCode,
		Status:        statusText(resp),
		ContentType:   resp.Header.Get("Content-Type"),
		ContentLength: resp.ContentLength,
		LastModified:  resp.Header.Get("Last-Modified"),
		ETag:          resp.Header.Get("ETag"),
		Accessible:    resp.StatusCode >= 200 && resp.StatusCode < 300,
	}, nil
}

// Lookup implements Resolver.
func (d *DirectResolver) Lookup(ctx context.Context, u *url.URL) (*domain.FileInfo, error) {
	probe, err := d.Probe(ctx, u)
	if err != nil {
		return nil, err
	}
	if !probe.Accessible {
		return nil, domain.NewUpstreamError(probe.StatusCode, probe.Status)
	}
	if domain.IsHTML(probe.ContentType) {
		return nil, domain.ErrNotADirectFile
	}

	info := &domain.FileInfo{
		ContentType:  probe.ContentType,
		FileName:     domain.FileNameFromPath(u.EscapedPath(), DefaultFileName),
		LastModified: probe.LastModified,
		ETag:         probe.ETag,
		Source:       domain.SourceDirect,
	}
	if probe.ContentLength > 0 {
		info.Size = probe.ContentLength
	}
	if info.ContentType == "" {
		info.ContentType = "application/octet-stream"
	}
	info.SetType(domain.Classify(probe.ContentType, domain.ExtensionOf(u.Path)))

	return info, nil
}

// Open implements Resolver. The format hint is not used here; format
// handling happens after the stream is opened.
func (d *DirectResolver) Open(ctx context.Context, u *url.URL, _ string) (*Stream, error) {
	ctx, cancel := context.WithCancel(ctx)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	d.setBrowserHeaders(req)
	req.Header.Set("Referer", origin(u))

	resp, err := d.streamClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("%w: %v", domain.ErrUnreachable, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		cancel()
		return nil, domain.NewUpstreamError(resp.StatusCode, statusText(resp))
	}

	contentType := resp.Header.Get("Content-Type")
	if domain.IsHTML(contentType) {
		resp.Body.Close()
		cancel()
		return nil, domain.ErrNotADirectFile
	}

	if resp.Body == nil || resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusResetContent {
		if resp.Body != nil {
			resp.Body.Close()
		}
		cancel()
		return nil, domain.ErrNoBody
	}

	fileName := ContentDispositionFileName(resp.Header.Get("Content-Disposition"))
	if fileName == "" {
		fileName = domain.FileNameFromPath(u.EscapedPath(), DefaultFileName)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &Stream{
		Body:          newProgressReader(resp.Body, cancel, resp.ContentLength, d.cfg.IdleTimeout, d.logger, u.String()),
		FileName:      fileName,
		ContentType:   contentType,
		ContentLength: resp.ContentLength,
	}, nil
}

var dispositionFileName = regexp.MustCompile(`filename[^;=\n]*=((['"]).*?['"]|[^;\n]*)`)

// ContentDispositionFileName extracts the filename parameter of a
// Content-Disposition header with surrounding quotes removed.
func ContentDispositionFileName(header string) string {
	if header == "" {
		return ""
	}
	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := strings.TrimSpace(params["filename"]); name != "" {
			return strings.Trim(name, `"'`)
		}
	}
	// Malformed headers are common; fall back to a lenient match.
	m := dispositionFileName.FindStringSubmatch(header)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(m[1], `"`, ""), "'", ""))
}

func origin(u *url.URL) string {
	return u.Scheme + "://" + u.Host
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return strings.TrimSpace(strings.TrimPrefix(resp.Status, fmt.Sprint(resp.StatusCode)))
}
