package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/iconidentify/filegrab/internal/domain"
	"github.com/iconidentify/filegrab/internal/service"
)

// Error messages returned to API callers.
const (
	msgURLParamRequired  = "URL parameter is required"
	msgURLRequired       = "URL is required"
	msgInvalidURL        = "Invalid URL format"
	msgNotAccessible     = "File not accessible or requires authentication"
	msgNotDirectFile     = "URL points to a webpage, not a direct file. Please use a direct file URL."
	msgUnsupportedFormat = "Unsupported format. Use original, mp3 or mp4."
	msgLookupFailed      = "Failed to fetch file information"
	msgVideoFailed       = "Failed to download YouTube video"
	msgStreamInterrupted = "Download stream interrupted"
	msgNoBody            = "No response body from remote server"
	msgDownloadFailed    = "Failed to process download request"
)

const maxRequestBody = 1 << 20

// FileHandler handles file lookup and download endpoints.
type FileHandler struct {
	files     *service.FileService
	chunkSize int
	logger    *slog.Logger
	active    atomic.Int64
}

// NewFileHandler creates a new file handler. Downloads are relayed in
// chunks of chunkSize bytes.
func NewFileHandler(files *service.FileService, chunkSize int, logger *slog.Logger) *FileHandler {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	return &FileHandler{
		files:     files,
		chunkSize: chunkSize,
		logger:    logger,
	}
}

// ActiveTransfers returns the number of downloads currently being relayed.
func (h *FileHandler) ActiveTransfers() int64 {
	return h.active.Load()
}

// FileInfo handles GET /api/file-info?url=...
func (h *FileHandler) FileInfo(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if strings.TrimSpace(raw) == "" {
		writeError(w, http.StatusBadRequest, msgURLParamRequired)
		return
	}

	info, err := h.files.Lookup(r.Context(), raw)
	if err != nil {
		status, msg := lookupError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("file info lookup failed", "url", raw, "error", err)
		}
		writeError(w, status, msg)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

func lookupError(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrMissingURL):
		return http.StatusBadRequest, msgURLParamRequired
	case errors.Is(err, domain.ErrMalformedURL), errors.Is(err, domain.ErrNoResolver):
		return http.StatusBadRequest, msgInvalidURL
	case errors.Is(err, domain.ErrNotADirectFile):
		return http.StatusBadRequest, msgNotDirectFile
	case errors.Is(err, domain.ErrUnreachable):
		return http.StatusBadRequest, msgNotAccessible
	}
	return http.StatusInternalServerError, msgLookupFailed
}

// DownloadRequest is the body of POST /api/download.
type DownloadRequest struct {
	URL    string `json:"url"`
	Format string `json:"format,omitempty"`
	// Option is accepted for older clients and ignored.
	Option string `json:"option,omitempty"`
}

// Download handles POST /api/download.
func (h *FileHandler) Download(w http.ResponseWriter, r *http.Request) {
	var req DownloadRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		writeError(w, http.StatusBadRequest, msgURLRequired)
		return
	}

	dl, err := h.files.Open(r.Context(), service.DownloadRequest{
		URL:    req.URL,
		Format: req.Format,
	})
	if err != nil {
		status, msg := downloadError(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("download failed", "url", req.URL, "error", err)
		}
		writeError(w, status, msg)
		return
	}
	defer dl.Close()

	h.active.Add(1)
	defer h.active.Add(-1)

	h.relay(w, r, dl)
}

func downloadError(err error) (int, string) {
	var upstream *domain.UpstreamError
	switch {
	case errors.Is(err, domain.ErrMissingURL):
		return http.StatusBadRequest, msgURLRequired
	case errors.Is(err, domain.ErrMalformedURL), errors.Is(err, domain.ErrNoResolver):
		return http.StatusBadRequest, msgInvalidURL
	case errors.Is(err, domain.ErrUnsupportedFormat):
		return http.StatusBadRequest, msgUnsupportedFormat
	case errors.As(err, &upstream):
		return http.StatusBadRequest, "Failed to download file: " + upstream.Error()
	case errors.Is(err, domain.ErrUnreachable):
		return http.StatusBadRequest, msgNotAccessible
	case errors.Is(err, domain.ErrNotADirectFile):
		return http.StatusBadRequest, msgNotDirectFile
	case errors.Is(err, domain.ErrExtractorFailure):
		return http.StatusInternalServerError, msgVideoFailed
	case errors.Is(err, domain.ErrNoBody):
		return http.StatusInternalServerError, msgNoBody
	}
	return http.StatusInternalServerError, msgDownloadFailed
}

// relay copies the download to w. Headers are committed with the first
// chunk so a failure before any byte can still be reported as JSON. Once
// bytes are out, a failure aborts the connection so the caller cannot
// mistake a truncated file for a complete one.
func (h *FileHandler) relay(w http.ResponseWriter, r *http.Request, dl *service.Download) {
	start := time.Now()
	rc := http.NewResponseController(w)
	buf := make([]byte, h.chunkSize)

	var written int64
	committed := false
	commit := func() {
		setDownloadHeaders(w.Header(), dl)
		w.WriteHeader(http.StatusOK)
		committed = true
	}

	for {
		n, readErr := dl.Body.Read(buf)
		if n > 0 {
			if !committed {
				commit()
			}
			if _, err := w.Write(buf[:n]); err != nil {
				h.logger.Warn("client went away during download",
					"transfer_id", dl.ID,
					"written_bytes", written,
					"error", err,
				)
				return
			}
			written += int64(n)
			_ = rc.Flush()
		}

		if errors.Is(readErr, io.EOF) {
			break
		}
		if readErr != nil {
			h.logger.Error("download stream interrupted",
				"transfer_id", dl.ID,
				"written_bytes", written,
				"error", readErr,
			)
			if !committed {
				writeError(w, http.StatusInternalServerError, msgStreamInterrupted)
				return
			}
			panic(http.ErrAbortHandler)
		}
	}

	if !committed {
		commit()
	}

	h.logger.Info("download complete",
		"transfer_id", dl.ID,
		"filename", dl.FileName,
		"bytes", written,
		"duration", time.Since(start),
		"remote_addr", r.RemoteAddr,
	)
}

func setDownloadHeaders(hdr http.Header, dl *service.Download) {
	hdr.Set("Content-Disposition", ContentDisposition(dl.FileName))
	contentType := dl.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	hdr.Set("Content-Type", contentType)
	if dl.ContentLength >= 0 {
		hdr.Set("Content-Length", strconv.FormatInt(dl.ContentLength, 10))
	}
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Headers", "Origin, X-Requested-With, Content-Type, Accept")
	if dl.Note != "" {
		hdr.Set("X-Format-Note", dl.Note)
	}
}

// ContentDisposition builds an attachment header for name. Names outside
// printable ASCII also get an RFC 5987 filename* parameter.
func ContentDisposition(name string) string {
	fallback := strings.Map(func(r rune) rune {
		switch {
		case r == '"' || r == '\\':
			return '_'
		case r > unicode.MaxASCII || !unicode.IsPrint(r):
			return '_'
		}
		return r
	}, name)

	v := fmt.Sprintf(`attachment; filename="%s"`, fallback)
	if fallback != name {
		v += "; filename*=UTF-8''" + url.PathEscape(name)
	}
	return v
}
