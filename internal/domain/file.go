package domain

import (
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// FileType is the category a file falls into.
type FileType string

const (
	FileTypeVideo    FileType = "Video"
	FileTypeAudio    FileType = "Audio"
	FileTypeDocument FileType = "Document"
	FileTypeImage    FileType = "Image"
	FileTypeArchive  FileType = "Archive"
	FileTypeFile     FileType = "File"
)

// String returns the string representation of the FileType.
func (t FileType) String() string {
	return string(t)
}

// Icon returns the icon tag shown next to files of this type.
func (t FileType) Icon() string {
	switch t {
	case FileTypeVideo:
		return "video"
	case FileTypeAudio:
		return "file-audio"
	case FileTypeDocument:
		return "file-text"
	case FileTypeImage:
		return "file-image"
	case FileTypeArchive:
		return "file-archive"
	default:
		return "file"
	}
}

// UnknownFileName is used when a URL has no usable last path segment.
const UnknownFileName = "unknown-file"

// categories maps a lower-case extension (without dot) to its FileType.
var categories = map[string]FileType{
	"mp4": FileTypeVideo, "avi": FileTypeVideo, "mov": FileTypeVideo, "wmv": FileTypeVideo,
	"flv": FileTypeVideo, "webm": FileTypeVideo, "mkv": FileTypeVideo,

	"mp3": FileTypeAudio, "wav": FileTypeAudio, "flac": FileTypeAudio, "aac": FileTypeAudio,
	"ogg": FileTypeAudio, "m4a": FileTypeAudio,

	"pdf": FileTypeDocument, "doc": FileTypeDocument, "docx": FileTypeDocument,
	"txt": FileTypeDocument, "rtf": FileTypeDocument,

	"jpg": FileTypeImage, "jpeg": FileTypeImage, "png": FileTypeImage, "gif": FileTypeImage,
	"bmp": FileTypeImage, "svg": FileTypeImage, "webp": FileTypeImage,

	"zip": FileTypeArchive, "rar": FileTypeArchive, "7z": FileTypeArchive,
	"tar": FileTypeArchive, "gz": FileTypeArchive,
}

// Extensions returns every extension of the category table belonging to t.
func Extensions(t FileType) []string {
	var exts []string
	for ext, ft := range categories {
		if ft == t {
			exts = append(exts, ext)
		}
	}
	return exts
}

// ClassifyExtension looks an extension up in the category table.
// The lookup is case-insensitive and tolerates a leading dot.
func ClassifyExtension(ext string) FileType {
	ext = strings.TrimPrefix(strings.ToLower(ext), ".")
	if ft, ok := categories[ext]; ok {
		return ft
	}
	return FileTypeFile
}

// ClassifyContentType maps a MIME type onto a FileType. The second result
// is false when the MIME type says nothing about the category.
func ClassifyContentType(contentType string) (FileType, bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case ct == "":
		return FileTypeFile, false
	case strings.HasPrefix(ct, "video/"):
		return FileTypeVideo, true
	case strings.HasPrefix(ct, "audio/"):
		return FileTypeAudio, true
	case strings.HasPrefix(ct, "image/"):
		return FileTypeImage, true
	case strings.HasPrefix(ct, "application/pdf"):
		return FileTypeDocument, true
	}
	return FileTypeFile, false
}

// Classify picks a FileType from the content type first and falls back to
// the extension table.
func Classify(contentType, ext string) FileType {
	if ft, ok := ClassifyContentType(contentType); ok {
		return ft
	}
	return ClassifyExtension(ext)
}

// IsHTML reports whether a content type denotes a web page.
func IsHTML(contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "text/html")
}

// ExtensionOf returns the lower-case extension (without dot) of the last
// segment of a URL path, or "" when there is none.
func ExtensionOf(p string) string {
	ext := path.Ext(path.Base(strings.ToLower(p)))
	return strings.TrimPrefix(ext, ".")
}

// FileNameFromPath returns the percent-decoded last segment of a URL path,
// or fallback when the path is empty or ends in a slash.
func FileNameFromPath(p, fallback string) string {
	idx := strings.LastIndex(p, "/")
	name := p[idx+1:]
	if name == "" {
		return fallback
	}
	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}
	if name == "" {
		return fallback
	}
	return name
}

// ParseURL parses s and requires an absolute URL with scheme and host.
func ParseURL(s string) (*url.URL, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrMissingURL
	}
	u, err := url.Parse(s)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, ErrMalformedURL
	}
	return u, nil
}

// FileDescriptor is the client view of a file behind a URL.
// Size 0 means the size is unknown, never that the file is empty.
type FileDescriptor struct {
	Name      string   `json:"name"`
	Type      FileType `json:"type"`
	Size      int64    `json:"size"`
	URL       string   `json:"url"`
	Extension string   `json:"extension"`
	MimeHint  string   `json:"mimeHint,omitempty"`
	IsVideo   bool     `json:"isVideo"`
	IsAudio   bool     `json:"isAudio"`
	Icon      string   `json:"icon"`
}

// DescribeURL infers a provisional FileDescriptor from the URL alone.
func DescribeURL(rawURL string) (*FileDescriptor, error) {
	u, err := ParseURL(rawURL)
	if err != nil {
		return nil, err
	}

	ext := ExtensionOf(u.Path)
	ft := ClassifyExtension(ext)

	return &FileDescriptor{
		Name:      FileNameFromPath(u.EscapedPath(), UnknownFileName),
		Type:      ft,
		URL:       rawURL,
		Extension: strings.ToUpper(ext),
		IsVideo:   ft == FileTypeVideo,
		IsAudio:   ft == FileTypeAudio,
		Icon:      ft.Icon(),
	}, nil
}

// Refine overwrites the inferred values with those reported by the server.
func (d *FileDescriptor) Refine(info *FileInfo) {
	if info == nil {
		return
	}
	if info.Size > 0 {
		d.Size = info.Size
	}
	if info.FileType != "" {
		d.Type = info.FileType
		d.Icon = info.FileType.Icon()
	}
	if info.ContentType != "" {
		d.MimeHint = info.ContentType
	}
	d.IsVideo = info.IsVideo
	d.IsAudio = info.IsAudio
}

var sizeUnits = []string{"Bytes", "KB", "MB", "GB", "TB"}

// FormatFileSize renders a byte count with the largest unit whose scaled
// value is at least 1, using one decimal at most.
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "Size unknown"
	}

	v := float64(bytes)
	i := 0
	for v >= 1024 && i < len(sizeUnits)-1 {
		v /= 1024
		i++
	}

	v = math.Round(v*10) / 10
	return strconv.FormatFloat(v, 'f', -1, 64) + " " + sizeUnits[i]
}
