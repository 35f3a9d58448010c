package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

// =============================================================================
// Category Table Tests
// =============================================================================

func TestClassifyExtension_FullTable(t *testing.T) {
	tests := []struct {
		exts []string
		want FileType
	}{
		{[]string{"mp4", "avi", "mov", "wmv", "flv", "webm", "mkv"}, FileTypeVideo},
		{[]string{"mp3", "wav", "flac", "aac", "ogg", "m4a"}, FileTypeAudio},
		{[]string{"pdf", "doc", "docx", "txt", "rtf"}, FileTypeDocument},
		{[]string{"jpg", "jpeg", "png", "gif", "bmp", "svg", "webp"}, FileTypeImage},
		{[]string{"zip", "rar", "7z", "tar", "gz"}, FileTypeArchive},
	}

	for _, tt := range tests {
		for _, ext := range tt.exts {
			t.Run(ext, func(t *testing.T) {
				if got := ClassifyExtension(ext); got != tt.want {
					t.Errorf("ClassifyExtension(%q) = %v, want %v", ext, got, tt.want)
				}
				// Without a content type the extension decides.
				if got := Classify("", ext); got != tt.want {
					t.Errorf("Classify(\"\", %q) = %v, want %v", ext, got, tt.want)
				}
			})
		}
	}
}

func TestClassifyExtension_Unknown(t *testing.T) {
	for _, ext := range []string{"", "exe", "html", "iso"} {
		if got := ClassifyExtension(ext); got != FileTypeFile {
			t.Errorf("ClassifyExtension(%q) = %v, want File", ext, got)
		}
	}
}

func TestClassifyExtension_CaseAndDot(t *testing.T) {
	if got := ClassifyExtension(".MKV"); got != FileTypeVideo {
		t.Errorf("ClassifyExtension(.MKV) = %v, want Video", got)
	}
}

func TestExtensions(t *testing.T) {
	if got := len(Extensions(FileTypeVideo)); got != 7 {
		t.Errorf("len(Extensions(Video)) = %d, want 7", got)
	}
	if got := len(Extensions(FileTypeFile)); got != 0 {
		t.Errorf("len(Extensions(File)) = %d, want 0", got)
	}
}

func TestClassify_ContentTypeWins(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		ext         string
		want        FileType
	}{
		{"video mime", "video/mp4", "bin", FileTypeVideo},
		{"audio mime", "audio/mpeg", "", FileTypeAudio},
		{"image mime", "image/png", "pdf", FileTypeImage},
		{"pdf mime", "application/pdf", "zip", FileTypeDocument},
		{"mime with params", "Video/MP4; codecs=avc1", "", FileTypeVideo},
		{"uninformative mime falls back", "application/octet-stream", "zip", FileTypeArchive},
		{"unknown everything", "application/octet-stream", "bin", FileTypeFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.contentType, tt.ext); got != tt.want {
				t.Errorf("Classify(%q, %q) = %v, want %v", tt.contentType, tt.ext, got, tt.want)
			}
		})
	}
}

func TestIsHTML(t *testing.T) {
	if !IsHTML("text/html; charset=utf-8") {
		t.Error("text/html should be HTML")
	}
	if IsHTML("text/plain") {
		t.Error("text/plain should not be HTML")
	}
}

func TestFileType_Icon(t *testing.T) {
	tests := []struct {
		ft   FileType
		want string
	}{
		{FileTypeVideo, "video"},
		{FileTypeAudio, "file-audio"},
		{FileTypeDocument, "file-text"},
		{FileTypeImage, "file-image"},
		{FileTypeArchive, "file-archive"},
		{FileTypeFile, "file"},
	}
	for _, tt := range tests {
		if got := tt.ft.Icon(); got != tt.want {
			t.Errorf("%v.Icon() = %q, want %q", tt.ft, got, tt.want)
		}
	}
}

// =============================================================================
// URL Inference Tests
// =============================================================================

func TestDescribeURL_ClientOnly(t *testing.T) {
	d, err := DescribeURL("https://example.com/clip.mp4")
	if err != nil {
		t.Fatalf("DescribeURL failed: %v", err)
	}
	if d.Name != "clip.mp4" {
		t.Errorf("Name = %q, want %q", d.Name, "clip.mp4")
	}
	if d.Type != FileTypeVideo {
		t.Errorf("Type = %v, want Video", d.Type)
	}
	if d.Extension != "MP4" {
		t.Errorf("Extension = %q, want MP4", d.Extension)
	}
	if d.Size != 0 {
		t.Errorf("Size = %d, want 0", d.Size)
	}
	if !d.IsVideo || d.IsAudio {
		t.Errorf("IsVideo = %v, IsAudio = %v", d.IsVideo, d.IsAudio)
	}
}

func TestDescribeURL_Names(t *testing.T) {
	tests := []struct {
		url      string
		wantName string
		wantExt  string
		wantType FileType
	}{
		{"https://example.com/", UnknownFileName, "", FileTypeFile},
		{"https://example.com", UnknownFileName, "", FileTypeFile},
		{"https://example.com/files/My%20Report.PDF", "My Report.PDF", "PDF", FileTypeDocument},
		{"https://example.com/a/b/archive.tar.gz?x=1", "archive.tar.gz", "GZ", FileTypeArchive},
		{"https://example.com/v1.2/readme", "readme", "", FileTypeFile},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			d, err := DescribeURL(tt.url)
			if err != nil {
				t.Fatalf("DescribeURL failed: %v", err)
			}
			if d.Name != tt.wantName {
				t.Errorf("Name = %q, want %q", d.Name, tt.wantName)
			}
			if d.Extension != tt.wantExt {
				t.Errorf("Extension = %q, want %q", d.Extension, tt.wantExt)
			}
			if d.Type != tt.wantType {
				t.Errorf("Type = %v, want %v", d.Type, tt.wantType)
			}
		})
	}
}

func TestDescribeURL_Invalid(t *testing.T) {
	tests := []struct {
		input string
		want  error
	}{
		{"", ErrMissingURL},
		{"   ", ErrMissingURL},
		{"not a url", ErrMalformedURL},
		{"example.com/file.mp4", ErrMalformedURL},
		{"http://", ErrMalformedURL},
		{"://missing-scheme", ErrMalformedURL},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			d, err := DescribeURL(tt.input)
			if d != nil {
				t.Errorf("descriptor should be nil, got %+v", d)
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestFileDescriptor_Refine(t *testing.T) {
	d, _ := DescribeURL("https://example.com/download?id=7")
	d.Refine(&FileInfo{
		Size:        2048,
		ContentType: "audio/mpeg",
		FileType:    FileTypeAudio,
		IsAudio:     true,
	})

	if d.Size != 2048 {
		t.Errorf("Size = %d, want 2048", d.Size)
	}
	if d.Type != FileTypeAudio || d.Icon != "file-audio" {
		t.Errorf("Type = %v Icon = %q", d.Type, d.Icon)
	}
	if !d.IsAudio || d.IsVideo {
		t.Errorf("IsAudio = %v, IsVideo = %v", d.IsAudio, d.IsVideo)
	}
	if d.MimeHint != "audio/mpeg" {
		t.Errorf("MimeHint = %q", d.MimeHint)
	}

	// nil keeps everything
	d.Refine(nil)
	if d.Size != 2048 {
		t.Errorf("Size changed on nil refine: %d", d.Size)
	}
}

// =============================================================================
// Size Formatting Tests
// =============================================================================

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "Size unknown"},
		{-1, "Size unknown"},
		{1, "1 Bytes"},
		{1023, "1023 Bytes"},
		{1024, "1 KB"},
		{1536, "1.5 KB"},
		{1048576, "1 MB"},
		{5 * 1024 * 1024 * 1024, "5 GB"},
		{3 * 1024 * 1024 * 1024 * 1024, "3 TB"},
		{2048 * 1024 * 1024 * 1024 * 1024, "2048 TB"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.bytes), func(t *testing.T) {
			if got := FormatFileSize(tt.bytes); got != tt.want {
				t.Errorf("FormatFileSize(%d) = %q, want %q", tt.bytes, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Download State Tests
// =============================================================================

func TestDownloadStatus_CanTransition(t *testing.T) {
	tests := []struct {
		from DownloadStatus
		to   DownloadStatus
		want bool
	}{
		{DownloadIdle, DownloadValidating, true},
		{DownloadIdle, DownloadDownloading, false},
		{DownloadValidating, DownloadReady, true},
		{DownloadValidating, DownloadError, true},
		{DownloadReady, DownloadDownloading, true},
		{DownloadReady, DownloadSuccess, false},
		{DownloadDownloading, DownloadSuccess, true},
		{DownloadDownloading, DownloadError, true},
		{DownloadSuccess, DownloadReady, true},
		{DownloadError, DownloadIdle, true},
		{DownloadError, DownloadDownloading, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			if got := tt.from.CanTransition(tt.to); got != tt.want {
				t.Errorf("CanTransition = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDownloadStatus_IsTerminal(t *testing.T) {
	if !DownloadSuccess.IsTerminal() || !DownloadError.IsTerminal() {
		t.Error("success and error should be terminal")
	}
	if DownloadDownloading.IsTerminal() {
		t.Error("downloading should not be terminal")
	}
}

// =============================================================================
// History and Error Tests
// =============================================================================

func TestNewHistoryEntry(t *testing.T) {
	d, _ := DescribeURL("https://example.com/song.flac")
	d.Size = 4096
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

	e := NewHistoryEntry(d, "", now)
	if e.FileName != "song.flac" {
		t.Errorf("FileName = %q, want song.flac", e.FileName)
	}
	if e.FileType != FileTypeAudio || e.Icon != "file-audio" {
		t.Errorf("FileType = %v Icon = %q", e.FileType, e.Icon)
	}
	if e.FileSize != 4096 || e.URL != d.URL || !e.DownloadedAt.Equal(now) {
		t.Errorf("unexpected entry %+v", e)
	}
	if e.ID == "" {
		t.Error("ID should not be empty")
	}

	other := NewHistoryEntry(d, "renamed.mp3", now.Add(time.Millisecond))
	if other.ID == e.ID {
		t.Error("IDs from different instants should differ")
	}
	if other.FileName != "renamed.mp3" {
		t.Errorf("FileName = %q, want renamed.mp3", other.FileName)
	}
}

func TestUpstreamError(t *testing.T) {
	err := fmt.Errorf("fetch: %w", NewUpstreamError(404, "Not Found"))

	if !errors.Is(err, ErrUnreachable) {
		t.Error("UpstreamError should unwrap to ErrUnreachable")
	}

	var ue *UpstreamError
	if !errors.As(err, &ue) {
		t.Fatal("errors.As should find UpstreamError")
	}
	if ue.Error() != "404 Not Found" {
		t.Errorf("Error() = %q", ue.Error())
	}
	if got := NewUpstreamError(500, "").Error(); got != "status code 500" {
		t.Errorf("Error() = %q", got)
	}
}
