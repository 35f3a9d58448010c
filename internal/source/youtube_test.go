package source

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/kkdai/youtube/v2"

	"github.com/iconidentify/filegrab/internal/config"
	"github.com/iconidentify/filegrab/internal/domain"
)

// failingTransport refuses every request so the extractor always fails.
type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("network disabled in tests")
}

func offlineVideoResolver() *VideoPlatformResolver {
	return NewVideoPlatformResolver(
		config.VideoConfig{Enabled: true, Timeout: time.Second},
		testFetchConfig(),
		&http.Client{Transport: failingTransport{}},
		testLogger(),
	)
}

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtube.com/watch?v=dQw4w9WgXcQ&t=42", "dQw4w9WgXcQ", false},
		{"https://m.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://music.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/v/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", false},
		{"https://youtu.be/dQw4w9WgXcQ?si=abc", "dQw4w9WgXcQ", false},
		{"https://www.youtube.com/watch", "", true},
		{"https://www.youtube.com/feed/trending", "", true},
		{"https://youtu.be/", "", true},
		{"https://youtu.be/short", "", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", true},
		{"https://www.youtube.com/watch?v=bad$chars!!", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := ExtractVideoID(mustParse(t, tt.url))
			if (err != nil) != tt.wantErr {
				t.Fatalf("ExtractVideoID() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ExtractVideoID() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSanitizeTitle(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{"Never Gonna Give You Up", "Never Gonna Give You Up"},
		{"Rick Astley - Never Gonna Give You Up (Official Video)", "Rick Astley Never Gonna Give You Up Official Video"},
		{"a/b\\c:d*e?f\"g<h>i|j", "abcdefghij"},
		{"snake_case title", "snake_case title"},
		{"Café 東京", "Café 東京"},
		{"!!!", "video"},
		{"", "video"},
	}

	for _, tt := range tests {
		t.Run(tt.title, func(t *testing.T) {
			if got := SanitizeTitle(tt.title); got != tt.want {
				t.Errorf("SanitizeTitle(%q) = %q, want %q", tt.title, got, tt.want)
			}
		})
	}
}

func TestSelectFormat(t *testing.T) {
	video := &youtube.Video{
		Formats: youtube.FormatList{
			{ItagNo: 18, Width: 640, Height: 360, AudioChannels: 2, Bitrate: 500},
			{ItagNo: 22, Width: 1280, Height: 720, AudioChannels: 2, Bitrate: 1500},
			{ItagNo: 137, Width: 1920, Height: 1080, AudioChannels: 0, Bitrate: 4000},
			{ItagNo: 140, AudioChannels: 2, Bitrate: 128, AverageBitrate: 130},
			{ItagNo: 251, AudioChannels: 2, Bitrate: 160},
		},
	}

	f, err := SelectFormat(video, false)
	if err != nil {
		t.Fatalf("SelectFormat(video) failed: %v", err)
	}
	if f.ItagNo != 22 {
		t.Errorf("combined format itag = %d, want 22", f.ItagNo)
	}

	f, err = SelectFormat(video, true)
	if err != nil {
		t.Fatalf("SelectFormat(audio) failed: %v", err)
	}
	if f.ItagNo != 251 {
		t.Errorf("audio format itag = %d, want 251", f.ItagNo)
	}
}

func TestSelectFormat_NoCandidates(t *testing.T) {
	video := &youtube.Video{
		Formats: youtube.FormatList{
			{ItagNo: 137, Width: 1920, Height: 1080},
		},
	}
	if _, err := SelectFormat(video, false); err == nil {
		t.Error("expected error without combined formats")
	}
	if _, err := SelectFormat(video, true); err == nil {
		t.Error("expected error without audio formats")
	}
}

func TestVideoPlatformResolver_Accept(t *testing.T) {
	v := offlineVideoResolver()
	if err := v.Accept(mustParse(t, "https://youtu.be/dQw4w9WgXcQ")); err != nil {
		t.Errorf("youtu.be link should be accepted: %v", err)
	}
	if err := v.Accept(mustParse(t, "https://example.com/clip.mp4")); err == nil {
		t.Error("plain file link should be rejected")
	}
}

func TestVideoPlatformResolver_Lookup_DegradesToPlaceholder(t *testing.T) {
	v := offlineVideoResolver()

	info, err := v.Lookup(context.Background(), mustParse(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	if err != nil {
		t.Fatalf("Lookup should degrade instead of failing: %v", err)
	}
	if info.Title != "YouTube Video dQw4w9WgXcQ" {
		t.Errorf("Title = %q", info.Title)
	}
	if info.FileName != "YouTube Video dQw4w9WgXcQ.mp4" {
		t.Errorf("FileName = %q", info.FileName)
	}
	if info.FileType != domain.FileTypeVideo || !info.IsVideo {
		t.Errorf("FileType = %v IsVideo = %v", info.FileType, info.IsVideo)
	}
	if info.Source != domain.SourceYouTube {
		t.Errorf("Source = %q", info.Source)
	}
	if info.Size != 0 {
		t.Errorf("Size = %d, want 0 (unknown)", info.Size)
	}
}

func TestVideoPlatformResolver_Open_ExtractorFailure(t *testing.T) {
	v := offlineVideoResolver()

	stream, err := v.Open(context.Background(), mustParse(t, "https://youtu.be/dQw4w9WgXcQ"), "mp3")
	if !errors.Is(err, domain.ErrExtractorFailure) {
		t.Fatalf("err = %v, want ErrExtractorFailure", err)
	}
	if stream != nil {
		t.Error("stream should be nil on failure")
	}
}
