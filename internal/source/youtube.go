package source

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"unicode"

	"github.com/kkdai/youtube/v2"

	"github.com/iconidentify/filegrab/internal/config"
	"github.com/iconidentify/filegrab/internal/domain"
)

// VideoPlatformResolver handles YouTube watch pages through the youtube
// extractor instead of plain HTTP.
type VideoPlatformResolver struct {
	client *youtube.Client
	cfg    config.VideoConfig
	logger *slog.Logger
}

// NewVideoPlatformResolver creates a YouTube resolver. A nil httpClient
// selects a client that only bounds the wait for response headers.
func NewVideoPlatformResolver(cfg config.VideoConfig, fetch config.FetchConfig, httpClient *http.Client, logger *slog.Logger) *VideoPlatformResolver {
	if httpClient == nil {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.ResponseHeaderTimeout = fetch.HeaderTimeout
		httpClient = &http.Client{Transport: transport}
	}
	return &VideoPlatformResolver{
		client: &youtube.Client{HTTPClient: httpClient},
		cfg:    cfg,
		logger: logger,
	}
}

// Name implements Resolver.
func (v *VideoPlatformResolver) Name() string {
	return string(domain.SourceYouTube)
}

// Accept implements Resolver.
func (v *VideoPlatformResolver) Accept(u *url.URL) error {
	_, err := ExtractVideoID(u)
	return err
}

// Lookup implements Resolver. Extractor failures degrade to a placeholder
// record built from the video ID.
func (v *VideoPlatformResolver) Lookup(ctx context.Context, u *url.URL) (*domain.FileInfo, error) {
	id, err := ExtractVideoID(u)
	if err != nil {
		return nil, err
	}

	info := &domain.FileInfo{
		ContentType: "video/mp4",
		Source:      domain.SourceYouTube,
	}
	info.SetType(domain.FileTypeVideo)

	video, err := v.video(ctx, u)
	if err != nil {
		v.logger.Warn("video metadata unavailable, using placeholder",
			"video_id", id,
			"error", err,
		)
		info.Title = "YouTube Video " + id
		info.FileName = info.Title + ".mp4"
		return info, nil
	}

	info.Title = video.Title
	info.FileName = SanitizeTitle(video.Title) + ".mp4"
	info.Duration = int(video.Duration.Seconds())
	info.Author = video.Author
	if n := len(video.Thumbnails); n > 0 {
		info.Thumbnail = video.Thumbnails[n-1].URL
	}
	if f, err := SelectFormat(video, false); err == nil && f.ContentLength > 0 {
		info.Size = f.ContentLength
	}

	return info, nil
}

// Open implements Resolver. "mp3" selects an audio-only stream, anything
// else the best stream carrying both audio and video.
func (v *VideoPlatformResolver) Open(ctx context.Context, u *url.URL, format string) (*Stream, error) {
	video, err := v.video(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractorFailure, err)
	}

	audioOnly := strings.EqualFold(format, "mp3")
	f, err := SelectFormat(video, audioOnly)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtractorFailure, err)
	}

	body, size, err := v.client.GetStreamContext(ctx, video, f)
	if err != nil {
		return nil, fmt.Errorf("%w: get stream: %v", domain.ErrExtractorFailure, err)
	}

	stream := &Stream{
		Body:          body,
		FileName:      SanitizeTitle(video.Title) + ".mp4",
		ContentType:   "video/mp4",
		ContentLength: size,
		Final:         true,
	}
	if audioOnly {
		stream.FileName = SanitizeTitle(video.Title) + ".mp3"
		stream.ContentType = "audio/mpeg"
	}
	if stream.ContentLength <= 0 {
		stream.ContentLength = -1
	}

	v.logger.Info("video stream opened",
		"video_id", video.ID,
		"itag", f.ItagNo,
		"mime_type", f.MimeType,
		"size", size,
	)

	return stream, nil
}

func (v *VideoPlatformResolver) video(ctx context.Context, u *url.URL) (*youtube.Video, error) {
	if v.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.cfg.Timeout)
		defer cancel()
	}
	video, err := v.client.GetVideoContext(ctx, u.String())
	if err != nil {
		return nil, fmt.Errorf("get video info: %w", err)
	}
	return video, nil
}

// SelectFormat picks the highest bitrate audio-only format, or the tallest
// format carrying both audio and video.
func SelectFormat(video *youtube.Video, audioOnly bool) (*youtube.Format, error) {
	var best *youtube.Format
	for i := range video.Formats {
		f := &video.Formats[i]
		if f.AudioChannels == 0 {
			continue
		}
		if audioOnly {
			if f.Width != 0 || f.Height != 0 {
				continue
			}
			if best == nil || bitrate(f) > bitrate(best) {
				best = f
			}
			continue
		}
		if f.Width == 0 || f.Height == 0 {
			continue
		}
		if best == nil || f.Height > best.Height || (f.Height == best.Height && bitrate(f) > bitrate(best)) {
			best = f
		}
	}

	if best == nil {
		if audioOnly {
			return nil, fmt.Errorf("no audio-only formats available")
		}
		return nil, fmt.Errorf("no combined audio and video formats available")
	}
	return best, nil
}

func bitrate(f *youtube.Format) int {
	if f.AverageBitrate > 0 {
		return f.AverageBitrate
	}
	return f.Bitrate
}

// ExtractVideoID returns the video ID of a YouTube URL.
//
// Allowed URL formats:
//
//	http(s)://(www.|m.|music.)youtube.com/watch?v={VIDEO_ID}
//	http(s)://(www.|m.)youtube.com/(v|shorts|embed|live)/{VIDEO_ID}
//	http(s)://youtu.be/{VIDEO_ID}
func ExtractVideoID(u *url.URL) (string, error) {
	var id string
	switch strings.ToLower(u.Hostname()) {
	case "youtube.com", "www.youtube.com", "m.youtube.com", "music.youtube.com":
		p := strings.Trim(u.Path, "/")
		switch {
		case p == "watch" || p == "details":
			id = u.Query().Get("v")
			if id == "" {
				return "", fmt.Errorf("missing ?v= query parameter")
			}
		case strings.HasPrefix(p, "v/"), strings.HasPrefix(p, "shorts/"),
			strings.HasPrefix(p, "embed/"), strings.HasPrefix(p, "live/"):
			id = strings.SplitN(p, "/", 3)[1]
		}
	case "youtu.be":
		id = strings.SplitN(strings.Trim(u.Path, "/"), "/", 2)[0]
	default:
		return "", fmt.Errorf("unrecognised hostname %q", u.Hostname())
	}

	if !validVideoID(id) {
		return "", fmt.Errorf("could not extract video ID")
	}
	return id, nil
}

func validVideoID(id string) bool {
	if len(id) < 10 || len(id) > 12 {
		return false
	}
	for _, r := range id {
		if !(r == '-' || r == '_' || r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))) {
			return false
		}
	}
	return true
}

// SanitizeTitle strips everything but letters, digits, spaces and
// underscores from a video title so it can be used as a file name.
func SanitizeTitle(title string) string {
	var b strings.Builder
	for _, r := range title {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' {
			b.WriteRune(r)
		}
	}
	name := strings.Join(strings.Fields(b.String()), " ")
	if name == "" {
		return "video"
	}
	return name
}
