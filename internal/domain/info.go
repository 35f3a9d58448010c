package domain

// Source identifies which resolver produced a FileInfo.
type Source string

const (
	SourceDirect  Source = "direct"
	SourceYouTube Source = "youtube"
)

// FileInfo is the authoritative metadata returned by the lookup endpoint.
type FileInfo struct {
	Size         int64    `json:"size"`
	ContentType  string   `json:"contentType"`
	FileType     FileType `json:"fileType"`
	FileName     string   `json:"fileName"`
	IsVideo      bool     `json:"isVideo"`
	IsAudio      bool     `json:"isAudio"`
	LastModified string   `json:"lastModified,omitempty"`
	ETag         string   `json:"etag,omitempty"`
	Source       Source   `json:"source,omitempty"`

	// Video platform metadata.
	Title     string `json:"title,omitempty"`
	Duration  int    `json:"duration,omitempty"`
	Author    string `json:"author,omitempty"`
	Thumbnail string `json:"thumbnail,omitempty"`
}

// SetType assigns the file type together with the video/audio flags.
func (i *FileInfo) SetType(ft FileType) {
	i.FileType = ft
	i.IsVideo = ft == FileTypeVideo
	i.IsAudio = ft == FileTypeAudio
}
