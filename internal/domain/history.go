package domain

import (
	"strconv"
	"time"
)

// HistoryKey is the fixed key under which the client keeps its history.
const HistoryKey = "download-history"

// MaxHistoryEntries is the number of most recent downloads that are kept.
const MaxHistoryEntries = 10

// HistoryEntry records one successful download on the client.
type HistoryEntry struct {
	ID           string    `json:"id"`
	FileName     string    `json:"fileName"`
	FileSize     int64     `json:"fileSize"`
	FileType     FileType  `json:"fileType"`
	DownloadedAt time.Time `json:"downloadedAt"`
	URL          string    `json:"url"`
	Icon         string    `json:"icon"`
}

// NewHistoryEntry builds an entry for a finished download of d saved as fileName.
// The ID is a time-based token.
func NewHistoryEntry(d *FileDescriptor, fileName string, now time.Time) HistoryEntry {
	if fileName == "" {
		fileName = d.Name
	}
	return HistoryEntry{
		ID:           strconv.FormatInt(now.UnixNano(), 36),
		FileName:     fileName,
		FileSize:     d.Size,
		FileType:     d.Type,
		DownloadedAt: now,
		URL:          d.URL,
		Icon:         d.Type.Icon(),
	}
}
